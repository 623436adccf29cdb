package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/MrEthical07/pairauth"
)

// AccessCookieName is the cookie Guard falls back to when no bearer token is
// sent.
const AccessCookieName = "accessToken"

type authResultContextKey struct{}

// Validator verifies an access token. *pairauth.Engine satisfies it.
type Validator interface {
	ValidateAccess(ctx context.Context, accessToken string) (*pairauth.AuthResult, error)
}

// AuthResultFromContext returns the result stored by Guard.
func AuthResultFromContext(ctx context.Context) (*pairauth.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*pairauth.AuthResult)
	return res, ok
}

// UserIDFromContext returns the authenticated subject, or "" outside a
// guarded handler.
func UserIDFromContext(ctx context.Context) string {
	res, ok := AuthResultFromContext(ctx)
	if !ok || res == nil {
		return ""
	}
	return res.UserID
}

// Guard rejects requests without a valid access token. The token is read
// from the Authorization header or, failing that, the accessToken cookie.
func Guard(v Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				writeUnauthorized(w, pairauth.PublicErrorOf(pairauth.ErrInternal))
				return
			}

			token, ok := AccessToken(r)
			if !ok {
				writeUnauthorized(w, pairauth.PublicError{
					Status:  http.StatusUnauthorized,
					Code:    pairauth.KindTokenMalformed.Code(),
					Message: "access token is required",
				})
				return
			}

			res, err := v.ValidateAccess(r.Context(), token)
			if err != nil {
				writeUnauthorized(w, pairauth.PublicErrorOf(err))
				return
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccessToken extracts the access token of r.
func AccessToken(r *http.Request) (string, bool) {
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return token, true
	}

	cookie, err := r.Cookie(AccessCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

type errorBody struct {
	pairauth.PublicError
	Success bool `json:"success"`
}

func writeUnauthorized(w http.ResponseWriter, pub pairauth.PublicError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(pub.Status)
	_ = json.NewEncoder(w).Encode(errorBody{PublicError: pub})
}
