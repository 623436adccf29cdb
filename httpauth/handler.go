package httpauth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/MrEthical07/pairauth"
	"github.com/MrEthical07/pairauth/middleware"
)

const maxBodyBytes = 1 << 20

// Engine is the subset of *pairauth.Engine the handlers call.
type Engine interface {
	Login(ctx context.Context, req pairauth.LoginRequest) (*pairauth.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*pairauth.TokenPair, error)
	Logout(ctx context.Context, userID string) error
	ValidateAccess(ctx context.Context, accessToken string) (*pairauth.AuthResult, error)
}

// Handler serves the login, refresh and logout routes.
type Handler struct {
	engine  Engine
	cookies CookieConfig
	logger  *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithCookieConfig replaces DefaultCookieConfig.
func WithCookieConfig(cfg CookieConfig) Option {
	return func(h *Handler) { h.cookies = cfg }
}

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func NewHandler(engine Engine, opts ...Option) *Handler {
	h := &Handler{
		engine:  engine,
		cookies: DefaultCookieConfig(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns a mux with the three routes mounted at the root. Mount it
// under a prefix with http.StripPrefix.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", h.Login)
	mux.HandleFunc("POST /refresh", h.Refresh)
	mux.Handle("POST /logout", middleware.Guard(h.engine)(http.HandlerFunc(h.Logout)))
	return mux
}

type loginRequest struct {
	UsernameOrEmail string `json:"usernameOrEmail"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
}

func (r loginRequest) identifier() string {
	for _, v := range []string{r.UsernameOrEmail, r.Username, r.Email} {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

type loginResponse struct {
	User         pairauth.PublicUser `json:"user"`
	AccessToken  string              `json:"accessToken"`
	RefreshToken string              `json:"refreshToken"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := decodeBody(w, r, &body, false); err != nil {
		h.logger.DebugContext(r.Context(), "httpauth: unreadable login body", "err", err)
		WriteError(w, &pairauth.Error{Kind: pairauth.KindValidation, Op: "login", Message: "request body must be a JSON object", Err: err})
		return
	}

	res, err := h.engine.Login(requestContext(r), pairauth.LoginRequest{
		Identifier: body.identifier(),
		Password:   body.Password,
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	h.cookies.setTokens(w, res.Tokens.AccessToken, res.Tokens.RefreshToken)
	writeOK(w, loginResponse{
		User:         res.User,
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
	}, "User logged in successfully")
}

// Refresh reads the refresh token from its cookie, falling back to the JSON
// body. A missing token is rejected by the Engine as malformed.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var token string
	if cookie, err := r.Cookie(RefreshCookieName); err == nil {
		token = cookie.Value
	}
	if token == "" {
		var body refreshRequest
		if err := decodeBody(w, r, &body, true); err != nil {
			WriteError(w, &pairauth.Error{Kind: pairauth.KindValidation, Op: "refresh", Message: "request body must be a JSON object", Err: err})
			return
		}
		token = body.RefreshToken
	}

	pair, err := h.engine.Refresh(requestContext(r), token)
	if err != nil {
		if pairauth.KindOf(err).Class() != pairauth.ClassInternal {
			h.cookies.clearTokens(w)
		}
		WriteError(w, err)
		return
	}

	h.cookies.setTokens(w, pair.AccessToken, pair.RefreshToken)
	writeOK(w, refreshResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, "Access token refreshed")
}

// Logout runs behind middleware.Guard, which has already authenticated the
// caller.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if err := h.engine.Logout(requestContext(r), userID); err != nil {
		WriteError(w, err)
		return
	}

	h.cookies.clearTokens(w)
	writeOK(w, struct{}{}, "User logged out")
}

// decodeBody reads a JSON object into dst. With optional set, an empty body
// leaves dst untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	if r.Body == nil {
		if optional {
			return nil
		}
		return io.EOF
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func requestContext(r *http.Request) context.Context {
	ctx := r.Context()

	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	ctx = pairauth.WithRequestID(ctx, requestID)
	ctx = pairauth.WithUserAgent(ctx, r.UserAgent())

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ctx = pairauth.WithClientIP(ctx, host)
	} else if r.RemoteAddr != "" {
		ctx = pairauth.WithClientIP(ctx, r.RemoteAddr)
	}
	return ctx
}
