package httpauth

import (
	"net/http"
	"time"
)

const (
	AccessCookieName  = "accessToken"
	RefreshCookieName = "refreshToken"
)

// CookieConfig controls the attributes of both token cookies. HttpOnly is
// always set.
type CookieConfig struct {
	Secure   bool
	Path     string
	Domain   string
	SameSite http.SameSite
	// AccessMaxAge and RefreshMaxAge become Max-Age. Zero makes a session
	// cookie.
	AccessMaxAge  time.Duration
	RefreshMaxAge time.Duration
}

// DefaultCookieConfig returns Secure, Path=/ and SameSite=Lax cookies that
// live as long as the default token TTLs.
func DefaultCookieConfig() CookieConfig {
	return CookieConfig{
		Secure:        true,
		Path:          "/",
		SameSite:      http.SameSiteLaxMode,
		AccessMaxAge:  15 * time.Minute,
		RefreshMaxAge: 10 * 24 * time.Hour,
	}
}

func (c CookieConfig) cookie(name, value string, maxAge time.Duration) *http.Cookie {
	path := c.Path
	if path == "" {
		path = "/"
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   c.Domain,
		MaxAge:   int(maxAge / time.Second),
		Secure:   c.Secure,
		HttpOnly: true,
		SameSite: c.SameSite,
	}
}

func (c CookieConfig) setTokens(w http.ResponseWriter, access, refresh string) {
	http.SetCookie(w, c.cookie(AccessCookieName, access, c.AccessMaxAge))
	http.SetCookie(w, c.cookie(RefreshCookieName, refresh, c.RefreshMaxAge))
}

func (c CookieConfig) clearTokens(w http.ResponseWriter) {
	access := c.cookie(AccessCookieName, "", 0)
	access.MaxAge = -1
	refresh := c.cookie(RefreshCookieName, "", 0)
	refresh.MaxAge = -1
	http.SetCookie(w, access)
	http.SetCookie(w, refresh)
}
