package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/nkiryanov/authserver/internal/models"
)

type transport struct {
	kind       string
	cookieName string
	headerName string
	secure     bool
	ttl        time.Duration
}

func newTransport(cfg Config, ttl time.Duration) transport {
	return transport{
		kind:       cfg.RefreshTransport,
		cookieName: cfg.RefreshCookieName,
		headerName: cfg.RefreshHeaderName,
		secure:     cfg.SecureCookie,
		ttl:        ttl,
	}
}

func (t transport) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     t.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   t.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// Whether refresh token has to be returned in response body
func (s *AuthService) RefreshInBody() bool {
	return s.transport.kind == TransportHeader
}

// Attach refresh token to response. Does nothing if the token travels in the body
func (s *AuthService) SetRefresh(w http.ResponseWriter, token models.IssuedToken) {
	if s.transport.kind != TransportCookie {
		return
	}
	http.SetCookie(w, s.transport.cookie(token.Value, int(s.transport.ttl.Seconds())))
}

// Ask client to forget refresh cookie
func (s *AuthService) ClearRefresh(w http.ResponseWriter) {
	if s.transport.kind != TransportCookie {
		return
	}
	// Negative MaxAge is rendered as 'Max-Age=0'
	http.SetCookie(w, s.transport.cookie("", -1))
}

// Read refresh token from request. Empty string if there is no one
func (s *AuthService) RefreshFromRequest(r *http.Request) string {
	if s.transport.kind == TransportHeader {
		return strings.TrimSpace(r.Header.Get(s.transport.headerName))
	}

	cookie, err := r.Cookie(s.transport.cookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
