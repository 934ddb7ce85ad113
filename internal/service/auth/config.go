package auth

import (
	"fmt"
)

const (
	TransportCookie = "cookie"
	TransportHeader = "header"
)

const (
	defaultRefreshTransport  = TransportCookie
	defaultRefreshCookieName = "refreshToken"
	defaultRefreshHeaderName = "X-Refresh-Token"
)

type Config struct {
	// Hasher to use during user registration or login process
	// Argon2id is used if not set
	Hasher PasswordHasher

	// How refresh token is sent to the client and read back
	// 'cookie' (default): HttpOnly cookie. 'header': response body and request header
	RefreshTransport string

	// Cookie or header name holding refresh token
	RefreshCookieName string
	RefreshHeaderName string

	// Mark refresh cookie Secure
	SecureCookie bool

	// Replace refresh token on every refresh and revoke the used one
	RotateRefresh bool
}

func (c *Config) setDefaults() {
	if c.RefreshTransport == "" {
		c.RefreshTransport = defaultRefreshTransport
	}
	if c.RefreshCookieName == "" {
		c.RefreshCookieName = defaultRefreshCookieName
	}
	if c.RefreshHeaderName == "" {
		c.RefreshHeaderName = defaultRefreshHeaderName
	}
}

func (c *Config) validate() error {
	switch c.RefreshTransport {
	case TransportCookie, TransportHeader:
		return nil
	default:
		return fmt.Errorf("unknown refresh transport %q, expected %q or %q", c.RefreshTransport, TransportCookie, TransportHeader)
	}
}
