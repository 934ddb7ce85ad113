package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nkiryanov/authserver/internal/apperrors"
	"github.com/nkiryanov/authserver/internal/handlers/render"
	"github.com/nkiryanov/authserver/internal/handlers/userctx"
	"github.com/nkiryanov/authserver/internal/models"
)

const bearerScheme = "Bearer"

type authenticator interface {
	// Return the user access token belongs to
	// Has to return apperrors.ErrInvalidToken, apperrors.ErrTokenExpired or apperrors.ErrUserNotFound for bad tokens
	Authenticate(ctx context.Context, access string) (models.PublicUser, error)
}

type Auth struct {
	auth   authenticator
	logger logger
}

func NewAuth(a authenticator, l logger) *Auth {
	return &Auth{auth: a, logger: l}
}

// Extract access token from 'Authorization: Bearer <token>' header
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", apperrors.ErrNoToken
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return "", apperrors.ErrNoToken
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", apperrors.ErrNoToken
	}
	return token, nil
}

// Auth lets request through only with valid access token and puts the user into request context
func (m *Auth) Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			render.Error(w, err)
			return
		}

		user, err := m.auth.Authenticate(r.Context(), token)
		switch {
		case err == nil:
		case errors.Is(err, apperrors.ErrUserNotFound):
			// Token of a deleted user is just not valid anymore
			render.Error(w, fmt.Errorf("%w: %w", apperrors.ErrUnauthorized, err))
			return
		default:
			if apperrors.As(err).Status >= http.StatusInternalServerError {
				m.logger.Error("request authentication failed", "error", err)
			}
			render.Error(w, err)
			return
		}

		ctx := userctx.New(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole lets request through only if authenticated user has the role
// Has to be used after Auth
func (m *Auth) RequireRole(role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := userctx.FromContext(r.Context())
			if !ok {
				render.Error(w, apperrors.ErrUnauthorized)
				return
			}

			if user.Role != role {
				render.Error(w, apperrors.ErrForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
