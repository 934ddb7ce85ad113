package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAs(t *testing.T) {
	t.Run("wrapped app error", func(t *testing.T) {
		err := fmt.Errorf("refresh failed: %w", ErrRefreshTokenRevoked)

		got := As(err)

		require.Same(t, ErrRefreshTokenRevoked, got)
		require.Equal(t, "AUTH_REFRESH_TOKEN_REVOKED", got.Code)
		require.Equal(t, http.StatusUnauthorized, got.Status)
	})

	t.Run("unknown error is internal", func(t *testing.T) {
		got := As(errors.New("pq: connection reset by peer"))

		require.Same(t, ErrInternal, got)
		require.Equal(t, "Internal server error", got.Message, "internal details must not leak")
	})

	t.Run("errors.Is works on sentinels", func(t *testing.T) {
		err := fmt.Errorf("db error: %w", ErrDatabase)

		require.ErrorIs(t, err, ErrDatabase)
		require.NotErrorIs(t, err, ErrInternal)
	})
}

func TestStatuses(t *testing.T) {
	tests := []struct {
		err    *Error
		status int
	}{
		{ErrUserAlreadyExists, http.StatusConflict},
		{ErrInvalidCredentials, http.StatusUnauthorized},
		{ErrUserNotFound, http.StatusNotFound},
		{ErrForbidden, http.StatusForbidden},
		{ErrValidation, http.StatusBadRequest},
		{ErrDatabase, http.StatusInternalServerError},
		{ErrUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			require.Equal(t, tt.status, tt.err.Status)
		})
	}
}
