package janitor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/authserver/internal/logger"
	"github.com/nkiryanov/authserver/internal/models"
	"github.com/nkiryanov/authserver/internal/repository"
	"github.com/nkiryanov/authserver/internal/repository/memory"
	"github.com/nkiryanov/authserver/internal/service/auth"
	"github.com/nkiryanov/authserver/internal/service/auth/fingerprint"
	"github.com/nkiryanov/authserver/internal/service/auth/tokenmanager"
)

// Allow to use a function as cleaner
type cleanerFunc func(ctx context.Context) (int64, error)

func (f cleanerFunc) DeleteExpired(ctx context.Context) (int64, error) {
	return f(ctx)
}

func TestJanitor_Run(t *testing.T) {
	t.Run("cleans on every tick", func(t *testing.T) {
		var calls atomic.Int32
		j := New(10*time.Millisecond, cleanerFunc(func(ctx context.Context) (int64, error) {
			calls.Add(1)
			return 1, nil
		}), logger.NewNoOpLogger())

		ctx, cancel := context.WithCancel(t.Context())
		stopped := j.Run(ctx)

		require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)

		cancel()
		select {
		case <-stopped:
		case <-time.After(time.Second):
			require.FailNow(t, "janitor has to stop on context cancellation")
		}
	})

	t.Run("keeps running on errors", func(t *testing.T) {
		var calls atomic.Int32
		j := New(10*time.Millisecond, cleanerFunc(func(ctx context.Context) (int64, error) {
			calls.Add(1)
			return 0, errors.New("db is down")
		}), logger.NewNoOpLogger())

		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()
		j.Run(ctx)

		require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	})
}

func TestNew_DefaultInterval(t *testing.T) {
	j := New(0, cleanerFunc(nil), logger.NewNoOpLogger())

	require.Equal(t, time.Hour, j.interval)
}

func TestJanitor_KeepsRefreshTokens(t *testing.T) {
	storage := memory.NewStorage()
	tokens, err := tokenmanager.New(tokenmanager.Config{SecretKey: "secret"})
	require.NoError(t, err)
	fp, err := fingerprint.New("key")
	require.NoError(t, err)
	s, err := auth.NewService(auth.Config{}, tokens, storage, fp, nil)
	require.NoError(t, err)

	user, err := storage.User().CreateUser(t.Context(), repository.CreateUserParams{Email: "a@x.com", HashedPassword: "hash", Role: models.RoleUser})
	require.NoError(t, err)
	expired := time.Now().Add(-time.Hour)
	_, err = storage.Refresh().Save(t.Context(), models.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: "expired-refresh",
		CreatedAt: expired.Add(-time.Hour),
		ExpiresAt: expired,
	})
	require.NoError(t, err)
	err = storage.Blacklist().Add(t.Context(), models.BlacklistedToken{ID: uuid.New(), TokenHash: "expired-access", ExpiresAt: expired, CreatedAt: expired.Add(-time.Hour)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	stopped := New(10*time.Millisecond, s, logger.NewNoOpLogger()).Run(ctx)

	// Blacklist record is gone after the janitor run
	require.Eventually(t, func() bool {
		// Lookup as of a moment when the record was still valid
		found, err := storage.Blacklist().Contains(t.Context(), "expired-access", expired.Add(-time.Minute))
		return err == nil && !found
	}, time.Second, 20*time.Millisecond)
	cancel()
	<-stopped

	got, err := storage.Refresh().GetByHash(t.Context(), "expired-refresh")
	require.NoError(t, err, "expired refresh token must survive janitor run")
	require.Equal(t, user.ID, got.UserID)
}
