package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authserver/internal/models"
)

type BlacklistRepo struct {
	DB DBTX
}

const addBlacklisted = `-- name: Add token to blacklist
INSERT INTO access_token_blacklist (id, token_hash, expires_at, created_at, reason)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (token_hash) DO NOTHING
`

func (r *BlacklistRepo) Add(ctx context.Context, token models.BlacklistedToken) error {
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}

	_, err := r.DB.Exec(ctx, addBlacklisted, token.ID, token.TokenHash, token.ExpiresAt, token.CreatedAt, token.Reason)
	if err != nil {
		return dbError(err)
	}
	return nil
}

const containsBlacklisted = `-- name: Is token blacklisted
SELECT EXISTS (
	SELECT 1 FROM access_token_blacklist
	WHERE token_hash = $1 AND expires_at > $2
)
`

func (r *BlacklistRepo) Contains(ctx context.Context, tokenHash string, now time.Time) (bool, error) {
	var exists bool
	err := r.DB.QueryRow(ctx, containsBlacklisted, tokenHash, now).Scan(&exists)
	if err != nil {
		return false, dbError(err)
	}
	return exists, nil
}

const deleteExpiredBlacklisted = `-- name: Delete expired blacklist records
DELETE FROM access_token_blacklist
WHERE expires_at < $1
`

func (r *BlacklistRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteExpiredBlacklisted, before)
	if err != nil {
		return 0, dbError(err)
	}
	return tag.RowsAffected(), nil
}
