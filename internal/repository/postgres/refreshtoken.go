package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/authserver/internal/apperrors"
	"github.com/nkiryanov/authserver/internal/models"
)

type RefreshTokenRepo struct {
	DB DBTX
}

const refreshColumns = `id, user_id, token_hash, created_at, expires_at, revoked_at, replaced_by_token_id`

const saveToken = `-- name: Save Refresh Token
INSERT INTO refresh_tokens (id, user_id, token_hash, created_at, expires_at, revoked_at, replaced_by_token_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + refreshColumns

func (r *RefreshTokenRepo) Save(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error) {
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}

	rows, _ := r.DB.Query(ctx, saveToken,
		token.ID, token.UserID, token.TokenHash, token.CreatedAt, token.ExpiresAt, token.RevokedAt, token.ReplacedByTokenID,
	)
	saved, err := pgx.CollectOneRow(rows, rowToRefreshToken)
	if err != nil {
		return saved, dbError(err)
	}

	return saved, nil
}

const getTokenByHash = `-- name: GetToken by its hash
SELECT ` + refreshColumns + `
FROM refresh_tokens
WHERE token_hash = $1
`

// Get token
// It should return result even it expired or revoked already
func (r *RefreshTokenRepo) GetByHash(ctx context.Context, tokenHash string) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, getTokenByHash, tokenHash)
	token, err := pgx.CollectOneRow(rows, rowToRefreshToken)

	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, pgx.ErrNoRows):
		return token, apperrors.ErrRefreshTokenNotFound
	default:
		return token, dbError(err)
	}
}

const revokeToken = `-- name: Revoke token if it not revoked
UPDATE refresh_tokens
SET revoked_at = COALESCE(revoked_at, $2),
    replaced_by_token_id = COALESCE(replaced_by_token_id, $3)
WHERE token_hash = $1
`

func (r *RefreshTokenRepo) Revoke(ctx context.Context, tokenHash string, replacedBy *uuid.UUID) error {
	_, err := r.DB.Exec(ctx, revokeToken, tokenHash, time.Now(), replacedBy)
	if err != nil {
		return dbError(err)
	}
	return nil
}

const revokeUserTokens = `-- name: Revoke all active user tokens
UPDATE refresh_tokens
SET revoked_at = $2
WHERE user_id = $1 AND revoked_at IS NULL
`

func (r *RefreshTokenRepo) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	_, err := r.DB.Exec(ctx, revokeUserTokens, userID, time.Now())
	if err != nil {
		return dbError(err)
	}
	return nil
}

func rowToRefreshToken(row pgx.CollectableRow) (models.RefreshToken, error) {
	var t models.RefreshToken
	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.CreatedAt, &t.ExpiresAt, &t.RevokedAt, &t.ReplacedByTokenID)
	return t, err
}
