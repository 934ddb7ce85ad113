package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authserver/internal/models"
)

type CreateUserParams struct {
	Email          string
	HashedPassword string
	Name           *string
	Role           models.Role // default role used if empty
}

// User repository interface
type UserRepo interface {
	// Create user
	// If user with the email exists already has to return error apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, params CreateUserParams) (models.User, error)

	// Get user by it's id or email
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
}

// RefreshToken repository interface
// Tokens are looked up by their fingerprint (token hash) only
type RefreshTokenRepo interface {
	// Save token to repository
	Save(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error)

	// Return the token if it exists in the database even if it expired or revoked
	// If token not found must return apperrors.ErrRefreshTokenNotFound
	GetByHash(ctx context.Context, tokenHash string) (models.RefreshToken, error)

	// Mark token revoked
	// Must be idempotent: already revoked or not existed token is not an error
	// Must not overwrite existing 'revokedAt'. replacedBy is optional rotation link
	Revoke(ctx context.Context, tokenHash string, replacedBy *uuid.UUID) error

	// Revoke all active user tokens
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
}

// Access token blacklist repository interface
type BlacklistRepo interface {
	// Add token to blacklist
	// Must be idempotent: adding already blacklisted token is not an error
	Add(ctx context.Context, token models.BlacklistedToken) error

	// Whether the token is blacklisted and the record not expired yet
	Contains(ctx context.Context, tokenHash string, now time.Time) (bool, error)

	// Delete records expired before the time
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type Storage interface {
	User() UserRepo
	Refresh() RefreshTokenRepo
	Blacklist() BlacklistRepo

	// Run fn within transaction
	// If fn returns error the transaction is rolled back
	InTx(ctx context.Context, fn func(Storage) error) error

	// Check storage is reachable
	Ping(ctx context.Context) error
}
