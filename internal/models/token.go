package models

import (
	"time"

	"github.com/google/uuid"
)

type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// Stored refresh token. The raw token is never stored, only its fingerprint
type RefreshToken struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	TokenHash         string
	CreatedAt         time.Time
	ExpiresAt         time.Time
	RevokedAt         *time.Time // nil if token not revoked
	ReplacedByTokenID *uuid.UUID // set when token was rotated
}

// Token is active if it is not revoked and not expired
func (t RefreshToken) IsActive(now time.Time) bool {
	return t.RevokedAt == nil && t.ExpiresAt.After(now)
}

// Access token revoked before its natural expiration
type BlacklistedToken struct {
	ID        uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	Reason    *string
}

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Token pair issued by TokenManager
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}

// Claims decoded from a verified token
type TokenClaims struct {
	TokenID   string
	UserID    uuid.UUID
	Email     string
	Role      Role // empty for refresh tokens
	Kind      TokenKind
	IssuedAt  time.Time
	ExpiresAt time.Time
}
