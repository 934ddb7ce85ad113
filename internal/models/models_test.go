package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRefreshToken_IsActive(t *testing.T) {
	now := time.Now()
	revokedAt := now.Add(-time.Minute)

	tests := []struct {
		name     string
		token    RefreshToken
		expected bool
	}{
		{
			name:     "not revoked not expired",
			token:    RefreshToken{ExpiresAt: now.Add(time.Hour)},
			expected: true,
		},
		{
			name:     "expired",
			token:    RefreshToken{ExpiresAt: now.Add(-time.Second)},
			expected: false,
		},
		{
			name:     "expires exactly now",
			token:    RefreshToken{ExpiresAt: now},
			expected: false,
		},
		{
			name:     "revoked",
			token:    RefreshToken{ExpiresAt: now.Add(time.Hour), RevokedAt: &revokedAt},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, tt.token.IsActive(now))
		})
	}
}

func TestUser_Public(t *testing.T) {
	name := "Alice"
	u := User{
		ID:             uuid.New(),
		Email:          "a@x.com",
		HashedPassword: "$argon2id$secret",
		Name:           &name,
		Role:           RoleAdmin,
	}

	data, err := json.Marshal(u.Public())
	require.NoError(t, err)

	require.JSONEq(t, `{"id":"`+u.ID.String()+`","email":"a@x.com","name":"Alice","role":"admin"}`, string(data))
	require.NotContains(t, string(data), "argon2id", "password hash must never be part of public user")
}

func TestRole_Valid(t *testing.T) {
	require.True(t, RoleUser.Valid())
	require.True(t, RoleAdmin.Valid())
	require.False(t, Role("root").Valid())
	require.False(t, Role("").Valid())
}
