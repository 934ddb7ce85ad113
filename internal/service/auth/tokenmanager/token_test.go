package tokenmanager

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/authserver/internal/apperrors"
	"github.com/nkiryanov/authserver/internal/models"
)

func Test_TokenManager(t *testing.T) {
	t.Parallel()

	testUser := models.User{
		ID:    uuid.New(),
		Email: "a@x.com",
		Role:  models.RoleAdmin,
	}

	newManager := func(t *testing.T) *TokenManager {
		m, err := New(Config{SecretKey: "test-secret-key", AccessTTL: 15 * time.Minute, RefreshTTL: 24 * time.Hour})
		require.NoError(t, err, "token manager should be created without errors")
		return m
	}

	t.Run("new defaults", func(t *testing.T) {
		m, err := New(Config{SecretKey: "secret"})
		require.NoError(t, err, "token manager should be created without errors")

		require.Equal(t, []byte("secret"), m.key, "secret key should be set")
		require.Equal(t, defaultAccessTokenTTL, m.AccessTTL(), "default access token TTL should be set")
		require.Equal(t, defaultRefreshTokenTTL, m.RefreshTTL(), "default refresh token TTL")
		require.Equal(t, 7*24*time.Hour, m.RefreshTTL())
		require.Equal(t, defaultSigningMethod, m.alg.Alg(), "default signing method should be set")
	})

	t.Run("new fails", func(t *testing.T) {
		_, err := New(Config{})
		require.Error(t, err, "empty secret must be rejected")

		_, err = New(Config{SecretKey: "secret", Alg: "RS256"})
		require.Error(t, err, "not HMAC alg must be rejected")

		_, err = New(Config{SecretKey: "secret", Alg: "none"})
		require.Error(t, err)
	})

	t.Run("IssuePair", func(t *testing.T) {
		t.Run("return token pair", func(t *testing.T) {
			m := newManager(t)

			pair, err := m.IssuePair(testUser)

			require.NoError(t, err)
			assert.NotEmpty(t, pair.Access.Value, "access token should not be empty")
			assert.WithinDuration(t, time.Now().Add(15*time.Minute), pair.Access.ExpiresAt, time.Second)
			assert.NotEmpty(t, pair.Refresh.Value, "refresh token should not be empty")
			assert.WithinDuration(t, time.Now().Add(24*time.Hour), pair.Refresh.ExpiresAt, time.Second)
		})

		t.Run("access claims", func(t *testing.T) {
			m := newManager(t)
			pair, err := m.IssuePair(testUser)
			require.NoError(t, err)

			// Parse and verify the access token
			token, err := jwt.ParseWithClaims(pair.Access.Value, &Claims{}, func(token *jwt.Token) (any, error) {
				return []byte("test-secret-key"), nil
			})
			require.NoError(t, err)
			require.True(t, token.Valid, "access token should be valid")

			claims, ok := token.Claims.(*Claims)
			require.True(t, ok, "claims should be of type Claims")
			assert.Equal(t, testUser.ID.String(), claims.Subject, "subject should be user id")
			assert.Equal(t, testUser.Email, claims.Email)
			assert.Equal(t, models.RoleAdmin, claims.Role)
			assert.Equal(t, models.TokenKindAccess, claims.Type)
			assert.NotEmpty(t, claims.ID, "token has to has jti")
			assert.WithinDuration(t, time.Now(), claims.IssuedAt.Time, time.Second, "issued at should be close to now")
			assert.WithinDuration(t, pair.Access.ExpiresAt, claims.ExpiresAt.Time, 0, "access expires at should match token pair")
		})

		t.Run("refresh has no role", func(t *testing.T) {
			m := newManager(t)
			pair, err := m.IssuePair(testUser)
			require.NoError(t, err)

			claims := &Claims{}
			_, _, err = jwt.NewParser().ParseUnverified(pair.Refresh.Value, claims)
			require.NoError(t, err)

			assert.Equal(t, models.TokenKindRefresh, claims.Type)
			assert.Empty(t, claims.Role)
			assert.Equal(t, testUser.Email, claims.Email)
		})

		t.Run("generate different tokens within same second", func(t *testing.T) {
			m := newManager(t)
			frozen := time.Now()
			m.now = func() time.Time { return frozen }

			pair1, err := m.IssuePair(testUser)
			require.NoError(t, err)
			pair2, err := m.IssuePair(testUser)
			require.NoError(t, err)

			assert.NotEqual(t, pair1.Refresh.Value, pair2.Refresh.Value, "refresh tokens should be different")
			assert.NotEqual(t, pair1.Access.Value, pair2.Access.Value, "access tokens should be different")
		})
	})

	t.Run("ParseAccess", func(t *testing.T) {
		t.Run("valid token", func(t *testing.T) {
			m := newManager(t)
			access, err := m.IssueAccess(testUser)
			require.NoError(t, err, "token should be generated without errors")

			claims, err := m.ParseAccess(access.Value)

			require.NoError(t, err, "valid token should be parsed without errors")
			require.Equal(t, testUser.ID, claims.UserID)
			require.Equal(t, testUser.Email, claims.Email)
			require.Equal(t, testUser.Role, claims.Role)
			require.Equal(t, models.TokenKindAccess, claims.Kind)
			require.WithinDuration(t, access.ExpiresAt, claims.ExpiresAt, 0)
		})

		t.Run("not a token", func(t *testing.T) {
			m := newManager(t)

			_, err := m.ParseAccess("invalid token")

			require.ErrorIs(t, err, apperrors.ErrInvalidToken, "parsing even not a token should return an error")
		})

		t.Run("expired token", func(t *testing.T) {
			m := newManager(t)
			access, err := m.IssueAccess(testUser)
			require.NoError(t, err)

			m.now = func() time.Time { return time.Now().Add(16 * time.Minute) }
			_, err = m.ParseAccess(access.Value)

			require.ErrorIs(t, err, apperrors.ErrTokenExpired, "token has to become expired")
		})

		t.Run("refresh used as access", func(t *testing.T) {
			m := newManager(t)
			refresh, err := m.IssueRefresh(testUser)
			require.NoError(t, err)

			_, err = m.ParseAccess(refresh.Value)

			require.ErrorIs(t, err, apperrors.ErrInvalidToken)
		})

		t.Run("signed with other key", func(t *testing.T) {
			other, err := New(Config{SecretKey: "other-key"})
			require.NoError(t, err)
			access, err := other.IssueAccess(testUser)
			require.NoError(t, err)

			_, err = newManager(t).ParseAccess(access.Value)

			require.ErrorIs(t, err, apperrors.ErrInvalidToken)
		})

		t.Run("tampered payload", func(t *testing.T) {
			m := newManager(t)
			access, err := m.IssueAccess(models.User{ID: uuid.New(), Email: "a@x.com", Role: models.RoleUser})
			require.NoError(t, err)

			forged, err := New(Config{SecretKey: "attacker"})
			require.NoError(t, err)
			adminToken, err := forged.IssueAccess(testUser)
			require.NoError(t, err)

			// Original header and signature with other payload
			parts := strings.Split(access.Value, ".")
			forgedParts := strings.Split(adminToken.Value, ".")
			tampered := parts[0] + "." + forgedParts[1] + "." + parts[2]

			_, err = m.ParseAccess(tampered)

			require.ErrorIs(t, err, apperrors.ErrInvalidToken)
		})

		t.Run("not signed token", func(t *testing.T) {
			m := newManager(t)

			// Create valid but unsigned token
			token := jwt.NewWithClaims(
				jwt.SigningMethodNone,
				Claims{
					RegisteredClaims: jwt.RegisteredClaims{
						ID:        uuid.NewString(),
						Subject:   testUser.ID.String(),
						IssuedAt:  jwt.NewNumericDate(time.Now()),
						ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
					},
					Email: testUser.Email,
					Role:  models.RoleAdmin,
					Type:  models.TokenKindAccess,
				},
			)
			access, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
			require.NoError(t, err)

			_, err = m.ParseAccess(access)

			require.ErrorIs(t, err, apperrors.ErrInvalidToken, "Valid token with empty alg must fail")
		})

		t.Run("issuer checked", func(t *testing.T) {
			m, err := New(Config{SecretKey: "test-secret-key", Issuer: "authserver"})
			require.NoError(t, err)
			withoutIssuer, err := newManager(t).IssueAccess(testUser)
			require.NoError(t, err)

			_, err = m.ParseAccess(withoutIssuer.Value)

			require.ErrorIs(t, err, apperrors.ErrInvalidToken)
		})
	})

	t.Run("ParseRefresh", func(t *testing.T) {
		t.Run("valid token", func(t *testing.T) {
			m := newManager(t)
			refresh, err := m.IssueRefresh(testUser)
			require.NoError(t, err)

			claims, err := m.ParseRefresh(refresh.Value)

			require.NoError(t, err)
			require.Equal(t, testUser.ID, claims.UserID)
			require.Equal(t, models.TokenKindRefresh, claims.Kind)
		})

		t.Run("access used as refresh", func(t *testing.T) {
			m := newManager(t)
			access, err := m.IssueAccess(testUser)
			require.NoError(t, err)

			_, err = m.ParseRefresh(access.Value)

			require.ErrorIs(t, err, apperrors.ErrInvalidToken)
		})

		t.Run("expired", func(t *testing.T) {
			m := newManager(t)
			refresh, err := m.IssueRefresh(testUser)
			require.NoError(t, err)

			m.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
			_, err = m.ParseRefresh(refresh.Value)

			require.ErrorIs(t, err, apperrors.ErrTokenExpired)
		})
	})
}
