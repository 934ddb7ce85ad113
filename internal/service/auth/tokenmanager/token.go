package tokenmanager

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/authserver/internal/apperrors"
	"github.com/nkiryanov/authserver/internal/models"
)

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultSigningMethod   = "HS256"
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Claims of both token kinds. Role is set for access tokens only
type Claims struct {
	jwt.RegisteredClaims
	Email string           `json:"email"`
	Role  models.Role      `json:"role,omitempty"`
	Type  models.TokenKind `json:"type"`
}

// Token manager with sensible default
type Config struct {
	// Secret key to sign tokens
	// Required to be set
	SecretKey string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used. Only HMAC family is supported
	Alg string

	// Access and refresh token lifetimes
	// If not set than default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Optional 'iss' claim. Checked on parse if set
	Issuer string
}

type TokenManager struct {
	// Secret key to sign tokens
	key []byte

	// JWT MAC (Message Authentication Code) algorithm
	alg jwt.SigningMethod

	// Access and refresh token lifetimes
	accessTTL  time.Duration
	refreshTTL time.Duration

	issuer string

	// Overridden in tests
	now func() time.Time
}

func New(cfg Config) (*TokenManager, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}
	alg, ok := jwt.GetSigningMethod(cfg.Alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing method %q, only HMAC is supported", cfg.Alg)
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)

	return &TokenManager{
		key:        []byte(cfg.SecretKey),
		alg:        alg,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		issuer:     cfg.Issuer,
		now:        time.Now,
	}, nil
}

func (m *TokenManager) AccessTTL() time.Duration {
	return m.accessTTL
}

func (m *TokenManager) RefreshTTL() time.Duration {
	return m.refreshTTL
}

func (m *TokenManager) issue(user models.User, kind models.TokenKind, ttl time.Duration) (models.IssuedToken, error) {
	now := m.now().Truncate(time.Second)
	expiresAt := now.Add(ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID.String(),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: user.Email,
		Type:  kind,
	}
	if kind == models.TokenKindAccess {
		claims.Role = user.Role
	}

	value, err := jwt.NewWithClaims(m.alg, claims).SignedString(m.key)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing %s token. Err: %w", kind, err)
	}

	return models.IssuedToken{Value: value, ExpiresAt: expiresAt}, nil
}

func (m *TokenManager) IssueAccess(user models.User) (models.IssuedToken, error) {
	return m.issue(user, models.TokenKindAccess, m.accessTTL)
}

func (m *TokenManager) IssueRefresh(user models.User) (models.IssuedToken, error) {
	return m.issue(user, models.TokenKindRefresh, m.refreshTTL)
}

func (m *TokenManager) IssuePair(user models.User) (models.TokenPair, error) {
	var pair models.TokenPair

	access, err := m.IssueAccess(user)
	if err != nil {
		return pair, err
	}

	refresh, err := m.IssueRefresh(user)
	if err != nil {
		return pair, err
	}

	return models.TokenPair{Access: access, Refresh: refresh}, nil
}

// Parse and validate access token
// Returns apperrors.ErrTokenExpired if token expired and apperrors.ErrInvalidToken on any other failure
func (m *TokenManager) ParseAccess(token string) (models.TokenClaims, error) {
	return m.parse(token, models.TokenKindAccess)
}

// Parse and validate refresh token
// Errors are the same as for ParseAccess
func (m *TokenManager) ParseRefresh(token string) (models.TokenClaims, error) {
	return m.parse(token, models.TokenKindRefresh)
}

func (m *TokenManager) parse(token string, kind models.TokenKind) (models.TokenClaims, error) {
	claims := &Claims{}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.alg.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) { return m.key, nil }, opts...)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return models.TokenClaims{}, fmt.Errorf("%w: %w", apperrors.ErrTokenExpired, err)
	case err != nil:
		return models.TokenClaims{}, fmt.Errorf("%w: %w", apperrors.ErrInvalidToken, err)
	}

	if claims.Type != kind {
		return models.TokenClaims{}, fmt.Errorf("%w: expected %s token, got %q", apperrors.ErrInvalidToken, kind, claims.Type)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return models.TokenClaims{}, fmt.Errorf("%w: bad subject: %w", apperrors.ErrInvalidToken, err)
	}

	parsed := models.TokenClaims{
		TokenID: claims.ID,
		UserID:  userID,
		Email:   claims.Email,
		Role:    claims.Role,
		Kind:    claims.Type,
	}
	if claims.IssuedAt != nil {
		parsed.IssuedAt = claims.IssuedAt.Time
	}
	parsed.ExpiresAt = claims.ExpiresAt.Time

	return parsed, nil
}
