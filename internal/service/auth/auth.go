package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authserver/internal/apperrors"
	"github.com/nkiryanov/authserver/internal/logger"
	"github.com/nkiryanov/authserver/internal/models"
	"github.com/nkiryanov/authserver/internal/repository"
	"github.com/nkiryanov/authserver/internal/service/auth/hasher"
)

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate Hash from password
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	// Has to return hasher.ErrMismatchedHash if password is wrong
	Compare(hashedPassword string, password string) error
}

// Deterministic token digest used to look up stored tokens
type Fingerprinter interface {
	Sum(token string) string
}

type TokenManager interface {
	IssueAccess(user models.User) (models.IssuedToken, error)
	IssueRefresh(user models.User) (models.IssuedToken, error)
	IssuePair(user models.User) (models.TokenPair, error)

	// Has to return apperrors.ErrTokenExpired or apperrors.ErrInvalidToken
	ParseAccess(token string) (models.TokenClaims, error)
	ParseRefresh(token string) (models.TokenClaims, error)

	RefreshTTL() time.Duration
}

type SignupParams struct {
	Email    string
	Password string
	Name     *string
}

// Authenticated user with fresh token pair
type Session struct {
	User   models.PublicUser
	Tokens models.TokenPair
}

type RefreshResult struct {
	Access models.IssuedToken

	// Set only if refresh token was rotated
	Refresh *models.IssuedToken
}

type RevokeAccessParams struct {
	Token  string
	Reason string

	// Revoke all refresh tokens of the token owner as well
	RevokeSessions bool
}

// Auth service
type AuthService struct {
	// Manager to issue and parse tokens (access and refresh)
	tokens TokenManager

	// hasher to hash or compare user passwords
	hasher PasswordHasher

	// fingerprinter to derive token lookup keys
	fingerprint Fingerprinter

	// Storage to access long term data
	storage repository.Storage

	logger logger.Logger

	// Compared on login of unknown user, so response time does not reveal whether the email exists
	dummyHash string

	// How refresh token travels between client and server
	transport transport

	rotateRefresh bool

	now func() time.Time
}

func NewService(
	cfg Config,
	tokens TokenManager,
	storage repository.Storage,
	fingerprint Fingerprinter,
	l logger.Logger,
) (*AuthService, error) {
	if tokens == nil || storage == nil || fingerprint == nil {
		return nil, errors.New("token manager, storage and fingerprinter must not be nil")
	}

	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if l == nil {
		l = logger.NewNoOpLogger()
	}

	// Set default argon2 hasher if not provided by user
	h := cfg.Hasher
	if h == nil {
		h = hasher.New(hasher.DefaultParams)
	}

	dummyHash, err := h.Hash("not-a-real-password")
	if err != nil {
		return nil, fmt.Errorf("can't prepare password hasher: %w", err)
	}

	return &AuthService{
		tokens:        tokens,
		hasher:        h,
		fingerprint:   fingerprint,
		storage:       storage,
		logger:        l,
		dummyHash:     dummyHash,
		transport:     newTransport(cfg, tokens.RefreshTTL()),
		rotateRefresh: cfg.RotateRefresh,
		now:           time.Now,
	}, nil
}

// Register new user and start a session
// Returns apperrors.ErrUserAlreadyExists if email is taken
func (s *AuthService) Signup(ctx context.Context, params SignupParams) (Session, error) {
	_, err := s.storage.User().GetUserByEmail(ctx, params.Email)
	switch {
	case err == nil:
		return Session{}, apperrors.ErrUserAlreadyExists
	case !errors.Is(err, apperrors.ErrUserNotFound):
		return Session{}, err
	}

	hash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return Session{}, fmt.Errorf("%w: can't hash password: %w", apperrors.ErrInternal, err)
	}

	var session Session
	err = s.storage.InTx(ctx, func(tx repository.Storage) error {
		// Concurrent signup with the same email fails here on unique constraint
		user, err := tx.User().CreateUser(ctx, repository.CreateUserParams{
			Email:          params.Email,
			HashedPassword: hash,
			Name:           params.Name,
			Role:           models.RoleUser,
		})
		if err != nil {
			return err
		}

		session, err = s.startSession(ctx, tx, user)
		return err
	})
	if err != nil {
		return Session{}, err
	}

	s.logger.Info("user signed up", "user_id", session.User.ID)
	return session, nil
}

// Login user with email and password
// Unknown email and wrong password both return apperrors.ErrInvalidCredentials
func (s *AuthService) Login(ctx context.Context, email string, password string) (Session, error) {
	user, err := s.storage.User().GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		_ = s.hasher.Compare(s.dummyHash, password)
		return Session{}, apperrors.ErrInvalidCredentials
	case err != nil:
		return Session{}, err
	}

	err = s.hasher.Compare(user.HashedPassword, password)
	switch {
	case errors.Is(err, hasher.ErrMismatchedHash):
		return Session{}, apperrors.ErrInvalidCredentials
	case err != nil:
		s.logger.Error("stored password hash can't be compared", "user_id", user.ID, "error", err)
		return Session{}, fmt.Errorf("%w: %w", apperrors.ErrInternal, err)
	}

	return s.startSession(ctx, s.storage, user)
}

// Issue token pair and store refresh token fingerprint
func (s *AuthService) startSession(ctx context.Context, store repository.Storage, user models.User) (Session, error) {
	pair, err := s.tokens.IssuePair(user)
	if err != nil {
		return Session{}, fmt.Errorf("%w: token could not be issued: %w", apperrors.ErrInternal, err)
	}

	_, err = store.Refresh().Save(ctx, models.RefreshToken{
		UserID:    user.ID,
		TokenHash: s.fingerprint.Sum(pair.Refresh.Value),
		ExpiresAt: pair.Refresh.ExpiresAt,
	})
	if err != nil {
		return Session{}, err
	}

	return Session{User: user.Public(), Tokens: pair}, nil
}

// Issue new access token using refresh token
//
// Checks run in order and the first failed one defines the error:
// empty token, bad signature or kind, revoked or unknown token, deleted user.
// If rotation enabled the refresh token is replaced with a new one and the old one revoked.
//
// Two concurrent requests with the same refresh token may both pass the revocation check.
// With rotation enabled both of them get new refresh tokens.
func (s *AuthService) Refresh(ctx context.Context, refresh string) (RefreshResult, error) {
	if refresh == "" {
		return RefreshResult{}, apperrors.ErrNoRefreshToken
	}

	claims, err := s.tokens.ParseRefresh(refresh)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("%w: %w", apperrors.ErrInvalidRefreshToken, err)
	}

	tokenHash := s.fingerprint.Sum(refresh)
	stored, err := s.storage.Refresh().GetByHash(ctx, tokenHash)
	switch {
	case errors.Is(err, apperrors.ErrRefreshTokenNotFound):
		return RefreshResult{}, apperrors.ErrRefreshTokenRevoked
	case err != nil:
		return RefreshResult{}, err
	}
	if !stored.IsActive(s.now()) {
		return RefreshResult{}, apperrors.ErrRefreshTokenRevoked
	}

	user, err := s.storage.User().GetUserByID(ctx, claims.UserID)
	if err != nil {
		return RefreshResult{}, err
	}

	access, err := s.tokens.IssueAccess(user)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("%w: token could not be issued: %w", apperrors.ErrInternal, err)
	}

	if !s.rotateRefresh {
		return RefreshResult{Access: access}, nil
	}

	next, err := s.tokens.IssueRefresh(user)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("%w: token could not be issued: %w", apperrors.ErrInternal, err)
	}

	err = s.storage.InTx(ctx, func(tx repository.Storage) error {
		saved, err := tx.Refresh().Save(ctx, models.RefreshToken{
			UserID:    user.ID,
			TokenHash: s.fingerprint.Sum(next.Value),
			ExpiresAt: next.ExpiresAt,
		})
		if err != nil {
			return err
		}
		return tx.Refresh().Revoke(ctx, tokenHash, &saved.ID)
	})
	if err != nil {
		return RefreshResult{}, err
	}

	return RefreshResult{Access: access, Refresh: &next}, nil
}

// Revoke refresh token
// Best effort: it never fails, storage errors are logged only
func (s *AuthService) Logout(ctx context.Context, refresh string) {
	if refresh == "" {
		return
	}

	err := s.storage.Refresh().Revoke(ctx, s.fingerprint.Sum(refresh), nil)
	if err != nil {
		s.logger.Warn("refresh token revocation failed", "error", err)
	}
}

// Return user the access token belongs to
// Role and other user data are read from storage, not from the token
func (s *AuthService) Authenticate(ctx context.Context, access string) (models.PublicUser, error) {
	claims, err := s.tokens.ParseAccess(access)
	if err != nil {
		return models.PublicUser{}, err
	}

	blacklisted, err := s.storage.Blacklist().Contains(ctx, s.fingerprint.Sum(access), s.now())
	if err != nil {
		return models.PublicUser{}, err
	}
	if blacklisted {
		return models.PublicUser{}, fmt.Errorf("%w: token revoked", apperrors.ErrInvalidToken)
	}

	return s.Profile(ctx, claims.UserID)
}

// Blacklist access token before it expires
// Expired token is unusable already, so nothing is stored for it
func (s *AuthService) RevokeAccess(ctx context.Context, params RevokeAccessParams) error {
	claims, err := s.tokens.ParseAccess(params.Token)
	switch {
	case errors.Is(err, apperrors.ErrTokenExpired):
		return nil
	case err != nil:
		return fmt.Errorf("%w: token is not a valid access token: %w", apperrors.ErrValidation, err)
	}

	token := models.BlacklistedToken{
		TokenHash: s.fingerprint.Sum(params.Token),
		ExpiresAt: claims.ExpiresAt,
	}
	if params.Reason != "" {
		token.Reason = &params.Reason
	}

	err = s.storage.InTx(ctx, func(tx repository.Storage) error {
		if err := tx.Blacklist().Add(ctx, token); err != nil {
			return err
		}
		if params.RevokeSessions {
			return tx.Refresh().RevokeAllForUser(ctx, claims.UserID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("access token revoked", "user_id", claims.UserID, "jti", claims.TokenID, "sessions_revoked", params.RevokeSessions)
	return nil
}

func (s *AuthService) Profile(ctx context.Context, userID uuid.UUID) (models.PublicUser, error) {
	user, err := s.storage.User().GetUserByID(ctx, userID)
	if err != nil {
		return models.PublicUser{}, err
	}
	return user.Public(), nil
}

// Delete blacklist records of access tokens that expired already
// Refresh tokens are never deleted: revoked and expired records are kept as session history
func (s *AuthService) DeleteExpired(ctx context.Context) (int64, error) {
	return s.storage.Blacklist().DeleteExpired(ctx, s.now())
}
