package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authserver/internal/apperrors"
	"github.com/nkiryanov/authserver/internal/models"
	"github.com/nkiryanov/authserver/internal/repository"
)

// Context errors are the only failures possible here, report them the way the db does
func dbError(err error) error {
	return fmt.Errorf("memory storage error: %w: %w", apperrors.ErrDatabase, err)
}

type UserRepo struct {
	s *Storage
}

func (r *UserRepo) CreateUser(ctx context.Context, params repository.CreateUserParams) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, dbError(err)
	}

	defer r.s.lock()()

	if _, ok := r.s.st.emails[params.Email]; ok {
		return models.User{}, apperrors.ErrUserAlreadyExists
	}

	role := params.Role
	if role == "" {
		role = models.RoleUser
	}

	now := time.Now()
	user := models.User{
		ID:             uuid.New(),
		CreatedAt:      now,
		UpdatedAt:      now,
		Email:          params.Email,
		HashedPassword: params.HashedPassword,
		Name:           params.Name,
		Role:           role,
	}

	r.s.st.users[user.ID] = user
	r.s.st.emails[user.Email] = user.ID

	return user, nil
}

func (r *UserRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, dbError(err)
	}

	defer r.s.lock()()

	user, ok := r.s.st.users[userID]
	if !ok {
		return models.User{}, apperrors.ErrUserNotFound
	}
	return user, nil
}

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, dbError(err)
	}

	defer r.s.lock()()

	id, ok := r.s.st.emails[email]
	if !ok {
		return models.User{}, apperrors.ErrUserNotFound
	}
	return r.s.st.users[id], nil
}

type RefreshTokenRepo struct {
	s *Storage
}

func (r *RefreshTokenRepo) Save(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error) {
	if err := ctx.Err(); err != nil {
		return token, dbError(err)
	}

	defer r.s.lock()()

	if _, ok := r.s.st.refresh[token.TokenHash]; ok {
		return token, dbError(fmt.Errorf("token hash %q exists already", token.TokenHash))
	}
	if _, ok := r.s.st.users[token.UserID]; !ok {
		return token, dbError(fmt.Errorf("user %s does not exist", token.UserID))
	}

	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}

	r.s.st.refresh[token.TokenHash] = token
	return token, nil
}

func (r *RefreshTokenRepo) GetByHash(ctx context.Context, tokenHash string) (models.RefreshToken, error) {
	if err := ctx.Err(); err != nil {
		return models.RefreshToken{}, dbError(err)
	}

	defer r.s.lock()()

	token, ok := r.s.st.refresh[tokenHash]
	if !ok {
		return token, apperrors.ErrRefreshTokenNotFound
	}
	return token, nil
}

func (r *RefreshTokenRepo) Revoke(ctx context.Context, tokenHash string, replacedBy *uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return dbError(err)
	}

	defer r.s.lock()()

	token, ok := r.s.st.refresh[tokenHash]
	if !ok {
		return nil
	}

	if token.RevokedAt == nil {
		now := time.Now()
		token.RevokedAt = &now
	}
	if token.ReplacedByTokenID == nil && replacedBy != nil {
		id := *replacedBy
		token.ReplacedByTokenID = &id
	}

	r.s.st.refresh[tokenHash] = token
	return nil
}

func (r *RefreshTokenRepo) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return dbError(err)
	}

	defer r.s.lock()()

	now := time.Now()
	for hash, token := range r.s.st.refresh {
		if token.UserID == userID && token.RevokedAt == nil {
			token.RevokedAt = &now
			r.s.st.refresh[hash] = token
		}
	}
	return nil
}

type BlacklistRepo struct {
	s *Storage
}

func (r *BlacklistRepo) Add(ctx context.Context, token models.BlacklistedToken) error {
	if err := ctx.Err(); err != nil {
		return dbError(err)
	}

	defer r.s.lock()()

	if _, ok := r.s.st.blacklist[token.TokenHash]; ok {
		return nil
	}

	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}

	r.s.st.blacklist[token.TokenHash] = token
	return nil
}

func (r *BlacklistRepo) Contains(ctx context.Context, tokenHash string, now time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, dbError(err)
	}

	defer r.s.lock()()

	token, ok := r.s.st.blacklist[tokenHash]
	return ok && token.ExpiresAt.After(now), nil
}

func (r *BlacklistRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, dbError(err)
	}

	defer r.s.lock()()

	var deleted int64
	for hash, token := range r.s.st.blacklist {
		if token.ExpiresAt.Before(before) {
			delete(r.s.st.blacklist, hash)
			deleted++
		}
	}
	return deleted, nil
}
