// Package memory keeps users and tokens in process memory.
// It follows the same error contract as the postgres storage and is used for local runs and tests.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/google/uuid"

	"github.com/nkiryanov/authserver/internal/models"
	"github.com/nkiryanov/authserver/internal/repository"
)

type state struct {
	users     map[uuid.UUID]models.User
	emails    map[string]uuid.UUID
	refresh   map[string]models.RefreshToken // by token hash
	blacklist map[string]models.BlacklistedToken
}

func newState() *state {
	return &state{
		users:     make(map[uuid.UUID]models.User),
		emails:    make(map[string]uuid.UUID),
		refresh:   make(map[string]models.RefreshToken),
		blacklist: make(map[string]models.BlacklistedToken),
	}
}

func (s *state) clone() *state {
	return &state{
		users:     maps.Clone(s.users),
		emails:    maps.Clone(s.emails),
		refresh:   maps.Clone(s.refresh),
		blacklist: maps.Clone(s.blacklist),
	}
}

type Storage struct {
	mu *sync.Mutex
	st *state

	// Storage bound to a transaction owns the lock already
	inTx bool
}

func NewStorage() *Storage {
	return &Storage{mu: &sync.Mutex{}, st: newState()}
}

func (s *Storage) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Storage) User() repository.UserRepo {
	return &UserRepo{s: s}
}

func (s *Storage) Refresh() repository.RefreshTokenRepo {
	return &RefreshTokenRepo{s: s}
}

func (s *Storage) Blacklist() repository.BlacklistRepo {
	return &BlacklistRepo{s: s}
}

// Transactions are serialized. fn works on a copy of the state which replaces the original only if fn succeeds
func (s *Storage) InTx(ctx context.Context, fn func(repository.Storage) error) error {
	if err := ctx.Err(); err != nil {
		return dbError(err)
	}

	unlock := s.lock()
	defer unlock()

	tx := &Storage{mu: s.mu, st: s.st.clone(), inTx: true}
	if err := fn(tx); err != nil {
		return err
	}

	s.st = tx.st
	return nil
}

func (s *Storage) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return dbError(err)
	}
	return nil
}
