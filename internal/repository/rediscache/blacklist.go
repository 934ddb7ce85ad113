// Package rediscache caches blacklist lookups in redis in front of the durable storage.
package rediscache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nkiryanov/authserver/internal/logger"
	"github.com/nkiryanov/authserver/internal/models"
	"github.com/nkiryanov/authserver/internal/repository"
)

const keyPrefix = "authserver:blacklist:"

// Cached values. Absent key means "ask the storage"
const (
	valueBlacklisted = "1"
	valueClean       = "0"
)

// BlacklistCache decorates BlacklistRepo with read-through redis cache
//
// Positive answers are cached until the token expires. Negative answers are cached for a short NegativeTTL,
// and are dropped as soon as the token is added through the cache.
// Any redis failure falls back to the underlying repository.
type BlacklistCache struct {
	repo        repository.BlacklistRepo
	client      redis.UniversalClient
	logger      logger.Logger
	NegativeTTL time.Duration

	// Set when repo is bound to a transaction: tokens are cached only after commit
	pending *[]models.BlacklistedToken
}

func NewBlacklistCache(repo repository.BlacklistRepo, client redis.UniversalClient, l logger.Logger) *BlacklistCache {
	return &BlacklistCache{
		repo:        repo,
		client:      client,
		logger:      l,
		NegativeTTL: 30 * time.Second,
	}
}

// Connect to redis and make sure it is reachable
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

func key(tokenHash string) string {
	return keyPrefix + tokenHash
}

func (c *BlacklistCache) Add(ctx context.Context, token models.BlacklistedToken) error {
	if err := c.repo.Add(ctx, token); err != nil {
		return err
	}

	if c.pending != nil {
		// Not committed yet. Drop stale negative answer now, cache the token after commit
		if err := c.client.Del(ctx, key(token.TokenHash)).Err(); err != nil {
			c.logger.Warn("blacklist cache del failed", "error", err)
		}
		*c.pending = append(*c.pending, token)
		return nil
	}

	c.set(ctx, token)
	return nil
}

func (c *BlacklistCache) set(ctx context.Context, token models.BlacklistedToken) {
	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return
	}

	if err := c.client.Set(ctx, key(token.TokenHash), valueBlacklisted, ttl).Err(); err != nil {
		// Stale negative answer may live until NegativeTTL, drop it at least
		c.logger.Warn("blacklist cache set failed", "error", err)
		_ = c.client.Del(ctx, key(token.TokenHash)).Err()
	}
}

func (c *BlacklistCache) Contains(ctx context.Context, tokenHash string, now time.Time) (bool, error) {
	val, err := c.client.Get(ctx, key(tokenHash)).Result()
	switch {
	case err == nil:
		return val == valueBlacklisted, nil
	case errors.Is(err, redis.Nil):
		// cache miss
	default:
		c.logger.Warn("blacklist cache get failed", "error", err)
		return c.repo.Contains(ctx, tokenHash, now)
	}

	found, err := c.repo.Contains(ctx, tokenHash, now)
	if err != nil {
		return false, err
	}

	if !found {
		if err := c.client.SetNX(ctx, key(tokenHash), valueClean, c.NegativeTTL).Err(); err != nil {
			c.logger.Warn("blacklist cache set failed", "error", err)
		}
	}

	// Positive answers from storage are not cached: its expiration is unknown here
	return found, nil
}

// Redis expires keys by itself, so only the storage has to be cleaned
func (c *BlacklistCache) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	return c.repo.DeleteExpired(ctx, before)
}

// Storage wraps another storage replacing its blacklist with the cache
type Storage struct {
	repository.Storage
	client redis.UniversalClient
	logger logger.Logger

	// Tokens added within the transaction, nil outside of it
	pending *[]models.BlacklistedToken
}

func NewStorage(s repository.Storage, client redis.UniversalClient, l logger.Logger) *Storage {
	return &Storage{Storage: s, client: client, logger: l}
}

func (s *Storage) Blacklist() repository.BlacklistRepo {
	cache := NewBlacklistCache(s.Storage.Blacklist(), s.client, s.logger)
	cache.pending = s.pending
	return cache
}

// Cache is updated only when the outermost transaction commits.
// Nested transaction hands its tokens over to the parent one
func (s *Storage) InTx(ctx context.Context, fn func(repository.Storage) error) error {
	var pending []models.BlacklistedToken

	err := s.Storage.InTx(ctx, func(tx repository.Storage) error {
		return fn(&Storage{Storage: tx, client: s.client, logger: s.logger, pending: &pending})
	})
	if err != nil {
		return err
	}

	if s.pending != nil {
		*s.pending = append(*s.pending, pending...)
		return nil
	}

	cache := NewBlacklistCache(s.Storage.Blacklist(), s.client, s.logger)
	for _, token := range pending {
		cache.set(ctx, token)
	}
	return nil
}
