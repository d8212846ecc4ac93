// Package redis implements the revocation cache on a redis backend.
package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	auth "github.com/eidcore/authsteps"
)

// Rediser is an interface to go-redis.
type Rediser interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// Cache is a TTL'd key value store backed by redis. Entries expire on
// their own; Del is only needed for early removal.
type Cache struct {
	db Rediser
}

// NewCache returns a new Cache.
func NewCache(db Rediser) *Cache {
	return &Cache{db: db}
}

// Set stores a value under a key for the given TTL.
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.db.Set(ctx, key, value, ttl).Err(); err != nil {
		return errors.Wrap(err, "failed to write cache entry")
	}
	return nil
}

// Get retrieves a value by key. A missing key is reported as not found.
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	value, err := c.db.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", errors.Wrap(auth.ErrNotFound("cache entry not found"), err.Error())
	}
	if err != nil {
		return "", errors.Wrap(err, "failed to read cache entry")
	}
	return value, nil
}

// Del removes a key before its natural expiry.
func (c *Cache) Del(ctx context.Context, key string) error {
	if err := c.db.Del(ctx, key).Err(); err != nil {
		return errors.Wrap(err, "failed to delete cache entry")
	}
	return nil
}
