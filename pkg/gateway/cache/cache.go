// Package cache implements the redis-backed nonce cache. Entries are
// advisory hints reconciled against the chain view on every read, so
// they carry a TTL and can be lost at any time.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// nonceTTL bounds the lifetime of nonce hints for inactive addresses.
// The chain reconciliation step makes expiry safe.
const nonceTTL = 24 * time.Hour

// Cache is the gateway's shared key-value cache.
type Cache struct {
	rdb *redis.Client
}

// New connects a new Cache to the redis instance at the given URL.
func New(ctx context.Context, url string) (*Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	return &Cache{rdb: rdb}, nil
}

// Nonce returns the cached next nonce for addr. The second return is
// false when no hint is cached.
func (c *Cache) Nonce(ctx context.Context, addr string) (uint64, bool, error) {
	v, err := c.rdb.Get(ctx, nonceKey(addr)).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

// SetNonce stores the next nonce the gateway intends to assign for addr.
func (c *Cache) SetNonce(ctx context.Context, addr string, nonce uint64) error {
	return c.rdb.Set(ctx, nonceKey(addr), nonce, nonceTTL).Err()
}

// Close releases the underlying connection pool.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

func nonceKey(addr string) string {
	return "nonce:" + addr
}
