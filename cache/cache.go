// Package cache invalidates the per-event statistics cache kept in Redis.
//
// The payment engine never fills this cache; the statistics endpoints of the
// wider system do. Its only obligation here is to drop keys that a ledger
// mutation made stale, and to never fail an operation because Redis is down.
package cache

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Invalidator drops stale statistics keys after ledger mutations. A nil
// client disables invalidation entirely.
type Invalidator struct {
	client *redis.Client
	log    zerolog.Logger
}

// NewInvalidator creates an Invalidator. client may be nil.
func NewInvalidator(client *redis.Client, log zerolog.Logger) *Invalidator {
	return &Invalidator{client: client, log: log}
}

// Connect parses a Redis URL and returns a connected client, or nil for an
// empty URL.
func Connect(url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}

// Invalidate deletes the given keys. Failures are logged, never returned: a
// stale statistics entry expires on its own TTL, while a committed payment
// must not be reported as failed.
func (i *Invalidator) Invalidate(ctx context.Context, keys []string) {
	if i == nil || i.client == nil || len(keys) == 0 {
		return
	}
	if err := i.client.Del(ctx, keys...).Err(); err != nil {
		i.log.Warn().Err(err).Strs("keys", keys).Msg("cache invalidation failed")
	}
}
