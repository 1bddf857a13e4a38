package cache_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickstep/payment-engine/cache"
)

func newTestInvalidator(t *testing.T) (*cache.Invalidator, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return cache.NewInvalidator(client, zerolog.Nop()), mr
}

func TestInvalidate_DropsStaleKeys(t *testing.T) {
	inv, mr := newTestInvalidator(t)
	require.NoError(t, mr.Set("statistics:1", "cached"))
	require.NoError(t, mr.Set("statistics:2", "cached"))
	require.NoError(t, mr.Set("statistics:3", "cached"))

	inv.Invalidate(context.Background(), []string{"statistics:1", "statistics:3"})

	assert.False(t, mr.Exists("statistics:1"))
	assert.True(t, mr.Exists("statistics:2"), "untouched events keep their cache")
	assert.False(t, mr.Exists("statistics:3"))
}

func TestInvalidate_MissingKeysAreFine(t *testing.T) {
	inv, mr := newTestInvalidator(t)

	inv.Invalidate(context.Background(), []string{"statistics:99"})

	assert.False(t, mr.Exists("statistics:99"))
}

func TestInvalidate_NilClient(t *testing.T) {
	inv := cache.NewInvalidator(nil, zerolog.Nop())

	// Must be a no-op, not a panic.
	inv.Invalidate(context.Background(), []string{"statistics:1"})
}

func TestInvalidate_RedisDown_DoesNotFail(t *testing.T) {
	inv, mr := newTestInvalidator(t)
	mr.Close()

	// Invalidation is best-effort: a dead Redis only produces a log line.
	inv.Invalidate(context.Background(), []string{"statistics:1"})
}

func TestConnect(t *testing.T) {
	client, err := cache.Connect("")
	require.NoError(t, err)
	assert.Nil(t, client, "empty URL disables caching")

	client, err = cache.Connect("redis://localhost:6379/2")
	require.NoError(t, err)
	require.NotNil(t, client)
	client.Close()

	_, err = cache.Connect("://not-a-url")
	assert.Error(t, err)
}
