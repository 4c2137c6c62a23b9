package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestJSONCacheFetchPopulatesOnce(t *testing.T) {
	ctx := context.Background()
	c := NewJSONCache(newTestRedis(t), "stats", time.Minute)

	key, err := c.BuildKey(ctx, "overview")
	require.NoError(t, err)
	assert.Equal(t, "stats:overview:1", key)

	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return map[string]int{"clients": 3}, nil
	}

	var first, second map[string]int
	require.NoError(t, c.FetchJSON(ctx, key, &first, loader))
	require.NoError(t, c.FetchJSON(ctx, key, &second, loader))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 3, second["clients"])
}

func TestJSONCacheBumpChangesKey(t *testing.T) {
	ctx := context.Background()
	c := NewJSONCache(newTestRedis(t), "stats", time.Minute)

	before, err := c.BuildKey(ctx, "overview")
	require.NoError(t, err)
	require.NoError(t, c.Bump(ctx))
	after, err := c.BuildKey(ctx, "overview")
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}

func TestJSONCacheWithoutClientCallsLoader(t *testing.T) {
	var c *JSONCache
	var out []string
	err := c.FetchJSON(context.Background(), "k", &out, func(context.Context) (any, error) {
		return []string{"a"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, out)
}

func TestLockerSerialisesHolders(t *testing.T) {
	ctx := context.Background()
	locker := NewLocker(newTestRedis(t), time.Second, 100*time.Millisecond)

	release, err := locker.Lock(ctx, "numbering:DEV:2025")
	require.NoError(t, err)

	_, err = locker.Lock(ctx, "numbering:DEV:2025")
	assert.ErrorIs(t, err, ErrLockNotObtained)

	require.NoError(t, release(ctx))
	release2, err := locker.Lock(ctx, "numbering:DEV:2025")
	require.NoError(t, err)
	require.NoError(t, release2(ctx))
}
