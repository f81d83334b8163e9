package klyptik

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedisCache(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := NewRedisCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), ttl)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestCacheKeyNormalizesInstruction(t *testing.T) {
	a := cacheKey("Create 5 questions about Volcanoes")
	b := cacheKey("  create 5   questions\tabout volcanoes ")
	require.Equal(t, a, b)
	require.NotEqual(t, a, cacheKey("Create 5 questions about rivers"))
	require.Len(t, a, len("klyptik:quiz:")+64)
}

func TestNewDocumentCache(t *testing.T) {
	_, isNoop := NewDocumentCache(CacheConfig{}).(noopCache)
	require.True(t, isNoop)

	c, isRedis := NewDocumentCache(CacheConfig{Addr: "redis://localhost:6379", TTL: time.Minute}).(*RedisCache)
	require.True(t, isRedis)
	require.Equal(t, "localhost:6379", c.client.Options().Addr)
	require.NoError(t, c.Close())
}

func TestNoopCache(t *testing.T) {
	var c DocumentCache = noopCache{}
	require.NoError(t, c.Set(context.Background(), "x", StringValue("doc")))
	_, ok, err := c.Get(context.Background(), "x")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisCacheMiss(t *testing.T) {
	c, _ := newTestRedisCache(t, time.Hour)
	require.NoError(t, c.Ping(context.Background()))

	doc, ok, err := c.Get(context.Background(), "rivers")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, Value{}, doc)
}

func TestRedisCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedisCache(t, time.Hour)

	doc := mustParse(t, `{"title": "Rivers", "quiz": [{"question": "Longest?", "options": ["Nile", "Po"], "answer": "A"}]}`)
	require.NoError(t, c.Set(ctx, "Create a quiz about rivers", doc))

	got, ok, err := c.Get(ctx, "  create a QUIZ about   rivers")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, doc.String(), got.String())

	key := cacheKey("Create a quiz about rivers")
	require.True(t, mr.Exists(key))
	require.Equal(t, time.Hour, mr.TTL(key))

	mr.FastForward(2 * time.Hour)
	_, ok, err = c.Get(ctx, "Create a quiz about rivers")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisCacheCorruptEntry(t *testing.T) {
	c, mr := newTestRedisCache(t, time.Hour)
	require.NoError(t, mr.Set(cacheKey("rivers"), `{"quiz": [`))

	_, ok, err := c.Get(context.Background(), "rivers")
	require.ErrorIs(t, err, ErrParse)
	require.False(t, ok)
}

func TestRedisCacheUnavailable(t *testing.T) {
	c := NewRedisCache(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1}), time.Hour)
	t.Cleanup(func() { c.Close() })

	_, ok, err := c.Get(context.Background(), "rivers")
	require.Error(t, err)
	require.False(t, ok)
	require.Error(t, c.Set(context.Background(), "rivers", BuildFallback("rivers", "x")))
}
