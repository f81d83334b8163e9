package klyptik

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DocumentCache keeps recovered documents by instruction. A miss is
// (Value{}, false, nil).
type DocumentCache interface {
	Get(ctx context.Context, instruction string) (Value, bool, error)
	Set(ctx context.Context, instruction string, doc Value) error
}

// NewDocumentCache returns a redis cache when an address is configured and a
// cache that never hits otherwise.
func NewDocumentCache(cfg CacheConfig) DocumentCache {
	if cfg.Addr == "" {
		return noopCache{}
	}
	return NewRedisCache(redis.NewClient(&redis.Options{
		Addr:     strings.TrimPrefix(cfg.Addr, "redis://"),
		Password: cfg.Password,
		DB:       cfg.DB,
	}), cfg.TTL)
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// cacheKey hashes the instruction after collapsing whitespace and case
func cacheKey(instruction string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(instruction), " "))
	sum := sha256.Sum256([]byte(normalized))
	return "klyptik:quiz:" + hex.EncodeToString(sum[:])
}

func (c *RedisCache) Get(ctx context.Context, instruction string) (Value, bool, error) {
	data, err := c.client.Get(ctx, cacheKey(instruction)).Result()
	if err == redis.Nil {
		return Value{}, false, nil
	}
	if err != nil {
		return Value{}, false, fmt.Errorf("failed to read cached quiz: %w", err)
	}
	doc, err := ParseValue(data)
	if err != nil {
		return Value{}, false, fmt.Errorf("failed to decode cached quiz: %w", err)
	}
	return doc, true, nil
}

func (c *RedisCache) Set(ctx context.Context, instruction string, doc Value) error {
	data, err := doc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode quiz for cache: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(instruction), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache quiz: %w", err)
	}
	return nil
}

// Ping checks the redis connection
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) (Value, bool, error) { return Value{}, false, nil }

func (noopCache) Set(context.Context, string, Value) error { return nil }
