package sop

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"steward/api/internal/store"
)

// Cache is a Redis read-through cache of templates keyed by document type.
// Lookups happen on every suggestion call, so a short TTL keeps the hot path
// off Postgres without letting edits go stale for long.
type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewCache connects to Redis and verifies the connection.
func NewCache(redisURL string, ttl time.Duration) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewCacheWithClient(client, ttl), nil
}

// NewCacheWithClient builds a cache around an existing Redis client.
func NewCacheWithClient(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{
		client: client,
		prefix: "template:",
		ttl:    ttl,
	}
}

func (c *Cache) key(documentType string) string {
	return c.prefix + documentType
}

// Get returns the cached template, or ok=false on miss or any Redis error.
// Cache failures never surface to callers; the store is the source of truth.
func (c *Cache) Get(ctx context.Context, documentType string) (*store.Template, bool) {
	raw, err := c.client.Get(ctx, c.key(documentType)).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		log.Printf("sop: cache get failed for %s: %v", documentType, err)
		return nil, false
	}

	var t store.Template
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		log.Printf("sop: cache decode failed for %s: %v", documentType, err)
		return nil, false
	}
	return &t, true
}

// Set stores a template with the cache TTL. Best effort.
func (c *Cache) Set(ctx context.Context, documentType string, t *store.Template) {
	raw, err := json.Marshal(t)
	if err != nil {
		log.Printf("sop: cache encode failed for %s: %v", documentType, err)
		return
	}
	if err := c.client.Set(ctx, c.key(documentType), raw, c.ttl).Err(); err != nil {
		log.Printf("sop: cache set failed for %s: %v", documentType, err)
	}
}

// Invalidate drops the cache entry for a document type.
func (c *Cache) Invalidate(ctx context.Context, documentType string) error {
	if err := c.client.Del(ctx, c.key(documentType)).Err(); err != nil {
		return fmt.Errorf("invalidate template cache: %w", err)
	}
	return nil
}

// Ping checks that Redis is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
