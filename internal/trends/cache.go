package trends

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores validation results per brand with TTL expiry, so repeat
// scoring runs within the TTL never hit the upstream provider.
type Cache interface {
	Get(ctx context.Context, brand string) (Result, bool)
	Set(ctx context.Context, brand string, res Result, ttl time.Duration)
}

func cacheKey(brand string) string {
	return "trends:" + strings.ToLower(strings.TrimSpace(brand))
}

// MemoryCache is the default in-process cache.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	res       Result
	expiresAt time.Time
}

// NewMemoryCache builds an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry)}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, brand string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[cacheKey(brand)]
	if !ok {
		return Result{}, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, cacheKey(brand))
		return Result{}, false
	}
	return entry.res, true
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, brand string, res Result, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(brand)] = memoryEntry{res: res, expiresAt: time.Now().Add(ttl)}
}

// Len returns the number of live entries.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// RedisCache shares validation results across processes. Used when
// REDIS_ADDR is configured; cache misses on redis errors.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache builds a redis-backed cache.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, brand string) (Result, bool) {
	raw, err := c.client.Get(ctx, cacheKey(brand)).Bytes()
	if err != nil {
		return Result{}, false
	}
	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return Result{}, false
	}
	return res, true
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, brand string, res Result, ttl time.Duration) {
	raw, err := json.Marshal(res)
	if err != nil {
		return
	}
	c.client.Set(ctx, cacheKey(brand), raw, ttl)
}
