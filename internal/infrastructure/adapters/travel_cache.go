package adapters

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MemoryTravelCache is an in-process TravelCache for tests and
// single-instance development.
type MemoryTravelCache struct {
	mu      sync.Mutex
	entries map[string]cachedEntry
}

type cachedEntry struct {
	result    TravelSearchResult
	storedAt  time.Time
	expiresAt time.Time
}

func NewMemoryTravelCache() *MemoryTravelCache {
	return &MemoryTravelCache{entries: make(map[string]cachedEntry)}
}

func (c *MemoryTravelCache) key(provider, hash string) string { return provider + ":" + hash }

func (c *MemoryTravelCache) Get(ctx context.Context, provider, queryHash string) (*TravelSearchResult, time.Duration, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[c.key(provider, queryHash)]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, 0, false, nil
	}
	result := e.result
	return &result, time.Since(e.storedAt), true, nil
}

func (c *MemoryTravelCache) Set(ctx context.Context, provider, queryHash string, result TravelSearchResult, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	c.entries[c.key(provider, queryHash)] = cachedEntry{result: result, storedAt: now, expiresAt: now.Add(ttl)}
	return nil
}

// RedisTravelCache backs TravelCache with Redis, matching the
// teacher's ratelimit.RedisGate pattern of a thin wrapper over
// redis.UniversalClient rather than a dedicated cache library.
type RedisTravelCache struct {
	client redis.UniversalClient
}

func NewRedisTravelCache(client redis.UniversalClient) *RedisTravelCache {
	return &RedisTravelCache{client: client}
}

type redisCachePayload struct {
	Result   TravelSearchResult `json:"result"`
	StoredAt time.Time          `json:"stored_at"`
}

func (c *RedisTravelCache) key(provider, hash string) string {
	return "travel:cache:" + provider + ":" + hash
}

func (c *RedisTravelCache) Get(ctx context.Context, provider, queryHash string) (*TravelSearchResult, time.Duration, bool, error) {
	raw, err := c.client.Get(ctx, c.key(provider, queryHash)).Bytes()
	if err == redis.Nil {
		return nil, 0, false, nil
	}
	if err != nil {
		return nil, 0, false, err
	}
	var payload redisCachePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, 0, false, err
	}
	return &payload.Result, time.Since(payload.StoredAt), true, nil
}

func (c *RedisTravelCache) Set(ctx context.Context, provider, queryHash string, result TravelSearchResult, ttl time.Duration) error {
	payload := redisCachePayload{Result: result, StoredAt: time.Now()}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(provider, queryHash), raw, ttl).Err()
}
