// Package dedup provides at-most-once claiming of webhook delivery ids.
// Providers retry deliveries; only the first claim of an id may process it.
package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stealth-alerts/internal/errors"
)

// Claimer claims delivery ids. TryClaim returns true exactly once per id
// within the ttl window; later claims of the same id return false.
type Claimer interface {
	TryClaim(ctx context.Context, deliveryID string, ttl time.Duration) (bool, error)
}

const claimKeyPrefix = "webhook:delivery:"

// RedisClaimer claims ids with SETNX so concurrent instances agree on the
// winner.
type RedisClaimer struct {
	client *redis.Client
}

// NewRedisClaimer creates a Redis-backed claimer.
func NewRedisClaimer(client *redis.Client) *RedisClaimer {
	return &RedisClaimer{client: client}
}

// TryClaim claims the delivery id for the ttl window.
func (c *RedisClaimer) TryClaim(ctx context.Context, deliveryID string, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, claimKeyPrefix+deliveryID, "1", ttl).Result()
	if err != nil {
		return false, errors.NewStorageError("claim webhook delivery", err)
	}
	return ok, nil
}

// MemoryClaimer is a single-process claimer for tests and local runs.
type MemoryClaimer struct {
	mu     sync.Mutex
	claims map[string]time.Time
}

// NewMemoryClaimer creates an in-memory claimer.
func NewMemoryClaimer() *MemoryClaimer {
	return &MemoryClaimer{claims: make(map[string]time.Time)}
}

// TryClaim claims the delivery id until its ttl expires.
func (c *MemoryClaimer) TryClaim(_ context.Context, deliveryID string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if expiry, ok := c.claims[deliveryID]; ok && now.Before(expiry) {
		return false, nil
	}
	c.claims[deliveryID] = now.Add(ttl)
	return true, nil
}
