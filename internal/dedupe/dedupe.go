// Package dedupe provides a Redis-backed guard against re-publishing alerts
// for redelivered messages that already completed successfully. The transport
// is at-least-once; the guard keys on the full lifecycle identity
// (fingerprint + state + provider timestamp) so distinct lifecycle events
// for the same fingerprint are never suppressed.
package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"alert-collector/internal/events"
)

const keyPrefix = "collector:dedupe:"

// Cache marks processed lifecycle events in Redis with a TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache creates a dedupe cache over an existing Redis client.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Key builds the dedupe key for one lifecycle event.
func Key(fp string, alert *events.AlertEvent) string {
	return fmt.Sprintf("%s%s:%s:%s", keyPrefix, fp, alert.State, alert.OccurredAt)
}

// Seen reports whether this lifecycle event was already marked processed.
// Redis errors are returned so the caller can fail open.
func (c *Cache) Seen(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check dedupe key: %w", err)
	}
	return n > 0, nil
}

// Mark records a lifecycle event as processed. Best-effort: the key expires
// after the configured TTL and a lost mark only risks one duplicate publish.
func (c *Cache) Mark(ctx context.Context, key string) error {
	if err := c.client.SetNX(ctx, key, "1", c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to mark dedupe key: %w", err)
	}
	return nil
}
