package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers keys that have already been processed.
// The event bus uses it to deliver each domain event to a handler at most once.
type IdempotencyStore interface {
	// MarkProcessed atomically marks key as processed for ttl.
	// Returns true if the key was newly marked, false if it was already present.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks if key has already been processed
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Close releases resources held by the store
	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL after which the same key can be processed again. Default: 24 hours
	TTL time.Duration

	// Enabled turns deduplication on. Default: true
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
