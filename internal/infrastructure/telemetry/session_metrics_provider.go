package telemetry

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// sessionScanBatch bounds how many keys one SCAN iteration may return.
const sessionScanBatch = 512

// RedisSessionMetricsProvider implements SessionMetricsProvider using Redis.
// It scans the session key space directly, so the count reflects what the
// Redis session store actually holds including TTL-expired evictions.
type RedisSessionMetricsProvider struct {
	client     *redis.Client
	keyPattern string
}

// NewRedisSessionMetricsProvider creates a new RedisSessionMetricsProvider.
// keyPrefix must match the session store's key layout; the default store
// writes keys under "session:".
func NewRedisSessionMetricsProvider(client *redis.Client, keyPrefix string) *RedisSessionMetricsProvider {
	if keyPrefix == "" {
		keyPrefix = "session:"
	}

	return &RedisSessionMetricsProvider{
		client:     client,
		keyPattern: keyPrefix + "*",
	}
}

// ActiveSessionCount returns the number of session keys currently in Redis.
// The count can be off by sessions created or expired mid-scan, which is
// acceptable for a gauge.
func (p *RedisSessionMetricsProvider) ActiveSessionCount(ctx context.Context) (int64, error) {
	var (
		count  int64
		cursor uint64
	)

	for {
		keys, next, err := p.client.Scan(ctx, cursor, p.keyPattern, sessionScanBatch).Result()
		if err != nil {
			return 0, err
		}

		count += int64(len(keys))
		if next == 0 {
			return count, nil
		}
		cursor = next
	}
}

var _ SessionMetricsProvider = (*RedisSessionMetricsProvider)(nil)
