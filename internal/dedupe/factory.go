package dedupe

import (
	"context"
	"fmt"

	"github.com/mattjoyce/inboxd/internal/config"
)

// New builds the cache selected by cfg.Backend.
func New(ctx context.Context, cfg config.DedupeConfig) (Cache, error) {
	switch cfg.Backend {
	case "", config.DedupeNone:
		return NewNoOpCache(), nil
	case config.DedupeMemory:
		return NewMemoryCache(cfg.TTL, cfg.MaxEntries), nil
	case config.DedupeRedis:
		return NewRedisCache(ctx, cfg.RedisURL, cfg.KeyPrefix, cfg.TTL)
	default:
		return nil, fmt.Errorf("unknown dedupe backend: %s", cfg.Backend)
	}
}
