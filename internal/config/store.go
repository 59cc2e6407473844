package config

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/oas-sandbox/engine/internal/store"
	"github.com/oas-sandbox/engine/internal/store/filestore"
	"github.com/oas-sandbox/engine/internal/store/memorystore"
	"github.com/oas-sandbox/engine/internal/store/redisstore"
)

// BuildStore constructs the configured backend and returns it together
// with the backend label ("memory", "file", "network") used to tag store
// metrics.
func BuildStore(ctx context.Context, cfg StoreConfig, logger *zap.Logger) (store.Store, string, error) {
	switch {
	case cfg.File != nil:
		s, err := filestore.Open(filestore.Options{
			Dir:             cfg.File.Path,
			Compression:     filestore.Algorithm(cfg.File.Compression),
			CompactInterval: cfg.File.CompactionInterval,
		})
		if err != nil {
			return nil, "", fmt.Errorf("config: open file store: %w", err)
		}
		return s, "file", nil

	case cfg.Network != nil:
		s, err := redisstore.Open(ctx, redisstore.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Network.Host, cfg.Network.Port),
			Password: cfg.Network.Password,
			DB:       cfg.Network.DB,
			Logger:   logger,
		})
		if err != nil {
			return nil, "", fmt.Errorf("config: open network store: %w", err)
		}
		return s, "network", nil

	default:
		maxSize := 0
		if cfg.Memory != nil {
			maxSize = cfg.Memory.MaxSize
		}
		return memorystore.New(memorystore.Options{MaxEntries: maxSize}), "memory", nil
	}
}

// DefaultTTL returns the configured memory backend's default TTL, or zero
// for any other backend (spec §6's store.memory.defaultTtl knob only
// applies to the in-memory backend's entries).
func (c *Config) DefaultTTL() time.Duration {
	if c.Store.Memory == nil {
		return 0
	}
	return c.Store.Memory.DefaultTTL
}
