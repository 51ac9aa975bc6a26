package cache

import (
	"context"

	"github.com/annel0/layoutd/internal/config"
	"github.com/annel0/layoutd/internal/logging"
)

// Open выбирает реализацию кэша по конфигурации: Redis, если задан адрес,
// иначе кэш в памяти. При заданном NatsURL инвалидации рассылаются по NATS.
func Open(ctx context.Context, cfg config.CacheConfig, nodeID string) (LayoutCache, error) {
	var invalidator CacheInvalidator
	if cfg.NatsURL != "" {
		inv, err := NewNATSInvalidator(&InvalidatorConfig{NATSURL: cfg.NatsURL}, nodeID)
		if err != nil {
			return nil, err
		}
		invalidator = inv
	}

	if cfg.RedisAddr != "" {
		c, err := NewRedisCache(RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.Password,
			DB:       cfg.DB,
			TTL:      cfg.TTL(),
		}, invalidator)
		if err != nil {
			if invalidator != nil {
				invalidator.Close()
			}
			return nil, err
		}
		return c, nil
	}

	mc := NewMemoryCache(cfg.TTL(), DefaultMemoryEntries, invalidator)
	if err := mc.Listen(ctx); err != nil {
		if invalidator != nil {
			invalidator.Close()
		}
		return nil, err
	}
	logging.Info("Memory cache initialized (ttl %v, nats: %v)", cfg.TTL(), invalidator != nil)
	return mc, nil
}
