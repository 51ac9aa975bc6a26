package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/annel0/layoutd/internal/layout"
	"github.com/annel0/layoutd/internal/logging"
	"github.com/go-redis/redis/v8"
)

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	PoolSize int
}

// RedisCache реализует LayoutCache поверх Redis; общий для всех узлов.
type RedisCache struct {
	client      *redis.Client
	ttl         time.Duration
	invalidator CacheInvalidator
	stats       counters
}

// NewRedisCache подключается к Redis.
//
// Параметры:
//
//	config - адрес и TTL
//	invalidator - опциональный invalidator для Pub/Sub (может быть nil)
func NewRedisCache(config RedisConfig, invalidator CacheInvalidator) (*RedisCache, error) {
	if config.TTL <= 0 {
		config.TTL = 10 * time.Minute
	}
	if config.PoolSize == 0 {
		config.PoolSize = 10
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.Info("Redis cache initialized: %s (ttl %v)", config.Addr, config.TTL)
	return &RedisCache{
		client:      rdb,
		ttl:         config.TTL,
		invalidator: invalidator,
	}, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) (*layout.Layout, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	start := time.Now()
	defer r.stats.recordLatency(start)

	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		r.stats.miss()
		return nil, ErrCacheMiss
	}
	if err != nil {
		r.stats.miss()
		logging.Error("Redis Get error for key %s: %v", key, err)
		return nil, fmt.Errorf("redis get error: %w", err)
	}

	l, err := decodeLayout(val)
	if err != nil {
		// Битую запись удаляем, чтобы следующий запрос перезаполнил кэш
		r.stats.miss()
		_ = r.client.Del(ctx, key).Err()
		logging.Warn("Dropping corrupted cache entry %s: %v", key, err)
		return nil, ErrCacheMiss
	}

	r.stats.hit()
	return l, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, l *layout.Layout) error {
	if err := validateKey(key); err != nil {
		return err
	}
	start := time.Now()
	defer r.stats.recordLatency(start)

	data, err := encodeLayout(l)
	if err != nil {
		return err
	}

	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		logging.Error("Redis Set error for key %s: %v", key, err)
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

// Invalidate удаляет ключ и отправляет уведомление об инвалидации.
func (r *RedisCache) Invalidate(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	if err := r.client.Del(ctx, key).Err(); err != nil {
		logging.Error("Redis Delete error for key %s: %v", key, err)
		return fmt.Errorf("redis delete error: %w", err)
	}
	r.stats.invalidate()

	if r.invalidator != nil {
		if err := r.invalidator.PublishInvalidation(ctx, key); err != nil {
			logging.Error("Failed to publish invalidation for key %s: %v", key, err)
		}
	}
	return nil
}

// GetMetrics возвращает текущие метрики кеша; TotalKeys — размер текущей БД Redis.
func (r *RedisCache) GetMetrics() *CacheMetrics {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	size, err := r.client.DBSize(ctx).Result()
	if err != nil {
		size = -1
	}
	return r.stats.snapshot(size)
}

// Close закрывает соединение с Redis и invalidator.
func (r *RedisCache) Close() error {
	if r.invalidator != nil {
		if err := r.invalidator.Close(); err != nil {
			logging.Error("Error closing invalidator: %v", err)
		}
	}
	if err := r.client.Close(); err != nil {
		logging.Error("Error closing Redis connection: %v", err)
		return err
	}
	logging.Info("Redis cache closed")
	return nil
}
