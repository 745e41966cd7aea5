package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/andresuchdata/bakecast/internal/config"
	"github.com/andresuchdata/bakecast/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	forecastKeyPrefix  = "forecast"
	scanBatchSize      = 100
	defaultForecastTTL = time.Minute
	redisDialTimeout   = 5 * time.Second
)

// ForecastCache keeps generate-or-fetch results per store and target date.
type ForecastCache interface {
	Get(ctx context.Context, storeID int64, targetDate time.Time) (*domain.ForecastResult, bool, error)
	Set(ctx context.Context, result *domain.ForecastResult) error
	InvalidateStore(ctx context.Context, storeID int64) error
}

type redisForecastCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopForecastCache struct{}

// NewForecastCache returns a Redis-backed cache, or a no-op cache when caching is disabled.
func NewForecastCache(cfg config.CacheConfig) (ForecastCache, error) {
	if !cfg.Enabled {
		return &noopForecastCache{}, nil
	}

	client, err := dialForecastRedis(cfg)
	if err != nil {
		return nil, err
	}

	return NewRedisForecastCache(client, time.Duration(cfg.ForecastTTLSeconds)*time.Second), nil
}

// dialForecastRedis connects and pings so a dead server disables caching at startup.
func dialForecastRedis(cfg config.CacheConfig) (*redis.Client, error) {
	opts, err := forecastRedisOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// forecastRedisOptions prefers REDIS_URL and falls back to host, port and db.
func forecastRedisOptions(cfg config.CacheConfig) (*redis.Options, error) {
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return opt, nil
	}

	host, port := cfg.RedisHost, cfg.RedisPort
	if host == "" {
		host = "127.0.0.1"
	}
	if port == "" {
		port = "6379"
	}
	return &redis.Options{
		Addr:     net.JoinHostPort(host, port),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, nil
}

// NewRedisForecastCache wraps an existing client.
func NewRedisForecastCache(client *redis.Client, ttl time.Duration) ForecastCache {
	if ttl <= 0 {
		ttl = defaultForecastTTL
	}
	return &redisForecastCache{client: client, ttl: ttl}
}

func NewNoopForecastCache() ForecastCache {
	return &noopForecastCache{}
}

func (c *redisForecastCache) Get(ctx context.Context, storeID int64, targetDate time.Time) (*domain.ForecastResult, bool, error) {
	payload, err := c.client.Get(ctx, forecastKey(storeID, targetDate)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var result domain.ForecastResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached forecast: %w", err)
	}
	return &result, true, nil
}

func (c *redisForecastCache) Set(ctx context.Context, result *domain.ForecastResult) error {
	if result == nil {
		return nil
	}

	targetDate, err := domain.ParseDate("target_date", result.TargetDate)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode forecast: %w", err)
	}

	if err := c.client.Set(ctx, forecastKey(result.StoreID, targetDate), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// InvalidateStore drops every cached date of the store, deleting one scan page at a time.
func (c *redisForecastCache) InvalidateStore(ctx context.Context, storeID int64) error {
	iter := c.client.Scan(ctx, 0, storePrefix(storeID)+"*", scanBatchSize).Iterator()
	keys := make([]string, 0, scanBatchSize)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == scanBatchSize {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis delete failed: %w", err)
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan failed: %w", err)
	}
	if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("redis delete failed: %w", err)
		}
	}
	return nil
}

func (c *noopForecastCache) Get(context.Context, int64, time.Time) (*domain.ForecastResult, bool, error) {
	return nil, false, nil
}

func (c *noopForecastCache) Set(context.Context, *domain.ForecastResult) error {
	return nil
}

func (c *noopForecastCache) InvalidateStore(context.Context, int64) error {
	return nil
}

func storePrefix(storeID int64) string {
	return fmt.Sprintf("%s:%d:", forecastKeyPrefix, storeID)
}

func forecastKey(storeID int64, targetDate time.Time) string {
	return storePrefix(storeID) + domain.FormatDate(targetDate)
}
