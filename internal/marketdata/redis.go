package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sasidharan-s/marketmind/pkg/models"
)

const redisCacheKey = "market_data"

// RedisCache persists market data entries in Redis so the stale-fallback
// copy survives process restarts. Entries expire on their own after several
// TTL periods; freshness within that horizon is judged by the service.
type RedisCache struct {
	client *redis.Client
	expiry time.Duration
}

// NewRedisCache connects to Redis at addr and verifies the connection.
func NewRedisCache(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("marketdata: redis ping: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	// Keep stale copies around well past freshness so fallback works.
	return &RedisCache{client: client, expiry: 12 * ttl}, nil
}

// Load returns the persisted entry, nil if none exists.
func (r *RedisCache) Load(ctx context.Context) (*models.MarketDataEntry, error) {
	data, err := r.client.Get(ctx, redisCacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("marketdata: redis get: %w", err)
	}

	var entry models.MarketDataEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("marketdata: decode cached entry: %w", err)
	}
	return &entry, nil
}

// Save writes the entry with an expiry.
func (r *RedisCache) Save(ctx context.Context, entry *models.MarketDataEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marketdata: encode cache entry: %w", err)
	}
	if err := r.client.Set(ctx, redisCacheKey, data, r.expiry).Err(); err != nil {
		return fmt.Errorf("marketdata: redis set: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (r *RedisCache) Close() error {
	return r.client.Close()
}
