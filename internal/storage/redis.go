package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stealth-alerts/internal/config"
)

// Redis keys shared across instances.
const (
	authTokenKey  = "authToken"
	topWalletsKey = "topWallets"
)

// RedisCache wraps the Redis client
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new Redis cache connection
func NewRedisCache(cfg *config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.MaxConnections,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// NewRedisCacheFromClient wraps an existing client. Used by tests.
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Close closes the Redis connection
func (r *RedisCache) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Client returns the underlying Redis client
func (r *RedisCache) Client() *redis.Client {
	return r.client
}

// Ping checks if Redis is reachable
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// GetToken returns the cached provider auth token, or empty when absent.
func (r *RedisCache) GetToken(ctx context.Context) (string, error) {
	token, err := r.client.Get(ctx, authTokenKey).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get auth token: %w", err)
	}
	return token, nil
}

// SetToken replaces the cached provider auth token. Delete-then-set so a
// half-written value never survives.
func (r *RedisCache) SetToken(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, authTokenKey).Err(); err != nil {
		return fmt.Errorf("clear auth token: %w", err)
	}
	if err := r.client.Set(ctx, authTokenKey, token, 0).Err(); err != nil {
		return fmt.Errorf("set auth token: %w", err)
	}
	return nil
}

// SetTopWallets replaces the watched top-wallet set.
func (r *RedisCache) SetTopWallets(ctx context.Context, wallets []string) error {
	data, err := json.Marshal(wallets)
	if err != nil {
		return fmt.Errorf("marshal top wallets: %w", err)
	}
	if err := r.client.Set(ctx, topWalletsKey, data, 0).Err(); err != nil {
		return fmt.Errorf("set top wallets: %w", err)
	}
	return nil
}

// GetTopWallets returns the watched top-wallet set, empty when never set.
func (r *RedisCache) GetTopWallets(ctx context.Context) ([]string, error) {
	data, err := r.client.Get(ctx, topWalletsKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get top wallets: %w", err)
	}

	var wallets []string
	if err := json.Unmarshal(data, &wallets); err != nil {
		return nil, fmt.Errorf("parse top wallets: %w", err)
	}
	return wallets, nil
}
