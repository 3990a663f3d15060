// internal/common/database/redis.go
package database

import (
	"context"
	"fmt"
	"time"

	"policy-monitor/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// RedisClient holds the connection backing the notification retry
// queue.
type RedisClient struct {
	Client *redis.Client
}

// NewRedis builds the client. The queue sees low traffic, so the pool
// stays small and timeouts short.
func NewRedis(cfg config.RedisConfig) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	return &RedisClient{Client: rdb}, nil
}

// Ping verifies the server is reachable. Also serves the health
// endpoint.
func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}
