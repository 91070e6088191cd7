package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// GetOrCreate returns the idempotency key bound to a checkout attempt
// scope, storing the fresh key if none exists yet. A resubmit of the same
// attempt therefore carries the same token to the backend, which owns
// duplicate-order prevention.
func (c *Client) GetOrCreate(ctx context.Context, scope, fresh string, ttl time.Duration) (string, error) {
	key := fmt.Sprintf("idempotency:%s", scope)

	set, err := c.rdb.SetNX(ctx, key, fresh, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("idempotency setnx failed: %w", err)
	}
	if set {
		return fresh, nil
	}

	existing, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		// Expired between SetNX and Get; the fresh key is as good.
		return fresh, nil
	}
	if err != nil {
		return "", fmt.Errorf("idempotency get failed: %w", err)
	}
	return existing, nil
}

// Forget drops the key for a scope, e.g. once its checkout attempt reached
// a terminal step.
func (c *Client) Forget(ctx context.Context, scope string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("idempotency:%s", scope)).Err()
}
