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

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// AcquireLock acquires a distributed lock. Used to serialize refund
// processing per order.
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}

// IncrRateCounter bumps a per-client request counter within a fixed window
// and returns the new count. The key expires with the window.
func (c *Client) IncrRateCounter(ctx context.Context, clientKey string, window time.Duration) (int64, error) {
	key := fmt.Sprintf("rate:%s:%d", clientKey, time.Now().Unix()/int64(window.Seconds()))

	pipe := c.rdb.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// IncrReferralClicks counts landing-page visits per referral code
func (c *Client) IncrReferralClicks(ctx context.Context, code string) (int64, error) {
	return c.rdb.Incr(ctx, fmt.Sprintf("referral:clicks:%s", code)).Result()
}

// GetReferralClicks reads the click counter for a referral code
func (c *Client) GetReferralClicks(ctx context.Context, code string) (int64, error) {
	n, err := c.rdb.Get(ctx, fmt.Sprintf("referral:clicks:%s", code)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}
