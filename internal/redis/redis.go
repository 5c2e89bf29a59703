package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"skychat/internal/config"

	redis "github.com/redis/go-redis/v9"
)

// Client wraps go-redis client to centralize configuration.
type Client struct {
	inner *redis.Client
}

var errNotInitialized = errors.New("redis client not initialized")

// NewRedisClient creates the redis client from app config.
func NewRedisClient(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	host := cfg.Redis.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Redis.Port
	if port == 0 {
		port = 6379
	}

	opts := &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &Client{inner: client}, nil
}

// ZAdd inserts member into the sorted set at key.
func (c *Client) ZAdd(ctx context.Context, key string, score float64, member string) error {
	if c == nil || c.inner == nil {
		return errNotInitialized
	}
	return c.inner.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

// ZRevRange returns up to limit members of key, highest score first.
func (c *Client) ZRevRange(ctx context.Context, key string, limit int) ([]string, error) {
	if c == nil || c.inner == nil {
		return nil, errNotInitialized
	}
	if limit <= 0 {
		return nil, nil
	}
	return c.inner.ZRevRange(ctx, key, 0, int64(limit-1)).Result()
}

// Close closes client.
func (c *Client) Close() error {
	if c == nil || c.inner == nil {
		return nil
	}
	return c.inner.Close()
}
