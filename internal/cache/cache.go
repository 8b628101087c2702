package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// NewRedisClient creates the Redis connection shared by the token store and the cache.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// Client wraps redis.Client but fails safe by swallowing connectivity errors.
type Client struct {
	client *redis.Client
	log    logrus.FieldLogger
}

// New creates a cache on top of an existing Redis connection.
func New(client *redis.Client, log logrus.FieldLogger) *Client {
	return &Client{client: client, log: log}
}

// Get returns value or nil if missing or redis unavailable.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}
	res, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		// fail safe: behave like cache miss
		c.warn(err, key, "cache get failed")
		return nil, nil
	}
	return res, nil
}

// Set stores value with TTL, ignoring redis errors.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.warn(err, key, "cache set failed")
	}
	return nil
}

// Delete removes a key, ignoring redis errors.
func (c *Client) Delete(ctx context.Context, key string) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.warn(err, key, "cache delete failed")
	}
	return nil
}

// GetJSON decodes a cached value into dst and reports whether there was a usable hit.
func (c *Client) GetJSON(ctx context.Context, key string, dst interface{}) bool {
	data, _ := c.Get(ctx, key)
	if data == nil {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.warn(err, key, "cache entry unreadable")
		return false
	}
	return true
}

// SetJSON encodes value and stores it with TTL.
func (c *Client) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, data, ttl)
}

func (c *Client) warn(err error, key, msg string) {
	if c.log == nil {
		return
	}
	c.log.WithError(err).WithField("key", key).Warn(msg)
}
