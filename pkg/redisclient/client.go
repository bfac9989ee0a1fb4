package redisclient

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/redis/go-redis/v9"

	"transcode-orchestrator/pkg/config"
)

// Client wraps the go-redis client to allow tailored helpers.
type Client struct {
	native *redis.Client
}

// New builds a redis client from service configuration and pings it.
func New(cfg config.RedisConfig) (*Client, error) {
	opts := &redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  pickDuration(cfg.DialTimeout, 5*time.Second),
		ReadTimeout:  pickDuration(cfg.ReadTimeout, 3*time.Second),
		WriteTimeout: pickDuration(cfg.WriteTimeout, 3*time.Second),
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if cfg.EnableTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cli := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout)
	defer cancel()
	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, err
	}
	return &Client{native: cli}, nil
}

// Wrap adopts an existing go-redis client (tests, shared pools).
func Wrap(cli *redis.Client) *Client {
	return &Client{native: cli}
}

// Raw exposes the underlying go-redis client.
func (c *Client) Raw() *redis.Client {
	return c.native
}

// SetOnce stores key with ttl only if it does not exist yet and reports whether it was stored.
func (c *Client) SetOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.native.SetNX(ctx, key, time.Now().Unix(), ttl).Result()
}

// Close stops the client and releases pooled connections.
func (c *Client) Close() error {
	return c.native.Close()
}

func pickDuration(v time.Duration, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return v
}
