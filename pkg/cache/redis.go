package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Chinmay-Bakhale/scriptgen/pkg/search"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/telemetry"
)

var _ search.Cache = (*RedisCache)(nil)

// RedisCache stores search results in Redis as JSON.
type RedisCache struct {
	client  *redis.Client
	metrics *telemetry.Metrics
}

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// ParseOptions accepts either a redis:// URL or a bare host:port address.
// Password and db apply only to bare addresses.
func ParseOptions(raw, password string, db int) (Options, error) {
	if !strings.Contains(raw, "://") {
		return Options{Addr: raw, Password: password, DB: db}, nil
	}
	o, err := redis.ParseURL(raw)
	if err != nil {
		return Options{}, fmt.Errorf("invalid redis url: %w", err)
	}
	return Options{Addr: o.Addr, Password: o.Password, DB: o.DB}, nil
}

// NewRedisCache connects to Redis. The connection is verified with a ping.
func NewRedisCache(ctx context.Context, opts Options, metrics *telemetry.Metrics) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	return &RedisCache{client: client, metrics: metrics}, nil
}

// Get implements search.Cache.
func (c *RedisCache) Get(ctx context.Context, key string) ([]search.Result, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.metrics.CacheMiss()
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	results, err := decode(data)
	if err != nil {
		return nil, false, err
	}
	c.metrics.CacheHit()
	return results, true, nil
}

// Set implements search.Cache.
func (c *RedisCache) Set(ctx context.Context, key string, results []search.Result, ttl time.Duration) error {
	data, err := encode(results)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func encode(results []search.Result) ([]byte, error) {
	if results == nil {
		results = []search.Result{}
	}
	return json.Marshal(results)
}

func decode(data []byte) ([]search.Result, error) {
	var results []search.Result
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("invalid cached search results: %w", err)
	}
	return results, nil
}
