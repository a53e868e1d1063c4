package remoteconfig

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gurkanfikretgunak/bio/internal/cache"
	"github.com/gurkanfikretgunak/bio/internal/metrics"
)

// DefaultRedisKey is the hash holding the published parameters.
const DefaultRedisKey = "remote_config"

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	URL string `yaml:"url"`
	Key string `yaml:"key"`
}

// RedisStore reads parameters from a Redis hash.
type RedisStore struct {
	rdb    *redis.Client
	key    string
	values *cache.Cache[Values]
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig, settings Settings) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if settings.FetchTimeout > 0 {
		opts.ReadTimeout = settings.FetchTimeout
		opts.WriteTimeout = settings.FetchTimeout
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return newRedisStore(rdb, cfg.Key, settings), nil
}

func newRedisStore(rdb *redis.Client, key string, settings Settings) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{
		rdb:    rdb,
		key:    key,
		values: cache.NewCache[Values](settings.MinimumFetchInterval),
	}
}

func (s *RedisStore) Fetch(ctx context.Context) (Values, error) {
	if v, ok := s.values.Get(); ok {
		metrics.StoreRequests.WithLabelValues("redis", "cached").Inc()
		return maps.Clone(*v), nil
	}

	version := s.values.Version()
	res, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		metrics.StoreRequests.WithLabelValues("redis", "error").Inc()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: hgetall %s: %w", ErrUnavailable, s.key, err)
	}

	metrics.StoreRequests.WithLabelValues("redis", "ok").Inc()
	values := Values(res)
	s.values.SetIfVersion(values, version)
	return maps.Clone(values), nil
}

// Publish sets a single parameter and drops the cached values.
func (s *RedisStore) Publish(ctx context.Context, key, value string) error {
	if err := s.rdb.HSet(ctx, s.key, key, value).Err(); err != nil {
		return fmt.Errorf("%w: hset %s: %w", ErrUnavailable, s.key, err)
	}
	s.values.Invalidate()
	return nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
