package cache

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisTimeout = 5 * time.Second
	defaultKeyPrefix    = "awards:"
)

type RedisConfig struct {
	Address   string
	Username  string
	Password  string
	DB        int
	TLS       bool
	Timeout   time.Duration
	KeyPrefix string
}

// RedisStore implements Store on top of go-redis. All keys are namespaced
// with the configured prefix.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects and pings Redis so misconfiguration surfaces at start-up.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	cfg.Address = strings.TrimSpace(cfg.Address)
	if cfg.Address == "" {
		return nil, errors.New("redis: address is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRedisTimeout
	}

	opts := &redis.Options{
		Addr:         cfg.Address,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	store := NewRedisStoreFromClient(redis.NewClient(opts), cfg.KeyPrefix)
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Client() *redis.Client { return s.client }

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// IncrementWithTTL increments a fixed-window counter and returns the remaining window.
func (s *RedisStore) IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}
	k := s.key(key)

	count, err := s.client.Incr(ctx, k).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis: incr: %w", err)
	}
	if count == 1 {
		if err := s.client.PExpire(ctx, k, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("redis: pexpire: %w", err)
		}
		return count, window, nil
	}

	ttl, err := s.client.PTTL(ctx, k).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis: pttl: %w", err)
	}
	if ttl < 0 {
		// A counter without expiry would never reset.
		if err := s.client.PExpire(ctx, k, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("redis: pexpire: %w", err)
		}
		ttl = window
	}
	return count, ttl, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return s.client.Set(ctx, s.key(key), value, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = s.key(key)
	}
	return s.client.Del(ctx, prefixed...).Err()
}

func (s *RedisStore) key(key string) string {
	key = strings.TrimSpace(key)
	if strings.HasPrefix(key, s.prefix) {
		return key
	}
	return s.prefix + key
}
