// Package redis implements the AttributeStore on Redis hashes, strings and sets.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kgraph/application/ports"

	"github.com/redis/go-redis/v9"
)

// Options configures the Redis connection.
type Options struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379/0")
	URL string

	// Prefix is prepended to every key so several graphs can share a database
	Prefix string

	// ConnectTimeout bounds connection establishment and the startup ping
	ConnectTimeout time.Duration

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Store implements ports.AttributeStore using go-redis/v9.
type Store struct {
	client *redis.Client
	prefix string
}

var _ ports.AttributeStore = (*Store)(nil)

// NewStore connects to Redis and verifies the connection.
func NewStore(opts Options) (*Store, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379/0"
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 3 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 3 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{client: client, prefix: opts.Prefix}, nil
}

func (s *Store) key(k string) string {
	return s.prefix + k
}

// SetAttributes merges fields into the hash at key (HSET)
func (s *Store) SetAttributes(ctx context.Context, key string, attrs map[string]string) error {
	if len(attrs) == 0 {
		return nil
	}
	values := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		values[k] = v
	}
	if err := s.client.HSet(ctx, s.key(key), values).Err(); err != nil {
		return fmt.Errorf("failed to set attributes on %s: %w", key, err)
	}
	return nil
}

// GetAttributes returns the hash at key (HGETALL)
func (s *Store) GetAttributes(ctx context.Context, key string) (map[string]string, error) {
	attrs, err := s.client.HGetAll(ctx, s.key(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get attributes of %s: %w", key, err)
	}
	return attrs, nil
}

// GetAttribute returns one hash field (HGET)
func (s *Store) GetAttribute(ctx context.Context, key, field string) (string, bool, error) {
	v, err := s.client.HGet(ctx, s.key(key), field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s.%s: %w", key, field, err)
	}
	return v, true, nil
}

// HasAttribute reports whether a hash field exists (HEXISTS)
func (s *Store) HasAttribute(ctx context.Context, key, field string) (bool, error) {
	ok, err := s.client.HExists(ctx, s.key(key), field).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check %s.%s: %w", key, field, err)
	}
	return ok, nil
}

// SetValue stores a plain string (SET)
func (s *Store) SetValue(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// GetValue reads a plain string (GET)
func (s *Store) GetValue(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return v, true, nil
}

// Increment atomically adds one (INCR)
func (s *Store) Increment(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Incr(ctx, s.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment %s: %w", key, err)
	}
	return n, nil
}

// Exists reports whether key is present (EXISTS)
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", key, err)
	}
	return n > 0, nil
}

// AddToSet adds a set member (SADD)
func (s *Store) AddToSet(ctx context.Context, key, member string) error {
	if err := s.client.SAdd(ctx, s.key(key), member).Err(); err != nil {
		return fmt.Errorf("failed to add to %s: %w", key, err)
	}
	return nil
}

// RemoveFromSet removes a set member (SREM)
func (s *Store) RemoveFromSet(ctx context.Context, key, member string) error {
	if err := s.client.SRem(ctx, s.key(key), member).Err(); err != nil {
		return fmt.Errorf("failed to remove from %s: %w", key, err)
	}
	return nil
}

// GetSet returns all members (SMEMBERS)
func (s *Store) GetSet(ctx context.Context, key string) ([]string, error) {
	members, err := s.client.SMembers(ctx, s.key(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return members, nil
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}
