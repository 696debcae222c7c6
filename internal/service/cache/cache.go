// Package cache provides a small JSON value cache on top of Redis. Misses
// are reported as ErrMiss so callers can fall through to durable storage.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned when a key is absent or expired.
var ErrMiss = errors.New("cache miss")

type Service struct {
	rdb *redis.Client
}

// New connects using a redis URL (redis://host:port/db).
func New(redisURL string) (*Service, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &Service{rdb: redis.NewClient(opts)}, nil
}

// NewWithClient wraps an existing client; used by tests.
func NewWithClient(rdb *redis.Client) *Service {
	return &Service{rdb: rdb}
}

// Get unmarshals the stored JSON into out.
func (s *Service) Get(ctx context.Context, key string, out any) error {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("cache decode %s: %w", key, err)
	}
	return nil
}

// Set stores value as JSON with a TTL.
func (s *Service) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := s.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Del removes a key; deleting an absent key is not an error.
func (s *Service) Del(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

// Close releases the underlying client.
func (s *Service) Close() error {
	return s.rdb.Close()
}
