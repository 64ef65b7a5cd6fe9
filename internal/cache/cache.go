// Package cache stores query translation and expansion results so
// repeated questions skip their LLM round trips.
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrCacheMiss reports an absent or expired key.
var ErrCacheMiss = errors.New("cache miss")

// IsCacheMiss reports whether err is a cache miss.
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

// Store is a string cache with a fixed TTL chosen at construction.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	Close() error
}

// Config controls cache construction.
type Config struct {
	// Backend is "memory" or "redis".
	Backend    string
	TTL        time.Duration
	MaxEntries int

	// Redis connection settings, used when Backend is "redis".
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
}

// DefaultConfig returns in-memory caching with a ten minute TTL.
func DefaultConfig() Config {
	return Config{
		Backend:      "memory",
		TTL:          600 * time.Second,
		MaxEntries:   1000,
		Addr:         "localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// New builds a Store for the configured backend.
func New(cfg Config, logger *zap.Logger) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(cfg.MaxEntries, cfg.TTL), nil
	case "redis":
		return NewRedisStore(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", cfg.Backend)
	}
}

// Key derives the cache key for a piece of query text.
func Key(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

// GetJSON reads a key and unmarshals its value into dest.
func GetJSON(ctx context.Context, s Store, key string, dest any) error {
	val, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return nil
}

// SetJSON marshals value and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return s.Set(ctx, key, string(data))
}
