// Package cache provides a Redis-backed implementation of the narrow
// read-through cache interfaces the catalog and search packages depend
// on, grounded on cache/redis.go and cache/playlist_cache.go's
// get-or-populate shape but generalized away from a package-level global
// client to an injected struct (spec.md §9: "no ambient globals").
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis is a thin wrapper around a go-redis client satisfying
// catalog.Cache and any other narrow Get/Set/Del consumer in the engine.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

// Options configures a Redis cache.
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// New connects to a Redis server and verifies the connection with a ping.
func New(ctx context.Context, opts Options, log *zap.Logger) (*Redis, error) {
	if log == nil {
		log = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Redis{client: client, ttl: ttl, log: log}, nil
}

// Close shuts down the underlying Redis client.
func (r *Redis) Close() error { return r.client.Close() }

// Get returns the cached value for key. A cache miss returns ("", false, nil)
// rather than an error, so callers fall through to the source of truth.
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return val, true, nil
}

// Set writes value for key with the cache's configured TTL.
func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, key, value, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// Del removes one or more keys. Missing keys are not an error.
func (r *Redis) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
