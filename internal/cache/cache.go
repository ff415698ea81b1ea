// Package cache provides the opaque raw-payload cache the pipeline may
// consult before fetching and populate after a successful fetch, keyed by
// source id. The pipeline owns no persisted state of its own.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// PayloadCache is the get/set collaborator contract. A miss is (nil, false,
// nil); cache errors are surfaced so callers can fall through to a live
// fetch.
type PayloadCache interface {
	Get(ctx context.Context, sourceID string) ([]byte, bool, error)
	Set(ctx context.Context, sourceID string, payload []byte) error
}

// RedisCache stores payloads in Redis with a fixed TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logrus.Logger
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, addr, password string, db int, ttl time.Duration, log *logrus.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client, ttl: ttl, log: log}, nil
}

func payloadKey(sourceID string) string {
	return fmt.Sprintf("alerts:payload:%s", sourceID)
}

// Get returns the cached payload for a source, if still fresh.
func (c *RedisCache) Get(ctx context.Context, sourceID string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, payloadKey(sourceID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get payload failed: %w", err)
	}
	return val, true, nil
}

// Set stores a source's payload for the cache TTL.
func (c *RedisCache) Set(ctx context.Context, sourceID string, payload []byte) error {
	if err := c.client.Set(ctx, payloadKey(sourceID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set payload failed: %w", err)
	}
	c.log.WithFields(logrus.Fields{
		"sourceId": sourceID,
		"bytes":    len(payload),
		"ttl":      c.ttl.String(),
	}).Debug("Cached source payload")
	return nil
}

// Close releases the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Disabled is the no-op cache used when no cache tier is configured.
type Disabled struct{}

// Get always misses.
func (Disabled) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

// Set discards the payload.
func (Disabled) Set(context.Context, string, []byte) error { return nil }
