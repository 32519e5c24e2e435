// Package redis provides a shared, TTL-bounded feature cache on Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/ewilliams-labs/fetchify/internal/core/domain"
	"github.com/ewilliams-labs/fetchify/internal/core/ports"
)

const (
	DefaultTTL    = time.Hour
	DefaultPrefix = "fetchify:features:"
)

// entry is the stored JSON form; it keeps the missing-feature mask the domain type hides.
type entry struct {
	domain.TrackFeatureVector
	Missing domain.FeatureMask `json:"missing"`
}

// FeatureCache implements ports.FeatureCache.
type FeatureCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ ports.FeatureCache = (*FeatureCache)(nil)

// NewFeatureCache connects to addr and verifies the connection.
func NewFeatureCache(ctx context.Context, addr, password string, db int, ttl time.Duration) (*FeatureCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis cache: ping %s: %w", addr, err)
	}
	return New(client, ttl), nil
}

// New wraps an existing client.
func New(client *redis.Client, ttl time.Duration) *FeatureCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &FeatureCache{client: client, prefix: DefaultPrefix, ttl: ttl}
}

func (c *FeatureCache) key(graphID string) string {
	return c.prefix + graphID
}

func (c *FeatureCache) Get(ctx context.Context, graphID string) (*domain.TrackFeatureVector, error) {
	val, err := c.client.Get(ctx, c.key(graphID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis cache: get %s: %w", graphID, err)
	}

	var e entry
	if err := json.Unmarshal(val, &e); err != nil {
		return nil, fmt.Errorf("redis cache: decode %s: %w", graphID, err)
	}
	v := e.TrackFeatureVector
	v.Missing = e.Missing
	return &v, nil
}

func (c *FeatureCache) Put(ctx context.Context, v domain.TrackFeatureVector) error {
	if v.GraphID == "" {
		return fmt.Errorf("redis cache: empty graph id")
	}
	data, err := json.Marshal(entry{TrackFeatureVector: v, Missing: v.Missing})
	if err != nil {
		return fmt.Errorf("redis cache: encode %s: %w", v.GraphID, err)
	}
	if err := c.client.Set(ctx, c.key(v.GraphID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis cache: set %s: %w", v.GraphID, err)
	}
	return nil
}

func (c *FeatureCache) Close() error {
	return c.client.Close()
}
