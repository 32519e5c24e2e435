package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewilliams-labs/fetchify/internal/core/domain"
)

// Integration tests; set FETCHIFY_REDIS_ADDR to run them.
func newTestCache(t *testing.T, ttl time.Duration) *FeatureCache {
	t.Helper()
	addr := os.Getenv("FETCHIFY_REDIS_ADDR")
	if addr == "" {
		t.Skip("FETCHIFY_REDIS_ADDR not set")
	}
	c, err := NewFeatureCache(context.Background(), addr, "", 0, ttl)
	require.NoError(t, err)
	c.prefix = "fetchify:test:" + uuid.NewString() + ":"
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestFeatureCache_RoundTrip(t *testing.T) {
	c := newTestCache(t, time.Minute)
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	v := domain.TrackFeatureVector{
		GraphID:      "g1",
		Danceability: 0.8,
		Energy:       0.7,
		Valence:      0.6,
		Tempo:        128,
		Genre:        domain.GenreElectronic,
		HasVocals:    true,
		Missing:      domain.FeatureSpectralFlux,
	}
	require.NoError(t, c.Put(ctx, v))

	got, err := c.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, v, *got)
	assert.False(t, got.Has(domain.FeatureSpectralFlux))
}

func TestFeatureCache_TTL(t *testing.T) {
	c := newTestCache(t, time.Second)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, domain.TrackFeatureVector{GraphID: "g2", Tempo: 100}))
	ttl, err := c.client.TTL(ctx, c.key("g2")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Second)
}

func TestFeatureCache_RejectsEmptyID(t *testing.T) {
	c := New(nil, 0)
	assert.Error(t, c.Put(context.Background(), domain.TrackFeatureVector{}))
}
