package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewilliams-labs/fetchify/internal/core/services"
)

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, CacheNone, cfg.Cache.Driver)
	assert.True(t, cfg.Fusion.Enabled)
	assert.Nil(t, cfg.BreakerSettings())
	assert.Equal(t, services.DefaultRecommenderConfig(), cfg.Recommender())
	assert.Equal(t, 3, cfg.Policy().MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Policy().DefaultRetryAfter)
}

func TestLoadFile_YAMLAndEnvLayers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fetchify.yaml")
	body := `
relay:
  base_url: http://relay.test
ranking:
  max_results: 8
  candidate_delay: 250ms
  batches: [5, 5]
cache:
  driver: sqlite
custom:
  default_genre: rock
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("FETCHIFY_RANKING__MAX_RESULTS", "9")
	t.Setenv("FETCHIFY_CACHE__TTL", "5m")
	t.Setenv("FETCHIFY_BREAKER__ENABLED", "true")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Ranking.MaxResults)
	assert.Equal(t, 250*time.Millisecond, cfg.Ranking.CandidateDelay)
	assert.Equal(t, []int{5, 5}, cfg.Ranking.Batches)
	assert.Equal(t, CacheSQLite, cfg.Cache.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "rock", cfg.Recommender().DefaultGenre)
	assert.Equal(t, "http://relay.test", cfg.MusicBrainzClient().RelayURL)
	assert.Equal(t, "http://relay.test", cfg.AcousticBrainzClient().RelayURL)
	require.NotNil(t, cfg.BreakerSettings())
	assert.InDelta(t, 0.6, cfg.BreakerSettings().FailureRatio, 1e-9)
}

func TestLoad_UsesConfigPathEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9999\"\n"), 0o600))
	t.Setenv(PathEnvVar, path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Addr)
}

func TestLoadFile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown cache driver", map[string]string{"FETCHIFY_CACHE__DRIVER": "memcached"}},
		{"redis without address", map[string]string{"FETCHIFY_CACHE__DRIVER": "redis"}},
		{"threshold out of range", map[string]string{"FETCHIFY_RANKING__ACCEPT_THRESHOLD": "1.5"}},
		{"broad above custom threshold", map[string]string{"FETCHIFY_CUSTOM__BROAD_THRESHOLD": "0.9"}},
		{"zero weights", map[string]string{
			"FETCHIFY_CUSTOM__WEIGHTS__DANCEABILITY": "0",
			"FETCHIFY_CUSTOM__WEIGHTS__ENERGY":       "0",
			"FETCHIFY_CUSTOM__WEIGHTS__VALENCE":      "0",
			"FETCHIFY_CUSTOM__WEIGHTS__TEMPO":        "0",
		}},
		{"bad log level", map[string]string{"FETCHIFY_LOGGING__LEVEL": "loud"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadFile("")
			assert.Error(t, err)
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "cache.redis_addr", envKey("FETCHIFY_CACHE__REDIS_ADDR"))
	assert.Equal(t, "custom.default_target.tempo", envKey("FETCHIFY_CUSTOM__DEFAULT_TARGET__TEMPO"))
}
