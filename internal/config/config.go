// Package config loads runtime configuration from defaults, an optional YAML file and
// FETCHIFY_ environment variables, in that order of precedence.
package config

import (
	"time"

	"github.com/ewilliams-labs/fetchify/internal/adapters/acousticbrainz"
	"github.com/ewilliams-labs/fetchify/internal/adapters/musicbrainz"
	"github.com/ewilliams-labs/fetchify/internal/adapters/relay"
	"github.com/ewilliams-labs/fetchify/internal/adapters/retry"
	"github.com/ewilliams-labs/fetchify/internal/adapters/spotify"
	"github.com/ewilliams-labs/fetchify/internal/core/domain"
	"github.com/ewilliams-labs/fetchify/internal/core/services"
	"github.com/ewilliams-labs/fetchify/internal/logging"
)

// Cache drivers.
const (
	CacheNone   = "none"
	CacheSQLite = "sqlite"
	CacheRedis  = "redis"
)

// Config is the complete runtime configuration.
type Config struct {
	Server         ServerConfig   `koanf:"server"`
	Spotify        SpotifyConfig  `koanf:"spotify"`
	MusicBrainz    ProviderConfig `koanf:"musicbrainz"`
	AcousticBrainz ProviderConfig `koanf:"acousticbrainz"`
	Relay          RelayConfig    `koanf:"relay"`
	Retry          RetryConfig    `koanf:"retry"`
	Breaker        BreakerConfig  `koanf:"breaker"`
	Ranking        RankingConfig  `koanf:"ranking"`
	Custom         CustomConfig   `koanf:"custom"`
	Fusion         FusionConfig   `koanf:"fusion"`
	Cache          CacheConfig    `koanf:"cache"`
	Worker         WorkerConfig   `koanf:"worker"`
	Logging        logging.Config `koanf:"logging"`
	Rules          RulesConfig    `koanf:"rules"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr              string        `koanf:"addr" validate:"required"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout" validate:"gt=0"`
	WriteTimeout      time.Duration `koanf:"write_timeout" validate:"gte=0"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// SpotifyConfig configures the catalog. ClientID and ClientSecret are only needed for
// app-token commands.
type SpotifyConfig struct {
	BaseURL      string        `koanf:"base_url" validate:"required,url"`
	TokenURL     string        `koanf:"token_url" validate:"required,url"`
	ClientID     string        `koanf:"client_id"`
	ClientSecret string        `koanf:"client_secret"`
	Market       string        `koanf:"market" validate:"len=2"`
	Timeout      time.Duration `koanf:"timeout" validate:"gt=0"`
}

// ProviderConfig configures a music-graph or acoustic provider.
type ProviderConfig struct {
	BaseURL   string        `koanf:"base_url" validate:"required,url"`
	UserAgent string        `koanf:"user_agent" validate:"required"`
	Timeout   time.Duration `koanf:"timeout" validate:"gt=0"`
}

// RelayConfig is read by both sides: BaseURL by clients, Addr by cmd/relay.
type RelayConfig struct {
	BaseURL string        `koanf:"base_url" validate:"omitempty,url"`
	Addr    string        `koanf:"addr" validate:"required"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

type RetryConfig struct {
	MaxAttempts       int           `koanf:"max_attempts" validate:"gte=1,lte=10"`
	BaseBackoff       time.Duration `koanf:"base_backoff" validate:"gt=0"`
	MaxBackoff        time.Duration `koanf:"max_backoff" validate:"gtefield=BaseBackoff"`
	DefaultRetryAfter time.Duration `koanf:"default_retry_after" validate:"gt=0"`
	RetryServerErrors bool          `koanf:"retry_server_errors"`
}

type BreakerConfig struct {
	Enabled      bool          `koanf:"enabled"`
	MaxRequests  uint32        `koanf:"max_requests"`
	Interval     time.Duration `koanf:"interval"`
	Timeout      time.Duration `koanf:"timeout"`
	MinRequests  uint32        `koanf:"min_requests"`
	FailureRatio float64       `koanf:"failure_ratio" validate:"gte=0,lte=1"`
}

// RankingConfig holds the track-similarity parameters.
type RankingConfig struct {
	MaxResults             int                      `koanf:"max_results" validate:"gte=1"`
	CandidatePoolSize      int                      `koanf:"candidate_pool_size" validate:"gte=1,lte=1000"`
	Batches                []int                    `koanf:"batches" validate:"dive,gte=1"`
	FallbackBatch          int                      `koanf:"fallback_batch" validate:"gte=1"`
	CandidateDelay         time.Duration            `koanf:"candidate_delay" validate:"gte=0"`
	AcceptThreshold        float64                  `koanf:"accept_threshold" validate:"gte=0,lte=1"`
	TempoTolerance         float64                  `koanf:"tempo_tolerance" validate:"gt=0"`
	VocalMismatchThreshold float64                  `koanf:"vocal_mismatch_threshold" validate:"gte=0,lte=1"`
	Weights                domain.SimilarityWeights `koanf:"weights"`
}

// CustomConfig holds the custom-target parameters.
type CustomConfig struct {
	Delay                     time.Duration            `koanf:"delay" validate:"gte=0"`
	Threshold                 float64                  `koanf:"threshold" validate:"gte=0,lte=1"`
	BroadThreshold            float64                  `koanf:"broad_threshold" validate:"gte=0,lte=1"`
	MinResults                int                      `koanf:"min_results" validate:"gte=0"`
	GenreSearchLimit          int                      `koanf:"genre_search_limit" validate:"gte=1,lte=50"`
	BroadSearchLimit          int                      `koanf:"broad_search_limit" validate:"gte=1,lte=50"`
	DefaultGenre              string                   `koanf:"default_genre" validate:"required"`
	DefaultTarget             TargetConfig             `koanf:"default_target"`
	UseCatalogRecommendations bool                     `koanf:"use_catalog_recommendations"`
	Weights                   domain.SimilarityWeights `koanf:"weights"`
}

// TargetConfig is the fallback custom target.
type TargetConfig struct {
	Danceability float64 `koanf:"danceability" validate:"gte=0,lte=1"`
	Energy       float64 `koanf:"energy" validate:"gte=0,lte=1"`
	Valence      float64 `koanf:"valence" validate:"gte=0,lte=1"`
	Tempo        float64 `koanf:"tempo" validate:"gte=40,lte=250"`
}

// FusionConfig selects fused (default) or raw classifier headline values.
type FusionConfig struct {
	Enabled bool `koanf:"enabled"`
}

type CacheConfig struct {
	Driver        string        `koanf:"driver" validate:"oneof=none sqlite redis"`
	TTL           time.Duration `koanf:"ttl" validate:"gte=0"`
	SQLitePath    string        `koanf:"sqlite_path"`
	RedisAddr     string        `koanf:"redis_addr" validate:"required_if=Driver redis"`
	RedisPassword string        `koanf:"redis_password"`
	RedisDB       int           `koanf:"redis_db" validate:"gte=0"`
}

type WorkerConfig struct {
	Workers   int           `koanf:"workers" validate:"gte=1"`
	QueueSize int           `koanf:"queue_size" validate:"gte=1"`
	Retention time.Duration `koanf:"retention" validate:"gte=0"`
}

// RulesConfig points at a rule table overriding the embedded one.
type RulesConfig struct {
	Path string `koanf:"path" validate:"omitempty,file"`
}

func defaultConfig() *Config {
	rec := services.DefaultRecommenderConfig()
	policy := retry.DefaultPolicy()
	breaker := retry.DefaultBreakerSettings()

	return &Config{
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 15 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Spotify: SpotifyConfig{
			BaseURL:  spotify.DefaultBaseURL,
			TokenURL: spotify.DefaultTokenURL,
			Market:   spotify.DefaultMarket,
			Timeout:  15 * time.Second,
		},
		MusicBrainz: ProviderConfig{
			BaseURL:   relay.DefaultMusicBrainzUpstream,
			UserAgent: relay.DefaultUserAgent,
			Timeout:   15 * time.Second,
		},
		AcousticBrainz: ProviderConfig{
			BaseURL:   relay.DefaultAcousticBrainzUpstream,
			UserAgent: relay.DefaultUserAgent,
			Timeout:   30 * time.Second,
		},
		Relay: RelayConfig{
			Addr:    ":8090",
			Timeout: 15 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts:       policy.MaxAttempts,
			BaseBackoff:       policy.BaseBackoff,
			MaxBackoff:        policy.MaxBackoff,
			DefaultRetryAfter: policy.DefaultRetryAfter,
		},
		Breaker: BreakerConfig{
			MaxRequests:  breaker.MaxRequests,
			Interval:     breaker.Interval,
			Timeout:      breaker.Timeout,
			MinRequests:  breaker.MinRequests,
			FailureRatio: breaker.FailureRatio,
		},
		Ranking: RankingConfig{
			MaxResults:             rec.MaxResults,
			CandidatePoolSize:      rec.CandidatePoolSize,
			Batches:                rec.Batches,
			FallbackBatch:          rec.FallbackBatch,
			CandidateDelay:         rec.CandidateDelay,
			AcceptThreshold:        rec.AcceptThreshold,
			TempoTolerance:         rec.TempoTolerance,
			VocalMismatchThreshold: rec.VocalMismatchThreshold,
			Weights:                rec.TrackWeights,
		},
		Custom: CustomConfig{
			Delay:            rec.CustomDelay,
			Threshold:        rec.CustomThreshold,
			BroadThreshold:   rec.BroadThreshold,
			MinResults:       rec.MinCustomResults,
			GenreSearchLimit: rec.GenreSearchLimit,
			BroadSearchLimit: rec.BroadSearchLimit,
			DefaultGenre:     rec.DefaultGenre,
			DefaultTarget: TargetConfig{
				Danceability: *rec.DefaultTarget.Danceability,
				Energy:       *rec.DefaultTarget.Energy,
				Valence:      *rec.DefaultTarget.Valence,
				Tempo:        *rec.DefaultTarget.Tempo,
			},
			Weights: rec.CustomWeights,
		},
		Fusion: FusionConfig{Enabled: true},
		Cache: CacheConfig{
			Driver: CacheNone,
			TTL:    time.Hour,
		},
		Worker: WorkerConfig{
			Workers:   2,
			QueueSize: 100,
			Retention: 10 * time.Minute,
		},
		Logging: logging.Config{Level: "info", Format: "json"},
	}
}

// Policy converts the retry section.
func (c *Config) Policy() retry.Policy {
	return retry.Policy{
		MaxAttempts:       c.Retry.MaxAttempts,
		BaseBackoff:       c.Retry.BaseBackoff,
		MaxBackoff:        c.Retry.MaxBackoff,
		DefaultRetryAfter: c.Retry.DefaultRetryAfter,
		RetryServerErrors: c.Retry.RetryServerErrors,
	}
}

// BreakerSettings returns nil when the breaker is disabled.
func (c *Config) BreakerSettings() *retry.BreakerSettings {
	if !c.Breaker.Enabled {
		return nil
	}
	return &retry.BreakerSettings{
		MaxRequests:  c.Breaker.MaxRequests,
		Interval:     c.Breaker.Interval,
		Timeout:      c.Breaker.Timeout,
		MinRequests:  c.Breaker.MinRequests,
		FailureRatio: c.Breaker.FailureRatio,
	}
}

func (c *Config) MusicBrainzClient() musicbrainz.Config {
	return musicbrainz.Config{
		BaseURL:   c.MusicBrainz.BaseURL,
		RelayURL:  c.Relay.BaseURL,
		UserAgent: c.MusicBrainz.UserAgent,
		Policy:    c.Policy(),
		Breaker:   c.BreakerSettings(),
	}
}

func (c *Config) AcousticBrainzClient() acousticbrainz.Config {
	return acousticbrainz.Config{
		BaseURL:   c.AcousticBrainz.BaseURL,
		RelayURL:  c.Relay.BaseURL,
		UserAgent: c.AcousticBrainz.UserAgent,
		Policy:    c.Policy(),
		Breaker:   c.BreakerSettings(),
	}
}

// RelayHandler converts the relay section for relay.NewHandler.
func (c *Config) RelayHandler() relay.Config {
	return relay.Config{
		MusicBrainzUpstream:    c.MusicBrainz.BaseURL,
		AcousticBrainzUpstream: c.AcousticBrainz.BaseURL,
		UserAgent:              c.MusicBrainz.UserAgent,
		Timeout:                c.Relay.Timeout,
	}
}

// Recommender converts the ranking and custom sections.
func (c *Config) Recommender() services.RecommenderConfig {
	t := c.Custom.DefaultTarget
	return services.RecommenderConfig{
		MaxResults:             c.Ranking.MaxResults,
		CandidatePoolSize:      c.Ranking.CandidatePoolSize,
		Batches:                append([]int(nil), c.Ranking.Batches...),
		FallbackBatch:          c.Ranking.FallbackBatch,
		CandidateDelay:         c.Ranking.CandidateDelay,
		TrackWeights:           c.Ranking.Weights,
		AcceptThreshold:        c.Ranking.AcceptThreshold,
		TempoTolerance:         c.Ranking.TempoTolerance,
		VocalMismatchThreshold: c.Ranking.VocalMismatchThreshold,

		CustomDelay:      c.Custom.Delay,
		CustomWeights:    c.Custom.Weights,
		CustomThreshold:  c.Custom.Threshold,
		BroadThreshold:   c.Custom.BroadThreshold,
		MinCustomResults: c.Custom.MinResults,
		GenreSearchLimit: c.Custom.GenreSearchLimit,
		BroadSearchLimit: c.Custom.BroadSearchLimit,
		DefaultGenre:     c.Custom.DefaultGenre,
		DefaultTarget: domain.Target{
			Danceability: domain.Float(t.Danceability),
			Energy:       domain.Float(t.Energy),
			Valence:      domain.Float(t.Valence),
			Tempo:        domain.Float(t.Tempo),
		},
		UseCatalogRecommendations: c.Custom.UseCatalogRecommendations,
	}
}
