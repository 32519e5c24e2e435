// Package app assembles the engine from configuration. Both binaries build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/ewilliams-labs/fetchify/internal/adapters/acousticbrainz"
	"github.com/ewilliams-labs/fetchify/internal/adapters/musicbrainz"
	"github.com/ewilliams-labs/fetchify/internal/adapters/preview"
	"github.com/ewilliams-labs/fetchify/internal/adapters/redis"
	"github.com/ewilliams-labs/fetchify/internal/adapters/spotify"
	"github.com/ewilliams-labs/fetchify/internal/adapters/sqlite"
	"github.com/ewilliams-labs/fetchify/internal/config"
	"github.com/ewilliams-labs/fetchify/internal/core/ports"
	"github.com/ewilliams-labs/fetchify/internal/core/rules"
	"github.com/ewilliams-labs/fetchify/internal/core/services"
	"github.com/ewilliams-labs/fetchify/internal/logging"
)

// ErrNoAppCredentials is returned by AppCatalog without a configured client id and secret.
var ErrNoAppCredentials = errors.New("app: spotify client credentials not configured")

const purgeInterval = 10 * time.Minute

// App holds the wired services.
type App struct {
	Config      *config.Config
	Resolver    *services.IdentityResolver
	Extractor   *services.Extractor
	Recommender *services.Recommender
	Analyzer    *services.Analyzer
	// Catalogs builds catalog clients for caller bearer tokens.
	Catalogs ports.CatalogFactory

	catalogCtx context.Context
	closers    []func() error
}

// New wires every adapter named by cfg. ctx bounds background work such as cache
// purging and token refresh; cancel it before Close.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	r, err := loadRules(cfg.Rules.Path)
	if err != nil {
		return nil, err
	}

	graph := musicbrainz.NewClient(&http.Client{Timeout: cfg.MusicBrainz.Timeout}, cfg.MusicBrainzClient())
	acoustic := acousticbrainz.NewClient(&http.Client{Timeout: cfg.AcousticBrainz.Timeout}, cfg.AcousticBrainzClient())

	opts := []services.ExtractorOption{services.WithFusion(cfg.Fusion.Enabled)}
	cache, err := a.openCache(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		opts = append(opts, services.WithFeatureCache(cache))
	}

	a.Extractor, err = services.NewExtractor(acoustic, r, opts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Resolver = services.NewIdentityResolver(graph)
	a.Recommender = services.NewRecommender(a.Resolver, a.Extractor, acoustic, cfg.Recommender())
	a.Analyzer, err = services.NewAnalyzer(a.Resolver, acoustic, r, preview.NewProbe(nil))
	if err != nil {
		a.Close()
		return nil, err
	}

	// oauth2 clients pick their base transport up from the context
	a.catalogCtx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: cfg.Spotify.Timeout})
	a.Catalogs = spotify.Factory(a.catalogCtx, cfg.Spotify.BaseURL, cfg.Policy(), spotify.WithMarket(cfg.Spotify.Market))

	logging.Info().
		Str("cache", cfg.Cache.Driver).
		Bool("fusion", cfg.Fusion.Enabled).
		Bool("relay", cfg.Relay.BaseURL != "").
		Bool("breaker", cfg.Breaker.Enabled).
		Msg("engine wired")
	return a, nil
}

// AppCatalog returns a catalog client authorized with the client-credentials grant. It
// can search but cannot read a listener's playback.
func (a *App) AppCatalog() (ports.CatalogProvider, error) {
	s := a.Config.Spotify
	if s.ClientID == "" || s.ClientSecret == "" {
		return nil, ErrNoAppCredentials
	}
	return spotify.NewAppClient(a.catalogCtx, s.ClientID, s.ClientSecret, s.TokenURL, s.BaseURL, a.Config.Policy(),
		spotify.WithMarket(s.Market)), nil
}

// Close releases the feature cache.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) openCache(ctx context.Context, cfg config.CacheConfig) (ports.FeatureCache, error) {
	switch cfg.Driver {
	case config.CacheSQLite:
		c, err := sqlite.NewFeatureCache(cfg.SQLitePath, cfg.TTL)
		if err != nil {
			return nil, fmt.Errorf("app: open sqlite cache: %w", err)
		}
		a.closers = append(a.closers, c.Close)
		go purgeLoop(ctx, c)
		return c, nil
	case config.CacheRedis:
		c, err := redis.NewFeatureCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.TTL)
		if err != nil {
			return nil, fmt.Errorf("app: open redis cache: %w", err)
		}
		a.closers = append(a.closers, c.Close)
		return c, nil
	default:
		return nil, nil
	}
}

// purgeLoop drops expired sqlite rows until ctx is done. Redis expires keys itself.
func purgeLoop(ctx context.Context, c *sqlite.FeatureCache) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := c.Purge(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logging.Warn().Err(err).Msg("feature cache purge failed")
				}
				continue
			}
			logging.Debug().Int64("rows", n).Msg("feature cache purged")
		}
	}
}

func loadRules(path string) (*rules.Rules, error) {
	if path == "" {
		return rules.Default()
	}
	r, err := rules.Load(path)
	if err != nil {
		return nil, fmt.Errorf("app: load rules %s: %w", path, err)
	}
	return r, nil
}
