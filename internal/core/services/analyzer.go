package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/ewilliams-labs/fetchify/internal/core/domain"
	"github.com/ewilliams-labs/fetchify/internal/core/ports"
	"github.com/ewilliams-labs/fetchify/internal/core/rules"
	"github.com/ewilliams-labs/fetchify/internal/logging"
)

// Analysis is the headline view of one catalog track.
type Analysis struct {
	Track        domain.CatalogTrack   `json:"track"`
	Identity     domain.IdentityTriple `json:"identity"`
	Danceability float64               `json:"danceability"`
	Energy       float64               `json:"energy"`
	Valence      float64               `json:"valence"`
	Tempo        int                   `json:"tempo"`
	Genre        domain.Genre          `json:"genre"`
	RawGenre     string                `json:"raw_genre,omitempty"`
	HasVocals    bool                  `json:"has_vocals"`
	VocalRule    string                `json:"vocal_rule"`
	// LoudnessSource is "acoustic", "preview" or "" when neither reported it.
	LoudnessSource string             `json:"loudness_source,omitempty"`
	Debug          domain.FusionDebug `json:"debug"`
}

// Analyzer produces fused analyses for catalog tracks.
type Analyzer struct {
	resolver *IdentityResolver
	acoustic ports.AcousticProvider
	rules    *rules.Rules
	probe    ports.LoudnessProbe
}

// NewAnalyzer constructs an Analyzer. probe may be nil.
func NewAnalyzer(resolver *IdentityResolver, acoustic ports.AcousticProvider, r *rules.Rules, probe ports.LoudnessProbe) (*Analyzer, error) {
	if r == nil {
		var err error
		if r, err = rules.Default(); err != nil {
			return nil, err
		}
	}
	return &Analyzer{resolver: resolver, acoustic: acoustic, rules: r, probe: probe}, nil
}

// Analyze resolves trackID to a graph id, fetches both descriptor sets concurrently and
// fuses them. Identity misses surface as domain.ErrNoISRC or domain.ErrNoGraphID, and a
// recording without descriptors as domain.ErrNoFeatures.
func (a *Analyzer) Analyze(ctx context.Context, catalog ports.CatalogProvider, trackID string) (Analysis, error) {
	track, triple, err := a.resolver.ResolveTrack(ctx, catalog, trackID, nil)
	if err != nil {
		return Analysis{}, err
	}

	var (
		hl *domain.HighLevel
		ll *domain.LowLevel
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		hl, err = a.acoustic.HighLevel(gctx, triple.GraphID)
		return err
	})
	g.Go(func() error {
		var err error
		ll, err = a.acoustic.LowLevel(gctx, triple.GraphID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Analysis{}, fmt.Errorf("service: analyze %s: %w", trackID, domain.ErrNoFeatures)
		}
		return Analysis{}, fmt.Errorf("service: analyze %s: %w", trackID, err)
	}
	if ll == nil {
		ll = &domain.LowLevel{}
	}

	source := ""
	if ll.AverageLoudness != nil {
		source = "acoustic"
	} else if a.probe != nil && track.PreviewURL != "" {
		db, err := a.probe.Loudness(ctx, track.PreviewURL)
		if err != nil {
			logging.Ctx(ctx).Debug().Err(err).Str("track_id", trackID).Msg("preview loudness unavailable")
		} else {
			ll.AverageLoudness = &db
			source = "preview"
		}
	}

	fused := domain.Fuse(hl, ll)
	genre, raw := a.rules.Genre.Detect(hl)
	vocals, rule := a.rules.Vocal.Detect(hl, genre, raw)

	tempo := int(domain.DefaultTempo)
	if fused.Tempo != nil && *fused.Tempo > 0 {
		tempo = int(math.Round(*fused.Tempo))
	}

	return Analysis{
		Track:          track,
		Identity:       triple,
		Danceability:   fused.Danceability,
		Energy:         fused.Energy,
		Valence:        fused.Valence,
		Tempo:          tempo,
		Genre:          genre,
		RawGenre:       raw,
		HasVocals:      vocals,
		VocalRule:      rule,
		LoudnessSource: source,
		Debug:          fused.Debug,
	}, nil
}
