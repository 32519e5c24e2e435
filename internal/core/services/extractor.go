package services

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/ewilliams-labs/fetchify/internal/core/domain"
	"github.com/ewilliams-labs/fetchify/internal/core/ports"
	"github.com/ewilliams-labs/fetchify/internal/core/rules"
	"github.com/ewilliams-labs/fetchify/internal/logging"
	"github.com/ewilliams-labs/fetchify/internal/metrics"
)

// positive classes read for the raw (unfused) headline values
var rawClasses = []struct {
	model, class string
	feature      domain.FeatureMask
}{
	{"danceability", "danceable", domain.FeatureDanceability},
	{"energy", "energetic", domain.FeatureEnergy},
	{"mood_happy", "happy", domain.FeatureValence},
}

// Extractor turns a graph id into a TrackFeatureVector.
type Extractor struct {
	acoustic ports.AcousticProvider
	rules    *rules.Rules
	cache    ports.FeatureCache
	fused    bool
	group    singleflight.Group
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithFeatureCache serves and stores vectors through c.
func WithFeatureCache(c ports.FeatureCache) ExtractorOption {
	return func(e *Extractor) { e.cache = c }
}

// WithFusion selects fused headline values (the default) or raw classifier probabilities.
func WithFusion(enabled bool) ExtractorOption {
	return func(e *Extractor) { e.fused = enabled }
}

// NewExtractor constructs an Extractor. A nil rule set uses the embedded tables.
func NewExtractor(acoustic ports.AcousticProvider, r *rules.Rules, opts ...ExtractorOption) (*Extractor, error) {
	if r == nil {
		var err error
		if r, err = rules.Default(); err != nil {
			return nil, err
		}
	}
	e := &Extractor{acoustic: acoustic, rules: r, fused: true}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Extract returns the feature vector for graphID. A recording the acoustic provider does
// not know yields domain.ErrNoFeatures. Concurrent calls for the same id share one fetch.
func (e *Extractor) Extract(ctx context.Context, graphID string) (domain.TrackFeatureVector, error) {
	if graphID == "" {
		return domain.TrackFeatureVector{}, domain.ErrNoFeatures
	}

	if v, ok := e.cached(ctx, graphID); ok {
		return v, nil
	}

	ch := e.group.DoChan(graphID, func() (any, error) {
		// detached so one canceled caller does not fail the others
		return e.extract(context.WithoutCancel(ctx), graphID)
	})
	select {
	case <-ctx.Done():
		return domain.TrackFeatureVector{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.TrackFeatureVector{}, res.Err
		}
		return res.Val.(domain.TrackFeatureVector), nil
	}
}

func (e *Extractor) cached(ctx context.Context, graphID string) (domain.TrackFeatureVector, bool) {
	if e.cache == nil {
		return domain.TrackFeatureVector{}, false
	}
	v, err := e.cache.Get(ctx, graphID)
	switch {
	case err == nil && v != nil:
		metrics.RecordCacheLookup("hit")
		return *v, true
	case err == nil, errors.Is(err, domain.ErrNotFound):
		metrics.RecordCacheLookup("miss")
	default:
		metrics.RecordCacheLookup("error")
		logging.Ctx(ctx).Warn().Err(err).Str("graph_id", graphID).Msg("feature cache read failed")
	}
	return domain.TrackFeatureVector{}, false
}

func (e *Extractor) extract(ctx context.Context, graphID string) (domain.TrackFeatureVector, error) {
	hl, err := e.acoustic.HighLevel(ctx, graphID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.TrackFeatureVector{}, fmt.Errorf("service: high-level %s: %w", graphID, domain.ErrNoFeatures)
		}
		return domain.TrackFeatureVector{}, fmt.Errorf("service: high-level %s: %w", graphID, err)
	}

	ll, err := e.acoustic.LowLevel(ctx, graphID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return domain.TrackFeatureVector{}, fmt.Errorf("service: low-level %s: %w", graphID, err)
		}
		logging.Ctx(ctx).Debug().Str("graph_id", graphID).Msg("no low-level descriptors")
		ll = nil
	}

	v := e.Build(graphID, hl, ll)

	if e.cache != nil {
		if err := e.cache.Put(ctx, v); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("graph_id", graphID).Msg("feature cache write failed")
		}
	}
	return v, nil
}

// Build reduces raw descriptors to a feature vector. ll may be nil.
func (e *Extractor) Build(graphID string, hl *domain.HighLevel, ll *domain.LowLevel) domain.TrackFeatureVector {
	v := domain.TrackFeatureVector{GraphID: graphID, Tempo: domain.DefaultTempo}

	if e.fused {
		f := domain.Fuse(hl, ll)
		v.Danceability, v.Energy, v.Valence = f.Danceability, f.Energy, f.Valence
	} else {
		dst := []*float64{&v.Danceability, &v.Energy, &v.Valence}
		for i, rc := range rawClasses {
			p, ok := positiveProbability(hl, rc.model, rc.class)
			if !ok {
				v.Missing |= rc.feature
				continue
			}
			*dst[i] = domain.Clamp01(p)
		}
	}

	if ll != nil && ll.BPM != nil && *ll.BPM > 0 {
		v.Tempo = *ll.BPM
	}
	if ll != nil && ll.SpectralFlux != nil {
		v.SpectralFlux = max(0, *ll.SpectralFlux)
	} else {
		v.Missing |= domain.FeatureSpectralFlux
	}

	genre, raw := e.rules.Genre.Detect(hl)
	v.Genre = genre
	v.HasVocals, _ = e.rules.Vocal.Detect(hl, genre, raw)

	if hl != nil {
		v.Title, v.Artist = hl.Title, hl.Artist
	}
	if ll != nil {
		if v.Title == "" {
			v.Title = ll.Title
		}
		if v.Artist == "" {
			v.Artist = ll.Artist
		}
	}

	v.FusionScore = domain.FusionScore(v)
	return v
}

// positiveProbability reads P(class) from the class distribution, falling back to the
// winning label's probability.
func positiveProbability(hl *domain.HighLevel, model, class string) (float64, bool) {
	if p, ok := hl.ClassProbability(model, class); ok {
		return p, true
	}
	c, ok := hl.Classifier(model)
	if !ok || c.Probability == nil {
		return 0, false
	}
	if c.Value == "" || c.Value == class {
		return *c.Probability, true
	}
	return 1 - *c.Probability, true
}
