package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ewilliams-labs/fetchify/internal/core/domain"
	"github.com/ewilliams-labs/fetchify/internal/core/ports"
	"github.com/ewilliams-labs/fetchify/internal/logging"
	"github.com/ewilliams-labs/fetchify/internal/metrics"
)

// Reasons a request ended without candidates.
const (
	MissNothingPlaying = "nothing_playing"
	MissNoISRC         = "no_isrc"
	MissNoGraphID      = "no_graph_id"
	MissNoFeatures     = "no_features"
	MissNoCandidates   = "no_candidates"
	MissIdentity       = "identity_error"
)

// RecommenderConfig holds the ranking knobs. Defaults reproduce the observed behavior.
type RecommenderConfig struct {
	MaxResults        int
	CandidatePoolSize int
	Batches           []int
	FallbackBatch     int
	CandidateDelay    time.Duration
	TrackWeights      domain.SimilarityWeights
	AcceptThreshold   float64
	TempoTolerance    float64
	// VocalMismatchThreshold rejects instrumental candidates for a vocal query below it.
	VocalMismatchThreshold float64

	CustomDelay      time.Duration
	CustomWeights    domain.SimilarityWeights
	CustomThreshold  float64
	BroadThreshold   float64
	MinCustomResults int
	GenreSearchLimit int
	BroadSearchLimit int
	DefaultGenre     string
	// DefaultTarget is scored when a custom request sets genres but no values.
	DefaultTarget             domain.Target
	UseCatalogRecommendations bool
}

// DefaultRecommenderConfig returns the default ranking configuration.
func DefaultRecommenderConfig() RecommenderConfig {
	return RecommenderConfig{
		MaxResults:             5,
		CandidatePoolSize:      200,
		Batches:                []int{15, 10, 10},
		FallbackBatch:          15,
		CandidateDelay:         time.Second,
		TrackWeights:           domain.DefaultTrackWeights(),
		AcceptThreshold:        0.3,
		TempoTolerance:         60,
		VocalMismatchThreshold: 0.4,

		CustomDelay:      800 * time.Millisecond,
		CustomWeights:    domain.DefaultCustomWeights(),
		CustomThreshold:  0.4,
		BroadThreshold:   0.3,
		MinCustomResults: 3,
		GenreSearchLimit: 50,
		BroadSearchLimit: 30,
		DefaultGenre:     string(domain.DefaultGenre),
		DefaultTarget: domain.Target{
			Danceability: domain.Float(0.7),
			Energy:       domain.Float(0.6),
			Valence:      domain.Float(0.5),
			Tempo:        domain.Float(domain.DefaultTempo),
		},
	}
}

// Recommender is the similarity and ranking engine.
type Recommender struct {
	resolver  *IdentityResolver
	extractor *Extractor
	acoustic  ports.AcousticProvider
	cfg       RecommenderConfig
	validate  *validator.Validate
}

// NewRecommender constructs a Recommender.
func NewRecommender(resolver *IdentityResolver, extractor *Extractor, acoustic ports.AcousticProvider, cfg RecommenderConfig) *Recommender {
	def := DefaultRecommenderConfig()
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = def.MaxResults
	}
	if cfg.CandidatePoolSize <= 0 {
		cfg.CandidatePoolSize = def.CandidatePoolSize
	}
	if len(cfg.Batches) == 0 {
		cfg.Batches = def.Batches
	}
	if cfg.FallbackBatch <= 0 {
		cfg.FallbackBatch = def.FallbackBatch
	}
	if cfg.TrackWeights.Total() == 0 {
		cfg.TrackWeights = def.TrackWeights
	}
	if cfg.CustomWeights.Total() == 0 {
		cfg.CustomWeights = def.CustomWeights
	}
	if cfg.DefaultGenre == "" {
		cfg.DefaultGenre = def.DefaultGenre
	}
	if cfg.DefaultTarget.Empty() {
		cfg.DefaultTarget = def.DefaultTarget
	}
	return &Recommender{
		resolver:  resolver,
		extractor: extractor,
		acoustic:  acoustic,
		cfg:       cfg,
		validate:  validator.New(),
	}
}

// Config returns the effective configuration.
func (r *Recommender) Config() RecommenderConfig {
	return r.cfg
}

// run is the state owned by one request.
type run struct {
	mode    domain.Mode
	stage   domain.Stage
	queryID string
	seen    map[string]struct{}
	items   []domain.Recommendation
	limiter *rate.Limiter
	log     *zerolog.Logger
}

func (r *run) enter(stage domain.Stage) {
	r.log.Debug().Str("stage", string(stage)).Str("from", string(r.stage)).Msg("stage transition")
	r.stage = stage
}

func (r *run) wait(ctx context.Context) error {
	if err := r.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// admit records a track unless it is the query track or already present.
func (r *run) admit(track domain.CatalogTrack) bool {
	if track.ID == r.queryID {
		return false
	}
	key := track.DedupKey()
	if _, dup := r.seen[key]; dup {
		return false
	}
	r.seen[key] = struct{}{}
	return true
}

func (r *run) isSeen(track domain.CatalogTrack) bool {
	if track.ID == r.queryID {
		return true
	}
	_, dup := r.seen[track.DedupKey()]
	return dup
}

func newLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// ModeFor picks custom mode when the query carries targets or genre seeds.
func ModeFor(q domain.Query) domain.Mode {
	if q.Mode != "" {
		return q.Mode
	}
	if !q.Target.Empty() || len(q.GenreSeeds) > 0 {
		return domain.ModeCustomTarget
	}
	return domain.ModeTrackSimilarity
}

// Recommend runs one request against catalog, which is bound to the caller's credentials.
// Identity misses and per-candidate failures yield an empty or shorter result; only
// cancellation, missing credentials and invalid targets are returned as errors.
func (r *Recommender) Recommend(ctx context.Context, catalog ports.CatalogProvider, q domain.Query) (domain.Result, error) {
	if err := ctx.Err(); err != nil {
		return domain.Result{}, err
	}
	ctx = logging.EnsureCorrelationID(ctx)
	mode := ModeFor(q)
	logger := logging.Ctx(ctx).With().Str("mode", string(mode)).Logger()

	limit := r.cfg.MaxResults
	if q.Limit > 0 && q.Limit < limit {
		limit = q.Limit
	}

	rn := &run{
		mode:    mode,
		stage:   domain.StageIdle,
		queryID: q.TrackID,
		seen:    make(map[string]struct{}),
		log:     &logger,
	}

	start := time.Now()
	var (
		miss string
		err  error
	)
	switch mode {
	case domain.ModeCustomTarget:
		rn.limiter = newLimiter(r.cfg.CustomDelay)
		miss, err = r.customTarget(ctx, catalog, q, rn)
	case domain.ModeTrackSimilarity:
		rn.limiter = newLimiter(r.cfg.CandidateDelay)
		miss, err = r.trackSimilarity(ctx, catalog, q, rn)
	default:
		return domain.Result{}, fmt.Errorf("service: unknown mode %q", mode)
	}

	if err != nil {
		metrics.RecordRecommendation(string(mode), string(rn.stage), time.Since(start))
		return domain.Result{Mode: mode, Stage: rn.stage, Items: []domain.Recommendation{}}, err
	}

	if miss == "" {
		rn.enter(domain.StageRanking)
	}
	items := domain.SortAndLimit(rn.items, limit)
	if items == nil {
		items = []domain.Recommendation{}
	}
	rn.enter(domain.StageDone)
	metrics.RecordRecommendation(string(mode), string(rn.stage), time.Since(start))

	logger.Info().Int("results", len(items)).Str("miss", miss).Dur("elapsed", time.Since(start)).Msg("recommendation finished")
	return domain.Result{Mode: mode, Items: items, Stage: domain.StageDone, Miss: miss}, nil
}

// fatal reports errors that abort a request instead of degrading it.
func fatal(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	return ctx.Err() != nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, domain.ErrMissingToken)
}

func (r *Recommender) trackSimilarity(ctx context.Context, catalog ports.CatalogProvider, q domain.Query, rn *run) (string, error) {
	rn.enter(domain.StageResolvingIdentity)

	var known *domain.CatalogTrack
	if q.TrackID == "" {
		playing, err := catalog.CurrentlyPlaying(ctx)
		if err != nil {
			if fatal(ctx, err) {
				return "", err
			}
			rn.log.Warn().Err(err).Msg("currently playing lookup failed")
			return MissIdentity, nil
		}
		if playing == nil {
			return MissNothingPlaying, nil
		}
		known = playing
		q.TrackID = playing.ID
		rn.queryID = playing.ID
	}

	_, triple, err := r.resolver.ResolveTrack(ctx, catalog, q.TrackID, known)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNoISRC):
		rn.log.Info().Str("track_id", q.TrackID).Msg("query track has no isrc")
		return MissNoISRC, nil
	case errors.Is(err, domain.ErrNoGraphID):
		rn.log.Info().Str("isrc", triple.ISRC).Msg("no graph id for query track")
		return MissNoGraphID, nil
	case fatal(ctx, err):
		return "", err
	default:
		rn.log.Warn().Err(err).Str("track_id", q.TrackID).Msg("identity resolution failed")
		return MissIdentity, nil
	}

	rn.enter(domain.StageExtractingQueryFeatures)
	query, err := r.extractor.Extract(ctx, triple.GraphID)
	if err != nil {
		if fatal(ctx, err) {
			return "", err
		}
		rn.log.Info().Err(err).Str("graph_id", triple.GraphID).Msg("no features for query track")
		return MissNoFeatures, nil
	}

	rn.enter(domain.StageFetchingCandidates)
	pool, err := r.acoustic.SimilarRecordings(ctx, triple.GraphID, r.cfg.CandidatePoolSize)
	if err != nil {
		if fatal(ctx, err) {
			return "", err
		}
		rn.log.Warn().Err(err).Str("graph_id", triple.GraphID).Msg("candidate pool fetch failed")
		return MissNoCandidates, nil
	}
	candidates := make([]domain.Neighbour, 0, len(pool))
	for _, c := range pool {
		if c.GraphID != "" && c.GraphID != triple.GraphID {
			candidates = append(candidates, c)
		}
	}
	rn.log.Info().Int("candidates", len(candidates)).Str("graph_id", triple.GraphID).Msg("candidate pool fetched")
	if len(candidates) == 0 {
		return MissNoCandidates, nil
	}

	rn.enter(domain.StageScoring)
	scorer := domain.TrackScorer(r.cfg.TrackWeights)
	next := 0
	for batch := 0; next < len(candidates) && len(rn.items) < r.cfg.MaxResults; batch++ {
		size := r.cfg.FallbackBatch
		if batch < len(r.cfg.Batches) {
			size = r.cfg.Batches[batch]
		}
		end := min(next+size, len(candidates))
		rn.log.Debug().Int("batch", batch).Int("from", next).Int("to", end).Msg("scoring batch")

		for _, c := range candidates[next:end] {
			if err := r.scoreNeighbour(ctx, catalog, rn, scorer, query, c); err != nil {
				return "", err
			}
		}
		next = end
	}
	return "", nil
}

// scoreNeighbour evaluates one pool entry. Only fatal errors are returned.
func (r *Recommender) scoreNeighbour(ctx context.Context, catalog ports.CatalogProvider, rn *run, scorer domain.Scorer, query domain.TrackFeatureVector, c domain.Neighbour) error {
	mode := string(rn.mode)
	if err := rn.wait(ctx); err != nil {
		return err
	}

	log := rn.log.With().Str("graph_id", c.GraphID).Logger()
	feat, err := r.extractor.Extract(ctx, c.GraphID)
	if err != nil {
		if fatal(ctx, err) {
			return err
		}
		log.Debug().Err(err).Msg("skipping candidate")
		metrics.RecordCandidate(mode, "skipped")
		return nil
	}

	sim := scorer.Score(query, feat)
	if !r.acceptNeighbour(query, feat, sim) {
		log.Debug().Float64("similarity", sim).Float64("tempo", feat.Tempo).Msg("candidate rejected")
		metrics.RecordCandidate(mode, "rejected")
		return nil
	}

	var match *CatalogMatch
	if feat.Title != "" && feat.Artist != "" {
		match, err = r.resolver.ResolveByMetadata(ctx, catalog, feat.Title, feat.Artist)
	} else {
		match, err = r.resolver.ResolveCatalogTrack(ctx, catalog, c.GraphID)
	}
	if err != nil {
		if fatal(ctx, err) {
			return err
		}
		log.Debug().Err(err).Msg("skipping candidate")
		metrics.RecordCandidate(mode, "skipped")
		return nil
	}
	if match == nil || !match.Track.Valid() {
		metrics.RecordCandidate(mode, "unresolved")
		return nil
	}
	if !rn.admit(match.Track) {
		metrics.RecordCandidate(mode, "duplicate")
		return nil
	}

	rn.items = append(rn.items, domain.Recommendation{Track: match.Track, Similarity: sim, Features: feat})
	metrics.RecordCandidate(mode, "accepted")
	log.Info().
		Str("track_id", match.Track.ID).
		Str("match", string(match.Path)).
		Float64("similarity", sim).
		Int("accepted", len(rn.items)).
		Msg("candidate accepted")
	return nil
}

// acceptNeighbour applies the track-mode acceptance rules.
func (r *Recommender) acceptNeighbour(query, cand domain.TrackFeatureVector, sim float64) bool {
	if sim <= r.cfg.AcceptThreshold {
		return false
	}
	if r.cfg.TempoTolerance > 0 && query.Has(domain.FeatureTempo) && cand.Has(domain.FeatureTempo) &&
		math.Abs(cand.Tempo-query.Tempo) > r.cfg.TempoTolerance {
		return false
	}
	if query.HasVocals && !cand.HasVocals && sim < r.cfg.VocalMismatchThreshold {
		return false
	}
	return true
}

func (r *Recommender) customTarget(ctx context.Context, catalog ports.CatalogProvider, q domain.Query, rn *run) (string, error) {
	if err := r.validate.Struct(q.Target); err != nil {
		return "", fmt.Errorf("service: %w: %v", domain.ErrInvalidTarget, err)
	}
	target := q.Target
	if target.Empty() {
		target = r.cfg.DefaultTarget
	}
	ref := target.Vector()
	scorer := domain.CustomScorer(r.cfg.CustomWeights)

	genres := normalizeSeeds(q.GenreSeeds)
	if len(genres) == 0 {
		genres = []string{r.cfg.DefaultGenre}
	}

	rn.enter(domain.StageFetchingCandidates)
	for _, genre := range genres {
		if len(rn.items) >= r.cfg.MaxResults {
			break
		}
		tracks, err := catalog.SearchByGenre(ctx, genre, r.cfg.GenreSearchLimit)
		if err != nil {
			if fatal(ctx, err) {
				return "", err
			}
			rn.log.Warn().Err(err).Str("genre", genre).Msg("genre search failed")
			continue
		}
		rn.enter(domain.StageScoring)
		if err := r.scoreCatalogTracks(ctx, rn, scorer, ref, tracks, r.cfg.CustomThreshold, r.cfg.MaxResults); err != nil {
			return "", err
		}
	}

	if r.cfg.UseCatalogRecommendations && len(rn.items) < r.cfg.MaxResults {
		rn.enter(domain.StageFetchingCandidates)
		tracks, err := catalog.Recommendations(ctx, ports.CatalogRecommendationRequest{
			SeedGenres: genres,
			Target:     target,
			Limit:      r.cfg.GenreSearchLimit,
		})
		switch {
		case err == nil:
			rn.enter(domain.StageScoring)
			if err := r.scoreCatalogTracks(ctx, rn, scorer, ref, tracks, r.cfg.CustomThreshold, r.cfg.MaxResults); err != nil {
				return "", err
			}
		case fatal(ctx, err):
			return "", err
		default:
			rn.log.Warn().Err(err).Msg("catalog recommendations failed")
		}
	}

	if len(rn.items) < r.cfg.MinCustomResults {
		query := BroadQuery(target)
		rn.log.Info().Int("accepted", len(rn.items)).Str("query", query).Msg("broadening custom search")
		rn.enter(domain.StageFetchingCandidates)
		tracks, err := catalog.SearchText(ctx, query, r.cfg.BroadSearchLimit)
		switch {
		case err == nil:
			rn.enter(domain.StageScoring)
			if err := r.scoreCatalogTracks(ctx, rn, scorer, ref, tracks, r.cfg.BroadThreshold, len(rn.items)+r.cfg.MaxResults); err != nil {
				return "", err
			}
		case fatal(ctx, err):
			return "", err
		default:
			rn.log.Warn().Err(err).Msg("broad search failed")
		}
	}
	return "", nil
}

// scoreCatalogTracks scores tracks against ref until upTo items are accepted.
func (r *Recommender) scoreCatalogTracks(ctx context.Context, rn *run, scorer domain.Scorer, ref domain.TrackFeatureVector, tracks []domain.CatalogTrack, threshold float64, upTo int) error {
	mode := string(rn.mode)
	for _, track := range tracks {
		if len(rn.items) >= upTo {
			return nil
		}
		if !track.Valid() {
			metrics.RecordCandidate(mode, "invalid")
			continue
		}
		if rn.isSeen(track) {
			metrics.RecordCandidate(mode, "duplicate")
			continue
		}
		if err := rn.wait(ctx); err != nil {
			return err
		}

		log := rn.log.With().Str("track_id", track.ID).Str("isrc", track.ISRC).Logger()
		if track.ISRC == "" {
			metrics.RecordCandidate(mode, "unresolved")
			continue
		}
		graphID, err := r.resolver.ResolveGraphID(ctx, track.ISRC)
		if err != nil || graphID == "" {
			if fatal(ctx, err) {
				return err
			}
			log.Debug().Err(err).Msg("candidate has no graph id")
			metrics.RecordCandidate(mode, "unresolved")
			continue
		}

		feat, err := r.extractor.Extract(ctx, graphID)
		if err != nil {
			if fatal(ctx, err) {
				return err
			}
			log.Debug().Err(err).Str("graph_id", graphID).Msg("skipping candidate")
			metrics.RecordCandidate(mode, "skipped")
			continue
		}

		sim := scorer.Score(ref, feat)
		if sim <= threshold {
			metrics.RecordCandidate(mode, "rejected")
			continue
		}
		rn.admit(track)
		rn.items = append(rn.items, domain.Recommendation{Track: track, Similarity: sim, Features: feat})
		metrics.RecordCandidate(mode, "accepted")
		log.Info().Float64("similarity", sim).Int("accepted", len(rn.items)).Msg("custom match accepted")
	}
	return nil
}

// BroadQuery describes a target in coarse words: "fast"/"slow" and "energetic"/"chill".
func BroadQuery(t domain.Target) string {
	tempo, energy := domain.DefaultTempo, 0.6
	if t.Tempo != nil {
		tempo = *t.Tempo
	}
	if t.Energy != nil {
		energy = *t.Energy
	}
	pace, feel := "slow", "chill"
	if tempo > 120 {
		pace = "fast"
	}
	if energy > 0.6 {
		feel = "energetic"
	}
	return pace + " " + feel
}

func normalizeSeeds(seeds []string) []string {
	out := make([]string, 0, len(seeds))
	seen := make(map[string]struct{}, len(seeds))
	for _, s := range seeds {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
