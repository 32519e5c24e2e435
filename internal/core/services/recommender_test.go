package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewilliams-labs/fetchify/internal/core/domain"
)

var queryFeatures = fakeTrack{
	dance: 0.8, energy: 0.7, valence: 0.6, tempo: 128,
	genre: "electronic", vocals: true, title: "Query Song", artist: "Query Artist",
}

var queryCatalogTrack = domain.CatalogTrack{
	ID: "q-cat", Title: "Query Song", Artists: []string{"Query Artist"}, ISRC: "ISRC-Q",
}

type harness struct {
	acoustic *fakeAcoustic
	graph    *fakeGraph
	catalog  *fakeCatalog
	rec      *Recommender
}

func testConfig() RecommenderConfig {
	cfg := DefaultRecommenderConfig()
	cfg.CandidateDelay = 0
	cfg.CustomDelay = 0
	return cfg
}

func newHarness(t *testing.T, cfg RecommenderConfig) *harness {
	t.Helper()
	h := &harness{
		acoustic: newFakeAcoustic(),
		graph: &fakeGraph{
			byISRC:     map[string][]domain.Recording{"ISRC-Q": {{ID: "q"}}},
			recordings: map[string]domain.Recording{},
		},
		catalog: newFakeCatalog(),
	}
	h.acoustic.tracks["q"] = queryFeatures
	h.catalog.tracks[queryCatalogTrack.ID] = queryCatalogTrack

	extractor, err := NewExtractor(h.acoustic, nil, WithFusion(false))
	require.NoError(t, err)
	h.rec = NewRecommender(NewIdentityResolver(h.graph), extractor, h.acoustic, cfg)
	return h
}

// addNeighbour registers a pool entry whose metadata resolves to catalog track cat.
func (h *harness) addNeighbour(id string, f fakeTrack, cat *domain.CatalogTrack) {
	h.acoustic.tracks[id] = f
	h.acoustic.neighbours["q"] = append(h.acoustic.neighbours["q"], domain.Neighbour{GraphID: id})
	if cat != nil && f.title != "" {
		h.catalog.byTitle[f.title+"|"+f.artist] = *cat
	}
}

func catalogTrack(id, title, artist string) *domain.CatalogTrack {
	return &domain.CatalogTrack{ID: id, Title: title, Artists: []string{artist}}
}

func ids(items []domain.Recommendation) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Track.ID)
	}
	return out
}

func withMeta(f fakeTrack, title, artist string) fakeTrack {
	f.title, f.artist = title, artist
	return f
}

func TestRecommend_TrackSimilarity(t *testing.T) {
	h := newHarness(t, testConfig())

	h.addNeighbour("c1", withMeta(queryFeatures, "Song 1", "Artist 1"), catalogTrack("cat-1", "Song 1", "Artist 1"))

	c2 := withMeta(queryFeatures, "Song 2", "Artist 2")
	c2.dance = 0.6
	h.addNeighbour("c2", c2, catalogTrack("cat-2", "Song 2", "Artist 2"))

	// same song as cat-1 under another catalog id
	h.addNeighbour("c3", withMeta(queryFeatures, "Song 3", "Artist 3"), catalogTrack("cat-3", "song 1", "ARTIST 1"))

	// resolves to the query track itself
	h.addNeighbour("c4", withMeta(queryFeatures, "Song 4", "Artist 4"), &queryCatalogTrack)

	c5 := withMeta(queryFeatures, "Song 5", "Artist 5")
	c5.tempo = 60
	h.addNeighbour("c5", c5, catalogTrack("cat-5", "Song 5", "Artist 5"))

	c6 := withMeta(queryFeatures, "Song 6", "Artist 6")
	c6.vocals = false
	h.addNeighbour("c6", c6, catalogTrack("cat-6", "Song 6", "Artist 6"))

	// no acoustic data
	h.acoustic.neighbours["q"] = append(h.acoustic.neighbours["q"], domain.Neighbour{GraphID: "c7"})

	// no title metadata: resolved through the graph ISRC bridge
	c8 := withMeta(queryFeatures, "", "")
	c8.dance = 0.7
	h.addNeighbour("c8", c8, nil)
	h.graph.recordings["c8"] = domain.Recording{ID: "c8", ISRCs: []string{"ISRC-8"}}
	h.catalog.byISRC["ISRC-8"] = *catalogTrack("cat-8", "Song 8", "Artist 8")

	// the pool may echo the query id
	h.acoustic.neighbours["q"] = append(h.acoustic.neighbours["q"], domain.Neighbour{GraphID: "q"})

	res, err := h.rec.Recommend(context.Background(), h.catalog, domain.Query{TrackID: "q-cat"})
	require.NoError(t, err)

	assert.Equal(t, domain.ModeTrackSimilarity, res.Mode)
	assert.Equal(t, domain.StageDone, res.Stage)
	assert.Empty(t, res.Miss)
	assert.Equal(t, []string{"cat-1", "cat-6", "cat-8", "cat-2"}, ids(res.Items))

	assert.InDelta(t, 1.0, res.Items[0].Similarity, 1e-9)
	assert.InDelta(t, 0.98, res.Items[2].Similarity, 1e-9)
	assert.InDelta(t, 0.96, res.Items[3].Similarity, 1e-9)
	for _, it := range res.Items {
		assert.NotEqual(t, queryCatalogTrack.ID, it.Track.ID)
	}
}

func TestRecommend_StopsAfterBatchReachingTarget(t *testing.T) {
	h := newHarness(t, testConfig())
	for i := 0; i < 30; i++ {
		title := fmt.Sprintf("Song %d", i)
		h.addNeighbour(fmt.Sprintf("c%d", i), withMeta(queryFeatures, title, "Artist"), catalogTrack(fmt.Sprintf("cat-%d", i), title, "Artist"))
	}

	res, err := h.rec.Recommend(context.Background(), h.catalog, domain.Query{TrackID: "q-cat"})
	require.NoError(t, err)
	assert.Len(t, res.Items, 5)
	// query plus the first batch of 15
	assert.Equal(t, 16, h.acoustic.highLevelCalls())
}

func TestRecommend_FallbackBatchesUntilPoolExhausted(t *testing.T) {
	h := newHarness(t, testConfig())
	for i := 0; i < 60; i++ {
		id := fmt.Sprintf("c%d", i)
		if i < 50 {
			h.acoustic.neighbours["q"] = append(h.acoustic.neighbours["q"], domain.Neighbour{GraphID: id})
			continue
		}
		title := fmt.Sprintf("Song %d", i)
		h.addNeighbour(id, withMeta(queryFeatures, title, "Artist"), catalogTrack("cat-"+id, title, "Artist"))
	}

	res, err := h.rec.Recommend(context.Background(), h.catalog, domain.Query{TrackID: "q-cat"})
	require.NoError(t, err)
	assert.Len(t, res.Items, 5)
	assert.Equal(t, 61, h.acoustic.highLevelCalls())
}

func TestRecommend_IdentityMisses(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(h *harness)
		query    domain.Query
		wantMiss string
	}{
		{
			name: "track without isrc",
			setup: func(h *harness) {
				h.catalog.tracks["no-isrc"] = domain.CatalogTrack{ID: "no-isrc", Title: "X", Artists: []string{"Y"}}
			},
			query:    domain.Query{TrackID: "no-isrc"},
			wantMiss: MissNoISRC,
		},
		{
			name: "isrc unknown to the graph",
			setup: func(h *harness) {
				h.catalog.tracks["orphan"] = domain.CatalogTrack{ID: "orphan", Title: "X", Artists: []string{"Y"}, ISRC: "ISRC-NONE"}
			},
			query:    domain.Query{TrackID: "orphan"},
			wantMiss: MissNoGraphID,
		},
		{
			name: "no acoustic features",
			setup: func(h *harness) {
				delete(h.acoustic.tracks, "q")
			},
			query:    domain.Query{TrackID: "q-cat"},
			wantMiss: MissNoFeatures,
		},
		{
			name:     "empty pool",
			setup:    func(h *harness) {},
			query:    domain.Query{TrackID: "q-cat"},
			wantMiss: MissNoCandidates,
		},
		{
			name:     "nothing playing",
			setup:    func(h *harness) {},
			query:    domain.Query{},
			wantMiss: MissNothingPlaying,
		},
		{
			name: "graph transport failure",
			setup: func(h *harness) {
				h.graph.err = fmt.Errorf("musicbrainz: %w", domain.ErrProviderUnavailable)
			},
			query:    domain.Query{TrackID: "q-cat"},
			wantMiss: MissIdentity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, testConfig())
			tt.setup(h)

			res, err := h.rec.Recommend(context.Background(), h.catalog, tt.query)
			require.NoError(t, err)
			assert.Empty(t, res.Items)
			assert.NotNil(t, res.Items)
			assert.Equal(t, tt.wantMiss, res.Miss)
			assert.Equal(t, domain.StageDone, res.Stage)
		})
	}
}

func TestRecommend_CurrentlyPlaying(t *testing.T) {
	h := newHarness(t, testConfig())
	playing := queryCatalogTrack
	h.catalog.playing = &playing
	delete(h.catalog.tracks, queryCatalogTrack.ID)
	h.addNeighbour("c1", withMeta(queryFeatures, "Song 1", "Artist 1"), catalogTrack("cat-1", "Song 1", "Artist 1"))

	res, err := h.rec.Recommend(context.Background(), h.catalog, domain.Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{"cat-1"}, ids(res.Items))
}

func TestRecommend_FatalErrors(t *testing.T) {
	t.Run("missing token", func(t *testing.T) {
		h := newHarness(t, testConfig())
		h.catalog.err = fmt.Errorf("spotify adapter: %w", domain.ErrMissingToken)
		_, err := h.rec.Recommend(context.Background(), h.catalog, domain.Query{TrackID: "q-cat"})
		assert.ErrorIs(t, err, domain.ErrMissingToken)
	})

	t.Run("canceled", func(t *testing.T) {
		h := newHarness(t, testConfig())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := h.rec.Recommend(ctx, h.catalog, domain.Query{TrackID: "q-cat"})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("invalid target", func(t *testing.T) {
		h := newHarness(t, testConfig())
		_, err := h.rec.Recommend(context.Background(), h.catalog, domain.Query{
			Target: domain.Target{Danceability: domain.Float(1.5)},
		})
		assert.ErrorIs(t, err, domain.ErrInvalidTarget)
	})
}

func TestAcceptNeighbour(t *testing.T) {
	r := NewRecommender(nil, nil, nil, testConfig())
	vocal := domain.TrackFeatureVector{Tempo: 128, HasVocals: true}
	instrumental := domain.TrackFeatureVector{Tempo: 128}

	tests := []struct {
		name  string
		query domain.TrackFeatureVector
		cand  domain.TrackFeatureVector
		sim   float64
		want  bool
	}{
		{"above threshold", vocal, vocal, 0.31, true},
		{"at threshold", vocal, vocal, 0.3, false},
		{"tempo too far", vocal, domain.TrackFeatureVector{Tempo: 60, HasVocals: true}, 0.9, false},
		{"tempo at tolerance", vocal, domain.TrackFeatureVector{Tempo: 188, HasVocals: true}, 0.9, true},
		{"instrumental weak match for vocal query", vocal, instrumental, 0.39, false},
		{"instrumental strong match for vocal query", vocal, instrumental, 0.4, true},
		{"vocal candidate for instrumental query", instrumental, vocal, 0.35, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.acceptNeighbour(tt.query, tt.cand, tt.sim))
		})
	}
}

// --- custom target mode ---

func (h *harness) addCatalogCandidate(id string, f fakeTrack) domain.CatalogTrack {
	isrc := "ISRC-" + id
	graphID := "g-" + id
	h.graph.byISRC[isrc] = []domain.Recording{{ID: graphID}}
	h.acoustic.tracks[graphID] = f
	return domain.CatalogTrack{ID: id, Title: "Title " + id, Artists: []string{"Artist " + id}, ISRC: isrc}
}

func scenarioTarget() domain.Target {
	return domain.Target{
		Danceability: domain.Float(0.9),
		Energy:       domain.Float(0.9),
		Valence:      domain.Float(0.1),
		Tempo:        domain.Float(140),
	}
}

func TestRecommend_CustomTarget_GenrePassSuffices(t *testing.T) {
	h := newHarness(t, testConfig())
	r1 := h.addCatalogCandidate("r1", fakeTrack{dance: 0.9, energy: 0.9, valence: 0.1, tempo: 140, genre: "rock", vocals: true})
	r2 := h.addCatalogCandidate("r2", fakeTrack{dance: 0.8, energy: 0.8, valence: 0.2, tempo: 130, genre: "rock", vocals: true})
	r3 := h.addCatalogCandidate("r3", fakeTrack{dance: 0.1, energy: 0.1, valence: 0.9, tempo: 70, genre: "rock", vocals: true})
	r4 := h.addCatalogCandidate("r4", fakeTrack{dance: 0.5, energy: 0.5, valence: 0.5, tempo: 100, genre: "rock", vocals: true})
	noISRC := domain.CatalogTrack{ID: "r5", Title: "No ISRC", Artists: []string{"Nobody"}}
	h.catalog.byGenre["rock"] = []domain.CatalogTrack{r1, r2, r3, noISRC, r4, r1}

	res, err := h.rec.Recommend(context.Background(), h.catalog, domain.Query{
		Target:     scenarioTarget(),
		GenreSeeds: []string{"Rock", "rock"},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.ModeCustomTarget, res.Mode)
	assert.Equal(t, []string{"r1", "r2", "r4"}, ids(res.Items))
	assert.InDelta(t, 1.0, res.Items[0].Similarity, 1e-9)
	assert.InDelta(t, 0.89, res.Items[1].Similarity, 1e-9)
	assert.InDelta(t, 0.56, res.Items[2].Similarity, 1e-9)
	for _, it := range res.Items {
		assert.Greater(t, it.Similarity, 0.4)
	}
	assert.Equal(t, []string{"rock"}, h.catalog.genreQueries)
	assert.Empty(t, h.catalog.textQueries, "broad search only runs below three matches")
}

func TestRecommend_CustomTarget_BroadSearch(t *testing.T) {
	h := newHarness(t, testConfig())
	r1 := h.addCatalogCandidate("r1", fakeTrack{dance: 0.9, energy: 0.9, valence: 0.1, tempo: 140})
	r3 := h.addCatalogCandidate("r3", fakeTrack{dance: 0.1, energy: 0.1, valence: 0.9, tempo: 70})
	b1 := h.addCatalogCandidate("b1", fakeTrack{dance: 0.3, energy: 0.3, valence: 0.6, tempo: 90})
	h.catalog.byGenre["rock"] = []domain.CatalogTrack{r1, r3}
	h.catalog.text["fast energetic"] = []domain.CatalogTrack{r1, b1}

	res, err := h.rec.Recommend(context.Background(), h.catalog, domain.Query{
		Target:     scenarioTarget(),
		GenreSeeds: []string{"rock"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"fast energetic"}, h.catalog.textQueries)
	assert.Equal(t, []string{"r1", "b1"}, ids(res.Items))
	assert.InDelta(t, 0.39, res.Items[1].Similarity, 1e-9)
}

func TestRecommend_CustomTarget_DefaultsAndCatalogRecommendations(t *testing.T) {
	cfg := testConfig()
	cfg.UseCatalogRecommendations = true
	h := newHarness(t, cfg)
	p1 := h.addCatalogCandidate("p1", fakeTrack{dance: 0.7, energy: 0.6, valence: 0.5, tempo: 120})
	h.catalog.recommended = []domain.CatalogTrack{p1}

	res, err := h.rec.Recommend(context.Background(), h.catalog, domain.Query{Mode: domain.ModeCustomTarget})
	require.NoError(t, err)

	assert.Equal(t, []string{"pop"}, h.catalog.genreQueries)
	require.Len(t, h.catalog.recommendReqs, 1)
	assert.Equal(t, []string{"pop"}, h.catalog.recommendReqs[0].SeedGenres)
	assert.Equal(t, []string{"p1"}, ids(res.Items))
	assert.InDelta(t, 1.0, res.Items[0].Similarity, 1e-9)
	// fewer than three matches: the default target is slow and chill
	assert.Equal(t, []string{"slow chill"}, h.catalog.textQueries)
}

func TestBroadQuery(t *testing.T) {
	tests := []struct {
		target domain.Target
		want   string
	}{
		{domain.Target{}, "slow chill"},
		{domain.Target{Tempo: domain.Float(121)}, "fast chill"},
		{domain.Target{Energy: domain.Float(0.61)}, "slow energetic"},
		{scenarioTarget(), "fast energetic"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BroadQuery(tt.target))
	}
}

func TestModeFor(t *testing.T) {
	assert.Equal(t, domain.ModeTrackSimilarity, ModeFor(domain.Query{TrackID: "x"}))
	assert.Equal(t, domain.ModeCustomTarget, ModeFor(domain.Query{GenreSeeds: []string{"rock"}}))
	assert.Equal(t, domain.ModeCustomTarget, ModeFor(domain.Query{Target: domain.Target{Energy: domain.Float(0.2)}}))
	assert.Equal(t, domain.ModeCustomTarget, ModeFor(domain.Query{Mode: domain.ModeCustomTarget}))
}
