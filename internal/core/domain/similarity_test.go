package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScorer_IdenticalVectorsScoreOne(t *testing.T) {
	v := TrackFeatureVector{Danceability: 0.8, Energy: 0.7, Valence: 0.6, Tempo: 128, Genre: GenreElectronic}

	got := TrackScorer(DefaultTrackWeights()).Score(v, v)

	assert.InDelta(t, 1.0, got, 1e-9)
}

func TestHarmonicTempoSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b float64
		want float64
	}{
		{name: "half time", a: 128, b: 64, want: 1},
		{name: "double time", a: 70, b: 140, want: 1},
		{name: "small drift matches best at half time", a: 120, b: 128, want: 1 - 4.0/80},
		{name: "far apart", a: 100, b: 300, want: 1 - 50.0/80},
		{name: "missing tempo", a: 0, b: 120, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HarmonicTempoSimilarity(tt.a, tt.b, TrackTempoTolerance)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestScorer_HalfTimeCandidateTempoTerm(t *testing.T) {
	query := TrackFeatureVector{Danceability: 0.5, Energy: 0.5, Valence: 0.5, Tempo: 128}
	cand := query
	cand.Tempo = 64

	onlyTempo := TrackScorer(SimilarityWeights{Tempo: 1})

	assert.InDelta(t, 1.0, onlyTempo.Score(query, cand), 1e-9)
}

func TestScorer_RenormalizesOverPresentFeatures(t *testing.T) {
	w := DefaultTrackWeights()
	query := TrackFeatureVector{Danceability: 0.8, Energy: 0.6, Valence: 0.4, SpectralFlux: 0.1, Tempo: 120, Genre: GenreRock}
	cand := TrackFeatureVector{Danceability: 0.6, Energy: 0.5, Valence: 0.9, SpectralFlux: 0.3, Tempo: 100}

	dance := 1 - 0.2
	energy := 1 - 0.1
	valence := 1 - 0.5
	flux := 1 - 0.2/0.5
	tempo := 1 - 10.0/80 // 60 vs 50 after halving
	want := (w.Danceability*dance + w.Energy*energy + w.Valence*valence + w.SpectralFlux*flux + w.Tempo*tempo) /
		(w.Danceability + w.Energy + w.Valence + w.SpectralFlux + w.Tempo)

	got := TrackScorer(w).Score(query, cand)

	assert.InDelta(t, want, got, 1e-9)
}

func TestScorer_MissingMaskExcludesFeature(t *testing.T) {
	query := TrackFeatureVector{Danceability: 1, Energy: 1, Valence: 1, Tempo: 120}
	cand := TrackFeatureVector{Danceability: 0, Energy: 1, Valence: 1, Tempo: 120, Missing: FeatureDanceability}

	got := CustomScorer(DefaultCustomWeights()).Score(query, cand)

	assert.InDelta(t, 1.0, got, 1e-9)
}

func TestScorer_NothingComparable(t *testing.T) {
	s := TrackScorer(SimilarityWeights{Genre: 1})
	assert.Equal(t, 0.0, s.Score(TrackFeatureVector{}, TrackFeatureVector{Genre: GenrePop}))
}

func TestCustomScorer_LinearTempo(t *testing.T) {
	target := Target{Tempo: Float(140)}.Vector()
	cand := TrackFeatureVector{Danceability: 0.2, Tempo: 70}

	got := CustomScorer(DefaultCustomWeights()).Score(target, cand)

	// no octave matching in custom mode: |140-70| exceeds the tolerance
	assert.Equal(t, 0.0, got)
}

func TestCustomScorer_TargetScenario(t *testing.T) {
	target := Target{Danceability: Float(0.9), Energy: Float(0.9), Valence: Float(0.1), Tempo: Float(140)}.Vector()
	cand := TrackFeatureVector{Danceability: 0.8, Energy: 0.7, Valence: 0.3, Tempo: 128, Genre: GenreRock, SpectralFlux: 0.4}

	got := CustomScorer(DefaultCustomWeights()).Score(target, cand)

	want := 0.30*0.9 + 0.30*0.8 + 0.25*0.8 + 0.15*(1-12.0/60)
	assert.InDelta(t, want, got, 1e-9)
	assert.Greater(t, got, 0.4)
}

func TestTarget_EmptyAndVector(t *testing.T) {
	assert.True(t, Target{}.Empty())

	v := Target{Energy: Float(0.3)}.Vector()
	assert.True(t, v.Has(FeatureEnergy))
	assert.False(t, v.Has(FeatureDanceability))
	assert.False(t, v.Has(FeatureTempo))
	assert.False(t, v.Has(FeatureGenre))
	assert.Equal(t, 0.3, v.Energy)
}

func TestFusionScore_NormalizesFlux(t *testing.T) {
	v := TrackFeatureVector{Danceability: 0.4, Energy: 0.6, Valence: 0.2, SpectralFlux: 0.5}
	assert.InDelta(t, (0.4+0.6+0.2+1.0)/4, FusionScore(v), 1e-9)
}

func TestSortAndLimit(t *testing.T) {
	recs := []Recommendation{
		{Track: CatalogTrack{ID: "a"}, Similarity: 0.4},
		{Track: CatalogTrack{ID: "b"}, Similarity: 0.9},
		{Track: CatalogTrack{ID: "c"}, Similarity: 0.4},
		{Track: CatalogTrack{ID: "d"}, Similarity: 0.7},
	}

	got := SortAndLimit(recs, 3)

	ids := make([]string, 0, len(got))
	for _, r := range got {
		ids = append(ids, r.Track.ID)
	}
	assert.Equal(t, []string{"b", "d", "a"}, ids)
}
