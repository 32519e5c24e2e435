package domain

import "math"

// SimilarityWeights assigns a weight per feature. A zero weight drops the feature from scoring.
type SimilarityWeights struct {
	Danceability float64 `koanf:"danceability" yaml:"danceability" json:"danceability" validate:"gte=0"`
	Energy       float64 `koanf:"energy" yaml:"energy" json:"energy" validate:"gte=0"`
	Valence      float64 `koanf:"valence" yaml:"valence" json:"valence" validate:"gte=0"`
	SpectralFlux float64 `koanf:"spectral_flux" yaml:"spectral_flux" json:"spectral_flux" validate:"gte=0"`
	Tempo        float64 `koanf:"tempo" yaml:"tempo" json:"tempo" validate:"gte=0"`
	Genre        float64 `koanf:"genre" yaml:"genre" json:"genre" validate:"gte=0"`
}

// Total returns the sum of all weights.
func (w SimilarityWeights) Total() float64 {
	return w.Danceability + w.Energy + w.Valence + w.SpectralFlux + w.Tempo + w.Genre
}

// DefaultTrackWeights is the weight table for track-similarity mode.
func DefaultTrackWeights() SimilarityWeights {
	return SimilarityWeights{
		Danceability: 0.20,
		Energy:       0.20,
		Valence:      0.15,
		SpectralFlux: 0.10,
		Tempo:        0.10,
		Genre:        0.25,
	}
}

// DefaultCustomWeights is the weight table for custom-target mode.
func DefaultCustomWeights() SimilarityWeights {
	return SimilarityWeights{
		Danceability: 0.30,
		Energy:       0.30,
		Valence:      0.25,
		Tempo:        0.15,
	}
}

// Default tolerances.
const (
	TrackTempoTolerance  = 80.0
	CustomTempoTolerance = 60.0
	FluxScale            = 0.5
)

// Scorer computes a weighted similarity between a reference vector and a candidate.
// Features absent on either side are excluded and the remaining weights renormalize.
type Scorer struct {
	Weights        SimilarityWeights
	TempoTolerance float64
	FluxScale      float64
	// Harmonic compares tempos across octaves ({t, 2t, t/2} on both sides).
	Harmonic bool
}

// TrackScorer returns the scorer used when ranking against a reference track.
func TrackScorer(w SimilarityWeights) Scorer {
	return Scorer{Weights: w, TempoTolerance: TrackTempoTolerance, FluxScale: FluxScale, Harmonic: true}
}

// CustomScorer returns the scorer used when ranking against user-set targets.
func CustomScorer(w SimilarityWeights) Scorer {
	return Scorer{Weights: w, TempoTolerance: CustomTempoTolerance, FluxScale: FluxScale}
}

// Score returns a value in [0,1]. It is 0 when no weighted feature is present on both sides.
func (s Scorer) Score(ref, cand TrackFeatureVector) float64 {
	var sum, used float64
	add := func(f FeatureMask, weight, sim float64) {
		if weight <= 0 || !ref.Has(f) || !cand.Has(f) {
			return
		}
		sum += weight * sim
		used += weight
	}

	add(FeatureDanceability, s.Weights.Danceability, linearSimilarity(ref.Danceability, cand.Danceability))
	add(FeatureEnergy, s.Weights.Energy, linearSimilarity(ref.Energy, cand.Energy))
	add(FeatureValence, s.Weights.Valence, linearSimilarity(ref.Valence, cand.Valence))
	add(FeatureSpectralFlux, s.Weights.SpectralFlux, s.fluxSimilarity(ref.SpectralFlux, cand.SpectralFlux))
	add(FeatureTempo, s.Weights.Tempo, s.tempoSimilarity(ref.Tempo, cand.Tempo))
	add(FeatureGenre, s.Weights.Genre, GenreSimilarity(ref.Genre, cand.Genre))

	if used == 0 {
		return 0
	}
	return Clamp01(sum / used)
}

func (s Scorer) tempoSimilarity(a, b float64) float64 {
	tol := s.TempoTolerance
	if tol <= 0 {
		tol = TrackTempoTolerance
	}
	if s.Harmonic {
		return HarmonicTempoSimilarity(a, b, tol)
	}
	return math.Max(0, 1-math.Abs(a-b)/tol)
}

func (s Scorer) fluxSimilarity(a, b float64) float64 {
	scale := s.FluxScale
	if scale <= 0 {
		scale = FluxScale
	}
	return 1 - math.Min(math.Abs(a-b)/scale, 1)
}

// HarmonicTempoSimilarity returns the best linear match among {a, 2a, a/2} x {b, 2b, b/2}.
func HarmonicTempoSimilarity(a, b, tolerance float64) float64 {
	if a <= 0 || b <= 0 || tolerance <= 0 {
		return 0
	}
	best := 0.0
	for _, x := range [3]float64{a, a * 2, a / 2} {
		for _, y := range [3]float64{b, b * 2, b / 2} {
			best = math.Max(best, 1-math.Abs(x-y)/tolerance)
		}
	}
	return best
}

// FusionScore is the coarse filtering scalar: the mean of danceability, energy, valence and
// spectral flux rescaled into [0,1].
func FusionScore(v TrackFeatureVector) float64 {
	flux := Clamp01(v.SpectralFlux / fluxRange)
	return (v.Danceability + v.Energy + v.Valence + flux) / 4
}

func linearSimilarity(a, b float64) float64 {
	return Clamp01(1 - math.Abs(a-b))
}
