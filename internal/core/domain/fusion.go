package domain

import "math"

// Tempo preference curve used to score how comfortably a BPM sits in a danceable range.
const (
	tempoCenter = 120.0
	tempoSigma  = 30.0
)

// Linear normalization ranges for the low-level signals.
const (
	loudnessFloorDB  = -30.0
	loudnessRangeDB  = 25.0 // -30..-5 dB
	fluxRange        = 0.1
	centroidFloorHz  = 1000.0
	centroidRangeHz  = 3000.0 // 1k..4k Hz
	onsetRateFloor   = 1.0
	onsetRateRange   = 6.0
	minBeatPositions = 5
)

// Blend weights. These are hand-chosen and part of the observable behavior.
const (
	danceClassifierWeight = 0.55
	danceTempoWeight      = 0.25
	danceStabilityWeight  = 0.15
	danceOnsetWeight      = 0.05

	energyClassifierWeight = 0.6
	energyLoudnessWeight   = 0.2
	energyFluxWeight       = 0.15
	energyBrightnessWeight = 0.05

	valenceHappyWeight = 0.75
	valenceSadWeight   = 0.25
	majorModeBoost     = 0.08
	minorModePenalty   = -0.05
	valenceTempoLift   = 0.05
	valenceLoudLift    = 0.05
)

// FusionDebug exposes the intermediate signals of a fusion pass.
type FusionDebug struct {
	PDance     *float64 `json:"p_dance"`
	PEnergetic *float64 `json:"p_energetic"`
	PHappy     *float64 `json:"p_happy"`
	PSad       *float64 `json:"p_sad"`
	TempoScore float64  `json:"tempo_score"`
	Stability  float64  `json:"stability"`
	OnsetScore float64  `json:"onset_score"`
	Loudness   float64  `json:"loudness"`
	Flux       float64  `json:"flux"`
	Brightness float64  `json:"brightness"`
	ModeBoost  float64  `json:"mode_boost"`
}

// FusedFeatures are the stabilized headline values. Tempo is nil when no BPM was reported.
type FusedFeatures struct {
	Tempo        *float64    `json:"tempo"`
	Danceability float64     `json:"danceability"`
	Energy       float64     `json:"energy"`
	Valence      float64     `json:"valence"`
	Debug        FusionDebug `json:"debug"`
}

// Fuse blends classifier probabilities with signal-derived corrections.
// Danceability, energy and valence are always within [0,1].
func Fuse(hl *HighLevel, ll *LowLevel) FusedFeatures {
	if ll == nil {
		ll = &LowLevel{}
	}

	pDance := classProb(hl, "danceability", "danceable")
	pEnergetic := classProb(hl, "energy", "energetic")
	pHappy := classProb(hl, "mood_happy", "happy")
	pSad := classProb(hl, "mood_sad", "sad")

	var bpm float64
	if ll.BPM != nil {
		bpm = *ll.BPM
	}

	tempoScore := TempoScore(bpm)
	stability := BeatStability(ll.BeatsPosition)
	onset := normalizeOr(ll.OnsetRate, onsetRateFloor, onsetRateRange)
	loud := normalizeOr(ll.AverageLoudness, loudnessFloorDB, loudnessRangeDB)
	flux := normalizeOr(ll.SpectralFlux, 0, fluxRange)
	bright := normalizeOr(ll.SpectralCentroid, centroidFloorHz, centroidRangeHz)

	dance := Clamp01(danceClassifierWeight*valueOr(pDance, NeutralProbability) +
		danceTempoWeight*tempoScore +
		danceStabilityWeight*stability +
		danceOnsetWeight*onset)

	energy := Clamp01(energyClassifierWeight*valueOr(pEnergetic, NeutralProbability) +
		energyLoudnessWeight*loud +
		energyFluxWeight*flux +
		energyBrightnessWeight*bright)

	var modeBoost float64
	switch ll.Scale() {
	case "major":
		modeBoost = majorModeBoost
	case "minor":
		modeBoost = minorModePenalty
	}
	valenceBase := valueOr(pHappy, NeutralProbability)*valenceHappyWeight +
		(1-valueOr(pSad, NeutralProbability))*valenceSadWeight
	valence := Clamp01(valenceBase + modeBoost + valenceTempoLift*tempoScore + valenceLoudLift*(loud-0.5))

	out := FusedFeatures{
		Danceability: dance,
		Energy:       energy,
		Valence:      valence,
		Debug: FusionDebug{
			PDance:     pDance,
			PEnergetic: pEnergetic,
			PHappy:     pHappy,
			PSad:       pSad,
			TempoScore: tempoScore,
			Stability:  stability,
			OnsetScore: onset,
			Loudness:   loud,
			Flux:       flux,
			Brightness: bright,
			ModeBoost:  modeBoost,
		},
	}
	if ll.BPM != nil {
		out.Tempo = Float(*ll.BPM)
	}
	return out
}

// TempoScore rates a BPM against the preferred tempo curve, also trying the double and
// half tempo so detector octave errors do not matter. Non-positive input scores 0.5.
func TempoScore(bpm float64) float64 {
	if bpm <= 0 || math.IsNaN(bpm) || math.IsInf(bpm, 0) {
		return NeutralProbability
	}
	best := 0.0
	for _, candidate := range [3]float64{bpm, bpm * 2, bpm / 2} {
		best = math.Max(best, gaussian(candidate))
	}
	return best
}

// BeatStability is 1 minus the coefficient of variation of inter-beat intervals,
// clamped to [0,1]. Fewer than five beats scores 0.5.
func BeatStability(beats []float64) float64 {
	if len(beats) < minBeatPositions {
		return NeutralProbability
	}

	intervals := make([]float64, 0, len(beats)-1)
	for i := 1; i < len(beats); i++ {
		intervals = append(intervals, beats[i]-beats[i-1])
	}

	var sum float64
	for _, iv := range intervals {
		sum += iv
	}
	mean := sum / float64(len(intervals))

	var sq float64
	for _, iv := range intervals {
		sq += (iv - mean) * (iv - mean)
	}
	sd := math.Sqrt(sq / float64(len(intervals)))

	if mean == 0 {
		mean = 1e-9
	}
	return Clamp01(1 - sd/mean)
}

// Clamp01 limits x to [0,1]. NaN maps to 0.
func Clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func gaussian(x float64) float64 {
	z := (x - tempoCenter) / tempoSigma
	return math.Exp(-z * z)
}

func normalizeOr(v *float64, floor, span float64) float64 {
	if v == nil {
		return NeutralProbability
	}
	return Clamp01((*v - floor) / span)
}

func classProb(hl *HighLevel, model, class string) *float64 {
	p, ok := hl.ClassProbability(model, class)
	if !ok {
		return nil
	}
	return Float(p)
}

func valueOr(p *float64, fallback float64) float64 {
	if p == nil {
		return fallback
	}
	return *p
}
