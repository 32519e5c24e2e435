package domain

// FeatureMask flags individual features of a TrackFeatureVector.
type FeatureMask uint8

const (
	FeatureDanceability FeatureMask = 1 << iota
	FeatureEnergy
	FeatureValence
	FeatureSpectralFlux
	FeatureTempo
	FeatureGenre
)

// Neutral values used when a source does not report a feature.
const (
	NeutralProbability = 0.5
	DefaultTempo       = 120.0
)

// TrackFeatureVector is the canonical unit the ranking engine reasons about.
// The zero Missing mask means every scalar feature was observed; Tempo <= 0 and an
// empty Genre are treated as absent regardless of the mask.
type TrackFeatureVector struct {
	GraphID      string  `json:"graph_id,omitempty"`
	Danceability float64 `json:"danceability"`
	Energy       float64 `json:"energy"`
	Valence      float64 `json:"valence"`
	Tempo        float64 `json:"tempo"`
	SpectralFlux float64 `json:"spectral_flux"`
	HasVocals    bool    `json:"has_vocals"`
	Genre        Genre   `json:"genre,omitempty"`
	Title        string  `json:"title,omitempty"`
	Artist       string  `json:"artist,omitempty"`
	FusionScore  float64 `json:"fusion_score"`

	Missing FeatureMask `json:"-"`
}

// Has reports whether feature f is present on the vector.
func (v TrackFeatureVector) Has(f FeatureMask) bool {
	if v.Missing&f != 0 {
		return false
	}
	switch f {
	case FeatureTempo:
		return v.Tempo > 0
	case FeatureGenre:
		return v.Genre != ""
	}
	return true
}

// Classifier is one high-level model output: the winning label, its probability and
// the full class distribution. Any part may be absent.
type Classifier struct {
	Value       string
	Probability *float64
	All         map[string]float64
}

// HighLevel holds classifier-derived descriptors keyed by model name
// (danceability, mood_happy, voice_instrumental, genre_dortmund, ...).
type HighLevel struct {
	Classifiers map[string]Classifier
	Title       string
	Artist      string
}

// Classifier returns the named model output.
func (h *HighLevel) Classifier(model string) (Classifier, bool) {
	if h == nil || h.Classifiers == nil {
		return Classifier{}, false
	}
	c, ok := h.Classifiers[model]
	return c, ok
}

// Probability returns the reported probability of the winning label of model.
func (h *HighLevel) Probability(model string) (float64, bool) {
	c, ok := h.Classifier(model)
	if !ok || c.Probability == nil {
		return 0, false
	}
	return *c.Probability, true
}

// ClassProbability returns the probability of a specific class of model.
func (h *HighLevel) ClassProbability(model, class string) (float64, bool) {
	c, ok := h.Classifier(model)
	if !ok || c.All == nil {
		return 0, false
	}
	p, ok := c.All[class]
	return p, ok
}

// LowLevel holds signal-derived descriptors. Nil pointers mean the provider omitted the field.
type LowLevel struct {
	BPM              *float64
	BeatsPosition    []float64
	OnsetRate        *float64
	AverageLoudness  *float64 // dB
	SpectralFlux     *float64 // mean
	SpectralCentroid *float64 // mean, Hz
	KeyScale         string
	ChordsScale      string
	Title            string
	Artist           string
}

// Scale returns the tonal mode, preferring the key estimate over the chord estimate.
func (l *LowLevel) Scale() string {
	if l == nil {
		return ""
	}
	if l.KeyScale != "" {
		return l.KeyScale
	}
	return l.ChordsScale
}

// Float returns a pointer to v. Handy for building partial descriptors.
func Float(v float64) *float64 {
	return &v
}
