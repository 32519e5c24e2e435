package acousticbrainz

import "github.com/goccy/go-json"

type metadata struct {
	Tags map[string][]string `json:"tags"`
}

type classifier struct {
	Value       *string            `json:"value"`
	Probability *float64           `json:"probability"`
	All         map[string]float64 `json:"all"`
}

type highLevelResponse struct {
	HighLevel map[string]*classifier `json:"highlevel"`
	Metadata  *metadata              `json:"metadata"`
}

type stat struct {
	Mean *float64 `json:"mean"`
}

type lowLevelResponse struct {
	Rhythm *struct {
		BPM           *float64  `json:"bpm"`
		BeatsPosition []float64 `json:"beats_position"`
		OnsetRate     *float64  `json:"onset_rate"`
	} `json:"rhythm"`
	LowLevel *struct {
		AverageLoudness  *float64 `json:"average_loudness"`
		SpectralFlux     *stat    `json:"spectral_flux"`
		SpectralCentroid *stat    `json:"spectral_centroid"`
	} `json:"lowlevel"`
	Tonal *struct {
		KeyScale    string `json:"key_scale"`
		ChordsScale string `json:"chords_scale"`
	} `json:"tonal"`
	Metadata *metadata `json:"metadata"`
}

type neighbour struct {
	RecordingMBID string   `json:"recording_mbid"`
	Distance      *float64 `json:"distance"`
}

// similarityResponse is keyed by query id. Each value is either a list of offset
// groups or an object keyed by offset.
type similarityResponse map[string]json.RawMessage
