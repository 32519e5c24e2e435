package domain

import "sort"

// Mode selects how a recommendation request sources and scores candidates.
type Mode string

const (
	ModeTrackSimilarity Mode = "track_similarity"
	ModeCustomTarget    Mode = "custom_target"
)

// Stage is the lifecycle position of a recommendation request.
type Stage string

const (
	StageIdle                    Stage = "IDLE"
	StageResolvingIdentity       Stage = "RESOLVING_IDENTITY"
	StageExtractingQueryFeatures Stage = "EXTRACTING_QUERY_FEATURES"
	StageFetchingCandidates      Stage = "FETCHING_CANDIDATES"
	StageScoring                 Stage = "SCORING"
	StageRanking                 Stage = "RANKING"
	StageDone                    Stage = "DONE"
)

// Target holds user-set values for custom mode. Nil fields are not scored.
type Target struct {
	Danceability *float64 `json:"danceability,omitempty" validate:"omitempty,gte=0,lte=1"`
	Energy       *float64 `json:"energy,omitempty" validate:"omitempty,gte=0,lte=1"`
	Valence      *float64 `json:"valence,omitempty" validate:"omitempty,gte=0,lte=1"`
	Tempo        *float64 `json:"tempo,omitempty" validate:"omitempty,gte=40,lte=250"`
}

// Empty reports whether no target value is set.
func (t Target) Empty() bool {
	return t.Danceability == nil && t.Energy == nil && t.Valence == nil && t.Tempo == nil
}

// Vector converts the target into a partial feature vector for scoring.
func (t Target) Vector() TrackFeatureVector {
	v := TrackFeatureVector{Missing: FeatureSpectralFlux | FeatureGenre}
	set := func(p *float64, dst *float64, f FeatureMask) {
		if p == nil {
			v.Missing |= f
			return
		}
		*dst = *p
	}
	set(t.Danceability, &v.Danceability, FeatureDanceability)
	set(t.Energy, &v.Energy, FeatureEnergy)
	set(t.Valence, &v.Valence, FeatureValence)
	set(t.Tempo, &v.Tempo, FeatureTempo)
	return v
}

// Query describes one recommendation request. TrackID is the catalog id of the reference
// track in track-similarity mode.
type Query struct {
	Mode       Mode
	TrackID    string
	Target     Target
	GenreSeeds []string
	Limit      int
}

// Recommendation is one ranked entry.
type Recommendation struct {
	Track      CatalogTrack       `json:"track"`
	Similarity float64            `json:"similarity"`
	Features   TrackFeatureVector `json:"features"`
}

// Result is the outcome of a recommendation request. Miss is set when the request ended
// early without candidates, for example because the reference track had no ISRC.
type Result struct {
	Mode  Mode             `json:"mode"`
	Items []Recommendation `json:"items"`
	Stage Stage            `json:"stage"`
	Miss  string           `json:"miss,omitempty"`
}

// SortAndLimit orders recs by descending similarity, stable for ties, and truncates to limit.
// A non-positive limit keeps everything.
func SortAndLimit(recs []Recommendation, limit int) []Recommendation {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Similarity > recs[j].Similarity
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs
}
