package acousticbrainz

import (
	"strings"

	"github.com/ewilliams-labs/fetchify/internal/core/domain"
)

func firstTag(m *metadata, name string) string {
	if m == nil {
		return ""
	}
	for _, v := range m.Tags[name] {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func mapHighLevel(r *highLevelResponse) *domain.HighLevel {
	hl := &domain.HighLevel{
		Classifiers: make(map[string]domain.Classifier, len(r.HighLevel)),
		Title:       firstTag(r.Metadata, "title"),
		Artist:      firstTag(r.Metadata, "artist"),
	}
	for model, c := range r.HighLevel {
		if c == nil {
			continue
		}
		out := domain.Classifier{Probability: c.Probability, All: c.All}
		if c.Value != nil {
			out.Value = *c.Value
		}
		hl.Classifiers[model] = out
	}
	return hl
}

func mapLowLevel(r *lowLevelResponse) *domain.LowLevel {
	ll := &domain.LowLevel{
		Title:  firstTag(r.Metadata, "title"),
		Artist: firstTag(r.Metadata, "artist"),
	}
	if r.Rhythm != nil {
		ll.BPM = r.Rhythm.BPM
		ll.BeatsPosition = r.Rhythm.BeatsPosition
		ll.OnsetRate = r.Rhythm.OnsetRate
	}
	if r.LowLevel != nil {
		ll.AverageLoudness = r.LowLevel.AverageLoudness
		if r.LowLevel.SpectralFlux != nil {
			ll.SpectralFlux = r.LowLevel.SpectralFlux.Mean
		}
		if r.LowLevel.SpectralCentroid != nil {
			ll.SpectralCentroid = r.LowLevel.SpectralCentroid.Mean
		}
	}
	if r.Tonal != nil {
		ll.KeyScale = strings.ToLower(strings.TrimSpace(r.Tonal.KeyScale))
		ll.ChordsScale = strings.ToLower(strings.TrimSpace(r.Tonal.ChordsScale))
	}
	return ll
}
