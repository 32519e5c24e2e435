package rules

import (
	"fmt"
	"strings"

	"github.com/ewilliams-labs/fetchify/internal/core/domain"
)

// GenreDetector picks the most confident genre classifier and maps its label onto the
// canonical genre set.
type GenreDetector struct {
	floor   float64
	models  []string
	aliases map[string]domain.Genre
	rules   []GenreRule
}

// NewGenreDetector validates the genre part of t.
func NewGenreDetector(t Table) (*GenreDetector, error) {
	d := &GenreDetector{
		floor:   t.ConfidenceFloor,
		models:  t.GenreModels,
		aliases: make(map[string]domain.Genre, len(t.GenreAliases)),
	}
	for raw, g := range t.GenreAliases {
		if !domain.IsCanonical(domain.Genre(g)) {
			return nil, fmt.Errorf("rules: alias %q maps to unknown genre %q", raw, g)
		}
		d.aliases[strings.ToLower(raw)] = domain.Genre(g)
	}
	for _, r := range t.GenreRules {
		if !domain.IsCanonical(domain.Genre(r.Genre)) {
			return nil, fmt.Errorf("rules: genre rule targets unknown genre %q", r.Genre)
		}
		d.rules = append(d.rules, GenreRule{Genre: r.Genre, Contains: lowerAll(r.Contains)})
	}
	return d, nil
}

// Detect returns the canonical genre and the raw winning label. Only classifiers whose
// probability exceeds the confidence floor compete; if none does, or the label matches
// no rule, the default genre is returned.
func (d *GenreDetector) Detect(hl *domain.HighLevel) (domain.Genre, string) {
	var (
		bestLabel string
		bestProb  = d.floor
	)
	for _, model := range d.models {
		c, ok := hl.Classifier(model)
		if !ok || c.Probability == nil || c.Value == "" {
			continue
		}
		if *c.Probability > bestProb {
			bestProb = *c.Probability
			bestLabel = c.Value
		}
	}
	if bestLabel == "" {
		return domain.DefaultGenre, ""
	}
	return d.Map(bestLabel), bestLabel
}

// Map converts a raw classifier label to a canonical genre.
func (d *GenreDetector) Map(raw string) domain.Genre {
	label := strings.ToLower(strings.TrimSpace(raw))
	if g, ok := d.aliases[label]; ok {
		return g
	}
	for _, r := range d.rules {
		for _, token := range r.Contains {
			if token != "" && strings.Contains(label, token) {
				return domain.Genre(r.Genre)
			}
		}
	}
	return domain.DefaultGenre
}
