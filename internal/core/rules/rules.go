// Package rules holds the declarative tables that turn raw classifier payloads into
// vocal and genre decisions.
package rules

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultTable []byte

// Table is the on-disk shape of a rule file.
type Table struct {
	ConfidenceFloor    float64           `yaml:"confidence_floor"`
	GenreModels        []string          `yaml:"genre_models"`
	GenreAliases       map[string]string `yaml:"genre_aliases"`
	GenreRules         []GenreRule       `yaml:"genre_rules"`
	InstrumentalGenres []string          `yaml:"instrumental_genres"`
	VocalGenres        []string          `yaml:"vocal_genres"`
	VocalRules         []VocalRule       `yaml:"vocal_rules"`
	DefaultVocals      bool              `yaml:"default_vocals"`
}

// GenreRule maps any raw label containing one of Contains to Genre.
type GenreRule struct {
	Genre    string   `yaml:"genre"`
	Contains []string `yaml:"contains"`
}

// VocalRule is one predicate of the vocal fallback chain.
type VocalRule struct {
	Name   string `yaml:"name"`
	When   string `yaml:"when"`
	Vocals bool   `yaml:"vocals"`
}

// Rules bundles the compiled detectors.
type Rules struct {
	Vocal *VocalDetector
	Genre *GenreDetector
}

// Default compiles the embedded rule table.
func Default() (*Rules, error) {
	return Parse(defaultTable)
}

// Load compiles the rule file at path. An empty path means the embedded table.
func Load(path string) (*Rules, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and compiles a YAML rule table.
func Parse(data []byte) (*Rules, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("rules: decode: %w", err)
	}
	return Compile(t)
}

// Compile validates t and builds its detectors.
func Compile(t Table) (*Rules, error) {
	genre, err := NewGenreDetector(t)
	if err != nil {
		return nil, err
	}
	vocal, err := NewVocalDetector(t)
	if err != nil {
		return nil, err
	}
	return &Rules{Vocal: vocal, Genre: genre}, nil
}
