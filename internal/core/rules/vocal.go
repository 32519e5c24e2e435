package rules

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/ewilliams-labs/fetchify/internal/core/domain"
)

// DefaultRuleName is reported when no vocal rule matched.
const DefaultRuleName = "default"

type compiledVocalRule struct {
	name   string
	vocals bool
	prg    cel.Program
}

// VocalDetector evaluates the vocal fallback chain. It is safe for concurrent use.
type VocalDetector struct {
	rules              []compiledVocalRule
	instrumentalGenres []string
	vocalGenres        []string
	fallback           bool
}

func newVocalEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("c", cel.DynType),
		cel.Variable("genre", cel.StringType),
		cel.Variable("raw_genre", cel.StringType),
		cel.Variable("instrumental_genres", cel.ListType(cel.StringType)),
		cel.Variable("vocal_genres", cel.ListType(cel.StringType)),
	)
}

// NewVocalDetector compiles every vocal rule of t. A rule that does not compile to a
// boolean expression is an error.
func NewVocalDetector(t Table) (*VocalDetector, error) {
	env, err := newVocalEnv()
	if err != nil {
		return nil, fmt.Errorf("rules: cel env: %w", err)
	}

	d := &VocalDetector{
		instrumentalGenres: lowerAll(t.InstrumentalGenres),
		vocalGenres:        lowerAll(t.VocalGenres),
		fallback:           t.DefaultVocals,
	}
	for i, r := range t.VocalRules {
		name := r.Name
		if name == "" {
			name = fmt.Sprintf("rule_%d", i)
		}
		ast, issues := env.Compile(r.When)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("rules: vocal rule %s: %w", name, issues.Err())
		}
		if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
			return nil, fmt.Errorf("rules: vocal rule %s: must be boolean, got %s", name, ast.OutputType())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("rules: vocal rule %s: %w", name, err)
		}
		d.rules = append(d.rules, compiledVocalRule{name: name, vocals: r.Vocals, prg: prg})
	}
	return d, nil
}

// Detect reports whether the track has vocals and which rule decided.
// A rule that fails to evaluate counts as not matching.
func (d *VocalDetector) Detect(hl *domain.HighLevel, genre domain.Genre, rawGenre string) (bool, string) {
	input := map[string]any{
		"c":                   classifierInput(hl),
		"genre":               strings.ToLower(string(genre)),
		"raw_genre":           strings.ToLower(rawGenre),
		"instrumental_genres": d.instrumentalGenres,
		"vocal_genres":        d.vocalGenres,
	}

	for _, r := range d.rules {
		out, _, err := r.prg.Eval(input)
		if err != nil {
			continue
		}
		if matched, ok := out.Value().(bool); ok && matched {
			return r.vocals, r.name
		}
	}
	return d.fallback, DefaultRuleName
}

func classifierInput(hl *domain.HighLevel) map[string]any {
	out := map[string]any{}
	if hl == nil {
		return out
	}
	for model, c := range hl.Classifiers {
		entry := map[string]any{
			"value": strings.ToLower(c.Value),
		}
		if c.Probability != nil {
			entry["probability"] = *c.Probability
		}
		all := make(map[string]any, len(c.All))
		for class, p := range c.All {
			all[strings.ToLower(class)] = p
		}
		entry["all"] = all
		out[model] = entry
	}
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(strings.TrimSpace(s)))
	}
	return out
}
