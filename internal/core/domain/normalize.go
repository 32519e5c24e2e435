package domain

import (
	"strings"
	"unicode"
)

var suffixTokens = map[string]struct{}{
	"clean":      {},
	"deluxe":     {},
	"edition":    {},
	"edit":       {},
	"explicit":   {},
	"feat":       {},
	"featuring":  {},
	"ft":         {},
	"live":       {},
	"mix":        {},
	"mono":       {},
	"radio":      {},
	"remaster":   {},
	"remastered": {},
	"stereo":     {},
	"version":    {},
}

// Normalize cleans a title or artist name for identity comparison.
// Trailing edition markers such as "(Remastered 2011)" or "- Live" are dropped.
func Normalize(input string) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}

	lowered := strings.ToLower(strings.TrimSpace(input))
	trimmed := stripCommonSuffixes(lowered)
	cleaned := CleanSeparators(trimmed)

	return strings.Join(strings.Fields(cleaned), " ")
}

// IsSuffixToken reports whether token is an edition marker.
func IsSuffixToken(token string) bool {
	_, ok := suffixTokens[token]
	return ok
}

// CleanSeparators replaces every run of non letter/digit runes with a single space.
func CleanSeparators(input string) string {
	var out strings.Builder
	lastSpace := false
	for _, r := range input {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			out.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			out.WriteRune(' ')
			lastSpace = true
		}
	}

	return out.String()
}

func stripCommonSuffixes(input string) string {
	trimmed := strings.TrimSpace(input)
	for {
		next := trimBracketedSuffix(trimmed)
		next = trimDashSuffix(next)
		if next == trimmed {
			return trimmed
		}
		trimmed = strings.TrimSpace(next)
	}
}

func trimBracketedSuffix(input string) string {
	trimmed := strings.TrimSpace(input)
	for _, pair := range [][2]string{{"(", ")"}, {"[", "]"}} {
		if !strings.HasSuffix(trimmed, pair[1]) {
			continue
		}
		idx := strings.LastIndex(trimmed, pair[0])
		if idx == -1 || idx >= len(trimmed)-1 {
			continue
		}
		if suffixHasToken(trimmed[idx+1 : len(trimmed)-1]) {
			return strings.TrimSpace(trimmed[:idx])
		}
	}

	return input
}

func trimDashSuffix(input string) string {
	trimmed := strings.TrimSpace(input)
	idx := strings.LastIndex(trimmed, " - ")
	if idx == -1 {
		return input
	}

	if suffixHasToken(strings.TrimSpace(trimmed[idx+3:])) {
		return strings.TrimSpace(trimmed[:idx])
	}

	return input
}

func suffixHasToken(input string) bool {
	if strings.TrimSpace(input) == "" {
		return false
	}

	for _, token := range strings.Fields(CleanSeparators(strings.ToLower(input))) {
		if IsSuffixToken(token) {
			return true
		}
	}

	return false
}
