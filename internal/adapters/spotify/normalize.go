package spotify

import (
	"strings"

	"github.com/ewilliams-labs/fetchify/internal/core/domain"
)

func normalizeTitleArtist(title string, artist string) (string, string) {
	return normalizeSearchInput(title), normalizeSearchInput(artist)
}

// normalizeSearchInput is stricter than domain.Normalize: bracketed segments are always
// dropped and noise tokens are removed wherever they appear.
func normalizeSearchInput(input string) string {
	if input == "" {
		return ""
	}

	lower := strings.ToLower(input)
	filtered := stripBracketedSegments(lower)
	tokens := strings.Fields(domain.CleanSeparators(filtered))

	cleaned := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if domain.IsSuffixToken(token) {
			continue
		}
		cleaned = append(cleaned, token)
	}

	return strings.Join(cleaned, " ")
}

func stripBracketedSegments(input string) string {
	var out strings.Builder
	depth := 0
	for _, r := range input {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 {
				out.WriteRune(r)
			}
		}
	}

	return out.String()
}

func fallbackIfEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}
