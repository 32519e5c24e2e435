package domain

// Genre is a canonical genre label.
type Genre string

const (
	GenrePop        Genre = "pop"
	GenreRock       Genre = "rock"
	GenreIndie      Genre = "indie"
	GenreElectronic Genre = "electronic"
	GenreDance      Genre = "dance"
	GenreHipHop     Genre = "hip-hop"
	GenreJazz       Genre = "jazz"
	GenreClassical  Genre = "classical"
	GenreAmbient    Genre = "ambient"
	GenreFolk       Genre = "folk"
	GenreCountry    Genre = "country"
	GenreRnB        Genre = "r&b"
	GenreSoul       Genre = "soul"
	GenreBlues      Genre = "blues"
	GenreReggae     Genre = "reggae"
	GenreSoundtrack Genre = "soundtrack"
)

// DefaultGenre is used when no classifier is confident enough.
const DefaultGenre = GenrePop

// Genre similarity levels.
const (
	GenreExactSimilarity     = 1.0
	GenreGroupSimilarity     = 0.7
	GenreUnrelatedSimilarity = 0.3
)

// genreGroups are the families that count as related for similarity scoring.
var genreGroups = map[Genre]string{
	GenreElectronic: "electronic",
	GenreDance:      "electronic",
	GenreRock:       "rock",
	GenreIndie:      "rock",
	GenreHipHop:     "urban",
	GenreJazz:       "mellow",
	GenrePop:        "mellow",
}

var canonicalGenres = []Genre{
	GenrePop, GenreRock, GenreIndie, GenreElectronic, GenreDance, GenreHipHop, GenreJazz,
	GenreClassical, GenreAmbient, GenreFolk, GenreCountry, GenreRnB, GenreSoul, GenreBlues,
	GenreReggae, GenreSoundtrack,
}

// CanonicalGenres returns every canonical genre label.
func CanonicalGenres() []Genre {
	out := make([]Genre, len(canonicalGenres))
	copy(out, canonicalGenres)
	return out
}

// IsCanonical reports whether g is one of the canonical labels.
func IsCanonical(g Genre) bool {
	for _, c := range canonicalGenres {
		if c == g {
			return true
		}
	}
	return false
}

// GenreGroup returns the family name of g, or "" if g belongs to none.
func GenreGroup(g Genre) string {
	return genreGroups[g]
}

// GenreSimilarity scores two genres: identical, same family, or unrelated.
// The function is symmetric.
func GenreSimilarity(a, b Genre) float64 {
	if a == b {
		return GenreExactSimilarity
	}
	ga, gb := GenreGroup(a), GenreGroup(b)
	if ga != "" && ga == gb {
		return GenreGroupSimilarity
	}
	return GenreUnrelatedSimilarity
}
