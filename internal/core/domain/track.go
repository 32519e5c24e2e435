package domain

import "strings"

// CatalogTrack represents a track in the streaming catalog.
type CatalogTrack struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Artists     []string `json:"artists"`
	Album       string   `json:"album,omitempty"`
	CoverURL    string   `json:"cover_url,omitempty"`
	PreviewURL  string   `json:"preview_url,omitempty"`
	ExternalURL string   `json:"external_url,omitempty"`
	DurationMs  int      `json:"duration_ms,omitempty"`
	Popularity  int      `json:"popularity,omitempty"`
	ISRC        string   `json:"isrc,omitempty"` // International Standard Recording Code for matching
}

// PrimaryArtist returns the first credited artist, or "" when none is credited.
func (t CatalogTrack) PrimaryArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0]
}

// Valid reports whether the track has the fields a recommendation needs.
func (t CatalogTrack) Valid() bool {
	return t.ID != "" && strings.TrimSpace(t.Title) != "" && strings.TrimSpace(t.PrimaryArtist()) != ""
}

// DedupKey identifies a song independently of catalog id: normalized title plus
// normalized first artist. Re-releases and remasters collapse to the same key.
func (t CatalogTrack) DedupKey() string {
	return Normalize(t.Title) + "\x00" + Normalize(t.PrimaryArtist())
}

// IdentityTriple links the three identity spaces a track can be known by.
type IdentityTriple struct {
	CatalogID string `json:"catalog_id"`
	ISRC      string `json:"isrc"`
	GraphID   string `json:"graph_id"`
}

// Recording is a music-graph recording with its identity bridges.
type Recording struct {
	ID            string
	Title         string
	ArtistCredits []string
	ISRCs         []string
}

// FirstISRC returns the first attached ISRC or "".
func (r Recording) FirstISRC() string {
	for _, isrc := range r.ISRCs {
		if strings.TrimSpace(isrc) != "" {
			return isrc
		}
	}
	return ""
}

// FirstArtist returns the first artist credit or "".
func (r Recording) FirstArtist() string {
	if len(r.ArtistCredits) == 0 {
		return ""
	}
	return r.ArtistCredits[0]
}

// Neighbour is one entry of a candidate pool returned by the similarity provider.
type Neighbour struct {
	GraphID  string  `json:"recording_mbid"`
	Distance float64 `json:"distance"`
}
