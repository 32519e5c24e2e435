package spotify

// spotifyArtist represents an artist reference on a track.
type spotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type spotifyImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// spotifyTrack represents the Spotify API response for a track. Every nested field may
// be missing.
type spotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []spotifyArtist `json:"artists"`
	DurationMs int             `json:"duration_ms"`
	Popularity int             `json:"popularity"`
	PreviewURL *string         `json:"preview_url"`
	Album      struct {
		Name   string         `json:"name"`
		Images []spotifyImage `json:"images"`
	} `json:"album"`
	ExternalIDs struct {
		ISRC string `json:"isrc"`
	} `json:"external_ids"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
}

type searchResponse struct {
	Tracks struct {
		Items []*spotifyTrack `json:"items"`
	} `json:"tracks"`
}

type currentlyPlayingResponse struct {
	IsPlaying            bool          `json:"is_playing"`
	CurrentlyPlayingType string        `json:"currently_playing_type"`
	Item                 *spotifyTrack `json:"item"`
}

type recommendationsResponse struct {
	Tracks []*spotifyTrack `json:"tracks"`
}
