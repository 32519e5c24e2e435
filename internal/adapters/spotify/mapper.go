package spotify

import "github.com/ewilliams-labs/fetchify/internal/core/domain"

// mapTrackToDomain converts a raw Spotify track to a catalog track.
func mapTrackToDomain(st spotifyTrack) domain.CatalogTrack {
	artistNames := make([]string, 0, len(st.Artists))
	for _, a := range st.Artists {
		if a.Name != "" {
			artistNames = append(artistNames, a.Name)
		}
	}

	coverURL := ""
	if len(st.Album.Images) > 0 {
		coverURL = st.Album.Images[0].URL
	}

	previewURL := ""
	if st.PreviewURL != nil {
		previewURL = *st.PreviewURL
	}

	return domain.CatalogTrack{
		ID:          st.ID,
		Title:       st.Name,
		Artists:     artistNames,
		Album:       st.Album.Name,
		CoverURL:    coverURL,
		PreviewURL:  previewURL,
		ExternalURL: st.ExternalURLs.Spotify,
		DurationMs:  st.DurationMs,
		Popularity:  st.Popularity,
		ISRC:        st.ExternalIDs.ISRC,
	}
}

// mapTracks maps search or recommendation items, dropping null entries and tracks that
// lack an id, title or artist.
func mapTracks(items []*spotifyTrack) []domain.CatalogTrack {
	out := make([]domain.CatalogTrack, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		t := mapTrackToDomain(*item)
		if !t.Valid() {
			continue
		}
		out = append(out, t)
	}
	return out
}
