package musicbrainz

import (
	"strings"

	"github.com/ewilliams-labs/fetchify/internal/core/domain"
)

func mapRecording(r *recording) domain.Recording {
	out := domain.Recording{ID: r.ID}
	if r.Title != nil {
		out.Title = strings.TrimSpace(*r.Title)
	}
	for _, credit := range r.ArtistCredit {
		name := strings.TrimSpace(credit.Name)
		if name == "" && credit.Artist != nil {
			name = strings.TrimSpace(credit.Artist.Name)
		}
		if name != "" {
			out.ArtistCredits = append(out.ArtistCredits, name)
		}
	}
	for _, isrc := range r.ISRCs {
		if isrc = strings.TrimSpace(isrc); isrc != "" {
			out.ISRCs = append(out.ISRCs, isrc)
		}
	}
	return out
}
