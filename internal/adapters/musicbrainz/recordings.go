package musicbrainz

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/ewilliams-labs/fetchify/internal/core/domain"
)

// SearchRecordingsByISRC returns the recordings carrying isrc, in provider order.
// An ISRC with no recordings yields an empty slice.
func (c *Client) SearchRecordingsByISRC(ctx context.Context, isrc string) ([]domain.Recording, error) {
	isrc = strings.TrimSpace(isrc)
	if isrc == "" {
		return nil, fmt.Errorf("musicbrainz adapter: %w", domain.ErrNoISRC)
	}

	path := "/ws/2/recording?query=" + url.QueryEscape("isrc:"+isrc) + "&fmt=json"
	var resp recordingSearchResponse
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, err
	}

	out := make([]domain.Recording, 0, len(resp.Recordings))
	for _, r := range resp.Recordings {
		if r == nil || r.ID == "" {
			continue
		}
		out = append(out, mapRecording(r))
	}
	return out, nil
}

// LookupRecording fetches one recording with its artist credits, releases and ISRCs.
func (c *Client) LookupRecording(ctx context.Context, graphID string) (domain.Recording, error) {
	id, err := uuid.Parse(strings.TrimSpace(graphID))
	if err != nil {
		return domain.Recording{}, fmt.Errorf("musicbrainz adapter: invalid recording id %q: %w", graphID, domain.ErrNotFound)
	}

	var r recording
	if err := c.getJSON(ctx, "/ws/2/recording/"+id.String()+"?inc=artist-credits+releases+isrcs&fmt=json", &r); err != nil {
		return domain.Recording{}, err
	}
	if r.ID == "" {
		r.ID = id.String()
	}
	return mapRecording(&r), nil
}
