package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/ewilliams-labs/fetchify/internal/core/domain"
)

// TrackByID fetches a single catalog track.
func (c *Client) TrackByID(ctx context.Context, id string) (domain.CatalogTrack, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.CatalogTrack{}, fmt.Errorf("spotify adapter: empty track id: %w", domain.ErrNotFound)
	}

	var tr spotifyTrack
	if err := c.getJSON(ctx, "tracks/"+url.PathEscape(id), nil, &tr); err != nil {
		return domain.CatalogTrack{}, err
	}
	if tr.ID == "" {
		return domain.CatalogTrack{}, fmt.Errorf("spotify adapter: track %s: %w", id, domain.ErrNotFound)
	}
	return mapTrackToDomain(tr), nil
}

// CurrentlyPlaying returns the caller's playing track, or nil when nothing (or an
// episode) is playing.
func (c *Client) CurrentlyPlaying(ctx context.Context) (*domain.CatalogTrack, error) {
	var body currentlyPlayingResponse
	err := c.getJSON(ctx, "me/player/currently-playing", nil, &body)
	if errors.Is(err, errNoContent) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if body.Item == nil || body.Item.ID == "" {
		return nil, nil
	}
	if body.CurrentlyPlayingType != "" && body.CurrentlyPlayingType != "track" {
		return nil, nil
	}

	t := mapTrackToDomain(*body.Item)
	return &t, nil
}
