package spotify

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ewilliams-labs/fetchify/internal/core/domain"
	"github.com/ewilliams-labs/fetchify/internal/core/ports"
	"github.com/ewilliams-labs/fetchify/internal/logging"
)

const (
	titleArtistSearchLimit = 5
	maxSearchLimit         = 50
)

// SearchByISRC returns the top catalog hit for an ISRC.
func (c *Client) SearchByISRC(ctx context.Context, isrc string) (domain.CatalogTrack, error) {
	isrc = strings.TrimSpace(isrc)
	if isrc == "" {
		return domain.CatalogTrack{}, fmt.Errorf("spotify adapter: %w", domain.ErrNoISRC)
	}

	tracks, err := c.search(ctx, "isrc:"+isrc, 1, "")
	if err != nil {
		return domain.CatalogTrack{}, err
	}
	if len(tracks) == 0 {
		return domain.CatalogTrack{}, fmt.Errorf("spotify adapter: isrc %s: %w", isrc, domain.ErrNotFound)
	}
	return tracks[0], nil
}

// SearchByTitleArtist runs a quoted field search and keeps the best hit that clears the
// title and artist similarity thresholds.
func (c *Client) SearchByTitleArtist(ctx context.Context, title, artist string) (domain.CatalogTrack, error) {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(artist) == "" {
		return domain.CatalogTrack{}, fmt.Errorf("spotify adapter: %w", &ports.NoConfidentMatchError{Title: title, Artist: artist})
	}

	normalizedTitle, normalizedArtist := normalizeTitleArtist(title, artist)
	queryTitle := fallbackIfEmpty(normalizedTitle, title)
	queryArtist := fallbackIfEmpty(normalizedArtist, artist)
	q := fmt.Sprintf("track:%q artist:%q", queryTitle, queryArtist)

	tracks, err := c.search(ctx, q, titleArtistSearchLimit, "")
	if err != nil {
		return domain.CatalogTrack{}, err
	}

	bestScore := 0.0
	bestIndex := -1
	for i, candidate := range tracks {
		score, ok := trackMatchScore(title, artist, candidate)
		logging.Ctx(ctx).Debug().
			Str("candidate", candidate.PrimaryArtist()+" - "+candidate.Title).
			Float64("score", score).
			Msg("spotify match")
		if ok && score > bestScore {
			bestScore = score
			bestIndex = i
		}
	}

	if bestIndex == -1 {
		return domain.CatalogTrack{}, fmt.Errorf("spotify adapter: %w", &ports.NoConfidentMatchError{Title: title, Artist: artist})
	}
	return tracks[bestIndex], nil
}

// SearchByGenre searches tracks tagged with a genre.
func (c *Client) SearchByGenre(ctx context.Context, genre string, limit int) ([]domain.CatalogTrack, error) {
	genre = strings.TrimSpace(genre)
	if genre == "" {
		return nil, nil
	}
	return c.search(ctx, "genre:"+genre, limit, c.market)
}

// SearchText runs a free-text track search.
func (c *Client) SearchText(ctx context.Context, query string, limit int) ([]domain.CatalogTrack, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	return c.search(ctx, query, limit, c.market)
}

func (c *Client) search(ctx context.Context, q string, limit int, market string) ([]domain.CatalogTrack, error) {
	if limit <= 0 || limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	query := url.Values{}
	query.Set("q", q)
	query.Set("type", "track")
	query.Set("limit", strconv.Itoa(limit))
	if market != "" {
		query.Set("market", market)
	}

	var body searchResponse
	if err := c.getJSON(ctx, "search", query, &body); err != nil {
		return nil, err
	}
	return mapTracks(body.Tracks.Items), nil
}
