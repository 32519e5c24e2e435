package spotify

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/ewilliams-labs/fetchify/internal/core/domain"
	"github.com/ewilliams-labs/fetchify/internal/core/ports"
)

const maxSeedGenres = 5

// Recommendations asks the catalog for tracks seeded by genre and tuned toward targets.
// Seeds beyond five are dropped; no seed falls back to pop.
func (c *Client) Recommendations(ctx context.Context, req ports.CatalogRecommendationRequest) ([]domain.CatalogTrack, error) {
	seeds := make([]string, 0, maxSeedGenres)
	for _, g := range req.SeedGenres {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		seeds = append(seeds, g)
		if len(seeds) == maxSeedGenres {
			break
		}
	}
	if len(seeds) == 0 {
		seeds = append(seeds, string(domain.DefaultGenre))
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("market", c.market)
	query.Set("seed_genres", strings.Join(seeds, ","))
	setTarget(query, "danceability", req.Target.Danceability)
	setTarget(query, "energy", req.Target.Energy)
	setTarget(query, "valence", req.Target.Valence)
	setTarget(query, "tempo", req.Target.Tempo)

	var body recommendationsResponse
	if err := c.getJSON(ctx, "recommendations", query, &body); err != nil {
		return nil, err
	}
	return mapTracks(body.Tracks), nil
}

func setTarget(q url.Values, name string, v *float64) {
	if v == nil {
		return
	}
	q.Set("target_"+name, strconv.FormatFloat(*v, 'f', -1, 64))
}
