package ports

import (
	"context"
	"errors"
	"fmt"

	"github.com/ewilliams-labs/fetchify/internal/core/domain"
)

// ErrNoConfidentMatch indicates search results did not meet the confidence threshold.
var ErrNoConfidentMatch = errors.New("no confident match")

// NoConfidentMatchError provides context for a failed track match.
type NoConfidentMatchError struct {
	Title  string
	Artist string
}

func (e NoConfidentMatchError) Error() string {
	if e.Title == "" && e.Artist == "" {
		return ErrNoConfidentMatch.Error()
	}
	return fmt.Sprintf("no confident match found for title %q artist %q", e.Title, e.Artist)
}

func (e NoConfidentMatchError) Is(target error) bool {
	return target == ErrNoConfidentMatch || target == domain.ErrNotFound
}

// CatalogRecommendationRequest asks the catalog for seeded recommendations.
type CatalogRecommendationRequest struct {
	SeedGenres []string
	Target     domain.Target
	Limit      int
}

// CatalogProvider is the streaming catalog, bound to one caller's credentials.
type CatalogProvider interface {
	TrackByID(ctx context.Context, id string) (domain.CatalogTrack, error)
	// CurrentlyPlaying returns nil when nothing is playing.
	CurrentlyPlaying(ctx context.Context) (*domain.CatalogTrack, error)
	SearchByISRC(ctx context.Context, isrc string) (domain.CatalogTrack, error)
	SearchByTitleArtist(ctx context.Context, title, artist string) (domain.CatalogTrack, error)
	SearchByGenre(ctx context.Context, genre string, limit int) ([]domain.CatalogTrack, error)
	SearchText(ctx context.Context, query string, limit int) ([]domain.CatalogTrack, error)
	Recommendations(ctx context.Context, req CatalogRecommendationRequest) ([]domain.CatalogTrack, error)
}

// CatalogFactory builds a catalog client for a caller's bearer token.
type CatalogFactory func(token string) CatalogProvider
