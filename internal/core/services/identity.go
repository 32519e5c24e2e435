package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ewilliams-labs/fetchify/internal/core/domain"
	"github.com/ewilliams-labs/fetchify/internal/core/ports"
	"github.com/ewilliams-labs/fetchify/internal/logging"
)

// MatchPath records how a graph recording was bridged to a catalog track.
type MatchPath string

const (
	// MatchISRC is an exact identity bridge.
	MatchISRC MatchPath = "isrc"
	// MatchTitleArtist is a best-effort text search and may pick the wrong track.
	MatchTitleArtist MatchPath = "title_artist"
)

// CatalogMatch is a catalog track resolved from a graph id.
type CatalogMatch struct {
	Track domain.CatalogTrack
	Path  MatchPath
}

// IdentityResolver maps between catalog ids, ISRCs and graph ids.
type IdentityResolver struct {
	graph ports.GraphProvider
}

// NewIdentityResolver constructs an IdentityResolver.
func NewIdentityResolver(graph ports.GraphProvider) *IdentityResolver {
	return &IdentityResolver{graph: graph}
}

// ResolveGraphID returns the first recording id carrying isrc, or "" when the graph has
// none. Transport and HTTP failures are returned as errors.
func (r *IdentityResolver) ResolveGraphID(ctx context.Context, isrc string) (string, error) {
	isrc = strings.TrimSpace(isrc)
	if isrc == "" {
		return "", nil
	}

	recs, err := r.graph.SearchRecordingsByISRC(ctx, isrc)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("service: resolve graph id for %s: %w", isrc, err)
	}
	for _, rec := range recs {
		if rec.ID != "" {
			return rec.ID, nil
		}
	}
	logging.Ctx(ctx).Info().Str("isrc", isrc).Msg("no graph recording for isrc")
	return "", nil
}

// ResolveCatalogTrack bridges a graph recording to the catalog. The ISRC search is tried
// first; the title and artist search runs only when that path yields nothing. It returns
// nil when graphID is empty or neither path finds a track.
func (r *IdentityResolver) ResolveCatalogTrack(ctx context.Context, catalog ports.CatalogProvider, graphID string) (*CatalogMatch, error) {
	if strings.TrimSpace(graphID) == "" {
		return nil, nil
	}

	rec, err := r.graph.LookupRecording(ctx, graphID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("service: lookup recording %s: %w", graphID, err)
	}

	if isrc := rec.FirstISRC(); isrc != "" {
		track, err := catalog.SearchByISRC(ctx, isrc)
		switch {
		case err == nil:
			return &CatalogMatch{Track: track, Path: MatchISRC}, nil
		case !isMiss(err):
			return nil, fmt.Errorf("service: catalog isrc search %s: %w", isrc, err)
		}
		logging.Ctx(ctx).Debug().Str("graph_id", graphID).Str("isrc", isrc).Msg("isrc not in catalog, trying title search")
	}

	title, artist := rec.Title, rec.FirstArtist()
	if title == "" || artist == "" {
		return nil, nil
	}
	return r.searchTitleArtist(ctx, catalog, title, artist)
}

// ResolveByMetadata finds a catalog track from a known title and artist.
func (r *IdentityResolver) ResolveByMetadata(ctx context.Context, catalog ports.CatalogProvider, title, artist string) (*CatalogMatch, error) {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(artist) == "" {
		return nil, nil
	}
	return r.searchTitleArtist(ctx, catalog, title, artist)
}

func (r *IdentityResolver) searchTitleArtist(ctx context.Context, catalog ports.CatalogProvider, title, artist string) (*CatalogMatch, error) {
	track, err := catalog.SearchByTitleArtist(ctx, title, artist)
	if err != nil {
		if isMiss(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("service: catalog title search: %w", err)
	}
	return &CatalogMatch{Track: track, Path: MatchTitleArtist}, nil
}

// ResolveTrack walks catalog id -> ISRC -> graph id. known, when non-nil and matching
// trackID, saves the catalog lookup. Misses surface as domain.ErrNoISRC or
// domain.ErrNoGraphID.
func (r *IdentityResolver) ResolveTrack(ctx context.Context, catalog ports.CatalogProvider, trackID string, known *domain.CatalogTrack) (domain.CatalogTrack, domain.IdentityTriple, error) {
	var track domain.CatalogTrack
	if known != nil && known.ID == trackID && known.ISRC != "" {
		track = *known
	} else {
		t, err := catalog.TrackByID(ctx, trackID)
		if err != nil {
			return domain.CatalogTrack{}, domain.IdentityTriple{}, fmt.Errorf("service: fetch catalog track %s: %w", trackID, err)
		}
		track = t
	}

	triple := domain.IdentityTriple{CatalogID: track.ID, ISRC: strings.TrimSpace(track.ISRC)}
	if triple.ISRC == "" {
		return track, triple, domain.ErrNoISRC
	}

	graphID, err := r.ResolveGraphID(ctx, triple.ISRC)
	if err != nil {
		return track, triple, err
	}
	if graphID == "" {
		return track, triple, domain.ErrNoGraphID
	}
	triple.GraphID = graphID
	return track, triple, nil
}

// isMiss reports errors that mean "no such thing" rather than a failure.
func isMiss(err error) bool {
	return errors.Is(err, domain.ErrNotFound) || errors.Is(err, ports.ErrNoConfidentMatch) || errors.Is(err, domain.ErrNoISRC)
}
