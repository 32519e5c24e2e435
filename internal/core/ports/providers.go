package ports

import (
	"context"
	"fmt"

	"github.com/ewilliams-labs/fetchify/internal/core/domain"
)

// StatusError reports a non-2xx, non-429 provider response.
type StatusError struct {
	Provider   string
	Endpoint   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s returned status %d", e.Provider, e.Endpoint, e.StatusCode)
}

// GraphProvider is the open music-metadata graph.
type GraphProvider interface {
	SearchRecordingsByISRC(ctx context.Context, isrc string) ([]domain.Recording, error)
	LookupRecording(ctx context.Context, graphID string) (domain.Recording, error)
}

// AcousticProvider serves per-recording acoustic descriptors and neighbour pools.
// Unknown recordings yield domain.ErrNotFound.
type AcousticProvider interface {
	HighLevel(ctx context.Context, graphID string) (*domain.HighLevel, error)
	LowLevel(ctx context.Context, graphID string) (*domain.LowLevel, error)
	SimilarRecordings(ctx context.Context, graphID string, n int) ([]domain.Neighbour, error)
}

// FeatureCache stores extracted feature vectors by graph id. Get returns
// domain.ErrNotFound on a miss.
type FeatureCache interface {
	Get(ctx context.Context, graphID string) (*domain.TrackFeatureVector, error)
	Put(ctx context.Context, v domain.TrackFeatureVector) error
}

// LoudnessProbe measures the average loudness of an audio preview in dBFS.
type LoudnessProbe interface {
	Loudness(ctx context.Context, previewURL string) (float64, error)
}
