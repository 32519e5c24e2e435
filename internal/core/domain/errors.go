package domain

import "errors"

var (
	// ErrNotFound is returned when a provider or cache has no record for the requested id.
	ErrNotFound = errors.New("domain: not found")

	// ErrNoISRC means the catalog track carries no industry recording code.
	ErrNoISRC = errors.New("domain: no ISRC for track")

	// ErrNoGraphID means the music graph has no recording for an ISRC.
	ErrNoGraphID = errors.New("domain: no graph id for ISRC")

	// ErrNoFeatures means the acoustic provider has no descriptors for a recording.
	ErrNoFeatures = errors.New("domain: no acoustic features for recording")

	// ErrRateLimited is returned once the retry policy gives up on HTTP 429 responses.
	ErrRateLimited = errors.New("domain: rate limited")

	// ErrProviderUnavailable is returned while a provider circuit breaker is open.
	ErrProviderUnavailable = errors.New("domain: provider unavailable")

	// ErrMissingToken is returned when no catalog bearer token is available for a request.
	ErrMissingToken = errors.New("domain: missing catalog token")

	// ErrInvalidTarget rejects custom targets outside their allowed ranges.
	ErrInvalidTarget = errors.New("domain: invalid custom target")
)
