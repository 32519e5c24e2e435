package rest

import (
	"context"
	"errors"
	"mime"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/ewilliams-labs/fetchify/internal/core/domain"
	"github.com/ewilliams-labs/fetchify/internal/core/ports"
	"github.com/ewilliams-labs/fetchify/internal/logging"
)

const maxRequestBytes = 1 << 20

// Error codes returned in the "code" field.
const (
	errCodeInvalidRequest   = "INVALID_REQUEST"
	errCodeMissingToken     = "MISSING_TOKEN"
	errCodeInvalidTarget    = "INVALID_TARGET"
	errCodeNotFound         = "NOT_FOUND"
	errCodeNoISRC           = "NO_ISRC"
	errCodeNoGraphID        = "NO_GRAPH_ID"
	errCodeNoFeatures       = "NO_FEATURES"
	errCodeNoConfidentMatch = "NO_CONFIDENT_MATCH"
	errCodeRateLimited      = "RATE_LIMITED"
	errCodeUpstream         = "UPSTREAM_ERROR"
	errCodeUnavailable      = "UNAVAILABLE"
	errCodeQueueFull        = "QUEUE_FULL"
	errCodeTimeout          = "TIMEOUT"
	errCodeInternal         = "INTERNAL"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeErrorWithCode(w http.ResponseWriter, status int, msg, code string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

func isJSONContentType(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeServiceError maps engine and adapter errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var statusErr *ports.StatusError
	switch {
	case errors.Is(err, domain.ErrMissingToken):
		writeErrorWithCode(w, http.StatusUnauthorized, "bearer token required", errCodeMissingToken)
	case errors.Is(err, domain.ErrInvalidTarget):
		writeErrorWithCode(w, http.StatusBadRequest, err.Error(), errCodeInvalidTarget)
	case errors.Is(err, domain.ErrNoISRC):
		writeErrorWithCode(w, http.StatusUnprocessableEntity, "track has no ISRC", errCodeNoISRC)
	case errors.Is(err, domain.ErrNoGraphID):
		writeErrorWithCode(w, http.StatusUnprocessableEntity, "no music-graph recording for this track", errCodeNoGraphID)
	case errors.Is(err, domain.ErrNoFeatures):
		writeErrorWithCode(w, http.StatusUnprocessableEntity, "no acoustic descriptors for this track", errCodeNoFeatures)
	case errors.Is(err, ports.ErrNoConfidentMatch):
		writeErrorWithCode(w, http.StatusUnprocessableEntity, err.Error(), errCodeNoConfidentMatch)
	case errors.Is(err, domain.ErrNotFound):
		writeErrorWithCode(w, http.StatusNotFound, "not found", errCodeNotFound)
	case errors.Is(err, domain.ErrRateLimited):
		w.Header().Set("Retry-After", "5")
		writeErrorWithCode(w, http.StatusTooManyRequests, "upstream rate limit", errCodeRateLimited)
	case errors.Is(err, domain.ErrProviderUnavailable):
		writeErrorWithCode(w, http.StatusServiceUnavailable, "upstream provider unavailable", errCodeUnavailable)
	case errors.As(err, &statusErr):
		writeErrorWithCode(w, http.StatusBadGateway, statusErr.Error(), errCodeUpstream)
	case errors.Is(err, context.DeadlineExceeded):
		writeErrorWithCode(w, http.StatusGatewayTimeout, "request timed out", errCodeTimeout)
	case errors.Is(err, context.Canceled):
		// client went away; nobody reads this
		logging.Ctx(r.Context()).Debug().Msg("request canceled")
	default:
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeErrorWithCode(w, http.StatusInternalServerError, "internal error", errCodeInternal)
	}
}
