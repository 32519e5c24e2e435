package rest

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ewilliams-labs/fetchify/internal/core/domain"
	"github.com/ewilliams-labs/fetchify/internal/core/services"
	"github.com/ewilliams-labs/fetchify/internal/logging"
	"github.com/ewilliams-labs/fetchify/internal/worker"
)

// recommendRequest is what the client sends to both the sync and the job endpoint.
// Without mode, a target or genres select custom mode and anything else track mode.
type recommendRequest struct {
	Mode    string         `json:"mode" validate:"omitempty,oneof=track_similarity custom_target"`
	TrackID string         `json:"track_id" validate:"max=64"`
	Target  *domain.Target `json:"target" validate:"-"`
	Genres  []string       `json:"genres" validate:"max=5,dive,required,max=64"`
	Limit   int            `json:"limit" validate:"gte=0,lte=50"`
}

func (req recommendRequest) query() domain.Query {
	q := domain.Query{
		Mode:       domain.Mode(req.Mode),
		TrackID:    strings.TrimSpace(req.TrackID),
		GenreSeeds: req.Genres,
		Limit:      req.Limit,
	}
	if req.Target != nil {
		q.Target = *req.Target
	}
	q.Mode = services.ModeFor(q)
	return q
}

type jobAccepted struct {
	ID     string        `json:"id"`
	Status worker.Status `json:"status"`
}

// parseRecommend decodes and validates the body. It writes the error response itself
// and reports false on failure.
func (h *Handler) parseRecommend(w http.ResponseWriter, r *http.Request) (domain.Query, bool) {
	if !isJSONContentType(r) {
		writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return domain.Query{}, false
	}

	var req recommendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorWithCode(w, http.StatusBadRequest, "Invalid request body", errCodeInvalidRequest)
		return domain.Query{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		writeErrorWithCode(w, http.StatusBadRequest, err.Error(), errCodeInvalidRequest)
		return domain.Query{}, false
	}
	if req.Target != nil {
		if err := h.validate.Struct(req.Target); err != nil {
			writeErrorWithCode(w, http.StatusBadRequest, err.Error(), errCodeInvalidTarget)
			return domain.Query{}, false
		}
	}
	return req.query(), true
}

// Recommend handles POST /recommendations and answers when the engine is done.
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.catalog(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	q, ok := h.parseRecommend(w, r)
	if !ok {
		return
	}

	res, err := h.deps.Recommender.Recommend(r.Context(), catalog, q)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// SubmitJob handles POST /recommendations/jobs.
func (h *Handler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	if h.deps.Jobs == nil {
		writeError(w, http.StatusNotImplemented, "async jobs not configured")
		return
	}
	catalog, err := h.catalog(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	q, ok := h.parseRecommend(w, r)
	if !ok {
		return
	}

	id, err := h.deps.Jobs.Submit(worker.Job{
		Catalog:       catalog,
		Query:         q,
		CorrelationID: logging.CorrelationIDFromContext(r.Context()),
	})
	switch {
	case errors.Is(err, worker.ErrQueueFull):
		w.Header().Set("Retry-After", "5")
		writeErrorWithCode(w, http.StatusServiceUnavailable, "job queue full", errCodeQueueFull)
		return
	case err != nil:
		writeErrorWithCode(w, http.StatusServiceUnavailable, err.Error(), errCodeUnavailable)
		return
	}

	w.Header().Set("Location", "/recommendations/jobs/"+id)
	writeJSON(w, http.StatusAccepted, jobAccepted{ID: id, Status: worker.StatusQueued})
}

// GetJob handles GET /recommendations/jobs/{id}.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	h.jobAction(w, r, func(id string) (worker.Snapshot, error) { return h.deps.Jobs.Get(id) })
}

// CancelJob handles DELETE /recommendations/jobs/{id}.
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	h.jobAction(w, r, func(id string) (worker.Snapshot, error) { return h.deps.Jobs.Cancel(id) })
}

func (h *Handler) jobAction(w http.ResponseWriter, r *http.Request, fn func(id string) (worker.Snapshot, error)) {
	if h.deps.Jobs == nil {
		writeError(w, http.StatusNotImplemented, "async jobs not configured")
		return
	}
	snap, err := fn(r.PathValue("id"))
	if errors.Is(err, worker.ErrUnknownJob) {
		writeErrorWithCode(w, http.StatusNotFound, "job not found", errCodeNotFound)
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
