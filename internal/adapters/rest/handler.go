// Package rest is the HTTP interface of the recommendation engine.
package rest

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ewilliams-labs/fetchify/internal/core/domain"
	"github.com/ewilliams-labs/fetchify/internal/core/ports"
	"github.com/ewilliams-labs/fetchify/internal/core/services"
	"github.com/ewilliams-labs/fetchify/internal/logging"
	"github.com/ewilliams-labs/fetchify/internal/metrics"
	"github.com/ewilliams-labs/fetchify/internal/worker"
)

// CorrelationHeader carries the request correlation id in and out.
const CorrelationHeader = "X-Correlation-ID"

// Recommender runs one recommendation request.
type Recommender interface {
	Recommend(ctx context.Context, catalog ports.CatalogProvider, q domain.Query) (domain.Result, error)
}

// Analyzer produces the analysis view of one catalog track.
type Analyzer interface {
	Analyze(ctx context.Context, catalog ports.CatalogProvider, trackID string) (services.Analysis, error)
}

// JobQueue runs recommendations in the background.
type JobQueue interface {
	Submit(job worker.Job) (string, error)
	Get(id string) (worker.Snapshot, error)
	Cancel(id string) (worker.Snapshot, error)
}

// Deps are the handler's collaborators. Jobs and Analyzer may be nil, which disables
// their routes with 501.
type Deps struct {
	Recommender Recommender
	Analyzer    Analyzer
	Jobs        JobQueue
	Catalogs    ports.CatalogFactory
}

// Handler manages the HTTP interface for our application.
type Handler struct {
	deps     Deps
	validate *validator.Validate
	router   *http.ServeMux
}

// NewHandler initializes the HTTP adapter and sets up routes.
func NewHandler(deps Deps) *Handler {
	h := &Handler{
		deps:     deps,
		validate: validator.New(),
		router:   http.NewServeMux(),
	}
	h.routes()
	return h
}

// ServeHTTP satisfies the http.Handler interface. Every request gets a correlation id
// and is counted by route and status class.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(CorrelationHeader)
	if id == "" {
		id = logging.GenerateCorrelationID()
	}
	w.Header().Set(CorrelationHeader, id)
	r = r.WithContext(logging.ContextWithCorrelationID(r.Context(), id))

	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	h.router.ServeHTTP(sw, r)

	route := r.Pattern
	if route == "" {
		route = "unmatched"
	}
	metrics.HTTPRequests.WithLabelValues(route, fmt.Sprintf("%dxx", sw.status/100)).Inc()
}

func (h *Handler) routes() {
	h.router.HandleFunc("GET /health", h.HealthCheck)
	h.router.Handle("GET /metrics", promhttp.Handler())

	h.router.HandleFunc("POST /recommendations", h.Recommend)
	h.router.HandleFunc("POST /recommendations/jobs", h.SubmitJob)
	h.router.HandleFunc("GET /recommendations/jobs/{id}", h.GetJob)
	h.router.HandleFunc("DELETE /recommendations/jobs/{id}", h.CancelJob)

	h.router.HandleFunc("GET /tracks/{id}/analysis", h.AnalyzeTrack)
}

// HealthCheck is a simple endpoint to verify the API is running.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "fetchify"})
}

// catalog builds the caller's catalog client from the Authorization header.
func (h *Handler) catalog(r *http.Request) (ports.CatalogProvider, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return nil, domain.ErrMissingToken
	}
	return h.deps.Catalogs(strings.TrimSpace(token)), nil
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
