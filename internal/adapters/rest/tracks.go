package rest

import (
	"net/http"
	"strings"
)

// AnalyzeTrack handles GET /tracks/{id}/analysis.
func (h *Handler) AnalyzeTrack(w http.ResponseWriter, r *http.Request) {
	if h.deps.Analyzer == nil {
		writeError(w, http.StatusNotImplemented, "analysis not configured")
		return
	}

	trackID := strings.TrimSpace(r.PathValue("id"))
	if trackID == "" {
		writeError(w, http.StatusBadRequest, "track id is required")
		return
	}

	catalog, err := h.catalog(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	analysis, err := h.deps.Analyzer.Analyze(r.Context(), catalog, trackID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}
