package server

import (
	"context"
	"net/http"
	"strconv"

	"common-addresses/internal/db"
	"common-addresses/internal/finder"
	"common-addresses/internal/logging"
)

// RunHistory stores and lists find-common run summaries.
type RunHistory interface {
	finder.Recorder
	Recent(ctx context.Context, limit int) ([]db.Run, error)
	Ping(ctx context.Context) error
}

// handleRuns serves GET /api/runs?limit=N.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	if s.runs == nil {
		writeError(w, http.StatusNotFound, errorBody{
			Error:   "Not found",
			Message: "Run history is disabled",
		})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, errorBody{
				Error:   "Bad request",
				Message: "limit must be a positive integer",
			})
			return
		}
		limit = n
	}

	runs, err := s.runs.Recent(r.Context(), db.ClampLimit(limit))
	if err != nil {
		logging.Error("runs_query_failed", logging.Fields{
			"request_id": logging.RequestID(r.Context()),
		}, err)
		s.internalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(runs),
		"runs":  runs,
	})
}
