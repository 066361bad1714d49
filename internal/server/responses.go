package server

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// errorBody is the JSON shape of every error response. Message and Details
// are mutually exclusive in practice.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details string `json:"details,omitempty"`
}

// findCommonResp is the success body of POST /api/find-common.
type findCommonResp struct {
	Success         bool     `json:"success"`
	Count           int      `json:"count"`
	CommonAddresses []string `json:"commonAddresses"`
}

const genericInternalMessage = "An unexpected error occurred"

var (
	errInsufficientFiles = errorBody{
		Error:   "Please upload at least 2 files",
		Message: "Insufficient files uploaded",
	}
	errInvalidFiles = errorBody{
		Error:   "Invalid or improperly formatted files",
		Details: "Ensure files contain valid data and are either text files or JSON arrays",
	}
	errNotFound = errorBody{
		Error:   "Not found",
		Message: "The requested resource was not found",
	}
)

// tooManyFiles reports the upload bound the finder enforces.
func tooManyFiles(maxFiles int) errorBody {
	return errorBody{
		Error:   "Too many files",
		Message: fmt.Sprintf("At most %d files may be uploaded", maxFiles),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, body errorBody) {
	writeJSON(w, status, body)
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	writeError(w, http.StatusMethodNotAllowed, errorBody{
		Error:   "Method not allowed",
		Message: "Use " + allow + " for this endpoint",
	})
}

// internalError hides err from clients in production.
func (s *Server) internalError(w http.ResponseWriter, err error) {
	msg := genericInternalMessage
	if !s.cfg.Production() && err != nil {
		msg = err.Error()
	}
	writeError(w, http.StatusInternalServerError, errorBody{
		Error:   "Internal server error",
		Message: msg,
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, errNotFound)
}
