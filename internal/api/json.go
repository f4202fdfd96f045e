package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/karta-graph/karta/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// errStatus maps the error taxonomy onto HTTP statuses. Unclassified
// errors count as internal.
func errStatus(err error) int {
	switch apperr.Kind(err) {
	case apperr.ErrNotFound:
		return http.StatusNotFound
	case apperr.ErrAlreadyExists:
		return http.StatusConflict
	case apperr.ErrRejected, apperr.ErrInvariant:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the mapped status with the error's message, logging
// internal failures.
func respondError(w http.ResponseWriter, op string, err error) {
	status := errStatus(err)
	if status == http.StatusInternalServerError {
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, status, errorBody("internal error"))
		return
	}
	writeJSON(w, status, errorBody(err.Error()))
}

// worstStatus folds a batch item error into the running response status:
// the highest mapped status across items wins, 200 when every item is ok.
func worstStatus(status int, err error) int {
	if err == nil {
		return status
	}
	if s := errStatus(err); s > status {
		return s
	}
	return status
}
