package handler

// Response helpers shared by all handlers.
//
// Success bodies use the envelope the browser client expects:
//
//	{"message": "success", "data": ...}
//
// Failure bodies are always {"error": "<human message>"}, whatever the
// status code. The mapping from domain errors to status codes lives in
// writeError and nowhere else, so the services stay HTTP-agnostic:
//
//	validation        → 400, field names in the message
//	upstream failure  → 400, gateway message verbatim
//	unauthenticated   → 401
//	not found         → 404 (covers "exists but not yours" on purpose —
//	                    the two cases must be indistinguishable)
//	anything else     → 500, generic message; the cause is only logged

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/refr-io/refr/internal/apperror"
)

// errorResponse is the single failure shape returned by the API.
type errorResponse struct {
	Error string `json:"error"`
}

// envelope is the success shape for endpoints returning data.
type envelope struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, apperror.ErrValidation),
			errors.Is(err, apperror.ErrUpstream):
			status = http.StatusBadRequest
		case errors.Is(err, apperror.ErrUnauthenticated):
			status = http.StatusUnauthorized
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
		}
		writeJSON(w, status, errorResponse{Error: appErr.Message})
		return
	}

	// Unknown error: a store or encoding failure. Never leak the cause —
	// it may contain SQL or file paths. Handlers log the details.
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Database error"})
}
