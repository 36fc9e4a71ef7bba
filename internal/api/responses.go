package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// errorResponse is the JSON error envelope returned by every handler.
type errorResponse struct {
	Error string `json:"error"`
}

// RespondJSON writes payload as JSON with the given status code.
func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// RespondError writes the standard error envelope.
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, errorResponse{Error: message})
}
