package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// ErrorResponse writes a standard JSON error response including request ID.
func ErrorResponse(w http.ResponseWriter, r *http.Request, status int, message string) {
	reqID := middleware.GetReqID(r.Context())
	resp := map[string]interface{}{
		"success":    false,
		"error":      message,
		"request_id": reqID,
	}
	WriteJSONResponse(w, r, status, resp)
}

// WriteJSONResponse encodes the data to JSON and writes the response header and body.
func WriteJSONResponse(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}

	js, err := json.Marshal(data)
	if err != nil {
		reqID := middleware.GetReqID(r.Context())
		slog.ErrorContext(r.Context(), "Failed to marshal JSON response",
			slog.Any("error", err),
			slog.String("request_id", reqID),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err = w.Write(js); err != nil {
		slog.ErrorContext(r.Context(), "Failed to write response body", slog.Any("error", err))
	}
}

// DecodeJSONBody reads and decodes a JSON request body safely.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	maxBytes := 1_048_576
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
