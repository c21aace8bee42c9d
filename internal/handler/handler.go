// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Shivanand-hulikatti/eventhub/internal/apperr"
	"github.com/Shivanand-hulikatti/eventhub/internal/auth"
	"github.com/Shivanand-hulikatti/eventhub/internal/model"
)

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

// writeAppError maps a service error to its status and payload. Messages of
// infrastructure failures are replaced by a generic one and logged.
func writeAppError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	kind := apperr.KindOf(err)
	status := kind.HTTPStatus()

	if !kind.Public() {
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("kind", string(kind)),
			slog.Any("error", err))
		msg := "internal server error"
		if kind == apperr.KindUnavailable {
			msg = "service temporarily unavailable, please retry"
		}
		writeError(w, status, msg)
		return
	}

	var appErr *apperr.Error
	errors.As(err, &appErr)
	resp := model.ErrorResponse{Error: appErr.Message}
	resp.AvailableSeats = metadataInt(appErr.Metadata, "available_seats")
	resp.BookingsCount = metadataInt(appErr.Metadata, "bookings_count")
	writeJSON(w, status, resp)
}

func metadataInt(m map[string]any, key string) *int {
	switch v := m[key].(type) {
	case int:
		return &v
	case int32:
		n := int(v)
		return &n
	case int64:
		n := int(v)
		return &n
	}
	return nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// session returns the caller's session. Routes that need one sit behind
// RequireAuth, so a missing session yields the zero value and the service
// rejects it.
func session(r *http.Request) auth.Session {
	s, _ := auth.FromContext(r.Context())
	return s
}

// ─── Health check ─────────────────────────────────────────────────────────────

// Pinger reports whether the storage backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck handles GET /health
func HealthCheck(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
