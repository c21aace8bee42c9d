package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/eventhub/internal/model"
	"github.com/Shivanand-hulikatti/eventhub/internal/service"
)

// IdempotencyKeyHeader carries the client's retry key on booking requests.
const IdempotencyKeyHeader = "Idempotency-Key"

// BookingHandler serves booking creation, listing and cancellation.
type BookingHandler struct {
	svc    *service.BookingService
	logger *slog.Logger
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(svc *service.BookingService, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, logger: logger}
}

// CreateBooking handles POST /api/bookings
// Responds 201 with the new booking and the remaining seats, or 200 when an
// Idempotency-Key matched an earlier booking.
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req model.CreateBookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req.IdempotencyKey = r.Header.Get(IdempotencyKeyHeader)

	res, err := h.svc.CreateBooking(r.Context(), session(r), req)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

// MyBookings handles GET /api/bookings/my
func (h *BookingHandler) MyBookings(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListMyBookings(r.Context(), session(r))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// CancelBooking handles DELETE /api/bookings/{id}
func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.CancelBooking(r.Context(), session(r), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
