package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ms-reservation/internal/booking"
	"ms-reservation/internal/inventory"
	"ms-reservation/internal/logger"
	"ms-reservation/internal/models"
	"ms-reservation/internal/pricing"
	"ms-reservation/internal/route"
	"ms-reservation/internal/ticket"
	"ms-reservation/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Booking   *booking.Service
	Inventory booking.InventoryStore
	Tickets   *ticket.Generator
	Logger    *logger.Logger
}

func NewHandler(svc *booking.Service, inv booking.InventoryStore, tickets *ticket.Generator, log *logger.Logger) *Handler {
	return &Handler{
		Booking:   svc,
		Inventory: inv,
		Tickets:   tickets,
		Logger:    log,
	}
}

// bookingRequestBody is the wire form of a booking request. The journey
// date travels as YYYY-MM-DD.
type bookingRequestBody struct {
	TrainID            string                  `json:"train_id"`
	JourneyDate        string                  `json:"journey_date"`
	SourceStation      string                  `json:"source_station"`
	DestinationStation string                  `json:"destination_station"`
	QuotaID            int64                   `json:"quota_id,omitempty"`
	Passengers         []models.PassengerInput `json:"passengers"`
}

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var body bookingRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateBooking: failed to decode request body: %v", err))
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	journeyDate, err := time.Parse("2006-01-02", body.JourneyDate)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid journey_date, expected YYYY-MM-DD", err)
		return
	}

	req := &models.BookingRequest{
		TrainID:            body.TrainID,
		JourneyDate:        journeyDate,
		SourceStation:      body.SourceStation,
		DestinationStation: body.DestinationStation,
		QuotaID:            body.QuotaID,
		Passengers:         body.Passengers,
	}

	result, err := h.Booking.BookTicket(r.Context(), req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateBooking: booking failed: %v", err))
		h.writeError(w, statusForError(err), "Booking failed", err)
		return
	}

	h.Logger.Info("API", fmt.Sprintf("CreateBooking: booked %s with status %s", result.PNR, result.Status))
	h.writeJSON(w, http.StatusCreated, utils.SuccessResponse("Booking created", result))
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	pnr := chi.URLParam(r, "pnr")

	res, passengers, err := h.Booking.GetBooking(r.Context(), pnr)
	if err != nil {
		h.writeError(w, statusForError(err), "Booking lookup failed", err)
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Booking found", map[string]interface{}{
		"reservation": res,
		"passengers":  passengers,
	}))
}

func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	pnr := chi.URLParam(r, "pnr")
	h.Logger.Info("API", fmt.Sprintf("CancelBooking: pnr=%s", pnr))

	result, err := h.Booking.CancelTicket(r.Context(), pnr)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CancelBooking: failed: %v", err))
		h.writeError(w, statusForError(err), "Cancellation failed", err)
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Booking cancelled", result))
}

// GetTicket serves the printable ticket, or the QR image with ?format=qr.
func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	pnr := chi.URLParam(r, "pnr")

	details, err := h.Booking.GetBookingDetails(r.Context(), pnr)
	if err != nil {
		h.writeError(w, statusForError(err), "Ticket lookup failed", err)
		return
	}

	if r.URL.Query().Get("format") == "qr" {
		qrBytes, err := h.Tickets.RenderQR(details)
		if err != nil {
			h.writeError(w, http.StatusInternalServerError, "QR generation failed", err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(qrBytes)
		return
	}

	text, err := h.Tickets.RenderText(details)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Ticket rendering failed", err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(text))
}

// GetAvailability reports the counters for one slot, e.g.
// GET /trains/T101/availability?class=ac2&date=2026-09-15.
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	trainID := chi.URLParam(r, "trainId")
	class := models.CoachClass(r.URL.Query().Get("class"))
	dateStr := r.URL.Query().Get("date")

	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD", err)
		return
	}

	slot, err := h.Inventory.Slot(r.Context(), nil, inventory.NewSlotKey(trainID, class, date))
	if err != nil {
		h.writeError(w, statusForError(err), "Availability lookup failed", err)
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Availability", map[string]interface{}{
		"train_id":        slot.TrainID,
		"coach_class":     slot.CoachClass,
		"journey_date":    slot.JourneyDate.Format("2006-01-02"),
		"total_seats":     slot.TotalSeats,
		"available_seats": slot.AvailableSeats,
		"rac_available":   slot.RACCapacity - slot.RACCount,
		"waitlist_count":  slot.WaitlistCount,
	}))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.Logger.Error("API", fmt.Sprintf("failed to encode response: %v", err))
	}
}

// conflictDetail replaces the raw error text for contention failures so
// clients see a retry hint instead of internal update details.
const conflictDetail = "booking temporarily unavailable"

func (h *Handler) writeError(w http.ResponseWriter, status int, message string, err error) {
	detail := err.Error()
	if errors.Is(err, inventory.ErrConflict) || errors.Is(err, booking.ErrLockTimeout) {
		detail = conflictDetail
	}
	h.writeJSON(w, status, utils.ErrorResponse(message, detail))
}

// statusForError maps domain sentinels onto HTTP statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, booking.ErrNotFound),
		errors.Is(err, inventory.ErrSlotNotFound),
		errors.Is(err, pricing.ErrPricingNotFound):
		return http.StatusNotFound
	case errors.Is(err, booking.ErrInvalidRequest),
		errors.Is(err, route.ErrInvalidRoute),
		errors.Is(err, route.ErrBadSequence):
		return http.StatusBadRequest
	case errors.Is(err, booking.ErrAlreadyCancelled),
		errors.Is(err, inventory.ErrCapacityExhausted):
		return http.StatusConflict
	case errors.Is(err, booking.ErrLockTimeout),
		errors.Is(err, inventory.ErrConflict):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
