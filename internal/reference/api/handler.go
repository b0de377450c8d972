package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"ms-reservation/internal/logger"
	"ms-reservation/internal/reference"
	"ms-reservation/internal/route"
	"ms-reservation/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Reference *reference.DB
	Logger    *logger.Logger
}

func NewHandler(ref *reference.DB, log *logger.Logger) *Handler {
	return &Handler{Reference: ref, Logger: log}
}

func (h *Handler) ListTrains(w http.ResponseWriter, r *http.Request) {
	trains, err := h.Reference.ListTrains(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListTrains: %v", err))
		h.writeError(w, http.StatusInternalServerError, "Train lookup failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Trains", trains))
}

func (h *Handler) GetTrain(w http.ResponseWriter, r *http.Request) {
	trainID := chi.URLParam(r, "trainId")

	train, err := h.Reference.GetTrain(r.Context(), trainID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, reference.ErrNotFound) {
			status = http.StatusNotFound
		}
		h.writeError(w, status, "Train lookup failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Train", train))
}

func (h *Handler) GetRoute(w http.ResponseWriter, r *http.Request) {
	trainID := chi.URLParam(r, "trainId")

	stops, err := h.Reference.GetRouteStops(r.Context(), trainID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetRoute: %v", err))
		h.writeError(w, http.StatusInternalServerError, "Route lookup failed", err)
		return
	}
	if len(stops) == 0 {
		h.writeError(w, http.StatusNotFound, "No route for train", route.ErrInvalidRoute)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Route", stops))
}

// SearchStations matches ?q= against station codes and names.
func (h *Handler) SearchStations(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "Query parameter q is required", errors.New("empty query"))
		return
	}

	stations, err := h.Reference.SearchStations(r.Context(), query)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("SearchStations: %v", err))
		h.writeError(w, http.StatusInternalServerError, "Station search failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Stations", stations))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.Logger.Error("API", fmt.Sprintf("failed to encode response: %v", err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string, err error) {
	h.writeJSON(w, status, utils.ErrorResponse(message, err.Error()))
}
