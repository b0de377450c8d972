package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"ms-reservation/internal/booking"
	"ms-reservation/internal/inventory"
	"ms-reservation/internal/pricing"
	"ms-reservation/internal/route"
	"ms-reservation/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusForError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"unknown pnr", booking.ErrNotFound, http.StatusNotFound},
		{"unknown slot", inventory.ErrSlotNotFound, http.StatusNotFound},
		{"no fare rule", pricing.ErrPricingNotFound, http.StatusNotFound},
		{"bad request", booking.ErrInvalidRequest, http.StatusBadRequest},
		{"stations off route", route.ErrInvalidRoute, http.StatusBadRequest},
		{"reversed stations", route.ErrBadSequence, http.StatusBadRequest},
		{"double cancel", booking.ErrAlreadyCancelled, http.StatusConflict},
		{"waitlist full", inventory.ErrCapacityExhausted, http.StatusConflict},
		{"lock timeout", booking.ErrLockTimeout, http.StatusServiceUnavailable},
		{"update contention", inventory.ErrConflict, http.StatusServiceUnavailable},
		{"wrapped contention", fmt.Errorf("allocating seat: %w", inventory.ErrConflict), http.StatusServiceUnavailable},
		{"anything else", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, statusForError(tc.err))
		})
	}
}

func TestWriteError_MasksContentionDetail(t *testing.T) {
	h := &Handler{}

	err := fmt.Errorf("updating seat_inventory for T101/ac2/2026-09-15: %w", inventory.ErrConflict)
	rec := httptest.NewRecorder()
	h.writeError(rec, statusForError(err), "Booking failed", err)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp utils.APIResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "Booking failed", resp.Message)
	assert.Equal(t, "booking temporarily unavailable", resp.Error)
	assert.NotContains(t, resp.Error, "seat_inventory")
}

func TestWriteError_KeepsDomainDetail(t *testing.T) {
	h := &Handler{}

	rec := httptest.NewRecorder()
	h.writeError(rec, statusForError(booking.ErrAlreadyCancelled), "Cancellation failed", booking.ErrAlreadyCancelled)

	assert.Equal(t, http.StatusConflict, rec.Code)

	var resp utils.APIResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, booking.ErrAlreadyCancelled.Error(), resp.Error)
}
