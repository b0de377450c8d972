package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-reservation/internal/inventory"
	"ms-reservation/internal/models"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// promotion records one passenger moved up during a cancellation, for
// event publishing after the transaction commits.
type promotion struct {
	pnr         string
	passengerID int64
	from        models.BookingStatus
	to          models.BookingStatus
}

// CancelTicket releases every allocation a reservation holds and
// promotes waiting passengers into the freed capacity, one step per
// freed place: a freed berth goes to the oldest RAC passenger (whose
// RAC place then goes to the oldest waitlisted one), or straight to
// the oldest waitlisted passenger when nobody holds RAC.
func (s *Service) CancelTicket(ctx context.Context, pnr string) (*models.CancellationResult, error) {
	res, err := s.DB.GetReservation(ctx, nil, pnr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("pnr %s: %w", pnr, ErrNotFound)
		}
		return nil, err
	}
	if res.BookingStatus == models.StatusCancelled {
		return nil, fmt.Errorf("pnr %s: %w", pnr, ErrAlreadyCancelled)
	}

	passengers, err := s.DB.GetPassengers(ctx, nil, pnr)
	if err != nil {
		return nil, err
	}

	keys := cancelSlotKeys(res, passengers)
	owner := uuid.New().String()
	locked, err := s.Locks.AcquireSlots(ctx, slotNames(keys), owner)
	if err != nil {
		return nil, fmt.Errorf("acquiring slot locks: %w", err)
	}
	if !locked {
		return nil, ErrLockTimeout
	}
	defer func() {
		if err := s.Locks.ReleaseSlots(context.Background(), slotNames(keys), owner); err != nil {
			s.logBooking("LOCK_RELEASE_FAILED", pnr, err.Error())
		}
	}()

	var (
		result     *models.CancellationResult
		promotions []promotion
	)
	for attempt := 1; ; attempt++ {
		result, promotions, err = s.cancel(ctx, res)
		if err == nil {
			break
		}
		if !errors.Is(err, inventory.ErrConflict) || attempt >= s.MaxTxRetries {
			s.logBooking("CANCEL_FAILED", pnr, err.Error())
			return nil, err
		}
		s.logBooking("CANCEL_RETRY", pnr, fmt.Sprintf("attempt %d: %v", attempt, err))
		time.Sleep(s.RetryBackoff * time.Duration(attempt))
	}

	s.logBooking("BOOKING_CANCELLED", pnr,
		fmt.Sprintf("released %d allocations, promoted %d passengers", result.ReleasedCount, result.PromotedCount))
	if err := s.Events.PublishBookingCancelled(ctx, result); err != nil {
		s.logBooking("PUBLISH_FAILED", pnr, fmt.Sprintf("booking-cancelled event: %v", err))
	}
	for _, p := range promotions {
		if err := s.Events.PublishPassengerPromoted(ctx, p.pnr, p.passengerID, p.from, p.to); err != nil {
			s.logBooking("PUBLISH_FAILED", p.pnr, fmt.Sprintf("passenger-promoted event: %v", err))
		}
	}
	return result, nil
}

// cancel is one transactional attempt at the cancellation.
func (s *Service) cancel(ctx context.Context, res *models.Reservation) (*models.CancellationResult, []promotion, error) {
	var (
		result     *models.CancellationResult
		promotions []promotion
	)

	err := s.DB.RunInTx(ctx, func(ctx context.Context, tx bun.IDB) error {
		promotions = promotions[:0]

		// Re-check under the transaction in case a concurrent
		// cancellation won the race for the same PNR.
		current, err := s.DB.GetReservation(ctx, tx, res.PNR)
		if err != nil {
			return err
		}
		if current.BookingStatus == models.StatusCancelled {
			return fmt.Errorf("pnr %s: %w", res.PNR, ErrAlreadyCancelled)
		}

		// Statuses may have moved since the pre-lock read, e.g. a
		// promotion out of another cancellation. Coach classes never
		// change, so the lock keys computed earlier still hold.
		passengers, err := s.DB.GetPassengers(ctx, tx, res.PNR)
		if err != nil {
			return err
		}

		if err := s.DB.MarkCancelled(ctx, tx, res.PNR); err != nil {
			return err
		}

		released := 0
		for _, p := range passengers {
			if p.TicketStatus == models.StatusCancelled {
				continue
			}
			key := inventory.NewSlotKey(res.TrainID, p.CoachClass, res.JourneyDate)
			if err := s.Inventory.Release(ctx, tx, key, p.TicketStatus); err != nil {
				return err
			}
			released++
			s.logInventory("SEAT_RELEASED", key.String(),
				fmt.Sprintf("%s allocation returned by %s", p.TicketStatus, res.PNR))

			promoted, err := s.promoteInto(ctx, tx, key, p.TicketStatus, res.PNR)
			if err != nil {
				return err
			}
			promotions = append(promotions, promoted...)
		}

		if res.QuotaID != 0 {
			confirmed := 0
			for _, p := range passengers {
				if p.TicketStatus == models.StatusConfirmed {
					confirmed++
				}
			}
			if confirmed > 0 {
				if err := s.DB.AdjustQuotaUsage(ctx, tx, res.TrainID, models.JourneyDay(res.JourneyDate), res.QuotaID, -confirmed); err != nil {
					return err
				}
			}
		}

		result = &models.CancellationResult{
			PNR:           res.PNR,
			ReleasedCount: released,
			PromotedCount: len(promotions),
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return result, promotions, nil
}

// promoteInto fills the capacity freed by one released allocation.
// Candidates are picked oldest-first; passenger ids are assigned in
// allocation order under the slot lock, so id order is arrival order.
func (s *Service) promoteInto(ctx context.Context, tx bun.IDB, key inventory.SlotKey, freed models.BookingStatus, excludePNR string) ([]promotion, error) {
	var promotions []promotion

	switch freed {
	case models.StatusConfirmed:
		racer, err := s.oldestWaiting(ctx, tx, key, models.StatusRAC, excludePNR)
		if err != nil {
			return nil, err
		}
		if racer != nil {
			p, err := s.applyPromotion(ctx, tx, key, racer, models.StatusConfirmed)
			if err != nil {
				return nil, err
			}
			promotions = append(promotions, p)

			// The promoted passenger's RAC place is now free too.
			next, err := s.promoteInto(ctx, tx, key, models.StatusRAC, excludePNR)
			if err != nil {
				return nil, err
			}
			return append(promotions, next...), nil
		}

		waiter, err := s.oldestWaiting(ctx, tx, key, models.StatusWaitlisted, excludePNR)
		if err != nil {
			return nil, err
		}
		if waiter != nil {
			p, err := s.applyPromotion(ctx, tx, key, waiter, models.StatusConfirmed)
			if err != nil {
				return nil, err
			}
			promotions = append(promotions, p)
		}

	case models.StatusRAC:
		waiter, err := s.oldestWaiting(ctx, tx, key, models.StatusWaitlisted, excludePNR)
		if err != nil {
			return nil, err
		}
		if waiter != nil {
			p, err := s.applyPromotion(ctx, tx, key, waiter, models.StatusRAC)
			if err != nil {
				return nil, err
			}
			promotions = append(promotions, p)
		}

	case models.StatusWaitlisted:
		// A freed waitlist entry frees nothing bookable.
	}

	return promotions, nil
}

func (s *Service) oldestWaiting(ctx context.Context, tx bun.IDB, key inventory.SlotKey, status models.BookingStatus, excludePNR string) (*models.ReservationPassenger, error) {
	p, err := s.DB.OldestWaiting(ctx, tx, key, status, excludePNR)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// applyPromotion moves one passenger up a step: inventory counters
// first, then the passenger row, then the owning reservation's rolled
// up status.
func (s *Service) applyPromotion(ctx context.Context, tx bun.IDB, key inventory.SlotKey, p *models.ReservationPassenger, to models.BookingStatus) (promotion, error) {
	from := p.TicketStatus

	seat, err := s.Inventory.Promote(ctx, tx, key, from, to)
	if err != nil {
		return promotion{}, err
	}

	p.TicketStatus = to
	p.SeatNumber = seat
	p.WaitlistPosition = 0
	if err := s.DB.UpdatePassengerOutcome(ctx, tx, p); err != nil {
		return promotion{}, err
	}

	if err := s.refreshReservationStatus(ctx, tx, p.PNR); err != nil {
		return promotion{}, err
	}

	s.logBooking("PASSENGER_PROMOTED", p.PNR,
		fmt.Sprintf("passenger %d on %s: %s -> %s", p.PassengerID, key, from, to))
	return promotion{pnr: p.PNR, passengerID: p.PassengerID, from: from, to: to}, nil
}

// refreshReservationStatus recomputes a reservation's status from its
// passengers after one of them moved.
func (s *Service) refreshReservationStatus(ctx context.Context, tx bun.IDB, pnr string) error {
	passengers, err := s.DB.GetPassengers(ctx, tx, pnr)
	if err != nil {
		return err
	}

	status := models.StatusConfirmed
	for _, p := range passengers {
		switch p.TicketStatus {
		case models.StatusWaitlisted:
			return s.DB.UpdateReservationStatus(ctx, tx, pnr, models.StatusWaitlisted)
		case models.StatusRAC:
			status = models.StatusRAC
		}
	}
	return s.DB.UpdateReservationStatus(ctx, tx, pnr, status)
}

// cancelSlotKeys returns the distinct slots a reservation occupies.
func cancelSlotKeys(res *models.Reservation, passengers []models.ReservationPassenger) []inventory.SlotKey {
	seen := make(map[string]inventory.SlotKey)
	for _, p := range passengers {
		key := inventory.NewSlotKey(res.TrainID, p.CoachClass, res.JourneyDate)
		seen[key.String()] = key
	}
	keys := make([]inventory.SlotKey, 0, len(seen))
	for _, k := range seen {
		keys = append(keys, k)
	}
	return keys
}
