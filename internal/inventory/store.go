package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-reservation/internal/models"

	"github.com/uptrace/bun"
)

var (
	// ErrSlotNotFound means no inventory row exists for the requested
	// train/class/date triple.
	ErrSlotNotFound = errors.New("inventory slot not found")
	// ErrCapacityExhausted is returned when the waitlist is capped and
	// full, so the request cannot be accommodated at all.
	ErrCapacityExhausted = errors.New("capacity exhausted")
	// ErrConflict means a counter changed between read and update. The
	// caller's transaction must roll back and may retry.
	ErrConflict = errors.New("inventory slot modified concurrently")
)

// SlotKey identifies one inventory slot. JourneyDate is always the UTC
// day (see models.JourneyDay).
type SlotKey struct {
	TrainID     string
	CoachClass  models.CoachClass
	JourneyDate time.Time
}

func NewSlotKey(trainID string, class models.CoachClass, date time.Time) SlotKey {
	return SlotKey{TrainID: trainID, CoachClass: class, JourneyDate: models.JourneyDay(date)}
}

// String is the lock key and log form of a slot.
func (k SlotKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.TrainID, k.CoachClass, k.JourneyDate.Format("2006-01-02"))
}

// Allocation is the outcome of one TryAllocate call.
type Allocation struct {
	Status           models.BookingStatus
	SeatNumber       string
	WaitlistPosition int
}

// Store owns all mutations of seat_inventory counters. Callers never
// touch the rows directly: every check-and-update runs inside the
// caller's transaction while the caller holds the slot's lock, and each
// UPDATE re-asserts the counter value it read so a lost race surfaces
// as ErrConflict instead of an oversell.
type Store struct {
	Bun *bun.DB
	// WaitlistCap bounds the waitlist per slot; 0 means unbounded.
	WaitlistCap int
}

func NewStore(bunDB *bun.DB, waitlistCap int) *Store {
	return &Store{Bun: bunDB, WaitlistCap: waitlistCap}
}

// db picks the caller's transaction when one is supplied.
func (s *Store) db(idb bun.IDB) bun.IDB {
	if idb != nil {
		return idb
	}
	return s.Bun
}

// Slot loads the inventory row for a key.
func (s *Store) Slot(ctx context.Context, idb bun.IDB, key SlotKey) (*models.SeatInventory, error) {
	var slot models.SeatInventory
	err := s.db(idb).NewSelect().
		Model(&slot).
		Where("train_id = ?", key.TrainID).
		Where("coach_class = ?", key.CoachClass).
		Where("journey_date = ?", key.JourneyDate).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("slot %s: %w", key, ErrSlotNotFound)
		}
		return nil, err
	}
	return &slot, nil
}

// mutation starts a guarded counter update on the slot's row.
func (s *Store) mutation(idb bun.IDB, slot *models.SeatInventory) *bun.UpdateQuery {
	return s.db(idb).NewUpdate().
		Model((*models.SeatInventory)(nil)).
		Set("last_updated = ?", time.Now().UTC()).
		Where("inventory_id = ?", slot.InventoryID)
}

// execGuarded runs a counter update and maps a lost guard to ErrConflict.
func execGuarded(ctx context.Context, key SlotKey, q *bun.UpdateQuery) error {
	res, err := q.Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("slot %s: %w", key, ErrConflict)
	}
	return nil
}

// TryAllocate reserves one seat on the slot: a confirmed berth while
// seats remain, then an RAC place up to the slot's RAC capacity, then a
// 1-based FIFO waitlist position.
func (s *Store) TryAllocate(ctx context.Context, idb bun.IDB, key SlotKey) (*Allocation, error) {
	slot, err := s.Slot(ctx, idb, key)
	if err != nil {
		return nil, err
	}

	switch {
	case slot.AvailableSeats > 0:
		idx := slot.NextSeatIndex + 1
		q := s.mutation(idb, slot).
			Set("available_seats = available_seats - 1").
			Set("next_seat_index = ?", idx).
			Where("available_seats = ?", slot.AvailableSeats)
		if err := execGuarded(ctx, key, q); err != nil {
			return nil, err
		}
		return &Allocation{
			Status:     models.StatusConfirmed,
			SeatNumber: seatLabel(slot.CoachClass, idx),
		}, nil

	case slot.RACCount < slot.RACCapacity:
		q := s.mutation(idb, slot).
			Set("rac_count = rac_count + 1").
			Where("rac_count = ?", slot.RACCount)
		if err := execGuarded(ctx, key, q); err != nil {
			return nil, err
		}
		return &Allocation{Status: models.StatusRAC}, nil

	default:
		if s.WaitlistCap > 0 && slot.WaitlistCount >= s.WaitlistCap {
			return nil, fmt.Errorf("slot %s waitlist full at %d: %w", key, slot.WaitlistCount, ErrCapacityExhausted)
		}
		pos := slot.NextWaitlistPos + 1
		q := s.mutation(idb, slot).
			Set("waitlist_count = waitlist_count + 1").
			Set("next_waitlist_pos = ?", pos).
			Where("next_waitlist_pos = ?", slot.NextWaitlistPos)
		if err := execGuarded(ctx, key, q); err != nil {
			return nil, err
		}
		return &Allocation{Status: models.StatusWaitlisted, WaitlistPosition: pos}, nil
	}
}

// Release reverses a prior allocation outcome. Promoting waiting
// passengers into the freed capacity is the cancellation processor's
// job; this only restores counters.
func (s *Store) Release(ctx context.Context, idb bun.IDB, key SlotKey, prior models.BookingStatus) error {
	slot, err := s.Slot(ctx, idb, key)
	if err != nil {
		return err
	}

	switch prior {
	case models.StatusConfirmed:
		if slot.AvailableSeats >= slot.TotalSeats {
			return fmt.Errorf("slot %s release would exceed total seats: %w", key, ErrConflict)
		}
		return execGuarded(ctx, key, s.mutation(idb, slot).
			Set("available_seats = available_seats + 1").
			Where("available_seats = ?", slot.AvailableSeats))
	case models.StatusRAC:
		if slot.RACCount <= 0 {
			return fmt.Errorf("slot %s has no RAC places to release: %w", key, ErrConflict)
		}
		return execGuarded(ctx, key, s.mutation(idb, slot).
			Set("rac_count = rac_count - 1").
			Where("rac_count = ?", slot.RACCount))
	case models.StatusWaitlisted:
		if slot.WaitlistCount <= 0 {
			return fmt.Errorf("slot %s has no waitlist entries to release: %w", key, ErrConflict)
		}
		return execGuarded(ctx, key, s.mutation(idb, slot).
			Set("waitlist_count = waitlist_count - 1").
			Where("waitlist_count = ?", slot.WaitlistCount))
	default:
		return fmt.Errorf("cannot release allocation with status %q", prior)
	}
}

// Promote moves one waiting passenger's counters a single step up:
// waitlisted→confirmed, waitlisted→RAC or RAC→confirmed. It returns the
// berth label when the target status is confirmed.
func (s *Store) Promote(ctx context.Context, idb bun.IDB, key SlotKey, from, to models.BookingStatus) (string, error) {
	slot, err := s.Slot(ctx, idb, key)
	if err != nil {
		return "", err
	}

	q := s.mutation(idb, slot)

	switch from {
	case models.StatusWaitlisted:
		if slot.WaitlistCount <= 0 {
			return "", fmt.Errorf("slot %s has no waitlisted passengers to promote: %w", key, ErrConflict)
		}
		q = q.Set("waitlist_count = waitlist_count - 1").
			Where("waitlist_count = ?", slot.WaitlistCount)
	case models.StatusRAC:
		if slot.RACCount <= 0 {
			return "", fmt.Errorf("slot %s has no RAC passengers to promote: %w", key, ErrConflict)
		}
		q = q.Set("rac_count = rac_count - 1").
			Where("rac_count = ?", slot.RACCount)
	default:
		return "", fmt.Errorf("cannot promote from status %q", from)
	}

	seat := ""
	switch to {
	case models.StatusConfirmed:
		if slot.AvailableSeats <= 0 {
			return "", fmt.Errorf("slot %s has no freed seat to promote into: %w", key, ErrConflict)
		}
		idx := slot.NextSeatIndex + 1
		q = q.Set("available_seats = available_seats - 1").
			Set("next_seat_index = ?", idx).
			Where("available_seats = ?", slot.AvailableSeats)
		seat = seatLabel(slot.CoachClass, idx)
	case models.StatusRAC:
		q = q.Set("rac_count = rac_count + 1")
	default:
		return "", fmt.Errorf("cannot promote to status %q", to)
	}

	if err := execGuarded(ctx, key, q); err != nil {
		return "", err
	}
	return seat, nil
}

var coachCodes = map[models.CoachClass]string{
	models.CoachSleeper:   "S",
	models.CoachAC1:       "H",
	models.CoachAC2:       "A",
	models.CoachAC3:       "B",
	models.CoachGeneral:   "G",
	models.CoachChair:     "D",
	models.CoachExecutive: "E",
}

// seatLabel derives a berth label from the slot's running berth index,
// e.g. "A1-23". Indices come from next_seat_index and are never reused,
// so a cancelled passenger's label stays retired for the journey.
func seatLabel(class models.CoachClass, index int) string {
	code, ok := coachCodes[class]
	if !ok {
		code = "X"
	}
	return fmt.Sprintf("%s1-%d", code, index)
}
