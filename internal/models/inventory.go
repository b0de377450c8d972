package models

import (
	"time"

	"github.com/uptrace/bun"
)

type CoachClass string

const (
	CoachSleeper   CoachClass = "sleeper"
	CoachAC1       CoachClass = "ac1"
	CoachAC2       CoachClass = "ac2"
	CoachAC3       CoachClass = "ac3"
	CoachGeneral   CoachClass = "general"
	CoachChair     CoachClass = "chair"
	CoachExecutive CoachClass = "executive"
)

// SeatInventory is one inventory slot: the counters for a
// (train, coach-class, journey-date) triple. Rows are mutated only
// through the inventory store's allocate/release operations, never
// written directly by callers. At all times
// 0 <= available_seats <= total_seats.
type SeatInventory struct {
	bun.BaseModel `bun:"table:seat_inventory"`

	InventoryID    int64      `bun:"inventory_id,pk,autoincrement" json:"inventory_id"`
	TrainID        string     `bun:"train_id,notnull" json:"train_id"`
	CoachClass     CoachClass `bun:"coach_class,notnull" json:"coach_class"`
	JourneyDate    time.Time  `bun:"journey_date,notnull" json:"journey_date"`
	TotalSeats     int        `bun:"total_seats,notnull" json:"total_seats"`
	AvailableSeats int        `bun:"available_seats,notnull" json:"available_seats"`
	RACCapacity    int        `bun:"rac_capacity,notnull,default:0" json:"rac_capacity"`
	RACCount       int        `bun:"rac_count,notnull,default:0" json:"rac_count"`
	WaitlistCount  int        `bun:"waitlist_count,notnull,default:0" json:"waitlist_count"`
	// NextSeatIndex hands out berth indices for seat labels; it never
	// decreases, so a label freed by cancellation is not reissued
	// while earlier holders may still be travelling.
	NextSeatIndex int `bun:"next_seat_index,notnull,default:0" json:"-"`
	// NextWaitlistPos hands out 1-based FIFO positions; it never
	// decreases, so positions stay ordered across cancellations.
	NextWaitlistPos int       `bun:"next_waitlist_pos,notnull,default:0" json:"-"`
	LastUpdated     time.Time `bun:"last_updated,nullzero" json:"last_updated"`
}

// JourneyDay normalizes a timestamp to the UTC day used as part of the
// slot key. Every journey_date stored by this service goes through it.
func JourneyDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
