package models

import (
	"time"

	"github.com/uptrace/bun"
)

type BookingStatus string

const (
	StatusConfirmed  BookingStatus = "confirmed"
	StatusRAC        BookingStatus = "RAC"
	StatusWaitlisted BookingStatus = "waitlisted"
	StatusCancelled  BookingStatus = "cancelled"
)

type PassengerCategory string

const (
	CategoryChild  PassengerCategory = "child"
	CategoryAdult  PassengerCategory = "adult"
	CategorySenior PassengerCategory = "senior"
)

// CategoryForAge buckets a passenger by age: under 12 child, 60 and
// over senior, adult otherwise.
func CategoryForAge(age int) PassengerCategory {
	switch {
	case age < 12:
		return CategoryChild
	case age >= 60:
		return CategorySenior
	default:
		return CategoryAdult
	}
}

// Reservation is one booking identified by its PNR. The PNR is assigned
// at creation and never changes. Legal status transitions are
// confirmed→cancelled, waitlisted→confirmed, waitlisted→cancelled,
// RAC→confirmed and RAC→cancelled.
type Reservation struct {
	bun.BaseModel `bun:"table:reservations"`

	PNR                string        `bun:"pnr,pk" json:"pnr"`
	TrainID            string        `bun:"train_id,notnull" json:"train_id"`
	JourneyDate        time.Time     `bun:"journey_date,notnull" json:"journey_date"`
	SourceStation      string        `bun:"source_station,notnull" json:"source_station"`
	DestinationStation string        `bun:"destination_station,notnull" json:"destination_station"`
	BookingStatus      BookingStatus `bun:"booking_status,notnull" json:"booking_status"`
	TotalFare          float64       `bun:"total_fare,notnull" json:"total_fare"`
	QuotaID            int64         `bun:"quota_id,nullzero" json:"quota_id,omitempty"`
	BookingDate        time.Time     `bun:"booking_date,notnull" json:"booking_date"`
}

// ReservationPassenger belongs to exactly one reservation and is
// cascade-deleted with it. TicketStatus follows the reservation status
// until the passenger is individually promoted.
type ReservationPassenger struct {
	bun.BaseModel `bun:"table:reservation_passengers"`

	PassengerID      int64             `bun:"reservation_passenger_id,pk,autoincrement" json:"passenger_id"`
	PNR              string            `bun:"pnr,notnull" json:"pnr"`
	Name             string            `bun:"name,notnull" json:"name"`
	Age              int               `bun:"age,notnull" json:"age"`
	Category         PassengerCategory `bun:"category,notnull" json:"category"`
	CoachClass       CoachClass        `bun:"coach_class,notnull" json:"coach_class"`
	SeatNumber       string            `bun:"seat_number,nullzero" json:"seat_number,omitempty"`
	TicketStatus     BookingStatus     `bun:"ticket_status,notnull" json:"ticket_status"`
	WaitlistPosition int               `bun:"waitlist_position,nullzero" json:"waitlist_position,omitempty"`
	Fare             float64           `bun:"fare,notnull" json:"fare"`
}
