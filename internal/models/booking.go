package models

import (
	"time"
)

// PassengerInput is one traveller on a booking request.
type PassengerInput struct {
	Name       string     `json:"name"`
	Age        int        `json:"age"`
	CoachClass CoachClass `json:"coach_class"`
}

type BookingRequest struct {
	TrainID            string           `json:"train_id"`
	JourneyDate        time.Time        `json:"journey_date"`
	SourceStation      string           `json:"source_station"`
	DestinationStation string           `json:"destination_station"`
	QuotaID            int64            `json:"quota_id,omitempty"`
	Passengers         []PassengerInput `json:"passengers"`
}

// PassengerOutcome is the per-passenger result of an allocation.
type PassengerOutcome struct {
	Name             string            `json:"name"`
	Age              int               `json:"age"`
	Category         PassengerCategory `json:"category"`
	CoachClass       CoachClass        `json:"coach_class"`
	Status           BookingStatus     `json:"status"`
	SeatNumber       string            `json:"seat_number,omitempty"`
	WaitlistPosition int               `json:"waitlist_position,omitempty"`
	Fare             float64           `json:"fare"`
}

type BookingResult struct {
	PNR        string             `json:"pnr"`
	Status     BookingStatus      `json:"status"`
	TotalFare  float64            `json:"total_fare"`
	Passengers []PassengerOutcome `json:"passengers"`
}

type CancellationResult struct {
	PNR           string `json:"pnr"`
	ReleasedCount int    `json:"released_count"`
	PromotedCount int    `json:"promoted_count"`
}

// BookingDetails is the read-only projection handed to ticket
// rendering: the reservation joined with train and station names.
type BookingDetails struct {
	PNR                    string             `json:"pnr"`
	TrainID                string             `json:"train_id"`
	TrainName              string             `json:"train_name"`
	JourneyDate            time.Time          `json:"journey_date"`
	SourceStation          string             `json:"source_station"`
	SourceStationName      string             `json:"source_station_name"`
	DestinationStation     string             `json:"destination_station"`
	DestinationStationName string             `json:"destination_station_name"`
	BookingDate            time.Time          `json:"booking_date"`
	BookingStatus          BookingStatus      `json:"booking_status"`
	TotalFare              float64            `json:"total_fare"`
	Passengers             []PassengerOutcome `json:"passengers"`
}
