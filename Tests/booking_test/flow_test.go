package booking_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"ms-reservation/internal/booking"
	bookingdb "ms-reservation/internal/booking/db"
	"ms-reservation/internal/inventory"
	"ms-reservation/internal/inventory/redislock"
	"ms-reservation/internal/kafka"
	"ms-reservation/internal/models"
	"ms-reservation/internal/pricing"
	"ms-reservation/internal/reference"
	"ms-reservation/internal/route"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Full booking flow against real components: sqlite-backed stores, a
// miniredis-backed slot lock and the real allocator. Only the broker
// is swapped for the no-op publisher.

var journeyDate = time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)

func setupService(t *testing.T) (*booking.Service, *inventory.Store) {
	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { sqldb.Close() })

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	require.NoError(t, bunDB.ResetModel(context.Background(),
		(*models.Train)(nil),
		(*models.Station)(nil),
		(*models.Route)(nil),
		(*models.RouteStation)(nil),
		(*models.TrainSchedule)(nil),
		(*models.FareRule)(nil),
		(*models.DynamicPricing)(nil),
		(*models.SeatInventory)(nil),
		(*models.Reservation)(nil),
		(*models.ReservationPassenger)(nil),
		(*models.QuotaAllocation)(nil),
	))
	seedNetwork(t, bunDB)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	store := inventory.NewStore(bunDB, 0)
	svc := booking.NewService(
		&bookingdb.DB{Bun: bunDB},
		store,
		redislock.New(redisClient, time.Second, time.Millisecond, 100*time.Millisecond),
		route.NewValidator(reference.NewDB(bunDB)),
		pricing.NewResolver(&pricing.DB{Bun: bunDB}),
		kafka.NoopPublisher{},
		nil,
	)
	svc.RetryBackoff = time.Millisecond
	return svc, store
}

func seedNetwork(t *testing.T, bunDB *bun.DB) {
	t.Helper()
	ctx := context.Background()

	train := &models.Train{TrainID: "T101", TrainName: "Capital Express", TrainType: models.TrainExpress, TotalCapacity: 800, Frequency: models.FrequencyDaily}
	_, err := bunDB.NewInsert().Model(train).Exec(ctx)
	require.NoError(t, err)

	stations := []models.Station{
		{StationCode: "NDLS", StationName: "New Delhi", TotalPlatforms: 16},
		{StationCode: "CNB", StationName: "Kanpur Central", TotalPlatforms: 10},
		{StationCode: "BCT", StationName: "Mumbai Central", TotalPlatforms: 7},
	}
	_, err = bunDB.NewInsert().Model(&stations).Exec(ctx)
	require.NoError(t, err)

	rt := &models.Route{RouteID: 1, SourceStation: "NDLS", DestinationStation: "BCT", TotalDistance: 1384}
	_, err = bunDB.NewInsert().Model(rt).Exec(ctx)
	require.NoError(t, err)

	stops := []models.RouteStation{
		{RouteID: 1, StationCode: "NDLS", SequenceNumber: 1, DistanceFromSource: 0},
		{RouteID: 1, StationCode: "CNB", SequenceNumber: 2, DistanceFromSource: 440},
		{RouteID: 1, StationCode: "BCT", SequenceNumber: 3, DistanceFromSource: 1384},
	}
	_, err = bunDB.NewInsert().Model(&stops).Exec(ctx)
	require.NoError(t, err)

	sched := &models.TrainSchedule{TrainID: "T101", RouteID: 1, DayOfOperation: "daily"}
	_, err = bunDB.NewInsert().Model(sched).Exec(ctx)
	require.NoError(t, err)

	fare := &models.FareRule{TrainID: "T101", CoachClass: models.CoachAC2, BaseFare: 1000}
	_, err = bunDB.NewInsert().Model(fare).Exec(ctx)
	require.NoError(t, err)

	// A deliberately tiny slot so the flow walks through every status.
	slot := &models.SeatInventory{
		TrainID:        "T101",
		CoachClass:     models.CoachAC2,
		JourneyDate:    journeyDate,
		TotalSeats:     2,
		AvailableSeats: 2,
		RACCapacity:    1,
	}
	_, err = bunDB.NewInsert().Model(slot).Exec(ctx)
	require.NoError(t, err)
}

func bookOne(t *testing.T, svc *booking.Service, name string) *models.BookingResult {
	t.Helper()
	result, err := svc.BookTicket(context.Background(), &models.BookingRequest{
		TrainID:            "T101",
		JourneyDate:        journeyDate,
		SourceStation:      "NDLS",
		DestinationStation: "BCT",
		Passengers: []models.PassengerInput{
			{Name: name, Age: 30, CoachClass: models.CoachAC2},
		},
	})
	require.NoError(t, err)
	return result
}

func TestBookingFlowThroughAllStatuses(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()
	key := inventory.NewSlotKey("T101", models.CoachAC2, journeyDate)

	first := bookOne(t, svc, "First Seat")
	assert.Equal(t, models.StatusConfirmed, first.Status)
	assert.Equal(t, "A1-1", first.Passengers[0].SeatNumber)
	assert.Equal(t, 1000.0, first.TotalFare)

	second := bookOne(t, svc, "Second Seat")
	assert.Equal(t, models.StatusConfirmed, second.Status)
	assert.Equal(t, "A1-2", second.Passengers[0].SeatNumber)

	third := bookOne(t, svc, "Side Berth")
	assert.Equal(t, models.StatusRAC, third.Status)
	assert.Empty(t, third.Passengers[0].SeatNumber)

	fourth := bookOne(t, svc, "Hopeful")
	assert.Equal(t, models.StatusWaitlisted, fourth.Status)
	assert.Equal(t, 1, fourth.Passengers[0].WaitlistPosition)

	slot, err := store.Slot(ctx, nil, key)
	require.NoError(t, err)
	assert.Zero(t, slot.AvailableSeats)
	assert.Equal(t, 1, slot.RACCount)
	assert.Equal(t, 1, slot.WaitlistCount)

	// Cancelling a confirmed booking runs the whole promotion chain:
	// the RAC passenger takes the freed seat and the waitlisted one
	// moves into RAC.
	cancellation, err := svc.CancelTicket(ctx, first.PNR)
	require.NoError(t, err)
	assert.Equal(t, 1, cancellation.ReleasedCount)
	assert.Equal(t, 2, cancellation.PromotedCount)

	cancelled, _, err := svc.GetBooking(ctx, first.PNR)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.BookingStatus)

	promoted, passengers, err := svc.GetBooking(ctx, third.PNR)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, promoted.BookingStatus)
	assert.Equal(t, "A1-3", passengers[0].SeatNumber)

	racNow, passengers, err := svc.GetBooking(ctx, fourth.PNR)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRAC, racNow.BookingStatus)
	assert.Zero(t, passengers[0].WaitlistPosition)

	slot, err = store.Slot(ctx, nil, key)
	require.NoError(t, err)
	assert.Zero(t, slot.AvailableSeats)
	assert.Equal(t, 1, slot.RACCount)
	assert.Zero(t, slot.WaitlistCount)
}

func TestBookingFlowFamilyAggregation(t *testing.T) {
	svc, _ := setupService(t)

	// Three passengers against two seats and one RAC place: the family
	// books together and the reservation rolls up to RAC.
	result, err := svc.BookTicket(context.Background(), &models.BookingRequest{
		TrainID:            "T101",
		JourneyDate:        journeyDate,
		SourceStation:      "NDLS",
		DestinationStation: "BCT",
		Passengers: []models.PassengerInput{
			{Name: "Asha Verma", Age: 34, CoachClass: models.CoachAC2},
			{Name: "Meera Verma", Age: 8, CoachClass: models.CoachAC2},
			{Name: "Dadi Verma", Age: 68, CoachClass: models.CoachAC2},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRAC, result.Status)
	// Adult 1000, child half, senior at 60 percent.
	assert.InDelta(t, 1000+500+600, result.TotalFare, 0.001)
	assert.Equal(t, models.CategoryChild, result.Passengers[1].Category)
	assert.Equal(t, models.CategorySenior, result.Passengers[2].Category)
}

func TestBookingFlowRejectsUnknownSlot(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.BookTicket(context.Background(), &models.BookingRequest{
		TrainID:            "T101",
		JourneyDate:        journeyDate,
		SourceStation:      "NDLS",
		DestinationStation: "BCT",
		Passengers: []models.PassengerInput{
			{Name: "No Coach", Age: 30, CoachClass: models.CoachSleeper},
		},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, pricing.ErrPricingNotFound) || errors.Is(err, inventory.ErrSlotNotFound))
}

func TestBookingFlowDetailsProjection(t *testing.T) {
	svc, _ := setupService(t)

	result := bookOne(t, svc, "Asha Verma")
	details, err := svc.GetBookingDetails(context.Background(), result.PNR)
	require.NoError(t, err)
	assert.Equal(t, "Capital Express", details.TrainName)
	assert.Equal(t, "New Delhi", details.SourceStationName)
	assert.Equal(t, "Mumbai Central", details.DestinationStationName)
	require.Len(t, details.Passengers, 1)
	assert.Equal(t, "Asha Verma", details.Passengers[0].Name)

	_, err = svc.GetBookingDetails(context.Background(), "NOPE0000")
	assert.True(t, errors.Is(err, booking.ErrNotFound))
}
