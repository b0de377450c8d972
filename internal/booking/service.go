package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"ms-reservation/internal/inventory"
	"ms-reservation/internal/logger"
	"ms-reservation/internal/models"
	"ms-reservation/internal/pricing"
	"ms-reservation/internal/utils"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DBLayer is the persistence surface the booking service needs.
type DBLayer interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.IDB) error) error
	PNRExists(ctx context.Context, idb bun.IDB, pnr string) (bool, error)
	InsertReservation(ctx context.Context, idb bun.IDB, res *models.Reservation, passengers []models.ReservationPassenger) error
	GetReservation(ctx context.Context, idb bun.IDB, pnr string) (*models.Reservation, error)
	GetPassengers(ctx context.Context, idb bun.IDB, pnr string) ([]models.ReservationPassenger, error)
	MarkCancelled(ctx context.Context, idb bun.IDB, pnr string) error
	UpdateReservationStatus(ctx context.Context, idb bun.IDB, pnr string, status models.BookingStatus) error
	UpdatePassengerOutcome(ctx context.Context, idb bun.IDB, p *models.ReservationPassenger) error
	OldestWaiting(ctx context.Context, idb bun.IDB, key inventory.SlotKey, status models.BookingStatus, excludePNR string) (*models.ReservationPassenger, error)
	AdjustQuotaUsage(ctx context.Context, idb bun.IDB, trainID string, date time.Time, quotaID int64, delta int) error
	BookingDetails(ctx context.Context, pnr string) (*models.BookingDetails, error)
}

// InventoryStore mutates seat counters inside the caller's transaction.
type InventoryStore interface {
	TryAllocate(ctx context.Context, idb bun.IDB, key inventory.SlotKey) (*inventory.Allocation, error)
	Release(ctx context.Context, idb bun.IDB, key inventory.SlotKey, prior models.BookingStatus) error
	Promote(ctx context.Context, idb bun.IDB, key inventory.SlotKey, from, to models.BookingStatus) (string, error)
	Slot(ctx context.Context, idb bun.IDB, key inventory.SlotKey) (*models.SeatInventory, error)
}

// SlotLocker serializes writers per inventory slot.
type SlotLocker interface {
	AcquireSlots(ctx context.Context, slots []string, owner string) (bool, error)
	ReleaseSlots(ctx context.Context, slots []string, owner string) error
}

type RouteChecker interface {
	Validate(ctx context.Context, trainID, source, destination string) ([]models.RouteStop, error)
}

type FareResolver interface {
	Resolve(ctx context.Context, trainID string, class models.CoachClass, date time.Time, quotaID int64) (*pricing.Fare, error)
}

// EventPublisher emits booking lifecycle events. Publish failures are
// logged, never surfaced to the caller: the booking is already durable.
type EventPublisher interface {
	PublishBookingCreated(ctx context.Context, result *models.BookingResult) error
	PublishBookingCancelled(ctx context.Context, result *models.CancellationResult) error
	PublishPassengerPromoted(ctx context.Context, pnr string, passengerID int64, from, to models.BookingStatus) error
}

type Service struct {
	DB        DBLayer
	Inventory InventoryStore
	Locks     SlotLocker
	Routes    RouteChecker
	Fares     FareResolver
	Events    EventPublisher
	Log       *logger.Logger

	PNRLength    int
	MaxTxRetries int
	RetryBackoff time.Duration
}

func NewService(db DBLayer, inv InventoryStore, locks SlotLocker, routes RouteChecker, fares FareResolver, events EventPublisher, log *logger.Logger) *Service {
	return &Service{
		DB:           db,
		Inventory:    inv,
		Locks:        locks,
		Routes:       routes,
		Fares:        fares,
		Events:       events,
		Log:          log,
		PNRLength:    8,
		MaxTxRetries: 3,
		RetryBackoff: 50 * time.Millisecond,
	}
}

func (s *Service) logBooking(action, pnr, message string) {
	if s.Log != nil {
		s.Log.LogBooking(action, pnr, message)
	}
}

func (s *Service) logInventory(action, slot, message string) {
	if s.Log != nil {
		s.Log.LogInventory(action, slot, message)
	}
}

// BookTicket runs the all-or-nothing allocation for one request. Every
// passenger gets an outcome or the whole booking is rejected; partial
// bookings never persist.
func (s *Service) BookTicket(ctx context.Context, req *models.BookingRequest) (*models.BookingResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	if _, err := s.Routes.Validate(ctx, req.TrainID, req.SourceStation, req.DestinationStation); err != nil {
		return nil, err
	}

	// Resolve one fare per distinct coach class up front so a pricing
	// gap rejects the request before any counter moves.
	fares := make(map[models.CoachClass]*pricing.Fare)
	for _, p := range req.Passengers {
		if _, ok := fares[p.CoachClass]; ok {
			continue
		}
		fare, err := s.Fares.Resolve(ctx, req.TrainID, p.CoachClass, req.JourneyDate, req.QuotaID)
		if err != nil {
			return nil, err
		}
		fares[p.CoachClass] = fare
	}

	keys := slotKeys(req)
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
			s.logBooking("LOCK_RELEASE_FAILED", "", err.Error())
		}
	}()

	var result *models.BookingResult
	for attempt := 1; ; attempt++ {
		result, err = s.allocate(ctx, req, fares)
		if err == nil {
			break
		}
		if !errors.Is(err, inventory.ErrConflict) || attempt >= s.MaxTxRetries {
			s.logBooking("BOOKING_FAILED", "", fmt.Sprintf("train %s: %v", req.TrainID, err))
			return nil, err
		}
		s.logBooking("BOOKING_RETRY", "", fmt.Sprintf("attempt %d on train %s: %v", attempt, req.TrainID, err))
		time.Sleep(s.RetryBackoff * time.Duration(attempt))
	}

	s.logBooking("BOOKING_CREATED", result.PNR,
		fmt.Sprintf("train %s, %d passengers, status %s", req.TrainID, len(result.Passengers), result.Status))
	if err := s.Events.PublishBookingCreated(ctx, result); err != nil {
		s.logBooking("PUBLISH_FAILED", result.PNR, fmt.Sprintf("booking-created event: %v", err))
	}
	return result, nil
}

// allocate is one transactional attempt at the booking.
func (s *Service) allocate(ctx context.Context, req *models.BookingRequest, fares map[models.CoachClass]*pricing.Fare) (*models.BookingResult, error) {
	var result *models.BookingResult

	// An unknown quota id resolves to a fare without a quota bucket;
	// the booking then proceeds without quota accounting so the
	// allocation row never references a missing quota.
	quotaID := req.QuotaID
	if quotaID != 0 {
		known := false
		for _, f := range fares {
			if f.Quota != nil {
				known = true
				break
			}
		}
		if !known {
			quotaID = 0
		}
	}

	err := s.DB.RunInTx(ctx, func(ctx context.Context, tx bun.IDB) error {
		journeyDate := models.JourneyDay(req.JourneyDate)
		outcomes := make([]models.PassengerOutcome, 0, len(req.Passengers))
		passengers := make([]models.ReservationPassenger, 0, len(req.Passengers))
		totalFare := 0.0
		confirmed := 0

		for _, in := range req.Passengers {
			key := inventory.NewSlotKey(req.TrainID, in.CoachClass, req.JourneyDate)
			alloc, err := s.Inventory.TryAllocate(ctx, tx, key)
			if err != nil {
				return err
			}
			if alloc.Status == models.StatusConfirmed {
				confirmed++
			}
			s.logInventory("SEAT_ALLOCATED", key.String(),
				fmt.Sprintf("%s outcome for passenger %s", alloc.Status, in.Name))

			category := models.CategoryForAge(in.Age)
			fare := fares[in.CoachClass].ForCategory(category)
			totalFare += fare

			outcomes = append(outcomes, models.PassengerOutcome{
				Name:             in.Name,
				Age:              in.Age,
				Category:         category,
				CoachClass:       in.CoachClass,
				Status:           alloc.Status,
				SeatNumber:       alloc.SeatNumber,
				WaitlistPosition: alloc.WaitlistPosition,
				Fare:             fare,
			})
			passengers = append(passengers, models.ReservationPassenger{
				Name:             in.Name,
				Age:              in.Age,
				Category:         category,
				CoachClass:       in.CoachClass,
				SeatNumber:       alloc.SeatNumber,
				TicketStatus:     alloc.Status,
				WaitlistPosition: alloc.WaitlistPosition,
				Fare:             fare,
			})
		}

		pnr, err := s.newPNR(ctx, tx)
		if err != nil {
			return err
		}

		res := &models.Reservation{
			PNR:                pnr,
			TrainID:            req.TrainID,
			JourneyDate:        journeyDate,
			SourceStation:      req.SourceStation,
			DestinationStation: req.DestinationStation,
			BookingStatus:      aggregateStatus(outcomes),
			TotalFare:          totalFare,
			QuotaID:            quotaID,
			BookingDate:        time.Now().UTC(),
		}
		if err := s.DB.InsertReservation(ctx, tx, res, passengers); err != nil {
			return fmt.Errorf("persisting reservation %s: %w", pnr, err)
		}

		if quotaID != 0 && confirmed > 0 {
			if err := s.DB.AdjustQuotaUsage(ctx, tx, req.TrainID, journeyDate, quotaID, confirmed); err != nil {
				return fmt.Errorf("recording quota usage for %s: %w", pnr, err)
			}
		}

		result = &models.BookingResult{
			PNR:        pnr,
			Status:     res.BookingStatus,
			TotalFare:  totalFare,
			Passengers: outcomes,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetBooking returns the reservation and its passengers.
func (s *Service) GetBooking(ctx context.Context, pnr string) (*models.Reservation, []models.ReservationPassenger, error) {
	res, err := s.DB.GetReservation(ctx, nil, pnr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, fmt.Errorf("pnr %s: %w", pnr, ErrNotFound)
		}
		return nil, nil, err
	}
	passengers, err := s.DB.GetPassengers(ctx, nil, pnr)
	if err != nil {
		return nil, nil, err
	}
	return res, passengers, nil
}

// GetBookingDetails is the enriched projection used for ticket output.
func (s *Service) GetBookingDetails(ctx context.Context, pnr string) (*models.BookingDetails, error) {
	details, err := s.DB.BookingDetails(ctx, pnr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("pnr %s: %w", pnr, ErrNotFound)
		}
		return nil, err
	}
	return details, nil
}

// newPNR draws random PNRs until one is unused. Collisions over a 36^8
// space are rare, so the loop almost always runs once.
func (s *Service) newPNR(ctx context.Context, tx bun.IDB) (string, error) {
	for i := 0; i < 5; i++ {
		pnr := utils.GeneratePNR(s.PNRLength)
		exists, err := s.DB.PNRExists(ctx, tx, pnr)
		if err != nil {
			return "", err
		}
		if !exists {
			return pnr, nil
		}
	}
	return "", fmt.Errorf("could not generate an unused PNR")
}

// aggregateStatus rolls per-passenger outcomes up to the reservation:
// any waitlisted passenger makes the booking waitlisted, otherwise any
// RAC passenger makes it RAC, otherwise it is confirmed.
func aggregateStatus(outcomes []models.PassengerOutcome) models.BookingStatus {
	status := models.StatusConfirmed
	for _, o := range outcomes {
		switch o.Status {
		case models.StatusWaitlisted:
			return models.StatusWaitlisted
		case models.StatusRAC:
			status = models.StatusRAC
		}
	}
	return status
}

func validateRequest(req *models.BookingRequest) error {
	if len(req.Passengers) == 0 {
		return fmt.Errorf("passenger list is empty: %w", ErrInvalidRequest)
	}
	if req.TrainID == "" {
		return fmt.Errorf("train id is required: %w", ErrInvalidRequest)
	}
	if req.JourneyDate.IsZero() {
		return fmt.Errorf("journey date is required: %w", ErrInvalidRequest)
	}
	for _, p := range req.Passengers {
		if p.Name == "" {
			return fmt.Errorf("passenger name is required: %w", ErrInvalidRequest)
		}
		if p.Age < 0 || p.Age > 130 {
			return fmt.Errorf("passenger %s has invalid age %d: %w", p.Name, p.Age, ErrInvalidRequest)
		}
		if p.CoachClass == "" {
			return fmt.Errorf("passenger %s has no coach class: %w", p.Name, ErrInvalidRequest)
		}
	}
	return nil
}

// slotKeys returns the distinct inventory slots the request touches,
// sorted so concurrent bookings lock them in the same order.
func slotKeys(req *models.BookingRequest) []inventory.SlotKey {
	seen := make(map[string]inventory.SlotKey)
	for _, p := range req.Passengers {
		key := inventory.NewSlotKey(req.TrainID, p.CoachClass, req.JourneyDate)
		seen[key.String()] = key
	}
	keys := make([]inventory.SlotKey, 0, len(seen))
	for _, k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

func slotNames(keys []inventory.SlotKey) []string {
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.String()
	}
	return names
}
