package db

import (
	"context"
	"database/sql"
	"time"

	"ms-reservation/internal/inventory"
	"ms-reservation/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// RunInTx wraps the whole allocate-and-persist unit in one database
// transaction: either the inventory mutations and the reservation rows
// all commit, or none do.
func (d *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.IDB) error) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, tx)
	})
}

func (d *DB) db(idb bun.IDB) bun.IDB {
	if idb != nil {
		return idb
	}
	return d.Bun
}

// ---------------- RESERVATIONS ----------------

func (d *DB) PNRExists(ctx context.Context, idb bun.IDB, pnr string) (bool, error) {
	return d.db(idb).NewSelect().
		Model((*models.Reservation)(nil)).
		Where("pnr = ?", pnr).
		Exists(ctx)
}

// InsertReservation writes the reservation together with its passenger
// rows. Callers invoke it inside RunInTx.
func (d *DB) InsertReservation(ctx context.Context, idb bun.IDB, res *models.Reservation, passengers []models.ReservationPassenger) error {
	if _, err := d.db(idb).NewInsert().Model(res).Exec(ctx); err != nil {
		return err
	}
	for i := range passengers {
		passengers[i].PNR = res.PNR
	}
	_, err := d.db(idb).NewInsert().Model(&passengers).Exec(ctx)
	return err
}

func (d *DB) GetReservation(ctx context.Context, idb bun.IDB, pnr string) (*models.Reservation, error) {
	var res models.Reservation
	err := d.db(idb).NewSelect().
		Model(&res).
		Where("pnr = ?", pnr).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (d *DB) GetPassengers(ctx context.Context, idb bun.IDB, pnr string) ([]models.ReservationPassenger, error) {
	var passengers []models.ReservationPassenger
	err := d.db(idb).NewSelect().
		Model(&passengers).
		Where("pnr = ?", pnr).
		Order("reservation_passenger_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return passengers, nil
}

// MarkCancelled flips the reservation and every passenger to cancelled.
func (d *DB) MarkCancelled(ctx context.Context, idb bun.IDB, pnr string) error {
	if _, err := d.db(idb).NewUpdate().
		Model((*models.Reservation)(nil)).
		Set("booking_status = ?", models.StatusCancelled).
		Where("pnr = ?", pnr).
		Exec(ctx); err != nil {
		return err
	}
	_, err := d.db(idb).NewUpdate().
		Model((*models.ReservationPassenger)(nil)).
		Set("ticket_status = ?", models.StatusCancelled).
		Where("pnr = ?", pnr).
		Exec(ctx)
	return err
}

func (d *DB) UpdateReservationStatus(ctx context.Context, idb bun.IDB, pnr string, status models.BookingStatus) error {
	_, err := d.db(idb).NewUpdate().
		Model((*models.Reservation)(nil)).
		Set("booking_status = ?", status).
		Where("pnr = ?", pnr).
		Exec(ctx)
	return err
}

// UpdatePassengerOutcome persists a promotion: new status, seat and a
// cleared waitlist position.
func (d *DB) UpdatePassengerOutcome(ctx context.Context, idb bun.IDB, p *models.ReservationPassenger) error {
	_, err := d.db(idb).NewUpdate().
		Model(p).
		Column("ticket_status", "seat_number", "waitlist_position").
		Where("reservation_passenger_id = ?", p.PassengerID).
		Exec(ctx)
	return err
}

// OldestWaiting returns the longest-waiting passenger with the given
// status on a slot, excluding the reservation being cancelled.
// Passenger ids are assigned in allocation order under the slot lock,
// so ordering by id is FIFO arrival order.
func (d *DB) OldestWaiting(ctx context.Context, idb bun.IDB, key inventory.SlotKey, status models.BookingStatus, excludePNR string) (*models.ReservationPassenger, error) {
	var p models.ReservationPassenger
	err := d.db(idb).NewSelect().
		Model(&p).
		Join("JOIN reservations AS r ON r.pnr = reservation_passenger.pnr").
		Where("r.train_id = ?", key.TrainID).
		Where("r.journey_date = ?", key.JourneyDate).
		Where("reservation_passenger.coach_class = ?", key.CoachClass).
		Where("reservation_passenger.ticket_status = ?", status).
		Where("reservation_passenger.pnr != ?", excludePNR).
		Order("reservation_passenger.reservation_passenger_id ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ---------------- QUOTA USAGE ----------------

// AdjustQuotaUsage moves the seats_allocated counter for a
// train/date/quota bucket, creating the row on first use.
func (d *DB) AdjustQuotaUsage(ctx context.Context, idb bun.IDB, trainID string, date time.Time, quotaID int64, delta int) error {
	res, err := d.db(idb).NewUpdate().
		Model((*models.QuotaAllocation)(nil)).
		Set("seats_allocated = seats_allocated + ?", delta).
		Where("train_id = ?", trainID).
		Where("journey_date = ?", date).
		Where("quota_id = ?", quotaID).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 && delta > 0 {
		alloc := &models.QuotaAllocation{
			TrainID:        trainID,
			JourneyDate:    date,
			QuotaID:        quotaID,
			SeatsAllocated: delta,
		}
		_, err = d.db(idb).NewInsert().Model(alloc).Exec(ctx)
	}
	return err
}

// ---------------- PROJECTIONS ----------------

// BookingDetails reassembles the read-only projection consumed by
// ticket rendering: reservation joined with train and station names,
// plus the passenger list.
func (d *DB) BookingDetails(ctx context.Context, pnr string) (*models.BookingDetails, error) {
	var details models.BookingDetails
	err := d.Bun.NewSelect().
		ColumnExpr("r.pnr, r.train_id, r.journey_date, r.source_station, r.destination_station").
		ColumnExpr("r.booking_status, r.total_fare, r.booking_date").
		ColumnExpr("t.train_name").
		ColumnExpr("src.station_name AS source_station_name").
		ColumnExpr("dst.station_name AS destination_station_name").
		TableExpr("reservations AS r").
		Join("JOIN trains AS t ON t.train_id = r.train_id").
		Join("JOIN stations AS src ON src.station_code = r.source_station").
		Join("JOIN stations AS dst ON dst.station_code = r.destination_station").
		Where("r.pnr = ?", pnr).
		Limit(1).
		Scan(ctx, &details)
	if err != nil {
		return nil, err
	}

	passengers, err := d.GetPassengers(ctx, nil, pnr)
	if err != nil {
		return nil, err
	}
	details.Passengers = make([]models.PassengerOutcome, len(passengers))
	for i, p := range passengers {
		details.Passengers[i] = models.PassengerOutcome{
			Name:             p.Name,
			Age:              p.Age,
			Category:         p.Category,
			CoachClass:       p.CoachClass,
			Status:           p.TicketStatus,
			SeatNumber:       p.SeatNumber,
			WaitlistPosition: p.WaitlistPosition,
			Fare:             p.Fare,
		}
	}
	return &details, nil
}
