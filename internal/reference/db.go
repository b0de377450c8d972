package reference

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ms-reservation/internal/models"

	"github.com/uptrace/bun"
)

var ErrNotFound = errors.New("not found")

// DB serves the read-only reference data: trains, stations, routes and
// schedules. It also backs the route validator.
type DB struct {
	Bun *bun.DB
}

func NewDB(bunDB *bun.DB) *DB {
	return &DB{Bun: bunDB}
}

func (d *DB) GetTrain(ctx context.Context, trainID string) (*models.Train, error) {
	var train models.Train
	err := d.Bun.NewSelect().
		Model(&train).
		Where("train_id = ?", trainID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("train %s: %w", trainID, ErrNotFound)
		}
		return nil, err
	}
	return &train, nil
}

func (d *DB) ListTrains(ctx context.Context) ([]models.Train, error) {
	var trains []models.Train
	err := d.Bun.NewSelect().
		Model(&trains).
		Order("train_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return trains, nil
}

func (d *DB) GetStation(ctx context.Context, code string) (*models.Station, error) {
	var station models.Station
	err := d.Bun.NewSelect().
		Model(&station).
		Where("station_code = ?", code).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("station %s: %w", code, ErrNotFound)
		}
		return nil, err
	}
	return &station, nil
}

// SearchStations matches the query against station codes and names.
func (d *DB) SearchStations(ctx context.Context, query string) ([]models.Station, error) {
	var stations []models.Station
	pattern := "%" + query + "%"
	err := d.Bun.NewSelect().
		Model(&stations).
		Where("station_code LIKE ? OR station_name LIKE ?", pattern, pattern).
		Order("station_code ASC").
		Limit(50).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return stations, nil
}

// GetRouteStops returns a train's halts in sequence order. An empty
// result means the train has no route configured.
func (d *DB) GetRouteStops(ctx context.Context, trainID string) ([]models.RouteStop, error) {
	var stops []models.RouteStop
	err := d.Bun.NewSelect().
		ColumnExpr("s.station_code, s.station_name, rs.sequence_number").
		TableExpr("train_schedules AS ts").
		Join("JOIN route_stations AS rs ON rs.route_id = ts.route_id").
		Join("JOIN stations AS s ON s.station_code = rs.station_code").
		Where("ts.train_id = ?", trainID).
		Order("rs.sequence_number ASC").
		Scan(ctx, &stops)
	if err != nil {
		return nil, err
	}
	return stops, nil
}
