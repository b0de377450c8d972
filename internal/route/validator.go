package route

import (
	"context"
	"errors"
	"fmt"

	"ms-reservation/internal/models"
)

var (
	// ErrInvalidRoute means the train has no route or a station is not
	// on it.
	ErrInvalidRoute = errors.New("invalid route")
	// ErrBadSequence means the destination does not come after the
	// source in the route's stop order.
	ErrBadSequence = errors.New("destination not after source")
)

type RouteReader interface {
	GetRouteStops(ctx context.Context, trainID string) ([]models.RouteStop, error)
}

// Validator checks that a journey's source and destination lie on the
// train's route in travel order. It only reads reference data.
type Validator struct {
	DB RouteReader
}

func NewValidator(db RouteReader) *Validator {
	return &Validator{DB: db}
}

// Validate returns the train's ordered stops when source and
// destination are both on the route with destination strictly after
// source.
func (v *Validator) Validate(ctx context.Context, trainID, source, destination string) ([]models.RouteStop, error) {
	stops, err := v.DB.GetRouteStops(ctx, trainID)
	if err != nil {
		return nil, fmt.Errorf("route lookup for train %s: %w", trainID, err)
	}
	if len(stops) == 0 {
		return nil, fmt.Errorf("train %s has no scheduled route: %w", trainID, ErrInvalidRoute)
	}

	srcSeq, dstSeq := -1, -1
	for _, stop := range stops {
		switch stop.StationCode {
		case source:
			srcSeq = stop.SequenceNumber
		case destination:
			dstSeq = stop.SequenceNumber
		}
	}

	if srcSeq < 0 {
		return nil, fmt.Errorf("source station %s is not on the route of train %s: %w", source, trainID, ErrInvalidRoute)
	}
	if dstSeq < 0 {
		return nil, fmt.Errorf("destination station %s is not on the route of train %s: %w", destination, trainID, ErrInvalidRoute)
	}
	if dstSeq <= srcSeq {
		return nil, fmt.Errorf("station %s (stop %d) does not come after %s (stop %d) on train %s: %w",
			destination, dstSeq, source, srcSeq, trainID, ErrBadSequence)
	}

	return stops, nil
}
