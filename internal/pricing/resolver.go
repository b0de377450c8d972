package pricing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-reservation/internal/models"
)

// ErrPricingNotFound means no base fare entry exists for a train and
// coach class. A missing fare never silently defaults to zero.
var ErrPricingNotFound = errors.New("no fare configured")

const (
	childFareFactor  = 0.5
	seniorFareFactor = 0.6
)

type PricingReader interface {
	GetBaseFare(ctx context.Context, trainID string, class models.CoachClass) (*models.FareRule, error)
	GetOverride(ctx context.Context, trainID string, class models.CoachClass, date time.Time) (*models.DynamicPricing, error)
	GetQuota(ctx context.Context, quotaID int64) (*models.Quota, error)
}

// Fare is the resolved price for one train/class/date, before the
// passenger-category concession is applied.
type Fare struct {
	AdultFare float64
	Quota     *models.Quota
}

// ForCategory applies the concession: children travel at half fare,
// seniors at 60% of the adult fare.
func (f *Fare) ForCategory(cat models.PassengerCategory) float64 {
	switch cat {
	case models.CategoryChild:
		return f.AdultFare * childFareFactor
	case models.CategorySenior:
		return f.AdultFare * seniorFareFactor
	default:
		return f.AdultFare
	}
}

type Resolver struct {
	DB PricingReader
}

func NewResolver(db PricingReader) *Resolver {
	return &Resolver{DB: db}
}

// Resolve returns the applicable fare for the train/class/date and the
// quota bucket when one is requested. A dynamic-pricing override for
// the exact (train, class, date) key wins over the base fare.
func (r *Resolver) Resolve(ctx context.Context, trainID string, class models.CoachClass, date time.Time, quotaID int64) (*Fare, error) {
	rule, err := r.DB.GetBaseFare(ctx, trainID, class)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("train %s class %s: %w", trainID, class, ErrPricingNotFound)
		}
		return nil, fmt.Errorf("fare lookup for train %s class %s: %w", trainID, class, err)
	}

	fare := &Fare{AdultFare: rule.BaseFare}

	override, err := r.DB.GetOverride(ctx, trainID, class, models.JourneyDay(date))
	switch {
	case err == nil && override.DynamicFare > 0:
		fare.AdultFare = override.DynamicFare
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("dynamic pricing lookup for train %s class %s: %w", trainID, class, err)
	}

	if quotaID != 0 {
		quota, err := r.DB.GetQuota(ctx, quotaID)
		switch {
		case err == nil:
			fare.Quota = quota
		case errors.Is(err, sql.ErrNoRows):
			// unknown quota bucket: the booking proceeds unquota'd
		default:
			return nil, fmt.Errorf("quota %d lookup: %w", quotaID, err)
		}
	}

	return fare, nil
}
