package pricing

import (
	"context"
	"time"

	"ms-reservation/internal/models"

	"github.com/uptrace/bun"
)

// DB is the bun-backed PricingReader used in production wiring.
type DB struct {
	Bun *bun.DB
}

func (d *DB) GetBaseFare(ctx context.Context, trainID string, class models.CoachClass) (*models.FareRule, error) {
	var rule models.FareRule
	err := d.Bun.NewSelect().
		Model(&rule).
		Where("train_id = ?", trainID).
		Where("coach_class = ?", class).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (d *DB) GetOverride(ctx context.Context, trainID string, class models.CoachClass, date time.Time) (*models.DynamicPricing, error) {
	var override models.DynamicPricing
	err := d.Bun.NewSelect().
		Model(&override).
		Where("train_id = ?", trainID).
		Where("coach_class = ?", class).
		Where("journey_date = ?", models.JourneyDay(date)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &override, nil
}

func (d *DB) GetQuota(ctx context.Context, quotaID int64) (*models.Quota, error) {
	var quota models.Quota
	err := d.Bun.NewSelect().
		Model(&quota).
		Where("quota_id = ?", quotaID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &quota, nil
}
