package pricing_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"ms-reservation/internal/models"
	"ms-reservation/internal/pricing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockPricingReader struct {
	mock.Mock
}

func (m *MockPricingReader) GetBaseFare(ctx context.Context, trainID string, class models.CoachClass) (*models.FareRule, error) {
	args := m.Called(ctx, trainID, class)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FareRule), args.Error(1)
}

func (m *MockPricingReader) GetOverride(ctx context.Context, trainID string, class models.CoachClass, date time.Time) (*models.DynamicPricing, error) {
	args := m.Called(ctx, trainID, class, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DynamicPricing), args.Error(1)
}

func (m *MockPricingReader) GetQuota(ctx context.Context, quotaID int64) (*models.Quota, error) {
	args := m.Called(ctx, quotaID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Quota), args.Error(1)
}

var journey = time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)

func TestResolve_BaseFareStandsWithoutOverride(t *testing.T) {
	reader := new(MockPricingReader)
	reader.On("GetBaseFare", mock.Anything, "T101", models.CoachAC2).
		Return(&models.FareRule{TrainID: "T101", CoachClass: models.CoachAC2, BaseFare: 1200}, nil)
	reader.On("GetOverride", mock.Anything, "T101", models.CoachAC2, journey).
		Return(nil, sql.ErrNoRows)

	r := pricing.NewResolver(reader)
	fare, err := r.Resolve(context.Background(), "T101", models.CoachAC2, journey, 0)

	assert.NoError(t, err)
	assert.Equal(t, 1200.0, fare.AdultFare)
	assert.Nil(t, fare.Quota)
}

func TestResolve_OverrideWins(t *testing.T) {
	reader := new(MockPricingReader)
	reader.On("GetBaseFare", mock.Anything, "T101", models.CoachAC2).
		Return(&models.FareRule{BaseFare: 1200}, nil)
	reader.On("GetOverride", mock.Anything, "T101", models.CoachAC2, journey).
		Return(&models.DynamicPricing{DynamicFare: 1550, Reason: "festival surge"}, nil)

	r := pricing.NewResolver(reader)
	fare, err := r.Resolve(context.Background(), "T101", models.CoachAC2, journey, 0)

	assert.NoError(t, err)
	assert.Equal(t, 1550.0, fare.AdultFare)
}

func TestResolve_MissingBaseFare(t *testing.T) {
	reader := new(MockPricingReader)
	reader.On("GetBaseFare", mock.Anything, "T101", models.CoachExecutive).
		Return(nil, sql.ErrNoRows)

	r := pricing.NewResolver(reader)
	_, err := r.Resolve(context.Background(), "T101", models.CoachExecutive, journey, 0)

	assert.ErrorIs(t, err, pricing.ErrPricingNotFound)
	assert.Contains(t, err.Error(), "T101")
	assert.Contains(t, err.Error(), "executive")
}

func TestResolve_QuotaAttached(t *testing.T) {
	reader := new(MockPricingReader)
	reader.On("GetBaseFare", mock.Anything, "T101", models.CoachSleeper).
		Return(&models.FareRule{BaseFare: 400}, nil)
	reader.On("GetOverride", mock.Anything, "T101", models.CoachSleeper, journey).
		Return(nil, sql.ErrNoRows)
	reader.On("GetQuota", mock.Anything, int64(2)).
		Return(&models.Quota{QuotaID: 2, QuotaName: "tatkal", PriorityLevel: 1}, nil)

	r := pricing.NewResolver(reader)
	fare, err := r.Resolve(context.Background(), "T101", models.CoachSleeper, journey, 2)

	assert.NoError(t, err)
	assert.NotNil(t, fare.Quota)
	assert.Equal(t, "tatkal", fare.Quota.QuotaName)
}

func TestFareForCategory(t *testing.T) {
	fare := &pricing.Fare{AdultFare: 1000}

	assert.Equal(t, 1000.0, fare.ForCategory(models.CategoryAdult))
	assert.Equal(t, 500.0, fare.ForCategory(models.CategoryChild))
	assert.Equal(t, 600.0, fare.ForCategory(models.CategorySenior))
}
