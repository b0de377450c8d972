package reference_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"ms-reservation/internal/models"
	"ms-reservation/internal/reference"
	"ms-reservation/internal/route"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupReferenceDB(t *testing.T) *reference.DB {
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
	))

	seedReferenceData(t, bunDB)
	return reference.NewDB(bunDB)
}

func seedReferenceData(t *testing.T, bunDB *bun.DB) {
	t.Helper()
	ctx := context.Background()

	trains := []models.Train{
		{TrainID: "T101", TrainName: "Capital Express", TrainType: models.TrainExpress, TotalCapacity: 800, Frequency: models.FrequencyDaily},
		{TrainID: "T205", TrainName: "Coastal Mail", TrainType: models.TrainPassenger, TotalCapacity: 600, Frequency: models.FrequencyWeekly},
	}
	_, err := bunDB.NewInsert().Model(&trains).Exec(ctx)
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
}

func TestGetTrain(t *testing.T) {
	db := setupReferenceDB(t)

	train, err := db.GetTrain(context.Background(), "T101")
	require.NoError(t, err)
	assert.Equal(t, "Capital Express", train.TrainName)

	_, err = db.GetTrain(context.Background(), "T999")
	assert.True(t, errors.Is(err, reference.ErrNotFound))
}

func TestListTrains(t *testing.T) {
	db := setupReferenceDB(t)

	trains, err := db.ListTrains(context.Background())
	require.NoError(t, err)
	require.Len(t, trains, 2)
	assert.Equal(t, "T101", trains[0].TrainID)
}

func TestSearchStations(t *testing.T) {
	db := setupReferenceDB(t)

	byName, err := db.SearchStations(context.Background(), "Kanpur")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "CNB", byName[0].StationCode)

	byCode, err := db.SearchStations(context.Background(), "ND")
	require.NoError(t, err)
	require.Len(t, byCode, 1)
	assert.Equal(t, "New Delhi", byCode[0].StationName)

	none, err := db.SearchStations(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetRouteStops(t *testing.T) {
	db := setupReferenceDB(t)

	stops, err := db.GetRouteStops(context.Background(), "T101")
	require.NoError(t, err)
	require.Len(t, stops, 3)
	assert.Equal(t, "NDLS", stops[0].StationCode)
	assert.Equal(t, "Kanpur Central", stops[1].StationName)
	assert.Equal(t, 3, stops[2].SequenceNumber)

	empty, err := db.GetRouteStops(context.Background(), "T205")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

// The reference DB is also the route validator's reader.
func TestValidatorAgainstReferenceDB(t *testing.T) {
	db := setupReferenceDB(t)
	validator := route.NewValidator(db)

	stops, err := validator.Validate(context.Background(), "T101", "NDLS", "BCT")
	require.NoError(t, err)
	assert.Len(t, stops, 3)

	_, err = validator.Validate(context.Background(), "T101", "BCT", "NDLS")
	assert.True(t, errors.Is(err, route.ErrBadSequence))
}
