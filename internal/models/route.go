package models

import (
	"github.com/uptrace/bun"
)

type Route struct {
	bun.BaseModel `bun:"table:routes"`

	RouteID            int64   `bun:"route_id,pk,autoincrement" json:"route_id"`
	SourceStation      string  `bun:"source_station,notnull" json:"source_station"`
	DestinationStation string  `bun:"destination_station,notnull" json:"destination_station"`
	TotalDistance      float64 `bun:"total_distance,notnull" json:"total_distance"`
}

// RouteStation is one ordered stop on a route. Sequence numbers are
// strictly increasing along the route and a station appears at most once.
type RouteStation struct {
	bun.BaseModel `bun:"table:route_stations"`

	RouteID            int64   `bun:"route_id,pk" json:"route_id"`
	StationCode        string  `bun:"station_code,pk" json:"station_code"`
	SequenceNumber     int     `bun:"sequence_number,notnull" json:"sequence_number"`
	DistanceFromSource float64 `bun:"distance_from_source,notnull" json:"distance_from_source"`
}

// TrainSchedule links a train to the route it runs. Route lookups for a
// train go through this table.
type TrainSchedule struct {
	bun.BaseModel `bun:"table:train_schedules"`

	ScheduleID     int64  `bun:"schedule_id,pk,autoincrement" json:"schedule_id"`
	TrainID        string `bun:"train_id,notnull" json:"train_id"`
	RouteID        int64  `bun:"route_id,notnull" json:"route_id"`
	DayOfOperation string `bun:"day_of_operation,notnull" json:"day_of_operation"`
}

// RouteStop is the joined projection returned by route queries: one stop
// with its station name and position on the route.
type RouteStop struct {
	StationCode    string `bun:"station_code" json:"station_code"`
	StationName    string `bun:"station_name" json:"station_name"`
	SequenceNumber int    `bun:"sequence_number" json:"sequence_number"`
}
