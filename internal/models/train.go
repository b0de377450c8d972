package models

import (
	"github.com/uptrace/bun"
)

// TrainType mirrors the operating categories used by the schedule planners.
type TrainType string

const (
	TrainExpress    TrainType = "express"
	TrainPassenger  TrainType = "passenger"
	TrainSpecial    TrainType = "special"
	TrainDevotional TrainType = "devotional"
)

type Frequency string

const (
	FrequencyDaily    Frequency = "daily"
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiWeekly Frequency = "bi-weekly"
	FrequencySpecial  Frequency = "special"
)

// Train is immutable reference data supplied by the reference-data provider.
type Train struct {
	bun.BaseModel `bun:"table:trains"`

	TrainID           string    `bun:"train_id,pk" json:"train_id"`
	TrainName         string    `bun:"train_name,notnull" json:"train_name"`
	TrainType         TrainType `bun:"train_type,notnull" json:"train_type"`
	TotalCapacity     int       `bun:"total_capacity,notnull" json:"total_capacity"`
	Frequency         Frequency `bun:"frequency,notnull" json:"frequency"`
	SpecialAttributes string    `bun:"special_attributes,nullzero" json:"special_attributes,omitempty"`
}

type Station struct {
	bun.BaseModel `bun:"table:stations"`

	StationCode    string `bun:"station_code,pk" json:"station_code"`
	StationName    string `bun:"station_name,notnull" json:"station_name"`
	TotalPlatforms int    `bun:"total_platforms,notnull" json:"total_platforms"`
	Facilities     string `bun:"facilities,nullzero" json:"facilities,omitempty"`
}
