package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Quota struct {
	bun.BaseModel `bun:"table:quotas"`

	QuotaID       int64  `bun:"quota_id,pk,autoincrement" json:"quota_id"`
	QuotaName     string `bun:"quota_name,notnull" json:"quota_name"`
	Description   string `bun:"quota_description,nullzero" json:"description,omitempty"`
	PriorityLevel int    `bun:"priority_level,notnull" json:"priority_level"`
}

// QuotaAllocation tracks how many seats of a quota bucket have been
// consumed for a train/date. The booking flow only ever touches
// SeatsAllocated; the rest is reference data.
type QuotaAllocation struct {
	bun.BaseModel `bun:"table:quota_allocations"`

	AllocationID   int64     `bun:"allocation_id,pk,autoincrement" json:"allocation_id"`
	TrainID        string    `bun:"train_id,notnull" json:"train_id"`
	JourneyDate    time.Time `bun:"journey_date,notnull" json:"journey_date"`
	QuotaID        int64     `bun:"quota_id,notnull" json:"quota_id"`
	SeatsAllocated int       `bun:"seats_allocated,notnull,default:0" json:"seats_allocated"`
}

// FareRule is the base fare for a train/coach-class pair. Unique per
// (train_id, coach_class); a missing row means the combination is not
// priced and cannot be booked.
type FareRule struct {
	bun.BaseModel `bun:"table:fare_rules"`

	FareID     int64      `bun:"fare_id,pk,autoincrement" json:"fare_id"`
	TrainID    string     `bun:"train_id,notnull" json:"train_id"`
	CoachClass CoachClass `bun:"coach_class,notnull" json:"coach_class"`
	BaseFare   float64    `bun:"base_fare,notnull" json:"base_fare"`
}

// DynamicPricing overrides the base fare for a specific journey date.
// Unique per (train_id, coach_class, journey_date).
type DynamicPricing struct {
	bun.BaseModel `bun:"table:dynamic_pricing"`

	PricingID   int64      `bun:"pricing_id,pk,autoincrement" json:"pricing_id"`
	TrainID     string     `bun:"train_id,notnull" json:"train_id"`
	CoachClass  CoachClass `bun:"coach_class,notnull" json:"coach_class"`
	JourneyDate time.Time  `bun:"journey_date,notnull" json:"journey_date"`
	DynamicFare float64    `bun:"dynamic_fare,notnull" json:"dynamic_fare"`
	Reason      string     `bun:"reason,nullzero" json:"reason,omitempty"`
}
