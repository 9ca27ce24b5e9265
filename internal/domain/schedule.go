package domain

import (
	"errors"
	"time"
)

var (
	ErrInvalidCronExpr   = errors.New("invalid cron expression")
	ErrInvalidInterval   = errors.New("interval_seconds must be greater than zero")
	ErrInvalidScheduleMode = errors.New("schedule mode must be one of immediate, cron, interval")
)

// ScheduleMode selects how a JobDefinition's next_run_at advances.
type ScheduleMode string

const (
	ScheduleImmediate ScheduleMode = "immediate"
	ScheduleCron      ScheduleMode = "cron"
	ScheduleInterval  ScheduleMode = "interval"
)

// Schedule is the pure recurrence record the Schedule Engine operates on.
// NextRunAt is the CAS field: the Schedule Ticker advances it only when the
// stored value still matches what it read.
type Schedule struct {
	Mode            ScheduleMode `json:"mode"`
	CronExpr        string       `json:"cronExpr,omitempty"`
	IntervalSeconds int          `json:"intervalSeconds,omitempty"`
	StartAt         *time.Time   `json:"startAt,omitempty"`
	EndAt           *time.Time   `json:"endAt,omitempty"`
	NextRunAt       *time.Time   `json:"nextRunAt"`
	Timezone        string       `json:"timezone,omitempty"`
	Enabled         bool         `json:"enabled"`
}
