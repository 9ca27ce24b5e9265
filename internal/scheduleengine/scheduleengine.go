// Package scheduleengine implements the pure recurrence math (§4.1) that the
// Schedule Ticker relies on: computing a schedule's first and successive
// next_run_at within its start/end window.
//
// Grounded on the teacher's scheduler/dispatcher.go computeNext helper
// (cron.ParseStandard + sched.Next), generalized to interval mode and to
// the start/end clamp original_source/scheduler/utils/schedule.py applies.
package scheduleengine

import (
	"time"

	"github.com/hydra-scheduler/hydra/internal/domain"
	"github.com/robfig/cron/v3"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Initialize computes the first next_run_at for a freshly created or
// re-enabled schedule, as of now.
func Initialize(s domain.Schedule, now time.Time) (domain.Schedule, error) {
	out := s
	if !s.Enabled || s.Mode == domain.ScheduleImmediate {
		out.NextRunAt = nil
		return out, nil
	}

	loc, err := resolveLocation(s.Timezone)
	if err != nil {
		return domain.Schedule{}, err
	}
	now = now.In(loc)

	base := now
	if s.StartAt != nil && s.StartAt.After(base) {
		base = s.StartAt.In(loc)
	}

	next, err := firstFireAtOrAfter(s, base, loc)
	if err != nil {
		return domain.Schedule{}, err
	}

	out.NextRunAt = clamp(next, s.EndAt)
	return out, nil
}

// Advance computes the schedule's next occurrence after its current
// next_run_at (or now, if unset). If the computed occurrence falls past
// end_at, the schedule is clamped to (next_run_at=nil, enabled=false) —
// a recurring job's natural exhaustion. An already exhausted schedule
// (enabled=false, next_run_at=nil) is returned unchanged.
func Advance(s domain.Schedule) (domain.Schedule, error) {
	out := s
	if !s.Enabled && s.NextRunAt == nil {
		return out, nil
	}

	loc, err := resolveLocation(s.Timezone)
	if err != nil {
		return domain.Schedule{}, err
	}

	base := time.Now().In(loc)
	if s.NextRunAt != nil {
		base = s.NextRunAt.In(loc)
	}

	next, err := nextFireAfter(s, base, loc)
	if err != nil {
		return domain.Schedule{}, err
	}

	clamped := clamp(next, s.EndAt)
	out.NextRunAt = clamped
	if clamped == nil {
		out.Enabled = false
	}
	return out, nil
}

func firstFireAtOrAfter(s domain.Schedule, base time.Time, loc *time.Location) (time.Time, error) {
	switch s.Mode {
	case domain.ScheduleCron:
		sched, err := parser.Parse(s.CronExpr)
		if err != nil {
			return time.Time{}, domain.ErrInvalidCronExpr
		}
		// cron.Next is strictly-after; step back a tick so a base that is
		// itself a valid fire time is still returned.
		return sched.Next(base.Add(-time.Second)), nil
	case domain.ScheduleInterval:
		if s.IntervalSeconds <= 0 {
			return time.Time{}, domain.ErrInvalidInterval
		}
		return base.In(loc), nil
	default:
		return time.Time{}, domain.ErrInvalidScheduleMode
	}
}

func nextFireAfter(s domain.Schedule, base time.Time, loc *time.Location) (time.Time, error) {
	switch s.Mode {
	case domain.ScheduleCron:
		sched, err := parser.Parse(s.CronExpr)
		if err != nil {
			return time.Time{}, domain.ErrInvalidCronExpr
		}
		return sched.Next(base), nil
	case domain.ScheduleInterval:
		if s.IntervalSeconds <= 0 {
			return time.Time{}, domain.ErrInvalidInterval
		}
		return base.Add(time.Duration(s.IntervalSeconds) * time.Second).In(loc), nil
	default:
		return time.Time{}, domain.ErrInvalidScheduleMode
	}
}

func clamp(candidate time.Time, endAt *time.Time) *time.Time {
	if endAt != nil && candidate.After(*endAt) {
		return nil
	}
	c := candidate
	return &c
}

func resolveLocation(tz string) (*time.Location, error) {
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, domain.ErrInvalidScheduleMode
	}
	return loc, nil
}
