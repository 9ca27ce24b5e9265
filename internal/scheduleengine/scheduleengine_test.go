package scheduleengine_test

import (
	"testing"
	"time"

	"github.com/hydra-scheduler/hydra/internal/domain"
	"github.com/hydra-scheduler/hydra/internal/scheduleengine"
)

func TestInitialize_ImmediateHasNoNextRunAt(t *testing.T) {
	s := domain.Schedule{Mode: domain.ScheduleImmediate, Enabled: true}
	out, err := scheduleengine.Initialize(s, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.NextRunAt != nil {
		t.Fatalf("expected nil NextRunAt, got %v", out.NextRunAt)
	}
}

func TestInitialize_DisabledHasNoNextRunAt(t *testing.T) {
	s := domain.Schedule{Mode: domain.ScheduleCron, CronExpr: "* * * * *", Enabled: false}
	out, err := scheduleengine.Initialize(s, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.NextRunAt != nil {
		t.Fatalf("expected nil NextRunAt, got %v", out.NextRunAt)
	}
}

func TestInitialize_IntervalUsesStartAt(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	start := now.Add(1 * time.Hour)
	s := domain.Schedule{Mode: domain.ScheduleInterval, IntervalSeconds: 60, Enabled: true, StartAt: &start}

	out, err := scheduleengine.Initialize(s, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.NextRunAt == nil || !out.NextRunAt.Equal(start) {
		t.Fatalf("expected NextRunAt = %v, got %v", start, out.NextRunAt)
	}
}

func TestInitialize_InvalidCronExpr(t *testing.T) {
	s := domain.Schedule{Mode: domain.ScheduleCron, CronExpr: "not a cron expr", Enabled: true}
	if _, err := scheduleengine.Initialize(s, time.Now()); err != domain.ErrInvalidCronExpr {
		t.Fatalf("expected ErrInvalidCronExpr, got %v", err)
	}
}

func TestInitialize_NonPositiveInterval(t *testing.T) {
	s := domain.Schedule{Mode: domain.ScheduleInterval, IntervalSeconds: 0, Enabled: true}
	if _, err := scheduleengine.Initialize(s, time.Now()); err != domain.ErrInvalidInterval {
		t.Fatalf("expected ErrInvalidInterval, got %v", err)
	}
}

func TestInitialize_ClampsPastEndAtToNil(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := now.Add(-1 * time.Hour) // already passed
	s := domain.Schedule{Mode: domain.ScheduleInterval, IntervalSeconds: 60, Enabled: true, EndAt: &end}

	out, err := scheduleengine.Initialize(s, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.NextRunAt != nil {
		t.Fatalf("expected nil NextRunAt past end_at, got %v", out.NextRunAt)
	}
}

func TestAdvance_IntervalStepsForward(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := domain.Schedule{Mode: domain.ScheduleInterval, IntervalSeconds: 60, Enabled: true, NextRunAt: &base}

	out, err := scheduleengine.Advance(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := base.Add(60 * time.Second)
	if out.NextRunAt == nil || !out.NextRunAt.Equal(want) {
		t.Fatalf("expected NextRunAt = %v, got %v", want, out.NextRunAt)
	}
	if !out.Enabled {
		t.Fatal("expected schedule to remain enabled")
	}
}

func TestAdvance_PastEndAtDisablesSchedule(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := base.Add(30 * time.Second) // next interval tick (60s) overshoots this
	s := domain.Schedule{
		Mode: domain.ScheduleInterval, IntervalSeconds: 60, Enabled: true,
		NextRunAt: &base, EndAt: &end,
	}

	out, err := scheduleengine.Advance(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.NextRunAt != nil {
		t.Fatalf("expected nil NextRunAt, got %v", out.NextRunAt)
	}
	if out.Enabled {
		t.Fatal("expected schedule to be disabled after exhaustion")
	}
}

func TestAdvance_AdvanceOnExhaustedScheduleStaysExhausted(t *testing.T) {
	s := domain.Schedule{Mode: domain.ScheduleInterval, IntervalSeconds: 60, Enabled: false, NextRunAt: nil}

	out, err := scheduleengine.Advance(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// An exhausted schedule (disabled, nil NextRunAt) stays exhausted rather
	// than being restarted from now.
	if out.NextRunAt != nil || out.Enabled {
		t.Fatalf("expected exhausted schedule to stay (nil, disabled), got (%v, %v)", out.NextRunAt, out.Enabled)
	}
}

func TestAdvance_CronProducesStrictlyLaterTime(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := domain.Schedule{Mode: domain.ScheduleCron, CronExpr: "0 * * * *", Enabled: true, NextRunAt: &base}

	out, err := scheduleengine.Advance(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.NextRunAt.After(base) {
		t.Fatalf("expected NextRunAt %v to be strictly after %v", out.NextRunAt, base)
	}
}
