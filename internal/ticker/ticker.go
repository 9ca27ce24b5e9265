// Package ticker is the Schedule Ticker (§4.2): the loop that advances
// recurring job definitions' schedule.next_run_at and enqueues them onto the
// pending queue, once per tick, exactly once per fire — guaranteed by a
// compare-and-set against the durable store rather than a distributed lock.
//
// Grounded on the teacher's internal/scheduler/dispatcher.go (ticker.C loop
// shape, logger.With("component", ...)) and
// original_source/scheduler/scheduler.py's schedule_trigger_loop (per-domain
// sweep, CAS via find_one_and_update in the original; Postgres
// UPDATE ... WHERE here).
package ticker

import (
	"context"
	"log/slog"
	"time"

	"github.com/hydra-scheduler/hydra/internal/coordstore"
	"github.com/hydra-scheduler/hydra/internal/eventbus"
	"github.com/hydra-scheduler/hydra/internal/metrics"
	"github.com/hydra-scheduler/hydra/internal/repository"
	"github.com/hydra-scheduler/hydra/internal/scheduleengine"
)

// BatchSize bounds how many due jobs one domain sweep claims per tick.
const BatchSize = 100

type Ticker struct {
	jobs   repository.JobRepository
	coord  *coordstore.Store
	events *eventbus.Bus
	logger *slog.Logger

	interval time.Duration
}

func New(jobs repository.JobRepository, coord *coordstore.Store, events *eventbus.Bus, logger *slog.Logger, interval time.Duration) *Ticker {
	return &Ticker{
		jobs:     jobs,
		coord:    coord,
		events:   events,
		logger:   logger.With("component", "ticker"),
		interval: interval,
	}
}

func (t *Ticker) Start(ctx context.Context) {
	tick := time.NewTicker(t.interval)
	defer tick.Stop()

	t.logger.Info("ticker started", "interval", t.interval)

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("ticker shut down")
			return
		case <-tick.C:
			t.tick(ctx)
		}
	}
}

func (t *Ticker) tick(ctx context.Context) {
	domains, err := t.coord.Domains(ctx)
	if err != nil {
		t.logger.Error("list domains", "error", err)
		return
	}

	for _, d := range domains {
		t.sweepDomain(ctx, d)
	}
}

// sweepDomain performs §4.2 steps 2-5 for one domain: find due jobs, advance
// each pure schedule, CAS the result into the durable store, and only on a
// winning CAS enqueue the fire and publish job_scheduled.
func (t *Ticker) sweepDomain(ctx context.Context, domainName string) {
	now := time.Now().UTC()
	due, err := t.jobs.DueForSchedule(ctx, domainName, now, BatchSize)
	if err != nil {
		t.logger.Error("due jobs", "domain", domainName, "error", err)
		return
	}

	for _, job := range due {
		previous := job.Schedule.NextRunAt

		advanced, err := scheduleengine.Advance(job.Schedule)
		if err != nil {
			t.logger.Error("advance schedule", "job_id", job.ID, "error", err)
			continue
		}

		ok, err := t.jobs.AdvanceSchedule(ctx, job.ID, previous, advanced)
		if err != nil {
			t.logger.Error("cas advance schedule", "job_id", job.ID, "error", err)
			continue
		}
		if !ok {
			// Another ticker instance won the race on this job this tick.
			metrics.ScheduleCASConflictsTotal.WithLabelValues(domainName).Inc()
			continue
		}
		metrics.ScheduleAdvancesTotal.WithLabelValues(domainName).Inc()

		if err := t.coord.EnqueuePending(ctx, domainName, job.ID, job.Priority); err != nil {
			t.logger.Error("enqueue pending", "job_id", job.ID, "error", err)
			continue
		}

		t.events.Publish(eventbus.JobScheduled, map[string]any{
			"job_id": job.ID,
			"domain": domainName,
		})
		t.logger.Info("schedule advanced and fired", "job_id", job.ID, "domain", domainName, "next_run_at", advanced.NextRunAt)
	}
}
