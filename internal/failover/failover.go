// Package failover is the Failover Monitor (§4.4): the sweep that finds
// workers whose heartbeat has gone stale, requeues their in-flight jobs, and
// marks the worker offline.
//
// Grounded on original_source/scheduler/utils/failover.py
// (find_offline_workers, requeue_jobs_for_worker, failover_once) and the
// teacher's internal/scheduler/reaper.go for the reap-loop shape.
package failover

import (
	"context"
	"log/slog"
	"time"

	"github.com/hydra-scheduler/hydra/internal/coordstore"
	"github.com/hydra-scheduler/hydra/internal/domain"
	"github.com/hydra-scheduler/hydra/internal/eventbus"
	"github.com/hydra-scheduler/hydra/internal/metrics"
	"github.com/hydra-scheduler/hydra/internal/notify"
	"github.com/hydra-scheduler/hydra/internal/repository"
)

// RequeuePriority is the priority a reclaimed job is requeued with.
// original_source's requeue_jobs_for_worker uses ZADD with score 5.
const RequeuePriority = 5

// NotifyTo is the address the §9-encouraged eviction alert is sent to. It's
// a package variable rather than a Monitor field. The alert always goes
// through the Monitor's Sender (whatever NotifyTo holds, empty included); a
// send failure is logged as a warning and does not affect the reclaim.
var NotifyTo = "ops@hydra.local"

type Monitor struct {
	coord  *coordstore.Store
	runs   repository.RunRepository
	events *eventbus.Bus
	notify notify.Sender
	logger *slog.Logger

	heartbeatTTL time.Duration
	interval     time.Duration
}

func New(coord *coordstore.Store, runs repository.RunRepository, events *eventbus.Bus, sender notify.Sender, logger *slog.Logger, heartbeatTTL, interval time.Duration) *Monitor {
	return &Monitor{
		coord:        coord,
		runs:         runs,
		events:       events,
		notify:       sender,
		logger:       logger.With("component", "failover"),
		heartbeatTTL: heartbeatTTL,
		interval:     interval,
	}
}

func (m *Monitor) Start(ctx context.Context) {
	tick := time.NewTicker(m.interval)
	defer tick.Stop()

	m.logger.Info("failover monitor started", "interval", m.interval, "heartbeat_ttl", m.heartbeatTTL)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("failover monitor shut down")
			return
		case <-tick.C:
			m.sweep(ctx)
		}
	}
}

func (m *Monitor) sweep(ctx context.Context) {
	start := time.Now()
	defer func() { metrics.FailoverCycleDuration.Observe(time.Since(start).Seconds()) }()

	domains, err := m.coord.HeartbeatDomains(ctx)
	if err != nil {
		m.logger.Error("list heartbeat domains", "error", err)
		return
	}

	cutoff := time.Now().Add(-m.heartbeatTTL)
	for _, d := range domains {
		stale, err := m.coord.StaleHeartbeats(ctx, d, cutoff)
		if err != nil {
			m.logger.Error("stale heartbeats", "domain", d, "error", err)
			continue
		}
		for _, workerID := range stale {
			m.reclaim(ctx, d, workerID, cutoff)
		}
	}
}

// reclaim implements §4.4 steps 1-4: requeue the worker's in-flight jobs,
// mark it offline, and (the §9 optional step) fail any JobRun the durable
// store still shows as running for it.
func (m *Monitor) reclaim(ctx context.Context, domainName, workerID string, cutoff time.Time) {
	jobIDs, err := m.coord.ListRunningJobs(ctx, domainName, workerID)
	if err != nil {
		m.logger.Error("list running jobs", "worker_id", workerID, "error", err)
		return
	}

	for _, jobID := range jobIDs {
		if err := m.coord.DeleteJobRunning(ctx, domainName, jobID); err != nil {
			m.logger.Error("delete job_running", "job_id", jobID, "error", err)
		}
		if err := m.coord.EnqueuePending(ctx, domainName, jobID, RequeuePriority); err != nil {
			m.logger.Error("requeue job", "job_id", jobID, "error", err)
			continue
		}
		if err := m.coord.RemoveRunningJob(ctx, domainName, workerID, jobID); err != nil {
			m.logger.Error("remove running job", "job_id", jobID, "error", err)
		}
		metrics.FailoverRequeuedTotal.WithLabelValues(domainName).Inc()
		m.events.Publish(eventbus.JobRequeued, map[string]any{
			"job_id":    jobID,
			"domain":    domainName,
			"worker_id": workerID,
			"reason":    "worker_lost",
		})
	}

	if err := m.coord.SetCurrentRunning(ctx, domainName, workerID, 0); err != nil {
		m.logger.Error("reset current_running", "worker_id", workerID, "error", err)
	}
	if err := m.coord.SetWorkerStatus(ctx, domainName, workerID, string(domain.WorkerOffline)); err != nil {
		m.logger.Error("mark worker offline", "worker_id", workerID, "error", err)
	}

	m.failStaleRuns(ctx, domainName, workerID, cutoff)

	m.logger.Info("worker reclaimed", "domain", domainName, "worker_id", workerID, "requeued", len(jobIDs))

	if err := notify.WorkerLost(ctx, m.notify, NotifyTo, domainName, workerID, len(jobIDs)); err != nil {
		m.logger.Warn("worker lost notification failed", "worker_id", workerID, "error", err)
	}
}

// failStaleRuns is the §9 "encouraged but not required" step: JobRuns the
// durable store still shows as running for this worker, older than the
// heartbeat cutoff, are marked failed(worker_lost) rather than left
// perpetually running.
func (m *Monitor) failStaleRuns(ctx context.Context, domainName, workerID string, cutoff time.Time) {
	runs, err := m.runs.ListStaleRunning(ctx, domainName, workerID, cutoff)
	if err != nil {
		m.logger.Error("list stale runs", "worker_id", workerID, "error", err)
		return
	}
	now := time.Now().UTC()
	for _, run := range runs {
		run.Status = domain.RunFailed
		run.EndTS = &now
		run.CompletionReason = "worker_lost"
		if _, err := m.runs.Update(ctx, run); err != nil {
			m.logger.Error("fail stale run", "run_id", run.ID, "error", err)
		}
	}
}
