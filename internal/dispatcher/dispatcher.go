// Package dispatcher is the Dispatcher (§4.3): the loop that pops the
// highest-priority pending job across every domain, selects an eligible
// worker, and routes the job onto that worker's FIFO queue.
//
// Grounded on original_source/scheduler/scheduler.py's scheduling_loop
// (BZPOPMAX across job_queue:{d}:pending keys, requeue-on-no-worker with a
// cooldown sleep) and the teacher's internal/scheduler/dispatcher.go for the
// ctx.Done() loop shape and structured logging.
package dispatcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/hydra-scheduler/hydra/internal/affinity"
	"github.com/hydra-scheduler/hydra/internal/coordstore"
	"github.com/hydra-scheduler/hydra/internal/domain"
	"github.com/hydra-scheduler/hydra/internal/eventbus"
	"github.com/hydra-scheduler/hydra/internal/metrics"
	"github.com/hydra-scheduler/hydra/internal/repository"
)

// PopTimeout is how long one BZPOPMAX wait blocks before the loop re-checks
// ctx and the domain list. original_source uses 2s.
const PopTimeout = 2 * time.Second

// RequeueCooldown matches original_source's time.sleep(1) before a
// no-eligible-worker job goes back on the pending queue, so a perpetually
// unschedulable job doesn't spin the loop hot.
const RequeueCooldown = 1 * time.Second

type Dispatcher struct {
	jobs    repository.JobRepository
	domains repository.DomainRepository
	coord   *coordstore.Store
	events  *eventbus.Bus
	logger  *slog.Logger

	heartbeatTTL time.Duration
}

func New(jobs repository.JobRepository, domains repository.DomainRepository, coord *coordstore.Store, events *eventbus.Bus, logger *slog.Logger, heartbeatTTL time.Duration) *Dispatcher {
	return &Dispatcher{
		jobs:         jobs,
		domains:      domains,
		coord:        coord,
		events:       events,
		logger:       logger.With("component", "dispatcher"),
		heartbeatTTL: heartbeatTTL,
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher shut down")
			return
		default:
		}
		d.dispatchOnce(ctx)
	}
}

func (d *Dispatcher) dispatchOnce(ctx context.Context) {
	domains, err := d.coord.Domains(ctx)
	if err != nil {
		d.logger.Error("list domains", "error", err)
		time.Sleep(time.Second)
		return
	}
	if len(domains) == 0 {
		time.Sleep(time.Second)
		return
	}

	domainName, jobID, _, ok, err := d.coord.PopMaxPending(ctx, domains, PopTimeout)
	if err != nil {
		d.logger.Error("pop pending", "error", err)
		return
	}
	if !ok {
		return
	}

	start := time.Now()
	job, err := d.jobs.GetByIDAnyDomain(ctx, jobID)
	if err != nil {
		d.logger.Error("load job", "job_id", jobID, "error", err)
		return
	}

	worker := d.selectWorker(ctx, domainName, *job)
	if worker == nil {
		metrics.NoWorkerTotal.WithLabelValues(domainName).Inc()
		d.events.Publish(eventbus.JobPending, map[string]any{
			"job_id": jobID,
			"domain": domainName,
			"reason": "no_eligible_worker",
		})
		time.Sleep(RequeueCooldown)
		if err := d.coord.EnqueuePending(ctx, domainName, jobID, job.Priority); err != nil {
			d.logger.Error("requeue pending", "job_id", jobID, "error", err)
		}
		return
	}

	if err := d.coord.PushWorkerQueue(ctx, domainName, worker.WorkerID, jobID); err != nil {
		d.logger.Error("push worker queue", "job_id", jobID, "worker_id", worker.WorkerID, "error", err)
		return
	}

	metrics.DispatchLatency.Observe(time.Since(start).Seconds())
	metrics.DispatchedTotal.WithLabelValues(domainName).Inc()
	d.events.Publish(eventbus.JobDispatched, map[string]any{
		"job_id":    jobID,
		"domain":    domainName,
		"worker_id": worker.WorkerID,
	})
	d.logger.Info("dispatched", "job_id", jobID, "domain", domainName, "worker_id", worker.WorkerID)
}

// selectWorker implements §4.3 step 3: filter online, non-disabled,
// affinity-eligible workers, then §4.7 least-load selection.
//
// "Online" is computed live from the heartbeat sorted set on every call,
// exactly as original_source/scheduler/scheduler.py's list_online_workers
// does (`online = (now - hb) <= ttl_seconds`) — never from a cached status
// field, which only the Failover Monitor writes and which would otherwise
// leave a dead worker dispatch-eligible for however long FM takes to catch
// up, or a recovered worker stranded offline until it restarts.
func (d *Dispatcher) selectWorker(ctx context.Context, domainName string, job domain.JobDefinition) *domain.Worker {
	records, err := d.coord.ListWorkers(ctx, domainName)
	if err != nil {
		d.logger.Error("list workers", "domain", domainName, "error", err)
		return nil
	}

	// §7 "Token mismatch": if the domain currently has a token hash, a
	// worker registered under a stale one is excluded silently until it
	// re-registers with the current hash.
	var domainTokenHash string
	if dom, err := d.domains.GetByName(ctx, domainName); err == nil && dom != nil {
		domainTokenHash = dom.TokenHash
	}

	now := time.Now()
	var candidates []domain.Worker
	for _, r := range records {
		lastBeat, ok, err := d.coord.HeartbeatAt(ctx, domainName, r.WorkerID)
		if err != nil {
			d.logger.Error("heartbeat lookup", "worker_id", r.WorkerID, "error", err)
			continue
		}
		if !ok || now.Sub(lastBeat) > d.heartbeatTTL {
			continue
		}
		if r.State == string(domain.WorkerStateDisabled) || r.State == string(domain.WorkerStateDraining) {
			continue
		}
		if r.CurrentRunning >= r.MaxConcurrency {
			continue
		}
		if domainTokenHash != "" && r.DomainTokenHash != "" && r.DomainTokenHash != domainTokenHash {
			continue
		}
		w := domain.Worker{
			WorkerID:       r.WorkerID,
			Domain:         r.Domain,
			OS:             r.OS,
			Tags:           r.Tags,
			AllowedUsers:   r.AllowedUsers,
			Queues:         r.Queues,
			Host:           r.Host,
			IP:             r.IP,
			Subnet:         r.Subnet,
			DeploymentType: r.DeploymentType,
			User:           r.User,
			MaxConcurrency: r.MaxConcurrency,
			CurrentRunning: r.CurrentRunning,
		}
		if affinity.Passes(job, w) {
			candidates = append(candidates, w)
		}
	}

	return affinity.SelectBest(candidates)
}
