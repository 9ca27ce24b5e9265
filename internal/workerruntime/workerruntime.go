// Package workerruntime is the Worker Runtime (§4.5): one process per
// executor node. It registers itself, heartbeats, pulls jobs off its own
// FIFO queue, runs them through internal/executor and internal/completion
// with a bounded concurrency pool, and records the result.
//
// Grounded on original_source/worker/worker.py (register_worker,
// worker_main's ThreadPoolExecutor + run_job closure) and
// original_source/worker/utils/{heartbeat,concurrency}.py, ported to a
// semaphore-bounded goroutine pool — the idiomatic Go stand-in for a
// Python ThreadPoolExecutor of fixed size.
package workerruntime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hydra-scheduler/hydra/internal/completion"
	"github.com/hydra-scheduler/hydra/internal/coordstore"
	"github.com/hydra-scheduler/hydra/internal/domain"
	"github.com/hydra-scheduler/hydra/internal/executor"
	"github.com/hydra-scheduler/hydra/internal/metrics"
	"github.com/hydra-scheduler/hydra/internal/repository"
)

// Config is the subset of process configuration the runtime needs,
// decoupled from the config package so this package stays importable from
// tests without pulling in env parsing.
type Config struct {
	WorkerID        string
	Domain          string
	OS              string
	Tags            []string
	AllowedUsers    []string
	Queues          []string
	Host            string
	IP              string
	Subnet          string
	DeploymentType  string
	User            string
	DomainTokenHash string
	MaxConcurrency  int
	State           domain.WorkerState

	HeartbeatInterval time.Duration
	PopTimeout        time.Duration
}

type Runtime struct {
	cfg    Config
	coord  *coordstore.Store
	jobs   repository.JobRepository
	runs   repository.RunRepository
	logger *slog.Logger

	sem    chan struct{}
	active int64
	mu     sync.Mutex
	wg     sync.WaitGroup
}

func New(cfg Config, coord *coordstore.Store, jobs repository.JobRepository, runs repository.RunRepository, logger *slog.Logger) *Runtime {
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = 1
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = 2 * time.Second
	}
	if cfg.PopTimeout == 0 {
		cfg.PopTimeout = 2 * time.Second
	}
	return &Runtime{
		cfg:    cfg,
		coord:  coord,
		jobs:   jobs,
		runs:   runs,
		logger: logger.With("component", "worker", "worker_id", cfg.WorkerID),
		sem:    make(chan struct{}, cfg.MaxConcurrency),
	}
}

// Start registers the worker, launches its heartbeat loop, and runs the
// dispatch-intake loop until ctx is canceled, at which point it waits for
// in-flight jobs to finish before returning.
func (r *Runtime) Start(ctx context.Context) error {
	if err := r.register(ctx); err != nil {
		return err
	}
	metrics.WorkerStartTime.Set(float64(time.Now().Unix()))

	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go func() {
		defer hbWG.Done()
		r.heartbeatLoop(ctx)
	}()

	r.intakeLoop(ctx)

	r.wg.Wait()
	hbWG.Wait()

	if err := r.coord.SetWorkerStatus(context.Background(), r.cfg.Domain, r.cfg.WorkerID, string(domain.WorkerOffline)); err != nil {
		r.logger.Warn("mark offline on shutdown", "error", err)
	}
	metrics.WorkerShutdownsTotal.Inc()
	r.logger.Info("worker runtime shut down")
	return nil
}

func (r *Runtime) register(ctx context.Context) error {
	rec := coordstore.WorkerRecord{
		WorkerID:        r.cfg.WorkerID,
		Domain:          r.cfg.Domain,
		OS:              r.cfg.OS,
		Tags:            r.cfg.Tags,
		AllowedUsers:    r.cfg.AllowedUsers,
		Queues:          r.cfg.Queues,
		Host:            r.cfg.Host,
		IP:              r.cfg.IP,
		Subnet:          r.cfg.Subnet,
		DeploymentType:  r.cfg.DeploymentType,
		User:            r.cfg.User,
		DomainTokenHash: r.cfg.DomainTokenHash,
		MaxConcurrency:  r.cfg.MaxConcurrency,
		CurrentRunning:  0,
		Status:          string(domain.WorkerOnline),
		State:           string(r.cfg.State),
	}
	if err := r.coord.UpsertWorker(ctx, rec); err != nil {
		return err
	}
	if err := r.coord.AddDomain(ctx, r.cfg.Domain); err != nil {
		return err
	}
	return r.coord.Heartbeat(ctx, r.cfg.Domain, r.cfg.WorkerID, time.Now())
}

func (r *Runtime) heartbeatLoop(ctx context.Context) {
	tick := time.NewTicker(r.cfg.HeartbeatInterval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if err := r.coord.Heartbeat(ctx, r.cfg.Domain, r.cfg.WorkerID, time.Now()); err != nil {
				r.logger.Error("heartbeat", "error", err)
				continue
			}
			r.mu.Lock()
			n := r.active
			r.mu.Unlock()
			if err := r.coord.SetCurrentRunning(ctx, r.cfg.Domain, r.cfg.WorkerID, int(n)); err != nil {
				r.logger.Error("reconcile current_running", "error", err)
			}
		}
	}
}

// intakeLoop acquires a concurrency slot, then blocks on the worker's FIFO
// queue for one job id. A pop timeout with no job releases the slot and
// loops, so shutdown isn't blocked indefinitely on an empty queue.
func (r *Runtime) intakeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case r.sem <- struct{}{}:
		}

		jobID, ok, err := r.coord.PopWorkerQueue(ctx, r.cfg.Domain, r.cfg.WorkerID, r.cfg.PopTimeout)
		if err != nil {
			r.logger.Error("pop worker queue", "error", err)
			<-r.sem
			continue
		}
		if !ok {
			<-r.sem
			continue
		}

		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			defer func() { <-r.sem }()
			r.runJob(ctx, jobID)
		}()
	}
}

// runJob implements §4.5 step 2 in full: fetch the definition, track
// running state, execute with retries bounded by job.Retries+1, evaluate
// completion, persist the JobRun, and clean up coordination-store state.
func (r *Runtime) runJob(ctx context.Context, jobID string) {
	r.mu.Lock()
	r.active++
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.active--
		r.mu.Unlock()
	}()

	job, err := r.jobs.GetByID(ctx, r.cfg.Domain, jobID)
	if err != nil {
		r.logger.Error("load job", "job_id", jobID, "error", err)
		return
	}

	slot, err := r.coord.IncrCurrentRunning(ctx, r.cfg.Domain, r.cfg.WorkerID, 1)
	if err != nil {
		r.logger.Error("incr current_running", "job_id", jobID, "error", err)
	}
	defer func() {
		if _, err := r.coord.IncrCurrentRunning(context.Background(), r.cfg.Domain, r.cfg.WorkerID, -1); err != nil {
			r.logger.Error("decr current_running", "job_id", jobID, "error", err)
		}
	}()

	now := time.Now().UTC()
	if err := r.coord.AddRunningJob(ctx, r.cfg.Domain, r.cfg.WorkerID, jobID); err != nil {
		r.logger.Error("add running job", "job_id", jobID, "error", err)
	}
	if err := r.coord.SetJobRunning(ctx, r.cfg.Domain, jobID, r.cfg.WorkerID, job.User, now); err != nil {
		r.logger.Error("set job_running", "job_id", jobID, "error", err)
	}
	defer func() {
		if err := r.coord.DeleteJobRunning(context.Background(), r.cfg.Domain, jobID); err != nil {
			r.logger.Error("delete job_running", "job_id", jobID, "error", err)
		}
		if err := r.coord.RemoveRunningJob(context.Background(), r.cfg.Domain, r.cfg.WorkerID, jobID); err != nil {
			r.logger.Error("remove running job", "job_id", jobID, "error", err)
		}
	}()

	run := &domain.JobRun{
		ID:               uuid.NewString(),
		JobID:            job.ID,
		Domain:           job.Domain,
		User:             job.User,
		WorkerID:         r.cfg.WorkerID,
		Status:           domain.RunRunning,
		StartTS:          &now,
		ScheduledTS:      now,
		Slot:             slot,
		ScheduleMode:     string(job.Schedule.Mode),
		ExecutorType:     string(job.Executor.Type),
		RetriesRemaining: job.Retries,
	}
	if _, err := r.runs.Create(ctx, run); err != nil {
		r.logger.Error("create run", "job_id", jobID, "error", err)
		return
	}

	metrics.JobsInFlight.Inc()
	defer metrics.JobsInFlight.Dec()

	execStart := time.Now()
	result, attempts, reason, completionOK := r.executeWithRetries(ctx, run, *job)
	duration := time.Since(execStart)

	end := time.Now().UTC()
	run.EndTS = &end
	run.Stdout = result.Stdout
	run.Stderr = result.Stderr
	run.AttemptsUsed = attempts
	run.RetriesRemaining = job.Retries - (attempts - 1)
	if run.RetriesRemaining < 0 {
		run.RetriesRemaining = 0
	}
	run.CompletionReason = reason
	code := result.ExitCode
	run.ReturnCode = &code

	outcome := "failed"
	if completionOK {
		run.Status = domain.RunSuccess
		outcome = "success"
	} else {
		run.Status = domain.RunFailed
	}

	if _, err := r.runs.Update(ctx, run); err != nil {
		r.logger.Error("update run", "run_id", run.ID, "error", err)
	}

	metrics.JobsCompletedTotal.WithLabelValues(outcome).Inc()
	metrics.JobExecutionDuration.WithLabelValues(string(job.Executor.Type)).Observe(duration.Seconds())
	r.logger.Info("job run finished", "job_id", jobID, "run_id", run.ID, "status", run.Status, "attempts", attempts)
}

// executeWithRetries runs the executor up to job.Retries+1 times, stopping
// as soon as the Completion Evaluator is satisfied (§4.9, §4.5 step 3).
func (r *Runtime) executeWithRetries(ctx context.Context, run *domain.JobRun, job domain.JobDefinition) (result executor.Result, attempts int, reason string, ok bool) {
	maxAttempts := job.Retries + 1

	for attempts = 1; attempts <= maxAttempts; attempts++ {
		runCtx := ctx
		var cancel context.CancelFunc
		if job.TimeoutSeconds > 0 {
			runCtx, cancel = context.WithTimeout(ctx, time.Duration(job.TimeoutSeconds)*time.Second)
		}

		res, err := executor.Run(runCtx, job.Executor, func(stream, line string) {
			r.publishLog(run, stream, line)
		})
		if cancel != nil {
			cancel()
		}
		if err != nil {
			result = executor.Result{ExitCode: -1}
			reason = err.Error()
			if attempts < maxAttempts {
				metrics.RetriesTotal.Inc()
			}
			continue
		}

		result = res
		if res.TimedOut {
			reason = "execution timed out"
			if attempts < maxAttempts {
				metrics.RetriesTotal.Inc()
			}
			continue
		}

		ok, reason = completion.Evaluate(res.ExitCode, res.Stdout, res.Stderr, job.Completion)
		if ok {
			return result, attempts, reason, true
		}
		if attempts < maxAttempts {
			metrics.RetriesTotal.Inc()
		}
	}

	return result, attempts - 1, reason, false
}

func (r *Runtime) publishLog(run *domain.JobRun, stream, line string) {
	if err := r.coord.PublishLogChunk(context.Background(), coordstore.LogChunk{
		RunID:    run.ID,
		JobID:    run.JobID,
		WorkerID: run.WorkerID,
		Domain:   run.Domain,
		TS:       time.Now(),
		Stream:   stream,
		Text:     line,
	}); err != nil {
		r.logger.Warn("publish log chunk", "run_id", run.ID, "error", err)
	}
}
