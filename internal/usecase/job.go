// Package usecase holds the transport-agnostic application services that
// sit between internal/transport/http and the repository/coordstore
// interfaces, the way the teacher's internal/usecase does for job
// submission and auth.
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hydra-scheduler/hydra/internal/coordstore"
	"github.com/hydra-scheduler/hydra/internal/domain"
	"github.com/hydra-scheduler/hydra/internal/eventbus"
	"github.com/hydra-scheduler/hydra/internal/repository"
	"github.com/hydra-scheduler/hydra/internal/validation"
)

// RunSummary is a run record trimmed for list views (§6 "Run history with
// tails"): stdout/stderr are truncated and duration is precomputed so the
// API doesn't ship full logs on a list endpoint.
type RunSummary struct {
	ID               string            `json:"id"`
	JobID            string            `json:"jobId"`
	Status           domain.RunStatus  `json:"status"`
	WorkerID         string            `json:"workerId"`
	ScheduledTS      time.Time         `json:"scheduledTs"`
	StartTS          *time.Time        `json:"startTs,omitempty"`
	EndTS            *time.Time        `json:"endTs,omitempty"`
	DurationMS       int64             `json:"durationMs"`
	ReturnCode       *int              `json:"returnCode,omitempty"`
	StdoutTail       string            `json:"stdoutTail"`
	StderrTail       string            `json:"stderrTail"`
	AttemptsUsed     int               `json:"attemptsUsed"`
	CompletionReason string            `json:"completionReason,omitempty"`
}

// TailLen is how many trailing characters of stdout/stderr a RunSummary
// keeps.
const TailLen = 2000

// QueueOverview is the §6 `GET /queue/overview` response shape.
type QueueOverview struct {
	Pending  []coordstore.PendingEntry `json:"pending"`
	Upcoming []UpcomingSchedule        `json:"upcoming"`
}

type UpcomingSchedule struct {
	JobID     string     `json:"jobId"`
	Name      string     `json:"name"`
	NextRunAt *time.Time `json:"nextRunAt,omitempty"`
}

type JobUsecase struct {
	jobs   repository.JobRepository
	runs   repository.RunRepository
	coord  *coordstore.Store
	events *eventbus.Bus
	logger *slog.Logger
}

func NewJobUsecase(jobs repository.JobRepository, runs repository.RunRepository, coord *coordstore.Store, events *eventbus.Bus, logger *slog.Logger) *JobUsecase {
	return &JobUsecase{jobs: jobs, runs: runs, coord: coord, events: events, logger: logger.With("component", "job_usecase")}
}

// Submit implements §6 `POST /jobs/`: validate, insert, initialize the
// schedule, and enqueue immediately if the schedule mode is "immediate".
func (u *JobUsecase) Submit(ctx context.Context, domainName string, job *domain.JobDefinition) (*domain.JobDefinition, error) {
	job.ID = uuid.NewString()
	job.Domain = domainName
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now

	if err := validation.Job(job); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidJob, err)
	}

	created, err := u.jobs.Create(ctx, job)
	if err != nil {
		return nil, err
	}

	if created.Schedule.Mode == domain.ScheduleImmediate {
		if err := u.coord.EnqueuePending(ctx, domainName, created.ID, created.Priority); err != nil {
			return nil, fmt.Errorf("enqueue job: %w", err)
		}
		u.events.Publish(eventbus.JobEnqueued, map[string]any{"job_id": created.ID, "domain": domainName})
	}

	u.events.Publish(eventbus.JobSubmitted, map[string]any{"job_id": created.ID, "domain": domainName})
	return created, nil
}

// Adhoc implements §6 `POST /jobs/adhoc`: force a one-shot, disabled,
// immediate schedule and enqueue unconditionally.
func (u *JobUsecase) Adhoc(ctx context.Context, domainName string, job *domain.JobDefinition) (*domain.JobDefinition, error) {
	job.Schedule = domain.Schedule{Mode: domain.ScheduleImmediate, Enabled: false}
	return u.Submit(ctx, domainName, job)
}

func (u *JobUsecase) Get(ctx context.Context, domainName, id string) (*domain.JobDefinition, error) {
	return u.jobs.GetByID(ctx, domainName, id)
}

func (u *JobUsecase) List(ctx context.Context, domainName string, limit int) ([]*domain.JobDefinition, error) {
	if limit <= 0 {
		limit = 100
	}
	return u.jobs.List(ctx, domainName, limit)
}

// Update implements §6 `PUT /jobs/{id}`: replace the mutable fields of a
// job, scoped by domain, re-validating and re-initializing its schedule.
func (u *JobUsecase) Update(ctx context.Context, domainName, id string, patch *domain.JobDefinition) (*domain.JobDefinition, error) {
	existing, err := u.jobs.GetByID(ctx, domainName, id)
	if err != nil {
		return nil, err
	}

	existing.Name = patch.Name
	existing.User = patch.User
	existing.Affinity = patch.Affinity
	existing.Executor = patch.Executor
	existing.Schedule = patch.Schedule
	existing.Completion = patch.Completion
	existing.Retries = patch.Retries
	existing.TimeoutSeconds = patch.TimeoutSeconds
	existing.Priority = patch.Priority

	if err := validation.Job(existing); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidJob, err)
	}

	updated, err := u.jobs.Update(ctx, existing)
	if err != nil {
		return nil, err
	}
	u.events.Publish(eventbus.JobUpdated, map[string]any{"job_id": updated.ID, "domain": domainName})
	return updated, nil
}

// Validate implements §6 `POST /jobs/{id}/validate` and
// `POST /jobs/validate`: check a payload without persisting it.
func (u *JobUsecase) Validate(job *domain.JobDefinition) error {
	clone := *job
	return validation.Job(&clone)
}

// ManualRun implements §6 `POST /jobs/{id}/run`: enqueue the job at its
// configured priority regardless of its schedule state.
func (u *JobUsecase) ManualRun(ctx context.Context, domainName, id string) error {
	job, err := u.jobs.GetByID(ctx, domainName, id)
	if err != nil {
		return err
	}
	if err := u.coord.EnqueuePending(ctx, domainName, job.ID, job.Priority); err != nil {
		return fmt.Errorf("enqueue manual run: %w", err)
	}
	u.events.Publish(eventbus.JobManualRun, map[string]any{"job_id": job.ID, "domain": domainName})
	return nil
}

// ListRuns implements §6 `GET /jobs/{id}/runs`.
func (u *JobUsecase) ListRuns(ctx context.Context, domainName, jobID string) ([]RunSummary, error) {
	if _, err := u.jobs.GetByID(ctx, domainName, jobID); err != nil {
		return nil, err
	}
	runs, err := u.runs.ListByJobID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	summaries := make([]RunSummary, 0, len(runs))
	for _, r := range runs {
		summaries = append(summaries, summarize(r))
	}
	return summaries, nil
}

func summarize(r *domain.JobRun) RunSummary {
	var durationMS int64
	if r.StartTS != nil && r.EndTS != nil {
		durationMS = r.EndTS.Sub(*r.StartTS).Milliseconds()
	}
	return RunSummary{
		ID:               r.ID,
		JobID:            r.JobID,
		Status:           r.Status,
		WorkerID:         r.WorkerID,
		ScheduledTS:      r.ScheduledTS,
		StartTS:          r.StartTS,
		EndTS:            r.EndTS,
		DurationMS:       durationMS,
		ReturnCode:       r.ReturnCode,
		StdoutTail:       tail(r.Stdout, TailLen),
		StderrTail:       tail(r.Stderr, TailLen),
		AttemptsUsed:     r.AttemptsUsed,
		CompletionReason: r.CompletionReason,
	}
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// GetRun implements §6 `GET /runs/{id}`.
func (u *JobUsecase) GetRun(ctx context.Context, id string) (*domain.JobRun, error) {
	return u.runs.GetByID(ctx, id)
}

// QueueOverview implements §6 `GET /queue/overview`: the top-N pending
// jobs by priority plus the next-due recurring jobs.
func (u *JobUsecase) QueueOverview(ctx context.Context, domainName string, topN int) (QueueOverview, error) {
	if topN <= 0 {
		topN = 20
	}
	pending, err := u.coord.TopPending(ctx, domainName, topN)
	if err != nil {
		return QueueOverview{}, err
	}

	jobs, err := u.jobs.List(ctx, domainName, 500)
	if err != nil {
		return QueueOverview{}, err
	}
	var upcoming []UpcomingSchedule
	for _, j := range jobs {
		if j.Schedule.NextRunAt == nil {
			continue
		}
		upcoming = append(upcoming, UpcomingSchedule{JobID: j.ID, Name: j.Name, NextRunAt: j.Schedule.NextRunAt})
	}

	return QueueOverview{Pending: pending, Upcoming: upcoming}, nil
}
