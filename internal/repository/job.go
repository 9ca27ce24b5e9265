// Package repository defines the interfaces usecases depend on, so the
// Durable Store's concrete backend (internal/durablestore) can be swapped
// or mocked without touching call sites. Mirrors the teacher's
// interface/implementation split (repository vs internal/infrastructure).
package repository

import (
	"context"
	"time"

	"github.com/hydra-scheduler/hydra/internal/domain"
)

// JobRepository persists JobDefinition documents (§3 Durable Store).
type JobRepository interface {
	Create(ctx context.Context, job *domain.JobDefinition) (*domain.JobDefinition, error)
	GetByID(ctx context.Context, domainName, id string) (*domain.JobDefinition, error)
	// GetByIDAnyDomain is used by the Dispatcher, which looks jobs up by id
	// alone after a cross-domain priority pop (§4.3 step 2).
	GetByIDAnyDomain(ctx context.Context, id string) (*domain.JobDefinition, error)
	List(ctx context.Context, domainName string, limit int) ([]*domain.JobDefinition, error)
	Update(ctx context.Context, job *domain.JobDefinition) (*domain.JobDefinition, error)

	// DueForSchedule returns recurring jobs whose schedule is due, for the
	// Schedule Ticker (§4.2 step 2).
	DueForSchedule(ctx context.Context, domainName string, now time.Time, limit int) ([]*domain.JobDefinition, error)

	// AdvanceSchedule performs the §4.2 step 4 compare-and-set: it updates
	// the job's schedule only if schedule.next_run_at still equals
	// previousNextRunAt. Returns ok=false when another ticker won the race.
	AdvanceSchedule(ctx context.Context, id string, previousNextRunAt *time.Time, advanced domain.Schedule) (ok bool, err error)
}

// RunRepository persists JobRun documents.
type RunRepository interface {
	Create(ctx context.Context, run *domain.JobRun) (*domain.JobRun, error)
	Update(ctx context.Context, run *domain.JobRun) (*domain.JobRun, error)
	GetByID(ctx context.Context, id string) (*domain.JobRun, error)
	ListByJobID(ctx context.Context, jobID string) ([]*domain.JobRun, error)
	// ListStaleRunning finds runs still "running" whose start is older than
	// cutoff, for the §9 optional FM eviction step.
	ListStaleRunning(ctx context.Context, domainName, workerID string, cutoff time.Time) ([]*domain.JobRun, error)
}

// DomainRepository persists Domain metadata and resolves bearer tokens.
type DomainRepository interface {
	Create(ctx context.Context, d *domain.Domain) (*domain.Domain, error)
	Update(ctx context.Context, d *domain.Domain) (*domain.Domain, error)
	Delete(ctx context.Context, name string) error
	GetByName(ctx context.Context, name string) (*domain.Domain, error)
	List(ctx context.Context) ([]*domain.Domain, error)
	// GetByTokenHash looks up the owning domain for a SHA-256 token hash
	// (§6 "Authentication": direct index on token_hash → domain).
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Domain, error)
}
