package durablestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hydra-scheduler/hydra/internal/domain"
)

// JobRepo implements repository.JobRepository against job_definitions.
// Grounded on the teacher's internal/infrastructure/postgres/job_repo.go
// (pgx Query/QueryRow/Exec patterns, pgconn.PgError 23505 duplicate-key
// handling) and schedule_repo.go (FOR UPDATE SKIP LOCKED claim query).
type JobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

func (r *JobRepo) Create(ctx context.Context, job *domain.JobDefinition) (*domain.JobDefinition, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal job: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO job_definitions
			(id, domain, name, job_user, priority, schedule_mode, schedule_enabled, schedule_next_run_at, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		job.ID, job.Domain, job.Name, job.User, job.Priority,
		string(job.Schedule.Mode), job.Schedule.Enabled, job.Schedule.NextRunAt,
		data, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("job %s: %w", job.ID, domain.ErrDomainConflict)
		}
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return job, nil
}

func (r *JobRepo) GetByID(ctx context.Context, domainName, id string) (*domain.JobDefinition, error) {
	var data []byte
	err := r.pool.QueryRow(ctx, `
		SELECT data FROM job_definitions WHERE id = $1 AND domain = $2
	`, id, domainName).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select job: %w", err)
	}
	return decodeJob(data)
}

func (r *JobRepo) GetByIDAnyDomain(ctx context.Context, id string) (*domain.JobDefinition, error) {
	var data []byte
	err := r.pool.QueryRow(ctx, `
		SELECT data FROM job_definitions WHERE id = $1
	`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select job: %w", err)
	}
	return decodeJob(data)
}

func (r *JobRepo) List(ctx context.Context, domainName string, limit int) ([]*domain.JobDefinition, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT data FROM job_definitions
		WHERE domain = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, domainName, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.JobDefinition
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		job, err := decodeJob(data)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *JobRepo) Update(ctx context.Context, job *domain.JobDefinition) (*domain.JobDefinition, error) {
	job.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal job: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE job_definitions
		SET name = $2, priority = $3, schedule_mode = $4, schedule_enabled = $5,
			schedule_next_run_at = $6, data = $7, updated_at = $8
		WHERE id = $1
	`,
		job.ID, job.Name, job.Priority, string(job.Schedule.Mode), job.Schedule.Enabled,
		job.Schedule.NextRunAt, data, job.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrJobNotFound
	}
	return job, nil
}

// DueForSchedule returns recurring, enabled jobs whose schedule_next_run_at
// has arrived, for the Schedule Ticker's per-domain sweep (§4.2 step 2).
// FOR UPDATE SKIP LOCKED skips rows locked at query time; the query runs
// outside an explicit transaction, so its own locks end with the statement.
// Double-firing across ticker instances is prevented by AdvanceSchedule's
// compare-and-set, not by these locks.
func (r *JobRepo) DueForSchedule(ctx context.Context, domainName string, now time.Time, limit int) ([]*domain.JobDefinition, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT data FROM job_definitions
		WHERE domain = $1
			AND schedule_enabled
			AND schedule_mode IN ('cron', 'interval')
			AND schedule_next_run_at IS NOT NULL
			AND schedule_next_run_at <= $2
		ORDER BY schedule_next_run_at ASC
		LIMIT $3
		FOR UPDATE SKIP LOCKED
	`, domainName, now, limit)
	if err != nil {
		return nil, fmt.Errorf("due jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.JobDefinition
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan due job: %w", err)
		}
		job, err := decodeJob(data)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// AdvanceSchedule is the §4.2 step 4 compare-and-set. It only applies the
// advanced schedule if schedule_next_run_at still matches previousNextRunAt,
// so a concurrent ticker instance racing on the same job loses rather than
// double-firing it.
func (r *JobRepo) AdvanceSchedule(ctx context.Context, id string, previousNextRunAt *time.Time, advanced domain.Schedule) (bool, error) {
	job, err := r.GetByIDAnyDomain(ctx, id)
	if err != nil {
		return false, err
	}
	job.Schedule = advanced
	job.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(job)
	if err != nil {
		return false, fmt.Errorf("marshal job: %w", err)
	}

	var tag pgconn.CommandTag
	if previousNextRunAt == nil {
		tag, err = r.pool.Exec(ctx, `
			UPDATE job_definitions
			SET schedule_next_run_at = $2, data = $3, updated_at = $4
			WHERE id = $1 AND schedule_next_run_at IS NULL
		`, id, advanced.NextRunAt, data, job.UpdatedAt)
	} else {
		tag, err = r.pool.Exec(ctx, `
			UPDATE job_definitions
			SET schedule_next_run_at = $2, data = $3, updated_at = $4
			WHERE id = $1 AND schedule_next_run_at = $5
		`, id, advanced.NextRunAt, data, job.UpdatedAt, *previousNextRunAt)
	}
	if err != nil {
		return false, fmt.Errorf("advance schedule: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func decodeJob(data []byte) (*domain.JobDefinition, error) {
	var job domain.JobDefinition
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}
