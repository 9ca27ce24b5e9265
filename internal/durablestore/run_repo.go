package durablestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hydra-scheduler/hydra/internal/domain"
)

// RunRepo implements repository.RunRepository against job_runs.
type RunRepo struct {
	pool *pgxpool.Pool
}

func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

func (r *RunRepo) Create(ctx context.Context, run *domain.JobRun) (*domain.JobRun, error) {
	data, err := json.Marshal(run)
	if err != nil {
		return nil, fmt.Errorf("marshal run: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO job_runs (id, job_id, domain, worker_id, status, start_ts, scheduled_ts, end_ts, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, run.ID, run.JobID, run.Domain, run.WorkerID, string(run.Status),
		run.StartTS, run.ScheduledTS, run.EndTS, data)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

func (r *RunRepo) Update(ctx context.Context, run *domain.JobRun) (*domain.JobRun, error) {
	data, err := json.Marshal(run)
	if err != nil {
		return nil, fmt.Errorf("marshal run: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE job_runs
		SET worker_id = $2, status = $3, start_ts = $4, end_ts = $5, data = $6
		WHERE id = $1
	`, run.ID, run.WorkerID, string(run.Status), run.StartTS, run.EndTS, data)
	if err != nil {
		return nil, fmt.Errorf("update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrRunNotFound
	}
	return run, nil
}

func (r *RunRepo) GetByID(ctx context.Context, id string) (*domain.JobRun, error) {
	var data []byte
	err := r.pool.QueryRow(ctx, `SELECT data FROM job_runs WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select run: %w", err)
	}
	return decodeRun(data)
}

func (r *RunRepo) ListByJobID(ctx context.Context, jobID string) ([]*domain.JobRun, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT data FROM job_runs WHERE job_id = $1 ORDER BY created_at DESC
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.JobRun
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run, err := decodeRun(data)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListStaleRunning finds runs still marked "running" for a worker whose
// start predates cutoff, for the §9 optional failover eviction step: the
// Failover Monitor uses this to flip orphaned runs to failed(worker_lost)
// once it has already reclaimed the worker's queue.
func (r *RunRepo) ListStaleRunning(ctx context.Context, domainName, workerID string, cutoff time.Time) ([]*domain.JobRun, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT data FROM job_runs
		WHERE domain = $1 AND worker_id = $2 AND status = $3
			AND (start_ts IS NULL OR start_ts <= $4)
	`, domainName, workerID, string(domain.RunRunning), cutoff)
	if err != nil {
		return nil, fmt.Errorf("stale runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.JobRun
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan stale run: %w", err)
		}
		run, err := decodeRun(data)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func decodeRun(data []byte) (*domain.JobRun, error) {
	var run domain.JobRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("decode run: %w", err)
	}
	return &run, nil
}
