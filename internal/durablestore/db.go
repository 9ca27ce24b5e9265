// Package durablestore is the Postgres/pgx-backed Durable Store (§3): the
// source of truth for JobDefinition, JobRun, and Domain documents.
//
// Grounded on the teacher's internal/infrastructure/postgres/{db,job_repo,
// schedule_repo}.go (pool config, pgconn.PgError code 23505 handling,
// rowScanner interface, transactional claim-and-fire).
//
// Substitution note: original_source uses MongoDB
// (original_source/worker/mongo_client.py); no MongoDB driver exists
// anywhere in the retrieved example pack. Rather than invent a dependency
// on an unavailable driver, the durable store keeps the teacher's
// Postgres/pgx stack and expresses "document store" as JSONB columns with
// promoted scalar columns for the fields the core's queries need to index
// (domain, schedule_next_run_at, schedule_mode, schedule_enabled, status).
package durablestore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	cfg.MaxConns = 25
	cfg.MinConns = 5
	cfg.MaxConnLifetime = 1 * time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second
	cfg.ConnConfig.ConnectTimeout = 5 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return pool, nil
}

// Schema is the DDL the durable store expects. Hydra has no migration
// runner in the example pack's dependency set; cmd/server applies this
// idempotent DDL (CREATE ... IF NOT EXISTS) at process start.
const Schema = `
CREATE TABLE IF NOT EXISTS domains (
	name         TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	token_hash   TEXT NOT NULL UNIQUE,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS job_definitions (
	id                    TEXT PRIMARY KEY,
	domain                TEXT NOT NULL REFERENCES domains(name),
	name                  TEXT NOT NULL,
	job_user              TEXT NOT NULL,
	priority              INT NOT NULL,
	schedule_mode         TEXT NOT NULL,
	schedule_enabled      BOOLEAN NOT NULL,
	schedule_next_run_at  TIMESTAMPTZ,
	data                  JSONB NOT NULL,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_job_definitions_domain ON job_definitions(domain);
CREATE INDEX IF NOT EXISTS idx_job_definitions_due
	ON job_definitions(domain, schedule_next_run_at)
	WHERE schedule_enabled AND schedule_mode IN ('cron', 'interval');

CREATE TABLE IF NOT EXISTS job_runs (
	id           TEXT PRIMARY KEY,
	job_id       TEXT NOT NULL REFERENCES job_definitions(id),
	domain       TEXT NOT NULL,
	worker_id    TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL,
	start_ts     TIMESTAMPTZ,
	scheduled_ts TIMESTAMPTZ NOT NULL,
	end_ts       TIMESTAMPTZ,
	data         JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_job_runs_job_id ON job_runs(job_id);
CREATE INDEX IF NOT EXISTS idx_job_runs_status ON job_runs(domain, worker_id, status);
`
