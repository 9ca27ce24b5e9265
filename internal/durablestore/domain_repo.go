package durablestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hydra-scheduler/hydra/internal/domain"
)

// DomainRepo implements repository.DomainRepository against domains.
type DomainRepo struct {
	pool *pgxpool.Pool
}

func NewDomainRepo(pool *pgxpool.Pool) *DomainRepo {
	return &DomainRepo{pool: pool}
}

func (r *DomainRepo) Create(ctx context.Context, d *domain.Domain) (*domain.Domain, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO domains (name, display_name, description, token_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, d.Name, d.DisplayName, d.Description, d.TokenHash, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("domain %s: %w", d.Name, domain.ErrDomainConflict)
		}
		return nil, fmt.Errorf("insert domain: %w", err)
	}
	return d, nil
}

func (r *DomainRepo) Update(ctx context.Context, d *domain.Domain) (*domain.Domain, error) {
	d.UpdatedAt = time.Now().UTC()
	tag, err := r.pool.Exec(ctx, `
		UPDATE domains
		SET display_name = $2, description = $3, token_hash = $4, updated_at = $5
		WHERE name = $1
	`, d.Name, d.DisplayName, d.Description, d.TokenHash, d.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("domain %s: %w", d.Name, domain.ErrDomainConflict)
		}
		return nil, fmt.Errorf("update domain: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrDomainNotFound
	}
	return d, nil
}

func (r *DomainRepo) Delete(ctx context.Context, name string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM domains WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete domain: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDomainNotFound
	}
	return nil
}

func (r *DomainRepo) GetByName(ctx context.Context, name string) (*domain.Domain, error) {
	d := &domain.Domain{}
	err := r.pool.QueryRow(ctx, `
		SELECT name, display_name, description, token_hash, created_at, updated_at
		FROM domains WHERE name = $1
	`, name).Scan(&d.Name, &d.DisplayName, &d.Description, &d.TokenHash, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrDomainNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select domain: %w", err)
	}
	return d, nil
}

func (r *DomainRepo) List(ctx context.Context) ([]*domain.Domain, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT name, display_name, description, token_hash, created_at, updated_at
		FROM domains ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list domains: %w", err)
	}
	defer rows.Close()

	var domains []*domain.Domain
	for rows.Next() {
		d := &domain.Domain{}
		if err := rows.Scan(&d.Name, &d.DisplayName, &d.Description, &d.TokenHash, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan domain: %w", err)
		}
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

func (r *DomainRepo) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Domain, error) {
	d := &domain.Domain{}
	err := r.pool.QueryRow(ctx, `
		SELECT name, display_name, description, token_hash, created_at, updated_at
		FROM domains WHERE token_hash = $1
	`, tokenHash).Scan(&d.Name, &d.DisplayName, &d.Description, &d.TokenHash, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTokenInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("select domain by token: %w", err)
	}
	return d, nil
}
