package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/hydra-scheduler/hydra/internal/authtoken"
	"github.com/hydra-scheduler/hydra/internal/coordstore"
	"github.com/hydra-scheduler/hydra/internal/domain"
	"github.com/hydra-scheduler/hydra/internal/repository"
)

// DomainUsecase implements the §9-supplemented admin domain management
// endpoints (create/update/rotate-token/delete), grounded on
// original_source/scheduler/api/admin.py.
type DomainUsecase struct {
	domains repository.DomainRepository
	coord   *coordstore.Store
	logger  *slog.Logger
}

func NewDomainUsecase(domains repository.DomainRepository, coord *coordstore.Store, logger *slog.Logger) *DomainUsecase {
	return &DomainUsecase{domains: domains, coord: coord, logger: logger.With("component", "domain_usecase")}
}

// Create inserts a new domain and returns its initial raw token. The raw
// value is never persisted or retrievable again.
func (u *DomainUsecase) Create(ctx context.Context, name, displayName, description string) (*domain.Domain, string, error) {
	raw, err := authtoken.Generate()
	if err != nil {
		return nil, "", err
	}
	now := time.Now().UTC()
	d := &domain.Domain{
		Name:        name,
		DisplayName: displayName,
		Description: description,
		TokenHash:   authtoken.Hash(raw),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	created, err := u.domains.Create(ctx, d)
	if err != nil {
		return nil, "", err
	}
	if u.coord != nil {
		if err := u.coord.AddDomain(ctx, created.Name); err != nil {
			return nil, "", err
		}
	}
	return created, raw, nil
}

// Update changes a domain's display metadata without touching its token.
func (u *DomainUsecase) Update(ctx context.Context, name, displayName, description string) (*domain.Domain, error) {
	d, err := u.domains.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	d.DisplayName = displayName
	d.Description = description
	return u.domains.Update(ctx, d)
}

// RotateToken replaces a domain's token, returning the new raw value.
func (u *DomainUsecase) RotateToken(ctx context.Context, name string) (string, error) {
	d, err := u.domains.GetByName(ctx, name)
	if err != nil {
		return "", err
	}
	raw, err := authtoken.Generate()
	if err != nil {
		return "", err
	}
	d.TokenHash = authtoken.Hash(raw)
	if _, err := u.domains.Update(ctx, d); err != nil {
		return "", err
	}
	return raw, nil
}

func (u *DomainUsecase) Delete(ctx context.Context, name string) error {
	return u.domains.Delete(ctx, name)
}

func (u *DomainUsecase) List(ctx context.Context) ([]*domain.Domain, error) {
	return u.domains.List(ctx)
}

// Authenticate resolves a raw bearer token to its owning domain, checking
// the coordination store's short-lived cache before the durable store
// (§6 "direct index on token_hash -> domain, with a short-lived cache").
func (u *DomainUsecase) Authenticate(ctx context.Context, rawToken string) (string, error) {
	hash := authtoken.Hash(rawToken)

	if u.coord != nil {
		if cached, ok, err := u.coord.CachedDomain(ctx, hash); err == nil && ok {
			return cached, nil
		}
	}

	d, err := u.domains.GetByTokenHash(ctx, hash)
	if err != nil {
		return "", err
	}
	if u.coord != nil {
		if err := u.coord.CacheDomain(ctx, hash, d.Name); err != nil {
			u.logger.Warn("cache token lookup", "error", err)
		}
	}
	return d.Name, nil
}
