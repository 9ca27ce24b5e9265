package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/hydra-scheduler/hydra/internal/authtoken"
	"github.com/hydra-scheduler/hydra/internal/domain"
)

type fakeDomainRepo struct {
	byName      map[string]*domain.Domain
	byTokenHash map[string]*domain.Domain
}

func newFakeDomainRepo() *fakeDomainRepo {
	return &fakeDomainRepo{byName: map[string]*domain.Domain{}, byTokenHash: map[string]*domain.Domain{}}
}

func (f *fakeDomainRepo) Create(ctx context.Context, d *domain.Domain) (*domain.Domain, error) {
	if _, exists := f.byName[d.Name]; exists {
		return nil, domain.ErrDomainConflict
	}
	f.byName[d.Name] = d
	f.byTokenHash[d.TokenHash] = d
	return d, nil
}

func (f *fakeDomainRepo) Update(ctx context.Context, d *domain.Domain) (*domain.Domain, error) {
	if _, exists := f.byName[d.Name]; !exists {
		return nil, domain.ErrDomainNotFound
	}
	d.UpdatedAt = time.Now().UTC()
	f.byName[d.Name] = d
	f.byTokenHash[d.TokenHash] = d
	return d, nil
}

func (f *fakeDomainRepo) Delete(ctx context.Context, name string) error {
	if _, exists := f.byName[name]; !exists {
		return domain.ErrDomainNotFound
	}
	delete(f.byName, name)
	return nil
}

func (f *fakeDomainRepo) GetByName(ctx context.Context, name string) (*domain.Domain, error) {
	d, ok := f.byName[name]
	if !ok {
		return nil, domain.ErrDomainNotFound
	}
	return d, nil
}

func (f *fakeDomainRepo) List(ctx context.Context) ([]*domain.Domain, error) {
	var out []*domain.Domain
	for _, d := range f.byName {
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeDomainRepo) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Domain, error) {
	d, ok := f.byTokenHash[tokenHash]
	if !ok {
		return nil, domain.ErrTokenInvalid
	}
	return d, nil
}

func TestDomainUsecase_CreateReturnsRawTokenOnce(t *testing.T) {
	repo := newFakeDomainRepo()
	uc := NewDomainUsecase(repo, nil, testLogger())

	d, raw, err := uc.Create(context.Background(), "acme", "Acme Corp", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if raw == "" {
		t.Fatal("expected a raw token")
	}
	if d.TokenHash != authtoken.Hash(raw) {
		t.Error("stored hash does not match the returned raw token")
	}
}

func TestDomainUsecase_RotateTokenChangesHash(t *testing.T) {
	repo := newFakeDomainRepo()
	uc := NewDomainUsecase(repo, nil, testLogger())

	d, _, err := uc.Create(context.Background(), "acme", "Acme Corp", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	oldHash := d.TokenHash

	newRaw, err := uc.RotateToken(context.Background(), "acme")
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}

	updated, err := repo.GetByName(context.Background(), "acme")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	if updated.TokenHash == oldHash {
		t.Error("token hash did not change after rotation")
	}
	if updated.TokenHash != authtoken.Hash(newRaw) {
		t.Error("stored hash does not match the new raw token")
	}
}
