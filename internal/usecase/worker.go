package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hydra-scheduler/hydra/internal/coordstore"
	"github.com/hydra-scheduler/hydra/internal/domain"
)

// WorkerUsecase implements §6's worker-facing endpoints.
type WorkerUsecase struct {
	coord  *coordstore.Store
	logger *slog.Logger
}

func NewWorkerUsecase(coord *coordstore.Store, logger *slog.Logger) *WorkerUsecase {
	return &WorkerUsecase{coord: coord, logger: logger.With("component", "worker_usecase")}
}

// List implements `GET /workers/`.
func (u *WorkerUsecase) List(ctx context.Context, domainName string) ([]coordstore.WorkerRecord, error) {
	return u.coord.ListWorkers(ctx, domainName)
}

// SetState implements `POST /workers/{id}/state`.
func (u *WorkerUsecase) SetState(ctx context.Context, domainName, workerID string, state domain.WorkerState) error {
	switch state {
	case domain.WorkerStateOnline, domain.WorkerStateDraining, domain.WorkerStateDisabled:
	default:
		return fmt.Errorf("invalid worker state %q", state)
	}
	return u.coord.SetWorkerState(ctx, domainName, workerID, string(state))
}
