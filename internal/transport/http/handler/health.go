package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hydra-scheduler/hydra/internal/coordstore"
	"github.com/hydra-scheduler/hydra/internal/health"
)

// HealthHandler implements `GET /health`: `{status, checks, workers,
// pendingJobs}` (§6). workers and pendingJobs are filled only for the
// domain named by the ?domain= query parameter; the caller's token is not
// used to pick the domain.
type HealthHandler struct {
	checker *health.Checker
	coord   *coordstore.Store
	logger  *slog.Logger
}

func NewHealthHandler(checker *health.Checker, coord *coordstore.Store, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{checker: checker, coord: coord, logger: logger.With("component", "health_handler")}
}

func (h *HealthHandler) Get(c *gin.Context) {
	result := h.checker.Readiness(c.Request.Context())

	domainName := c.Query("domain")
	if domainName != "" {
		if workers, err := h.coord.ListWorkers(c.Request.Context(), domainName); err == nil {
			result.Workers = len(workers)
		}
		if pending, err := h.coord.CountPending(c.Request.Context(), domainName); err == nil {
			result.PendingJobs = int(pending)
		}
	}

	status := http.StatusOK
	if result.Status != "up" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, result)
}
