package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hydra-scheduler/hydra/internal/domain"
	"github.com/hydra-scheduler/hydra/internal/transport/http/middleware"
	"github.com/hydra-scheduler/hydra/internal/usecase"
)

// WorkerHandler implements §6's worker-facing endpoints.
type WorkerHandler struct {
	workers *usecase.WorkerUsecase
	logger  *slog.Logger
}

func NewWorkerHandler(workers *usecase.WorkerUsecase, logger *slog.Logger) *WorkerHandler {
	return &WorkerHandler{workers: workers, logger: logger.With("component", "worker_handler")}
}

func (h *WorkerHandler) List(c *gin.Context) {
	domainName := middleware.DomainFromContext(c)
	if domainName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": errDomainRequired})
		return
	}

	workers, err := h.workers.List(c.Request.Context(), domainName)
	if err != nil {
		h.logger.Error("list workers", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	c.JSON(http.StatusOK, gin.H{"workers": workers})
}

type setStateRequest struct {
	State domain.WorkerState `json:"state" binding:"required,oneof=online draining disabled"`
}

func (h *WorkerHandler) SetState(c *gin.Context) {
	domainName := middleware.DomainFromContext(c)
	if domainName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": errDomainRequired})
		return
	}

	var req setStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.workers.SetState(c.Request.Context(), domainName, c.Param("id"), req.State); err != nil {
		h.logger.Error("set worker state", "worker_id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	c.Status(http.StatusNoContent)
}
