package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hydra-scheduler/hydra/internal/domain"
	"github.com/hydra-scheduler/hydra/internal/transport/http/middleware"
	"github.com/hydra-scheduler/hydra/internal/usecase"
)

// JobHandler implements §6's job-facing endpoints.
type JobHandler struct {
	jobs   *usecase.JobUsecase
	logger *slog.Logger
}

func NewJobHandler(jobs *usecase.JobUsecase, logger *slog.Logger) *JobHandler {
	return &JobHandler{jobs: jobs, logger: logger.With("component", "job_handler")}
}

// jobRequest is the wire shape for job submission/update/validation, bound
// and validated before being converted into a domain.JobDefinition.
type jobRequest struct {
	Name           string            `json:"name" binding:"required,max=256"`
	User           string            `json:"user" binding:"required"`
	Affinity       domain.Affinity   `json:"affinity"`
	Executor       domain.Executor   `json:"executor" binding:"required"`
	Schedule       domain.Schedule   `json:"schedule"`
	Completion     domain.Completion `json:"completion"`
	Retries        int               `json:"retries" binding:"min=0,max=20"`
	TimeoutSeconds int               `json:"timeoutSeconds" binding:"min=0"`
	Priority       int               `json:"priority" binding:"min=1,max=10"`
}

func (r jobRequest) toDomain() *domain.JobDefinition {
	return &domain.JobDefinition{
		Name:           r.Name,
		User:           r.User,
		Affinity:       r.Affinity,
		Executor:       r.Executor,
		Schedule:       r.Schedule,
		Completion:     r.Completion,
		Retries:        r.Retries,
		TimeoutSeconds: r.TimeoutSeconds,
		Priority:       r.Priority,
	}
}

func (h *JobHandler) Create(c *gin.Context) {
	var req jobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.jobs.Submit(c.Request.Context(), middleware.DomainFromContext(c), req.toDomain())
	if err != nil {
		h.writeSubmitError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *JobHandler) Adhoc(c *gin.Context) {
	var req jobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.jobs.Adhoc(c.Request.Context(), middleware.DomainFromContext(c), req.toDomain())
	if err != nil {
		h.writeSubmitError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *JobHandler) writeSubmitError(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrInvalidJob) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.logger.Error("submit job", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
}

func (h *JobHandler) List(c *gin.Context) {
	domainName := middleware.DomainFromContext(c)
	if domainName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": errDomainRequired})
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	jobs, err := h.jobs.List(c.Request.Context(), domainName, limit)
	if err != nil {
		h.logger.Error("list jobs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (h *JobHandler) GetByID(c *gin.Context) {
	job, err := h.jobs.Get(c.Request.Context(), middleware.DomainFromContext(c), c.Param("id"))
	if err != nil {
		h.writeLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *JobHandler) Update(c *gin.Context) {
	var req jobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.jobs.Update(c.Request.Context(), middleware.DomainFromContext(c), c.Param("id"), req.toDomain())
	if err != nil {
		if errors.Is(err, domain.ErrInvalidJob) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.writeLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *JobHandler) Validate(c *gin.Context) {
	var req jobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.jobs.Validate(req.toDomain()); err != nil {
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

func (h *JobHandler) Run(c *gin.Context) {
	err := h.jobs.ManualRun(c.Request.Context(), middleware.DomainFromContext(c), c.Param("id"))
	if err != nil {
		h.writeLookupError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (h *JobHandler) ListRuns(c *gin.Context) {
	runs, err := h.jobs.ListRuns(c.Request.Context(), middleware.DomainFromContext(c), c.Param("id"))
	if err != nil {
		h.writeLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (h *JobHandler) QueueOverview(c *gin.Context) {
	domainName := middleware.DomainFromContext(c)
	if domainName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": errDomainRequired})
		return
	}
	topN, _ := strconv.Atoi(c.Query("top"))

	overview, err := h.jobs.QueueOverview(c.Request.Context(), domainName, topN)
	if err != nil {
		h.logger.Error("queue overview", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	c.JSON(http.StatusOK, overview)
}

func (h *JobHandler) writeLookupError(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrJobNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": errJobNotFound})
		return
	}
	h.logger.Error("job lookup", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
}
