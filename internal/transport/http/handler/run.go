package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hydra-scheduler/hydra/internal/coordstore"
	"github.com/hydra-scheduler/hydra/internal/domain"
	"github.com/hydra-scheduler/hydra/internal/transport/http/middleware"
	"github.com/hydra-scheduler/hydra/internal/usecase"
)

// RunHandler implements §6's `GET /runs/{id}` and its log-stream companion.
type RunHandler struct {
	jobs   *usecase.JobUsecase
	coord  *coordstore.Store
	logger *slog.Logger
}

func NewRunHandler(jobs *usecase.JobUsecase, coord *coordstore.Store, logger *slog.Logger) *RunHandler {
	return &RunHandler{jobs: jobs, coord: coord, logger: logger.With("component", "run_handler")}
}

func (h *RunHandler) Get(c *gin.Context) {
	run, ok := h.loadRun(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, run)
}

// Stream implements `GET /runs/{id}/stream`: replay the capped history of
// log chunks for the run, then forward live chunks from pub/sub in order
// (§4.5 step 4, §8 seed scenario).
func (h *RunHandler) Stream(c *gin.Context) {
	run, ok := h.loadRun(c)
	if !ok {
		return
	}

	history, err := h.coord.LogHistory(c.Request.Context(), run.Domain, run.ID)
	if err != nil {
		h.logger.Error("log history", "run_id", run.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	sub := h.coord.SubscribeLog(c.Request.Context(), run.Domain, run.ID)
	defer sub.Close()
	live := sub.Channel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	for _, chunk := range history {
		c.SSEvent("log", chunk)
	}
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case msg, ok := <-live:
			if !ok {
				return false
			}
			chunk, err := coordstore.DecodeLogChunk(msg.Payload)
			if err != nil {
				h.logger.Warn("decode log chunk", "run_id", run.ID, "error", err)
				return true
			}
			c.SSEvent("log", chunk)
			return true
		}
	})
}

func (h *RunHandler) loadRun(c *gin.Context) (*domain.JobRun, bool) {
	run, err := h.jobs.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": errRunNotFound})
			return nil, false
		}
		h.logger.Error("get run", "run_id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return nil, false
	}
	if !middleware.IsAdmin(c) && run.Domain != middleware.DomainFromContext(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": errRunNotFound})
		return nil, false
	}
	return run, true
}
