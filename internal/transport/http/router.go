// Package httptransport wires §6's HTTP/JSON API: job submission and
// lifecycle, queue introspection, worker control, run/event streaming,
// domain administration, and health, behind domain-token authentication.
package httptransport

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	sloggin "github.com/samber/slog-gin"
	"golang.org/x/time/rate"

	"github.com/hydra-scheduler/hydra/internal/transport/http/handler"
	"github.com/hydra-scheduler/hydra/internal/transport/http/middleware"
	"github.com/hydra-scheduler/hydra/internal/usecase"
)

// Deps bundles the handlers and cross-cutting usecases NewRouter needs.
type Deps struct {
	Jobs    *handler.JobHandler
	Workers *handler.WorkerHandler
	Runs    *handler.RunHandler
	Events  *handler.EventsHandler
	Admin   *handler.AdminHandler
	Health  *handler.HealthHandler

	DomainUsecase *usecase.DomainUsecase
	AdminToken    string
	SubmitRPS     rate.Limit
	SubmitBurst   int
}

func NewRouter(logger *slog.Logger, d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.DomainAuth(d.DomainUsecase, d.AdminToken))

	r.GET("/health", d.Health.Get)
	r.GET("/events/stream", d.Events.Stream)

	limiter := middleware.PerDomainRateLimit(d.SubmitRPS, d.SubmitBurst)

	jobs := r.Group("/jobs")
	jobs.POST("/", limiter, d.Jobs.Create)
	jobs.GET("/", d.Jobs.List)
	jobs.GET("/:id", d.Jobs.GetByID)
	jobs.PUT("/:id", d.Jobs.Update)
	jobs.POST("/:id/validate", d.Jobs.Validate)
	jobs.POST("/validate", d.Jobs.Validate)
	jobs.POST("/:id/run", d.Jobs.Run)
	jobs.POST("/adhoc", limiter, d.Jobs.Adhoc)
	jobs.GET("/:id/runs", d.Jobs.ListRuns)

	r.GET("/queue/overview", d.Jobs.QueueOverview)

	workers := r.Group("/workers")
	workers.GET("/", d.Workers.List)
	workers.POST("/:id/state", d.Workers.SetState)

	runs := r.Group("/runs")
	runs.GET("/:id", d.Runs.Get)
	runs.GET("/:id/stream", d.Runs.Stream)

	admin := r.Group("/admin/domains")
	admin.POST("", d.Admin.Create)
	admin.GET("", d.Admin.List)
	admin.PUT("/:domain", d.Admin.Update)
	admin.POST("/:domain/token", d.Admin.RotateToken)
	admin.DELETE("/:domain", d.Admin.Delete)

	return r
}
