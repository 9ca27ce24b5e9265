package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hydra-scheduler/hydra/config"
	"github.com/hydra-scheduler/hydra/internal/coordstore"
	"github.com/hydra-scheduler/hydra/internal/durablestore"
	"github.com/hydra-scheduler/hydra/internal/eventbus"
	"github.com/hydra-scheduler/hydra/internal/health"
	ctxlog "github.com/hydra-scheduler/hydra/internal/log"
	"github.com/hydra-scheduler/hydra/internal/metrics"
	httptransport "github.com/hydra-scheduler/hydra/internal/transport/http"
	"github.com/hydra-scheduler/hydra/internal/transport/http/handler"
	"github.com/hydra-scheduler/hydra/internal/usecase"
)

// main runs the HTTP API process: the §6 external interface surface. The
// Dispatcher, Schedule Ticker, and Failover Monitor live in cmd/scheduler;
// this process only reads/writes the durable and coordination stores on
// behalf of HTTP callers.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := durablestore.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()
	if _, err := pool.Exec(ctx, durablestore.Schema); err != nil {
		log.Fatalf("apply schema: %v", err)
	}

	coord, err := coordstore.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer coord.Close()

	metrics.Register()
	checker := health.NewChecker(pool, coord, logger, prometheus.DefaultRegisterer)

	jobRepo := durablestore.NewJobRepo(pool)
	runRepo := durablestore.NewRunRepo(pool)
	domainRepo := durablestore.NewDomainRepo(pool)

	events := eventbus.New()

	jobUsecase := usecase.NewJobUsecase(jobRepo, runRepo, coord, events, logger)
	workerUsecase := usecase.NewWorkerUsecase(coord, logger)
	domainUsecase := usecase.NewDomainUsecase(domainRepo, coord, logger)

	deps := httptransport.Deps{
		Jobs:          handler.NewJobHandler(jobUsecase, logger),
		Workers:       handler.NewWorkerHandler(workerUsecase, logger),
		Runs:          handler.NewRunHandler(jobUsecase, coord, logger),
		Events:        handler.NewEventsHandler(events, logger),
		Admin:         handler.NewAdminHandler(domainUsecase, logger),
		Health:        handler.NewHealthHandler(checker, coord, logger),
		DomainUsecase: domainUsecase,
		AdminToken:    cfg.AdminToken,
		SubmitRPS:     rate.Limit(20),
		SubmitBurst:   40,
	}

	srv := http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httptransport.NewRouter(logger, deps),
	}
	metricsSrv := metrics.NewServer(":" + cfg.MetricsPort)

	go func() {
		logger.Info("server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()
	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{Level: level, TimeFormat: time.Kitchen})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
