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

	"github.com/hydra-scheduler/hydra/config"
	"github.com/hydra-scheduler/hydra/internal/coordstore"
	"github.com/hydra-scheduler/hydra/internal/dispatcher"
	"github.com/hydra-scheduler/hydra/internal/durablestore"
	"github.com/hydra-scheduler/hydra/internal/eventbus"
	"github.com/hydra-scheduler/hydra/internal/failover"
	"github.com/hydra-scheduler/hydra/internal/health"
	ctxlog "github.com/hydra-scheduler/hydra/internal/log"
	"github.com/hydra-scheduler/hydra/internal/metrics"
	"github.com/hydra-scheduler/hydra/internal/notify"
	"github.com/hydra-scheduler/hydra/internal/ticker"
)

// main runs the control-plane process: the Dispatcher (§4.3), Schedule
// Ticker (§4.2), and Failover Monitor (§4.4). Any number of replicas may
// run concurrently — every advancement is either a blocking queue pop or a
// compare-and-set, so duplicate instances only add throughput, never
// duplicate work.
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

	coord, err := coordstore.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer coord.Close()

	logger.Info("stores connected")

	metrics.Register()
	checker := health.NewChecker(pool, coord, logger, prometheus.DefaultRegisterer)

	jobRepo := durablestore.NewJobRepo(pool)
	runRepo := durablestore.NewRunRepo(pool)
	domainRepo := durablestore.NewDomainRepo(pool)
	events := eventbus.New()
	sender := notify.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger)

	dp := dispatcher.New(jobRepo, domainRepo, coord, events, logger, time.Duration(cfg.SchedulerHeartbeatTTL)*time.Second)
	go dp.Start(ctx)

	st := ticker.New(jobRepo, coord, events, logger, time.Duration(cfg.TickerIntervalSec)*time.Second)
	go st.Start(ctx)

	fm := failover.New(
		coord, runRepo, events, sender, logger,
		time.Duration(cfg.SchedulerHeartbeatTTL)*time.Second,
		time.Duration(cfg.FailoverIntervalSec)*time.Second,
	)
	go fm.Start(ctx)

	metricsSrv := metrics.NewServer(":" + cfg.MetricsPort)
	metricsSrv.Handler.(*http.ServeMux).HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		result := checker.Readiness(r.Context())
		if result.Status != "up" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	})

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}

	logger.Info("scheduler shut down")
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
