package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/hydra-scheduler/hydra/config"
	"github.com/hydra-scheduler/hydra/internal/coordstore"
	"github.com/hydra-scheduler/hydra/internal/domain"
	"github.com/hydra-scheduler/hydra/internal/durablestore"
	ctxlog "github.com/hydra-scheduler/hydra/internal/log"
	"github.com/hydra-scheduler/hydra/internal/workerruntime"
)

// main runs one Worker Runtime (§4.5): a single executor-node process that
// registers itself against a domain, heartbeats, and pulls jobs off its own
// queue with a bounded concurrency pool. §5 expects one of these per node,
// any number of which may run concurrently across a domain's worker pool.
//
// Grounded on original_source/worker/worker.py's worker_main (register,
// start_heartbeat, ThreadPoolExecutor intake loop) and
// original_source/worker/config.py for the §6 env-var surface, adapted to
// the teacher's internal/scheduler/worker.go hostname-pid identity
// derivation.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.WorkerDomain == "" {
		log.Fatal("WORKER_DOMAIN is required")
	}
	token := cfg.WorkerDomainToken
	if token == "" {
		token = os.Getenv("API_TOKEN")
	}
	if token == "" {
		log.Fatal("WORKER_DOMAIN_TOKEN (or API_TOKEN) is required for domain-scoped worker registration")
	}
	tokenHash := sha256.Sum256([]byte(token))

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

	jobRepo := durablestore.NewJobRepo(pool)
	runRepo := durablestore.NewRunRepo(pool)

	host, _ := os.Hostname()
	ip := localIP()
	rt := workerruntime.New(workerruntime.Config{
		WorkerID:          workerID(cfg.WorkerID, host),
		Domain:            cfg.WorkerDomain,
		OS:                strings.ToLower(runtime.GOOS),
		Tags:              splitCSV(cfg.WorkerTags),
		AllowedUsers:      splitCSV(cfg.WorkerAllowedUsers),
		Queues:            splitCSV(cfg.WorkerQueues),
		Host:              host,
		IP:                ip,
		Subnet:            subnetOf(ip),
		DeploymentType:    cfg.DeploymentType,
		User:              currentUser(),
		DomainTokenHash:   hex.EncodeToString(tokenHash[:]),
		MaxConcurrency:    cfg.WorkerMaxConcurrency,
		State:             domain.WorkerState(cfg.WorkerState),
		HeartbeatInterval: 2 * time.Second,
		PopTimeout:        2 * time.Second,
	}, coord, jobRepo, runRepo, logger)

	logger.Info("worker runtime starting", "domain", cfg.WorkerDomain, "max_concurrency", cfg.WorkerMaxConcurrency)
	if err := rt.Start(ctx); err != nil {
		log.Fatalf("worker runtime: %v", err)
	}
}

// workerID derives an identity from host+process, matching the §9 design
// note: the id is stable for the life of the process, so a worker that
// reconnects reclaims its own metadata hash. A restarted process has a new
// pid and therefore registers under a new id unless WORKER_ID is set.
func workerID(configured, host string) string {
	if configured != "" {
		return configured
	}
	return fmt.Sprintf("worker-%s-%d", host, os.Getpid())
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func localIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return ""
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return ""
	}
	return addr.IP.String()
}

// subnetOf reports the IP's /24 prefix as a literal string, matching §4.6's
// "subnet: literal prefix string" comparison semantics.
func subnetOf(ip string) string {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return ""
	}
	return strings.Join(parts[:3], ".") + "."
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return os.Getenv("USERNAME")
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
