package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Config is parsed once per process. cmd/server, cmd/scheduler, and
// cmd/worker each read the fields relevant to their role; unused fields
// are simply ignored by that role.
type Config struct {
	Env  string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Port string `env:"PORT" envDefault:"8080" validate:"required"`

	RedisURL    string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0" validate:"required"`
	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`

	// SchedulerHeartbeatTTL governs worker liveness in both the Dispatcher
	// and the Failover Monitor (§6).
	SchedulerHeartbeatTTL int `env:"SCHEDULER_HEARTBEAT_TTL" envDefault:"10" validate:"min=1"`

	DispatchIntervalSec int `env:"DISPATCH_INTERVAL_SEC" envDefault:"1" validate:"min=1,max=60"`
	TickerIntervalSec   int `env:"TICKER_INTERVAL_SEC" envDefault:"1" validate:"min=1,max=60"`
	FailoverIntervalSec int `env:"FAILOVER_INTERVAL_SEC" envDefault:"2" validate:"min=1,max=60"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" validate:"required,oneof=debug info warn error"`

	// AdminToken bypasses per-domain token lookup when set and presented via
	// Authorization/x-api-key; ?domain= selects the target domain (§6).
	AdminToken string `env:"ADMIN_TOKEN"`

	ResendAPIKey string `env:"RESEND_API_KEY" validate:"required_if=Env production,required_if=Env staging"`
	ResendFrom   string `env:"RESEND_FROM" validate:"required_if=Env production,required_if=Env staging"`

	// Worker identity — consumed only by cmd/worker (§6 "Worker configuration").
	WorkerID             string `env:"WORKER_ID"`
	WorkerDomain         string `env:"WORKER_DOMAIN"`
	WorkerDomainToken    string `env:"WORKER_DOMAIN_TOKEN"`
	WorkerTags           string `env:"WORKER_TAGS"`
	WorkerAllowedUsers   string `env:"ALLOWED_USERS"`
	WorkerQueues         string `env:"WORKER_QUEUES"`
	WorkerMaxConcurrency int    `env:"MAX_CONCURRENCY" envDefault:"4" validate:"min=1,max=512"`
	WorkerState          string `env:"WORKER_STATE" envDefault:"online" validate:"omitempty,oneof=online draining disabled"`
	DeploymentType       string `env:"DEPLOYMENT_TYPE"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SlogLevel converts the LOG_LEVEL string to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
