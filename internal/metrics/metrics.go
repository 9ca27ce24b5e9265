package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Dispatcher metrics

	DispatchLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "hydra",
		Name:      "dispatch_latency_seconds",
		Help:      "Time from popping a job off the pending queue to routing it to a worker.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	})

	DispatchedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hydra",
		Name:      "dispatched_total",
		Help:      "Total jobs routed to a worker, by domain.",
	}, []string{"domain"})

	NoWorkerTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hydra",
		Name:      "no_worker_total",
		Help:      "Total dispatch attempts that found no eligible worker and were requeued.",
	}, []string{"domain"})

	// Schedule Ticker metrics

	ScheduleAdvancesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hydra",
		Name:      "schedule_advances_total",
		Help:      "Total successful (won the CAS) recurring-job advances, by domain.",
	}, []string{"domain"})

	ScheduleCASConflictsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hydra",
		Name:      "schedule_cas_conflicts_total",
		Help:      "Total advance attempts that lost the compare-and-set race to another ticker.",
	}, []string{"domain"})

	// Failover metrics

	FailoverRequeuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hydra",
		Name:      "failover_requeued_total",
		Help:      "Total jobs requeued from workers with a stale heartbeat, by domain.",
	}, []string{"domain"})

	FailoverCycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "hydra",
		Name:      "failover_cycle_duration_seconds",
		Help:      "Time taken for one failover sweep.",
		Buckets:   prometheus.DefBuckets,
	})

	// Worker Runtime metrics

	JobQueueLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "hydra",
		Name:      "job_queue_latency_seconds",
		Help:      "Time from job definition creation to a worker picking it up off its queue.",
		Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	JobExecutionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "hydra",
		Name:      "job_execution_duration_seconds",
		Help:      "Duration of one job run (all attempts combined), by executor type.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 300},
	}, []string{"executor_type"})

	JobsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "hydra",
		Name:      "worker_jobs_in_flight",
		Help:      "Number of jobs currently executing on this worker.",
	})

	JobsCompletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hydra",
		Name:      "jobs_completed_total",
		Help:      "Total job runs finished, by outcome (success, failed).",
	}, []string{"outcome"})

	RetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "hydra",
		Name:      "retries_total",
		Help:      "Total retry attempts executed beyond each run's first attempt.",
	})

	// Worker lifecycle

	WorkerStartTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "hydra",
		Name:      "worker_start_time_seconds",
		Help:      "Unix timestamp when this worker registered.",
	})

	WorkerShutdownsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "hydra",
		Name:      "worker_shutdowns_total",
		Help:      "Number of times this worker process has shut down.",
	})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "hydra",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hydra",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		DispatchLatency,
		DispatchedTotal,
		NoWorkerTotal,
		ScheduleAdvancesTotal,
		ScheduleCASConflictsTotal,
		FailoverRequeuedTotal,
		FailoverCycleDuration,
		JobQueueLatency,
		JobExecutionDuration,
		JobsInFlight,
		JobsCompletedTotal,
		RetriesTotal,
		WorkerStartTime,
		WorkerShutdownsTotal,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: mux}
}
