package domain

import "errors"

var ErrWorkerNotFound = errors.New("worker not found")

// WorkerStatus reflects heartbeat liveness, maintained by the Failover
// Monitor and the worker's own heartbeat task.
type WorkerStatus string

const (
	WorkerOnline  WorkerStatus = "online"
	WorkerOffline WorkerStatus = "offline"
)

// WorkerState is operator-controlled via POST /workers/{id}/state.
type WorkerState string

const (
	WorkerStateOnline   WorkerState = "online"
	WorkerStateDraining WorkerState = "draining"
	WorkerStateDisabled WorkerState = "disabled"
)

// Worker is an executor node's registration record, held in the
// coordination store's `worker(d, w)` hash.
type Worker struct {
	WorkerID string `json:"workerId"`
	Domain   string `json:"domain"`

	OS              string   `json:"os"`
	Tags            []string `json:"tags,omitempty"`
	AllowedUsers    []string `json:"allowedUsers,omitempty"`
	Queues          []string `json:"queues,omitempty"`
	Host            string   `json:"host"`
	IP              string   `json:"ip"`
	Subnet          string   `json:"subnet,omitempty"`
	DeploymentType  string   `json:"deploymentType,omitempty"`
	User            string   `json:"user,omitempty"`
	DomainTokenHash string   `json:"-"`

	MaxConcurrency int          `json:"maxConcurrency"`
	CurrentRunning int          `json:"currentRunning"`
	Status         WorkerStatus `json:"status"`
	State          WorkerState  `json:"state"`
}

// Load implements the §4.7 selection key: (utilization, absolute count).
func (w Worker) Load() (float64, int) {
	max := w.MaxConcurrency
	if max < 1 {
		max = 1
	}
	return float64(w.CurrentRunning) / float64(max), w.CurrentRunning
}
