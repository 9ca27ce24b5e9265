package domain

import (
	"errors"
	"time"
)

var (
	ErrJobNotFound  = errors.New("job definition not found")
	ErrInvalidJob   = errors.New("job definition failed validation")
	ErrInvalidStatus = errors.New("invalid status filter")
)

// JobDefinition is the executable recipe a tenant submits. It is mutated by
// the API (updates) and by the Schedule Ticker (schedule.next_run_at); the
// core never deletes one.
type JobDefinition struct {
	ID     string `json:"id"`
	Domain string `json:"domain"`
	Name   string `json:"name"`
	User   string `json:"user"`

	Affinity   Affinity   `json:"affinity"`
	Executor   Executor   `json:"executor"`
	Schedule   Schedule   `json:"schedule"`
	Completion Completion `json:"completion"`

	Retries        int `json:"retries"`
	TimeoutSeconds int `json:"timeoutSeconds"`
	Priority       int `json:"priority"` // 1-10, higher wins

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
