// Package domain holds the entities shared by every Hydra subsystem:
// tenants, job definitions, job runs, and worker registrations.
package domain

import (
	"errors"
	"time"
)

var (
	ErrDomainNotFound = errors.New("domain not found")
	ErrDomainConflict = errors.New("domain with this name already exists")
	ErrTokenInvalid   = errors.New("token is invalid or unrecognized")
	ErrUnauthorized   = errors.New("unauthorized")
)

// Domain is a tenant partition. Every job, worker, queue, and heartbeat
// belongs to exactly one.
type Domain struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Description string `json:"description,omitempty"`

	// TokenHash is the SHA-256 hex digest of the domain's current bearer
	// token. The raw token is never stored.
	TokenHash string `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
