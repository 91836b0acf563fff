package model

import "time"

// Deployment is one version-upgrade attempt against a service.
// CompletedAt is set if and only if Status is terminal.
type Deployment struct {
	ID          string     `json:"id" db:"id"`
	ServiceID   string     `json:"service_id" db:"service_id"`
	Version     string     `json:"version" db:"version"`
	JobID       *string    `json:"job_id,omitempty" db:"job_id"`
	Status      string     `json:"status" db:"status"`
	Detail      *string    `json:"detail,omitempty" db:"detail"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}
