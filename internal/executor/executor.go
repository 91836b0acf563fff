// Package executor defines the asynchronous execution facility that
// performs deployment jobs, and its Temporal-backed implementation.
package executor

import (
	"context"

	"github.com/edvin/deploytrack/internal/model"
)

// Outcome is the terminal result classification of a deployment job.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

// Request carries everything a deployment job needs about its target.
type Request struct {
	DeploymentID   string `json:"deployment_id"`
	ServiceID      string `json:"service_id"`
	ServiceURL     string `json:"service_url"`
	HealthPath     string `json:"health_path"`
	ResponseFormat string `json:"response_format"`
	TargetVersion  string `json:"target_version"`
}

// Result is the job's only contract back to the orchestrator. Health
// is the final post-deployment record when the job supplies one.
type Result struct {
	Outcome     Outcome             `json:"outcome"`
	Health      *model.HealthRecord `json:"health,omitempty"`
	ErrorDetail string              `json:"error_detail,omitempty"`
}

// Facility dispatches deployment jobs and reports terminal results.
// Submit returns immediately with an opaque job handle; PollResult is
// non-blocking and returns nil while the job is still running.
type Facility interface {
	Submit(ctx context.Context, req Request) (string, error)
	PollResult(ctx context.Context, handle string) (*Result, error)
}
