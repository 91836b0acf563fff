package model

// Deployment status constants.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusSuccess    = "success"
	StatusFailed     = "failed"
)

// IsTerminal reports whether a deployment status admits no further transitions.
func IsTerminal(status string) bool {
	return status == StatusSuccess || status == StatusFailed
}
