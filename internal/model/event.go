package model

// Event types pushed to websocket subscribers.
const (
	EventServiceCreated      = "service_created"
	EventServiceUpdate       = "service_update"
	EventDeploymentStarted   = "deployment_started"
	EventDeploymentCompleted = "deployment_completed"
)

// Event is the wire payload for a single push notification.
type Event struct {
	Type         string   `json:"type"`
	ServiceID    string   `json:"service_id,omitempty"`
	DeploymentID string   `json:"deployment_id,omitempty"`
	Status       string   `json:"status,omitempty"`
	Version      string   `json:"version,omitempty"`
	Detail       string   `json:"detail,omitempty"`
	Service      *Service `json:"service,omitempty"`
	Data         string   `json:"data,omitempty"`
}
