package model

import "time"

// Service is a registered target system the orchestrator deploys against.
type Service struct {
	ID             string     `json:"id" db:"id"`
	Name           string     `json:"name" db:"name"`
	URL            string     `json:"url" db:"url"`
	HealthPath     string     `json:"health_path" db:"health_path"`
	ResponseFormat string     `json:"response_format" db:"response_format"`
	CurrentVersion *string    `json:"current_version,omitempty" db:"current_version"`
	SchemaVersion  *string    `json:"schema_version,omitempty" db:"schema_version"`
	LastCheckedAt  *time.Time `json:"last_checked_at,omitempty" db:"last_checked_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}
