package model

// HealthRecord is the canonical form every supported health payload
// reduces to. Platform is nil for shapes that don't report one.
type HealthRecord struct {
	Platform      *string `json:"platform,omitempty"`
	Release       string  `json:"release"`
	SchemaVersion string  `json:"schema_version"`
}
