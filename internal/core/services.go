package core

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/edvin/deploytrack/internal/executor"
	"github.com/edvin/deploytrack/internal/health"
	"github.com/edvin/deploytrack/internal/model"
)

// HealthProber probes a target service's health endpoint and returns
// the normalized record.
type HealthProber interface {
	Probe(ctx context.Context, baseURL, path string, hint health.Shape) (*model.HealthRecord, error)
}

// Broadcaster pushes events to live subscribers.
type Broadcaster interface {
	BroadcastAll(ctx context.Context, event model.Event)
	BroadcastTo(ctx context.Context, serviceID string, event model.Event)
}

type Services struct {
	Registry   *RegistryService
	Deployment *DeploymentService
}

func NewServices(db DB, facility executor.Facility, prober HealthProber, hub Broadcaster, logger zerolog.Logger) *Services {
	return &Services{
		Registry:   NewRegistryService(db, prober, hub, logger),
		Deployment: NewDeploymentService(db, facility, prober, hub, logger),
	}
}
