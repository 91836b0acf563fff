package core

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/edvin/deploytrack/internal/health"
	"github.com/edvin/deploytrack/internal/model"
)

const serviceColumns = `id, name, url, health_path, response_format, current_version, schema_version, last_checked_at, created_at, updated_at`

// RegistryService manages the registry of deployable target services.
type RegistryService struct {
	db     DB
	prober HealthProber
	hub    Broadcaster
	logger zerolog.Logger
}

func NewRegistryService(db DB, prober HealthProber, hub Broadcaster, logger zerolog.Logger) *RegistryService {
	return &RegistryService{db: db, prober: prober, hub: hub, logger: logger}
}

// Register probes the service once and stores it with its current
// version and schema. A duplicate display name is rejected before the
// probe so a name conflict has no side effects.
func (s *RegistryService) Register(ctx context.Context, svc *model.Service) error {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM services WHERE name = $1)`, svc.Name).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check service name %s: %w", svc.Name, err)
	}
	if exists {
		return ErrDuplicateName
	}

	rec, err := s.prober.Probe(ctx, svc.URL, svc.HealthPath, health.Shape(svc.ResponseFormat))
	if err != nil {
		return fmt.Errorf("initial health probe for %s: %w", svc.Name, err)
	}

	now := time.Now()
	svc.CurrentVersion = &rec.Release
	svc.SchemaVersion = &rec.SchemaVersion
	svc.LastCheckedAt = &now

	_, err = s.db.Exec(ctx,
		`INSERT INTO services (id, name, url, health_path, response_format, current_version, schema_version, last_checked_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		svc.ID, svc.Name, svc.URL, svc.HealthPath, svc.ResponseFormat,
		svc.CurrentVersion, svc.SchemaVersion, svc.LastCheckedAt, svc.CreatedAt, svc.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateName
		}
		return fmt.Errorf("insert service %s: %w", svc.Name, err)
	}

	s.hub.BroadcastAll(ctx, model.Event{
		Type:      model.EventServiceCreated,
		ServiceID: svc.ID,
		Service:   svc,
	})
	return nil
}

func (s *RegistryService) GetByID(ctx context.Context, id string) (*model.Service, error) {
	var svc model.Service
	err := s.db.QueryRow(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE id = $1`, id,
	).Scan(&svc.ID, &svc.Name, &svc.URL, &svc.HealthPath, &svc.ResponseFormat,
		&svc.CurrentVersion, &svc.SchemaVersion, &svc.LastCheckedAt, &svc.CreatedAt, &svc.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get service %s: %w", id, err)
	}
	return &svc, nil
}

func (s *RegistryService) List(ctx context.Context) ([]model.Service, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+serviceColumns+` FROM services ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	var services []model.Service
	for rows.Next() {
		var svc model.Service
		if err := rows.Scan(&svc.ID, &svc.Name, &svc.URL, &svc.HealthPath, &svc.ResponseFormat,
			&svc.CurrentVersion, &svc.SchemaVersion, &svc.LastCheckedAt, &svc.CreatedAt, &svc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		services = append(services, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate services: %w", err)
	}
	return services, nil
}

// Refresh re-probes the service and updates its last-known version,
// schema, and check timestamp.
func (s *RegistryService) Refresh(ctx context.Context, id string) (*model.Service, error) {
	svc, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	rec, err := s.prober.Probe(ctx, svc.URL, svc.HealthPath, health.Shape(svc.ResponseFormat))
	if err != nil {
		return nil, fmt.Errorf("refresh health probe for %s: %w", svc.Name, err)
	}

	now := time.Now()
	_, err = s.db.Exec(ctx,
		`UPDATE services SET current_version = $1, schema_version = $2, last_checked_at = $3, updated_at = $3 WHERE id = $4`,
		rec.Release, rec.SchemaVersion, now, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update service %s after refresh: %w", id, err)
	}

	svc.CurrentVersion = &rec.Release
	svc.SchemaVersion = &rec.SchemaVersion
	svc.LastCheckedAt = &now
	svc.UpdatedAt = now
	return svc, nil
}

// RefreshAll re-probes every registered service concurrently. A probe
// failure leaves that service's stored record untouched and does not
// abort the sweep.
func (s *RegistryService) RefreshAll(ctx context.Context) ([]model.Service, error) {
	services, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for i := range services {
		g.Go(func() error {
			refreshed, err := s.Refresh(ctx, services[i].ID)
			if err != nil {
				s.logger.Warn().Err(err).Str("service_id", services[i].ID).Msg("refresh sweep probe failed")
				return nil
			}
			services[i] = *refreshed
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("refresh sweep: %w", err)
	}
	return services, nil
}
