package core

import (
	"context"
	"fmt"
	"time"

	"github.com/im7mortal/kmutex"
	"github.com/rs/zerolog"

	"github.com/edvin/deploytrack/internal/executor"
	"github.com/edvin/deploytrack/internal/health"
	"github.com/edvin/deploytrack/internal/metrics"
	"github.com/edvin/deploytrack/internal/model"
	"github.com/edvin/deploytrack/internal/platform"
	"github.com/edvin/deploytrack/internal/version"
)

const deploymentColumns = `id, service_id, version, job_id, status, detail, created_at, completed_at`

// DeploymentService creates deployment jobs, dispatches them to the
// execution facility, and settles their final state on demand.
type DeploymentService struct {
	db       DB
	facility executor.Facility
	prober   HealthProber
	hub      Broadcaster
	logger   zerolog.Logger

	// locks serializes Poll and finalization per deployment so a
	// terminal transition happens exactly once.
	locks *kmutex.Kmutex
}

func NewDeploymentService(db DB, facility executor.Facility, prober HealthProber, hub Broadcaster, logger zerolog.Logger) *DeploymentService {
	return &DeploymentService{
		db:       db,
		facility: facility,
		prober:   prober,
		hub:      hub,
		logger:   logger.With().Str("component", "deployments").Logger(),
		locks:    kmutex.New(),
	}
}

// Create records a new deployment for the service and dispatches it.
// The target is probed first and the requested version must be a
// strict upgrade over what the target reports; otherwise the
// deployment is finalized as failed without ever being dispatched.
func (s *DeploymentService) Create(ctx context.Context, serviceID, targetVersion string) (*model.Deployment, error) {
	svc, err := s.getService(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	d := &model.Deployment{
		ID:        platform.NewID(),
		ServiceID: svc.ID,
		Version:   targetVersion,
		Status:    model.StatusPending,
		CreatedAt: time.Now(),
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO deployments (id, service_id, version, status, created_at) VALUES ($1, $2, $3, $4, $5)`,
		d.ID, d.ServiceID, d.Version, d.Status, d.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert deployment for service %s: %w", serviceID, err)
	}

	rec, err := s.prober.Probe(ctx, svc.URL, svc.HealthPath, health.Shape(svc.ResponseFormat))
	if err != nil {
		if ferr := s.markFailed(ctx, d, fmt.Sprintf("health probe failed: %v", err)); ferr != nil {
			return nil, ferr
		}
		return d, nil
	}

	if !version.IsValidUpgrade(rec.Release, targetVersion) {
		detail := fmt.Sprintf("invalid version upgrade: current %s, requested %s", rec.Release, targetVersion)
		if ferr := s.markFailed(ctx, d, detail); ferr != nil {
			return nil, ferr
		}
		return d, nil
	}

	jobID, err := s.facility.Submit(ctx, executor.Request{
		DeploymentID:   d.ID,
		ServiceID:      svc.ID,
		ServiceURL:     svc.URL,
		HealthPath:     svc.HealthPath,
		ResponseFormat: svc.ResponseFormat,
		TargetVersion:  targetVersion,
	})
	if err != nil {
		if ferr := s.markFailed(ctx, d, fmt.Sprintf("dispatch failed: %v", err)); ferr != nil {
			return nil, ferr
		}
		return d, nil
	}

	_, err = s.db.Exec(ctx,
		`UPDATE deployments SET job_id = $1, status = $2 WHERE id = $3`,
		jobID, model.StatusInProgress, d.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("mark deployment %s in progress: %w", d.ID, err)
	}
	d.JobID = &jobID
	d.Status = model.StatusInProgress

	metrics.DeploymentsStarted.Inc()
	s.logger.Info().
		Str("deployment_id", d.ID).
		Str("service_id", svc.ID).
		Str("version", targetVersion).
		Str("job_id", jobID).
		Msg("deployment dispatched")

	s.hub.BroadcastTo(ctx, svc.ID, model.Event{
		Type:         model.EventDeploymentStarted,
		ServiceID:    svc.ID,
		DeploymentID: d.ID,
		Status:       d.Status,
		Version:      d.Version,
	})
	return d, nil
}

func (s *DeploymentService) GetByID(ctx context.Context, id string) (*model.Deployment, error) {
	var d model.Deployment
	err := s.db.QueryRow(ctx,
		`SELECT `+deploymentColumns+` FROM deployments WHERE id = $1`, id,
	).Scan(&d.ID, &d.ServiceID, &d.Version, &d.JobID, &d.Status, &d.Detail, &d.CreatedAt, &d.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("get deployment %s: %w", id, err)
	}
	return &d, nil
}

func (s *DeploymentService) ListByService(ctx context.Context, serviceID string) ([]model.Deployment, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+deploymentColumns+` FROM deployments WHERE service_id = $1 ORDER BY created_at`, serviceID)
	if err != nil {
		return nil, fmt.Errorf("list deployments for service %s: %w", serviceID, err)
	}
	defer rows.Close()

	var deployments []model.Deployment
	for rows.Next() {
		var d model.Deployment
		if err := rows.Scan(&d.ID, &d.ServiceID, &d.Version, &d.JobID, &d.Status, &d.Detail, &d.CreatedAt, &d.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan deployment: %w", err)
		}
		deployments = append(deployments, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deployments: %w", err)
	}
	return deployments, nil
}

// Poll returns the deployment's current state, first settling it if
// its job has finished. Terminal deployments are returned unchanged:
// concurrent polls of the same deployment serialize on a per-id lock
// and only the poll that performs the transition broadcasts.
func (s *DeploymentService) Poll(ctx context.Context, id string) (*model.Deployment, error) {
	s.locks.Lock(id)
	defer s.locks.Unlock(id)

	d, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if model.IsTerminal(d.Status) || d.JobID == nil {
		return d, nil
	}

	result, err := s.facility.PollResult(ctx, *d.JobID)
	if err != nil {
		return nil, fmt.Errorf("poll job %s: %w", *d.JobID, err)
	}
	if result == nil {
		// Still running.
		return d, nil
	}

	if result.Outcome == executor.OutcomeSuccess {
		if err := s.completeSuccess(ctx, d, result); err != nil {
			return nil, err
		}
	} else {
		if err := s.markFailed(ctx, d, result.ErrorDetail); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// markFailed finalizes the deployment as failed. The completed_at
// guard makes the transition first-writer-wins; a lost race mutates
// nothing and broadcasts nothing.
func (s *DeploymentService) markFailed(ctx context.Context, d *model.Deployment, detail string) error {
	now := time.Now()
	tag, err := s.db.Exec(ctx,
		`UPDATE deployments SET status = $1, detail = $2, completed_at = $3 WHERE id = $4 AND completed_at IS NULL`,
		model.StatusFailed, detail, now, d.ID,
	)
	if err != nil {
		return fmt.Errorf("finalize deployment %s: %w", d.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	d.Status = model.StatusFailed
	d.Detail = &detail
	d.CompletedAt = &now

	metrics.DeploymentsCompleted.WithLabelValues(model.StatusFailed).Inc()
	s.logger.Warn().Str("deployment_id", d.ID).Str("detail", detail).Msg("deployment failed")

	s.hub.BroadcastTo(ctx, d.ServiceID, model.Event{
		Type:         model.EventDeploymentCompleted,
		ServiceID:    d.ServiceID,
		DeploymentID: d.ID,
		Status:       d.Status,
		Version:      d.Version,
		Detail:       detail,
	})
	return nil
}

// completeSuccess finalizes the deployment as succeeded and rolls the
// service's recorded version forward to what the job observed.
func (s *DeploymentService) completeSuccess(ctx context.Context, d *model.Deployment, result *executor.Result) error {
	now := time.Now()
	tag, err := s.db.Exec(ctx,
		`UPDATE deployments SET status = $1, completed_at = $2 WHERE id = $3 AND completed_at IS NULL`,
		model.StatusSuccess, now, d.ID,
	)
	if err != nil {
		return fmt.Errorf("finalize deployment %s: %w", d.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	release := d.Version
	var schemaVersion *string
	if result.Health != nil {
		release = result.Health.Release
		schemaVersion = &result.Health.SchemaVersion
	}
	_, err = s.db.Exec(ctx,
		`UPDATE services SET current_version = $1, schema_version = COALESCE($2, schema_version), last_checked_at = $3, updated_at = $3 WHERE id = $4`,
		release, schemaVersion, now, d.ServiceID,
	)
	if err != nil {
		return fmt.Errorf("update service %s after deployment: %w", d.ServiceID, err)
	}

	d.Status = model.StatusSuccess
	d.CompletedAt = &now

	metrics.DeploymentsCompleted.WithLabelValues(model.StatusSuccess).Inc()
	s.logger.Info().Str("deployment_id", d.ID).Str("version", release).Msg("deployment succeeded")

	s.hub.BroadcastTo(ctx, d.ServiceID, model.Event{
		Type:         model.EventDeploymentCompleted,
		ServiceID:    d.ServiceID,
		DeploymentID: d.ID,
		Status:       d.Status,
		Version:      release,
	})
	return nil
}

func (s *DeploymentService) getService(ctx context.Context, id string) (*model.Service, error) {
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
