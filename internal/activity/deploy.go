// Package activity holds the Temporal activities that make up a
// deployment job: pre-check, backup, schema migration, the update
// call, and the final health verification.
package activity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/edvin/deploytrack/internal/executor"
	"github.com/edvin/deploytrack/internal/health"
	"github.com/edvin/deploytrack/internal/model"
)

// Paths on the target service that trigger a schema migration and an
// in-place update.
const (
	migratePath = "/migrate"
	updatePath  = "/update"
)

// Deploy contains the activities executed by the deployment workflow.
type Deploy struct {
	prober *health.Prober
	client *http.Client
	s3     *s3.Client
	bucket string
	logger zerolog.Logger
}

// NewDeploy creates the deployment activity struct. s3Client may be
// nil (or bucket empty) to disable pre-deployment snapshots.
func NewDeploy(prober *health.Prober, s3Client *s3.Client, bucket string, logger zerolog.Logger) *Deploy {
	return &Deploy{
		prober: prober,
		client: &http.Client{Timeout: 30 * time.Second},
		s3:     s3Client,
		bucket: bucket,
		logger: logger.With().Str("component", "deploy-activity").Logger(),
	}
}

// PreCheck probes the target's current health before any mutation.
func (a *Deploy) PreCheck(ctx context.Context, req executor.Request) (*model.HealthRecord, error) {
	rec, err := a.prober.Probe(ctx, req.ServiceURL, req.HealthPath, health.Shape(req.ResponseFormat))
	if err != nil {
		return nil, fmt.Errorf("pre-check: %w", err)
	}
	return rec, nil
}

// BackupParams holds the input for BackupSnapshot.
type BackupParams struct {
	Request executor.Request   `json:"request"`
	Health  model.HealthRecord `json:"health"`
}

// BackupSnapshot stores the pre-deployment health record in the backup
// bucket so a failed upgrade leaves a record of what was running.
// Returns the object key, or "" when backups are not configured.
func (a *Deploy) BackupSnapshot(ctx context.Context, params BackupParams) (string, error) {
	if a.s3 == nil || a.bucket == "" {
		return "", nil
	}

	body, err := json.Marshal(params.Health)
	if err != nil {
		return "", fmt.Errorf("marshal backup snapshot: %w", err)
	}

	key := fmt.Sprintf("backups/%s/%s.json", params.Request.ServiceID, params.Request.DeploymentID)
	_, err = a.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("upload backup snapshot %s: %w", key, err)
	}

	a.logger.Info().Str("key", key).Msg("stored pre-deployment snapshot")
	return key, nil
}

// MigrateSchema POSTs the target version to the service's migrate path
// so pending schema migrations run before the update is applied. A 404
// means the target has no migration hook and counts as done.
func (a *Deploy) MigrateSchema(ctx context.Context, req executor.Request) error {
	status, err := a.postVersion(ctx, req, migratePath)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		a.logger.Debug().Str("service_id", req.ServiceID).Msg("target has no migration hook")
		return nil
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("migrate POST: unexpected status %d", status)
	}
	return nil
}

// ApplyUpdate POSTs the target version to the service's update path.
func (a *Deploy) ApplyUpdate(ctx context.Context, req executor.Request) error {
	status, err := a.postVersion(ctx, req, updatePath)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("update POST: unexpected status %d", status)
	}
	return nil
}

// postVersion POSTs {"version": target} to the given path on the
// target service and returns the response status code.
func (a *Deploy) postVersion(ctx context.Context, req executor.Request, path string) (int, error) {
	url := strings.TrimRight(req.ServiceURL, "/") + path

	body, err := json.Marshal(map[string]string{"version": req.TargetVersion})
	if err != nil {
		return 0, fmt.Errorf("marshal request for %s: %w", url, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request for %s: %w", url, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("POST to %s: %w", url, err)
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	return resp.StatusCode, nil
}

// FinalProbe re-checks the target's health after the update.
func (a *Deploy) FinalProbe(ctx context.Context, req executor.Request) (*model.HealthRecord, error) {
	rec, err := a.prober.Probe(ctx, req.ServiceURL, req.HealthPath, health.Shape(req.ResponseFormat))
	if err != nil {
		return nil, fmt.Errorf("final health check: %w", err)
	}
	return rec, nil
}
