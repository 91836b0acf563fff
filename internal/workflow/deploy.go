// Package workflow defines the Temporal workflow that performs one
// deployment job end to end.
package workflow

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/edvin/deploytrack/internal/activity"
	"github.com/edvin/deploytrack/internal/executor"
	"github.com/edvin/deploytrack/internal/model"
)

// DeployServiceWorkflow runs the deployment steps in order: pre-check
// probe, backup snapshot, schema migration, the update call, and a
// final health probe verifying the target reports the requested
// version. Step failures are folded into a Failed result rather than a
// workflow error, so the orchestrator sees one terminal result shape
// either way.
func DeployServiceWorkflow(ctx workflow.Context, req executor.Request) (executor.Result, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:    3,
			InitialInterval:    1 * time.Second,
			MaximumInterval:    10 * time.Second,
			BackoffCoefficient: 2.0,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var preHealth model.HealthRecord
	if err := workflow.ExecuteActivity(ctx, "PreCheck", req).Get(ctx, &preHealth); err != nil {
		return failed(fmt.Sprintf("pre-check failed: %v", err)), nil
	}

	var backupKey string
	err := workflow.ExecuteActivity(ctx, "BackupSnapshot", activity.BackupParams{
		Request: req,
		Health:  preHealth,
	}).Get(ctx, &backupKey)
	if err != nil {
		return failed(fmt.Sprintf("backup failed: %v", err)), nil
	}

	if err := workflow.ExecuteActivity(ctx, "MigrateSchema", req).Get(ctx, nil); err != nil {
		return failed(fmt.Sprintf("schema migration failed: %v", err)), nil
	}

	if err := workflow.ExecuteActivity(ctx, "ApplyUpdate", req).Get(ctx, nil); err != nil {
		return failed(fmt.Sprintf("update call failed: %v", err)), nil
	}

	var postHealth model.HealthRecord
	if err := workflow.ExecuteActivity(ctx, "FinalProbe", req).Get(ctx, &postHealth); err != nil {
		return failed(fmt.Sprintf("final health check failed: %v", err)), nil
	}

	if postHealth.Release != req.TargetVersion {
		return failed(fmt.Sprintf("version mismatch: service reports %s, expected %s",
			postHealth.Release, req.TargetVersion)), nil
	}

	return executor.Result{Outcome: executor.OutcomeSuccess, Health: &postHealth}, nil
}

func failed(detail string) executor.Result {
	return executor.Result{Outcome: executor.OutcomeFailed, ErrorDetail: detail}
}
