package executor

import (
	"context"
	"fmt"

	enumspb "go.temporal.io/api/enums/v1"
	temporalclient "go.temporal.io/sdk/client"
)

// TaskQueue is the Temporal task queue shared by the API and the worker.
const TaskQueue = "deploytrack-tasks"

// WorkflowName is the registered name of the deployment workflow.
const WorkflowName = "DeployServiceWorkflow"

// Temporal runs deployment jobs as Temporal workflows. The workflow ID
// doubles as the job handle.
type Temporal struct {
	tc temporalclient.Client
}

func NewTemporal(tc temporalclient.Client) *Temporal {
	return &Temporal{tc: tc}
}

// Submit starts the deployment workflow and returns its workflow ID.
func (t *Temporal) Submit(ctx context.Context, req Request) (string, error) {
	run, err := t.tc.ExecuteWorkflow(ctx, temporalclient.StartWorkflowOptions{
		ID:        fmt.Sprintf("deploy-%s", req.DeploymentID),
		TaskQueue: TaskQueue,
	}, WorkflowName, req)
	if err != nil {
		return "", fmt.Errorf("start %s: %w", WorkflowName, err)
	}
	return run.GetID(), nil
}

// PollResult checks the workflow without blocking. While the execution
// is still running it returns (nil, nil). Once closed, the workflow's
// Result is fetched; a workflow-level failure is folded into a Failed
// result so infrastructure errors and job-reported failures surface
// the same way.
func (t *Temporal) PollResult(ctx context.Context, handle string) (*Result, error) {
	desc, err := t.tc.DescribeWorkflowExecution(ctx, handle, "")
	if err != nil {
		return nil, fmt.Errorf("describe job %s: %w", handle, err)
	}

	if desc.GetWorkflowExecutionInfo().GetStatus() == enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING {
		return nil, nil
	}

	var result Result
	if err := t.tc.GetWorkflow(ctx, handle, "").Get(ctx, &result); err != nil {
		return &Result{Outcome: OutcomeFailed, ErrorDetail: err.Error()}, nil
	}
	return &result, nil
}
