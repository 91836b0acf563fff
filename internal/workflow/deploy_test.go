package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/testsuite"

	"github.com/edvin/deploytrack/internal/activity"
	"github.com/edvin/deploytrack/internal/executor"
	"github.com/edvin/deploytrack/internal/model"
)

type DeployServiceWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env *testsuite.TestWorkflowEnvironment
}

func (s *DeployServiceWorkflowTestSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	// Registered so the test framework can deserialize activity
	// parameters and results; all calls are mocked via OnActivity.
	s.env.RegisterActivity(&activity.Deploy{})
}

func (s *DeployServiceWorkflowTestSuite) AfterTest(suiteName, testName string) {
	s.env.AssertExpectations(s.T())
}

func deployRequest() executor.Request {
	return executor.Request{
		DeploymentID:   "test-deploy-1",
		ServiceID:      "test-service-1",
		ServiceURL:     "http://billing.internal:8080",
		HealthPath:     "/health/info",
		ResponseFormat: "auto",
		TargetVersion:  "1.3.0",
	}
}

func (s *DeployServiceWorkflowTestSuite) TestSuccess() {
	req := deployRequest()

	s.env.OnActivity("PreCheck", mock.Anything, req).
		Return(&model.HealthRecord{Release: "1.2.3", SchemaVersion: "7"}, nil)
	s.env.OnActivity("BackupSnapshot", mock.Anything, mock.Anything).
		Return("backups/test-service-1/test-deploy-1.json", nil)
	s.env.OnActivity("MigrateSchema", mock.Anything, req).Return(nil)
	s.env.OnActivity("ApplyUpdate", mock.Anything, req).Return(nil)
	s.env.OnActivity("FinalProbe", mock.Anything, req).
		Return(&model.HealthRecord{Release: "1.3.0", SchemaVersion: "8"}, nil)

	s.env.ExecuteWorkflow(DeployServiceWorkflow, req)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())

	var result executor.Result
	s.NoError(s.env.GetWorkflowResult(&result))
	s.Equal(executor.OutcomeSuccess, result.Outcome)
	s.Require().NotNil(result.Health)
	s.Equal("1.3.0", result.Health.Release)
}

func (s *DeployServiceWorkflowTestSuite) TestVersionMismatch_Fails() {
	req := deployRequest()

	s.env.OnActivity("PreCheck", mock.Anything, req).
		Return(&model.HealthRecord{Release: "1.2.3", SchemaVersion: "7"}, nil)
	s.env.OnActivity("BackupSnapshot", mock.Anything, mock.Anything).Return("", nil)
	s.env.OnActivity("MigrateSchema", mock.Anything, req).Return(nil)
	s.env.OnActivity("ApplyUpdate", mock.Anything, req).Return(nil)
	// The target still reports the old version after the update.
	s.env.OnActivity("FinalProbe", mock.Anything, req).
		Return(&model.HealthRecord{Release: "1.2.3", SchemaVersion: "7"}, nil)

	s.env.ExecuteWorkflow(DeployServiceWorkflow, req)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())

	var result executor.Result
	s.NoError(s.env.GetWorkflowResult(&result))
	s.Equal(executor.OutcomeFailed, result.Outcome)
	s.Contains(result.ErrorDetail, "version mismatch")
}

func (s *DeployServiceWorkflowTestSuite) TestPreCheckFails() {
	req := deployRequest()

	s.env.OnActivity("PreCheck", mock.Anything, req).
		Return(nil, errors.New("connection refused"))

	s.env.ExecuteWorkflow(DeployServiceWorkflow, req)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())

	var result executor.Result
	s.NoError(s.env.GetWorkflowResult(&result))
	s.Equal(executor.OutcomeFailed, result.Outcome)
	s.Contains(result.ErrorDetail, "pre-check failed")
}

func (s *DeployServiceWorkflowTestSuite) TestMigrateSchemaFails() {
	req := deployRequest()

	s.env.OnActivity("PreCheck", mock.Anything, req).
		Return(&model.HealthRecord{Release: "1.2.3", SchemaVersion: "7"}, nil)
	s.env.OnActivity("BackupSnapshot", mock.Anything, mock.Anything).Return("", nil)
	s.env.OnActivity("MigrateSchema", mock.Anything, req).
		Return(errors.New("migration script failed"))

	s.env.ExecuteWorkflow(DeployServiceWorkflow, req)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())

	var result executor.Result
	s.NoError(s.env.GetWorkflowResult(&result))
	s.Equal(executor.OutcomeFailed, result.Outcome)
	s.Contains(result.ErrorDetail, "schema migration failed")
}

func (s *DeployServiceWorkflowTestSuite) TestApplyUpdateFails() {
	req := deployRequest()

	s.env.OnActivity("PreCheck", mock.Anything, req).
		Return(&model.HealthRecord{Release: "1.2.3", SchemaVersion: "7"}, nil)
	s.env.OnActivity("BackupSnapshot", mock.Anything, mock.Anything).Return("", nil)
	s.env.OnActivity("MigrateSchema", mock.Anything, req).Return(nil)
	s.env.OnActivity("ApplyUpdate", mock.Anything, req).
		Return(errors.New("unexpected status 500"))

	s.env.ExecuteWorkflow(DeployServiceWorkflow, req)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())

	var result executor.Result
	s.NoError(s.env.GetWorkflowResult(&result))
	s.Equal(executor.OutcomeFailed, result.Outcome)
	s.Contains(result.ErrorDetail, "update call failed")
}

func TestDeployServiceWorkflowTestSuite(t *testing.T) {
	suite.Run(t, new(DeployServiceWorkflowTestSuite))
}
