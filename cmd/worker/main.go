package main

import (
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	temporalclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	sdkworkflow "go.temporal.io/sdk/workflow"

	"github.com/edvin/deploytrack/internal/activity"
	"github.com/edvin/deploytrack/internal/config"
	"github.com/edvin/deploytrack/internal/executor"
	"github.com/edvin/deploytrack/internal/health"
	"github.com/edvin/deploytrack/internal/logging"
	"github.com/edvin/deploytrack/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	tc, err := temporalclient.Dial(temporalclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to temporal")
	}
	defer tc.Close()

	var s3Client *s3.Client
	if cfg.BackupS3Bucket != "" {
		s3Client = s3.New(s3.Options{
			BaseEndpoint: aws.String(cfg.BackupS3Endpoint),
			Region:       "us-east-1",
			Credentials:  credentials.NewStaticCredentialsProvider(cfg.BackupS3AccessKey, cfg.BackupS3SecretKey, ""),
			UsePathStyle: true,
		})
		logger.Info().Str("bucket", cfg.BackupS3Bucket).Msg("pre-deployment snapshots enabled")
	}

	w := worker.New(tc, executor.TaskQueue, worker.Options{})

	prober := health.NewProber(cfg.ProbeTimeout, logger)
	deployActivities := activity.NewDeploy(prober, s3Client, cfg.BackupS3Bucket, logger)
	w.RegisterActivity(deployActivities)

	w.RegisterWorkflowWithOptions(workflow.DeployServiceWorkflow, sdkworkflow.RegisterOptions{
		Name: executor.WorkflowName,
	})

	logger.Info().Str("taskQueue", executor.TaskQueue).Msg("starting temporal worker")
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Fatal().Err(err).Msg("worker failed")
	}
}
