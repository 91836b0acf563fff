package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DatabaseURL     string        `yaml:"database_url"`
	TemporalAddress string        `yaml:"temporal_address"`
	HTTPListenAddr  string        `yaml:"http_listen_addr"`
	LogLevel        string        `yaml:"log_level"`
	ServiceName     string        `yaml:"service_name"`
	ProbeTimeout    time.Duration `yaml:"probe_timeout"`
	// Backup storage for pre-deployment snapshots. Backups are skipped
	// when BackupS3Bucket is empty.
	BackupS3Endpoint  string `yaml:"backup_s3_endpoint"`
	BackupS3Bucket    string `yaml:"backup_s3_bucket"`
	BackupS3AccessKey string `yaml:"backup_s3_access_key"`
	BackupS3SecretKey string `yaml:"backup_s3_secret_key"`
}

// Load builds the config from environment variables. If CONFIG_FILE is
// set, the YAML file is read first and environment variables override it.
func Load() (*Config, error) {
	cfg := &Config{
		TemporalAddress: "localhost:7233",
		HTTPListenAddr:  ":8090",
		LogLevel:        "info",
		ServiceName:     "registry-api",
		ProbeTimeout:    5 * time.Second,
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.TemporalAddress = getEnv("TEMPORAL_ADDRESS", cfg.TemporalAddress)
	cfg.HTTPListenAddr = getEnv("HTTP_LISTEN_ADDR", cfg.HTTPListenAddr)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.ServiceName = getEnv("SERVICE_NAME", cfg.ServiceName)
	cfg.BackupS3Endpoint = getEnv("BACKUP_S3_ENDPOINT", cfg.BackupS3Endpoint)
	cfg.BackupS3Bucket = getEnv("BACKUP_S3_BUCKET", cfg.BackupS3Bucket)
	cfg.BackupS3AccessKey = getEnv("BACKUP_S3_ACCESS_KEY", cfg.BackupS3AccessKey)
	cfg.BackupS3SecretKey = getEnv("BACKUP_S3_SECRET_KEY", cfg.BackupS3SecretKey)

	if v := os.Getenv("PROBE_TIMEOUT_SECONDS"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("invalid PROBE_TIMEOUT_SECONDS: %q", v)
		}
		cfg.ProbeTimeout = time.Duration(secs) * time.Second
	}

	return cfg, nil
}

// Validate checks that the fields required by the given binary are set.
func (c *Config) Validate(binary string) error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%s: DATABASE_URL is required", binary)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
