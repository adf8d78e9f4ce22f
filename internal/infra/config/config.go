package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	ChunkDurationSec    int64    `env:"CHUNK_DURATION_SEC"    envDefault:"2"`
	TargetHeight        int      `env:"TARGET_HEIGHT"         envDefault:"720"`
	Processors          []string `env:"PROCESSORS"            envDefault:"edge" envSeparator:","`
	OutputDir           string   `env:"OUTPUT_DIR"            envDefault:"frames"`
	CreateOutputDir     bool     `env:"CREATE_OUTPUT_DIR"     envDefault:"false"`
	FrameErrorPolicy    string   `env:"FRAME_ERROR_POLICY"    envDefault:"fail"`
	EdgeSigma           float64  `env:"EDGE_SIGMA"            envDefault:"1.2"`
	EdgeStrongThreshold float64  `env:"EDGE_STRONG_THRESHOLD" envDefault:"0.2"`
	EdgeWeakThreshold   float64  `env:"EDGE_WEAK_THRESHOLD"   envDefault:"0.01"`
	BlurSigma           float64  `env:"BLUR_SIGMA"            envDefault:"5.0"`

	RabbitMQURL         string `env:"RABBITMQ_URL"`
	RabbitMQFramesQueue string `env:"RABBITMQ_FRAMES_QUEUE" envDefault:"frames.processing"`
	RabbitMQStatusQueue string `env:"RABBITMQ_STATUS_QUEUE" envDefault:"frames.status"`
	RabbitMQDLQ         string `env:"RABBITMQ_DLQ"          envDefault:"frames.processing.dlq"`
	RabbitMQExchange    string `env:"RABBITMQ_EXCHANGE"     envDefault:"fiapx.frames"`
	RabbitMQPrefetch    int    `env:"RABBITMQ_PREFETCH"     envDefault:"2"`

	MinIOEndpoint       string `env:"MINIO_ENDPOINT"`
	MinIOAccessKey      string `env:"MINIO_ACCESS_KEY"      envDefault:"minioadmin"`
	MinIOSecretKey      string `env:"MINIO_SECRET_KEY"      envDefault:"minioadmin"`
	MinIOUseSSL         bool   `env:"MINIO_USE_SSL"         envDefault:"false"`
	MinIOSourceBucket   string `env:"MINIO_SOURCE_BUCKET"   envDefault:"uploads"`
	MinIOArtifactBucket string `env:"MINIO_ARTIFACT_BUCKET" envDefault:"frames"`
	ArchiveChunks       bool   `env:"ARCHIVE_CHUNKS"        envDefault:"false"`

	DatabaseURL string `env:"DATABASE_URL"`

	WorkerCount      int `env:"WORKER_COUNT"               envDefault:"2"`
	MaxRetries       int `env:"WORKER_MAX_RETRIES"         envDefault:"3"`
	RetryBaseDelayMs int `env:"WORKER_RETRY_BASE_DELAY_MS" envDefault:"1000"`

	SMTPHost string `env:"SMTP_HOST" envDefault:"mailhog"`
	SMTPPort int    `env:"SMTP_PORT" envDefault:"1025"`
	SMTPFrom string `env:"SMTP_FROM" envDefault:"noreply@fiapx.local"`

	// The CLI serves metrics only when METRICS_PORT is set; the worker
	// always serves them on WORKER_METRICS_PORT.
	MetricsPort       int    `env:"METRICS_PORT"        envDefault:"0"`
	WorkerMetricsPort int    `env:"WORKER_METRICS_PORT" envDefault:"8083"`
	JaegerEndpoint    string `env:"JAEGER_ENDPOINT"`
	LogLevel          string `env:"LOG_LEVEL"           envDefault:"info"`

	TempDir string `env:"TEMP_DIR" envDefault:"/tmp/fiapx-frames"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ChunkDurationSec <= 0 {
		return fmt.Errorf("CHUNK_DURATION_SEC must be positive, got %d", c.ChunkDurationSec)
	}
	if c.TargetHeight <= 0 {
		return fmt.Errorf("TARGET_HEIGHT must be positive, got %d", c.TargetHeight)
	}
	switch c.FrameErrorPolicy {
	case "fail", "skip":
	default:
		return fmt.Errorf("FRAME_ERROR_POLICY must be fail or skip, got %q", c.FrameErrorPolicy)
	}

	procs := c.Processors[:0]
	for _, p := range c.Processors {
		if p = strings.TrimSpace(p); p != "" {
			procs = append(procs, p)
		}
	}
	c.Processors = procs
	if len(c.Processors) == 0 {
		return fmt.Errorf("PROCESSORS must name at least one processor")
	}

	if c.EdgeSigma <= 0 {
		return fmt.Errorf("EDGE_SIGMA must be positive, got %v", c.EdgeSigma)
	}
	if c.EdgeWeakThreshold < 0 || c.EdgeStrongThreshold > 1 || c.EdgeWeakThreshold > c.EdgeStrongThreshold {
		return fmt.Errorf("edge thresholds must satisfy 0 <= EDGE_WEAK_THRESHOLD <= EDGE_STRONG_THRESHOLD <= 1, got %v and %v",
			c.EdgeWeakThreshold, c.EdgeStrongThreshold)
	}
	if c.BlurSigma <= 0 {
		return fmt.Errorf("BLUR_SIGMA must be positive, got %v", c.BlurSigma)
	}

	if c.ArchiveChunks && c.MinIOEndpoint == "" {
		return fmt.Errorf("ARCHIVE_CHUNKS=true requires MINIO_ENDPOINT")
	}
	return nil
}

// RequireWorker checks the settings only the queue worker depends on.
func (c *Config) RequireWorker() error {
	var missing []string
	if c.RabbitMQURL == "" {
		missing = append(missing, "RABBITMQ_URL")
	}
	if c.MinIOEndpoint == "" {
		missing = append(missing, "MINIO_ENDPOINT")
	}
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("worker requires %s", strings.Join(missing, ", "))
	}
	if c.WorkerMetricsPort < 1 || c.WorkerMetricsPort > 65535 {
		return fmt.Errorf("WORKER_METRICS_PORT must be a valid port, got %d", c.WorkerMetricsPort)
	}
	if c.WorkerCount < 1 {
		return fmt.Errorf("WORKER_COUNT must be at least 1, got %d", c.WorkerCount)
	}
	return nil
}
