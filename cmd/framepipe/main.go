// Command framepipe decodes one video, rescales every frame to 720 lines and
// runs the configured frame processors over it.
//
//	framepipe [path]
//
// The path defaults to examples/example_video.mp4. Everything else is read
// from the environment (see internal/infra/config).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/fiapx/fiapx-frame-pipeline/internal/domain/port"
	"github.com/fiapx/fiapx-frame-pipeline/internal/infra/archive"
	"github.com/fiapx/fiapx-frame-pipeline/internal/infra/config"
	"github.com/fiapx/fiapx-frame-pipeline/internal/infra/ffmpeg"
	"github.com/fiapx/fiapx-frame-pipeline/internal/infra/imaging"
	"github.com/fiapx/fiapx-frame-pipeline/internal/infra/memory"
	"github.com/fiapx/fiapx-frame-pipeline/internal/infra/metrics"
	miniostorage "github.com/fiapx/fiapx-frame-pipeline/internal/infra/minio"
	"github.com/fiapx/fiapx-frame-pipeline/internal/infra/opencv"
	"github.com/fiapx/fiapx-frame-pipeline/internal/infra/postgres"
	"github.com/fiapx/fiapx-frame-pipeline/internal/infra/rabbitmq"
	"github.com/fiapx/fiapx-frame-pipeline/internal/infra/tracing"
	"github.com/fiapx/fiapx-frame-pipeline/internal/processor"
	"github.com/fiapx/fiapx-frame-pipeline/internal/usecase"
	"github.com/fiapx/fiapx-frame-pipeline/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const defaultSource = "examples/example_video.mp4"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [video path]\n", os.Args[0])
	}
	flag.Parse()
	source := defaultSource
	if flag.NArg() > 0 {
		source = flag.Arg(0)
	}

	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, source, log); err != nil {
		log.Error("frame pipeline failed", zap.String("source", source), zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, source string, log *zap.Logger) error {
	if cfg.JaegerEndpoint != "" {
		tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint, "framepipe")
		if err != nil {
			log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = tp.Shutdown(shutdownCtx)
			}()
		}
	}

	if cfg.MetricsPort > 0 {
		srv := metrics.Start(ctx, cfg.MetricsPort, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	deps := usecase.RunVideoDeps{
		Backend: ffmpeg.NewBackend(log),
		Processors: processor.Factory(cfg.Processors, processor.Deps{
			EdgeParams: port.EdgeParams{
				Sigma:           cfg.EdgeSigma,
				StrongThreshold: cfg.EdgeStrongThreshold,
				WeakThreshold:   cfg.EdgeWeakThreshold,
			},
			BlurSigma:    cfg.BlurSigma,
			EdgeDetector: opencv.NewEdgeDetector(),
			Blurrer:      imaging.NewBlurrer(),
			Logger:       log,
		}),
	}

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()
		if err := postgres.RunMigrations(cfg.DatabaseURL, "migrations"); err != nil {
			log.Warn("migration warning", zap.Error(err))
		}
		deps.Repo = postgres.NewRunRepository(pool)
	} else {
		deps.Repo = memory.NewRunRepository()
	}

	if cfg.RabbitMQURL != "" {
		conn, err := amqp.Dial(cfg.RabbitMQURL)
		if err != nil {
			return fmt.Errorf("connect to rabbitmq: %w", err)
		}
		defer conn.Close()
		pub, err := rabbitmq.NewPublisher(conn, cfg.RabbitMQExchange)
		if err != nil {
			return err
		}
		defer pub.Close()
		if err := pub.Declare(consumerConfig(cfg)); err != nil {
			return err
		}
		deps.Publisher = rabbitmq.NewStatusPublisher(pub, cfg.RabbitMQStatusQueue)
	} else {
		deps.Publisher = memory.NewStatusLog(log)
	}

	if cfg.ArchiveChunks {
		storage, err := miniostorage.NewStorage(storageConfig(cfg))
		if err != nil {
			return err
		}
		if err := storage.EnsureBuckets(ctx); err != nil {
			return err
		}
		deps.Storage = storage
		deps.Archiver = archive.NewZipCreator()
	}

	uc := usecase.NewRunVideoUseCase(deps, log, usecase.RunVideoConfig{
		Pipeline: usecase.PipelineConfig{
			TargetHeight:     cfg.TargetHeight,
			ChunkDurationSec: cfg.ChunkDurationSec,
			FrameErrorPolicy: usecase.FrameErrorPolicy(cfg.FrameErrorPolicy),
		},
		ProcessorNames:  cfg.Processors,
		CreateOutputDir: cfg.CreateOutputDir,
		TempDir:         os.TempDir(),
		MaxRetries:      1,
	})

	r, err := uc.NewRun(ctx, "cli", source)
	if err != nil {
		return err
	}
	req := usecase.RunRequest{SourcePath: source, OutputDir: cfg.OutputDir}
	if cfg.ArchiveChunks {
		req.ArchivePrefix = path.Join("cli", r.ID.String())
	}

	log.Info("frame pipeline starting",
		zap.String("run_id", r.ID.String()),
		zap.String("source", source),
		zap.Strings("processors", cfg.Processors),
		zap.String("output_dir", cfg.OutputDir),
	)
	start := time.Now()
	result, err := uc.Execute(ctx, r, req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("interrupted", zap.Uint64("frames_processed", result.FrameCount))
		}
		return err
	}

	log.Info("frame pipeline finished",
		zap.Uint64("frames", result.FrameCount),
		zap.Int("chunks", result.ChunkCount),
		zap.Int("width", result.TargetWidth),
		zap.Int("height", result.TargetHeight),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func consumerConfig(cfg *config.Config) rabbitmq.ConsumerConfig {
	return rabbitmq.ConsumerConfig{
		URL:         cfg.RabbitMQURL,
		Queue:       cfg.RabbitMQFramesQueue,
		Exchange:    cfg.RabbitMQExchange,
		DLQ:         cfg.RabbitMQDLQ,
		StatusQueue: cfg.RabbitMQStatusQueue,
		Prefetch:    cfg.RabbitMQPrefetch,
		WorkerCount: cfg.WorkerCount,
		BaseDelayMs: cfg.RetryBaseDelayMs,
	}
}

func storageConfig(cfg *config.Config) miniostorage.StorageConfig {
	return miniostorage.StorageConfig{
		Endpoint:       cfg.MinIOEndpoint,
		AccessKey:      cfg.MinIOAccessKey,
		SecretKey:      cfg.MinIOSecretKey,
		UseSSL:         cfg.MinIOUseSSL,
		SourceBucket:   cfg.MinIOSourceBucket,
		ArtifactBucket: cfg.MinIOArtifactBucket,
	}
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
