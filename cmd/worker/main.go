package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fiapx/fiapx-frame-pipeline/internal/domain/port"
	"github.com/fiapx/fiapx-frame-pipeline/internal/infra/archive"
	"github.com/fiapx/fiapx-frame-pipeline/internal/infra/config"
	"github.com/fiapx/fiapx-frame-pipeline/internal/infra/email"
	"github.com/fiapx/fiapx-frame-pipeline/internal/infra/ffmpeg"
	"github.com/fiapx/fiapx-frame-pipeline/internal/infra/imaging"
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

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")
	fatalOnErr(cfg.RequireWorker(), "validate worker config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting fiapx-frame-worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.JaegerEndpoint != "" {
		tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint, "fiapx-frame-worker")
		if err != nil {
			log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
		} else {
			defer tp.Shutdown(context.Background())
		}
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	if err := postgres.RunMigrations(cfg.DatabaseURL, "migrations"); err != nil {
		log.Warn("migration warning", zap.Error(err))
	}

	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:       cfg.MinIOEndpoint,
		AccessKey:      cfg.MinIOAccessKey,
		SecretKey:      cfg.MinIOSecretKey,
		UseSSL:         cfg.MinIOUseSSL,
		SourceBucket:   cfg.MinIOSourceBucket,
		ArtifactBucket: cfg.MinIOArtifactBucket,
	})
	fatalOnErr(err, "create minio storage")
	fatalOnErr(storage.EnsureBuckets(ctx), "ensure minio buckets")

	rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq for publisher")
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange)
	fatalOnErr(err, "create rabbitmq publisher")
	defer pub.Close()

	consumerCfg := rabbitmq.ConsumerConfig{
		URL:         cfg.RabbitMQURL,
		Queue:       cfg.RabbitMQFramesQueue,
		Exchange:    cfg.RabbitMQExchange,
		DLQ:         cfg.RabbitMQDLQ,
		StatusQueue: cfg.RabbitMQStatusQueue,
		Prefetch:    cfg.RabbitMQPrefetch,
		WorkerCount: cfg.WorkerCount,
		BaseDelayMs: cfg.RetryBaseDelayMs,
	}
	fatalOnErr(pub.Declare(consumerCfg), "declare rabbitmq topology")

	fatalOnErr(os.MkdirAll(cfg.TempDir, 0o755), "create temp dir")

	uc := usecase.NewRunVideoUseCase(usecase.RunVideoDeps{
		Backend:   ffmpeg.NewBackend(log),
		Repo:      postgres.NewRunRepository(pool),
		Publisher: rabbitmq.NewStatusPublisher(pub, cfg.RabbitMQStatusQueue),
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
		Storage:  storage,
		Archiver: archive.NewZipCreator(),
		DLQ:      rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ),
		Notifier: email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log),
	}, log, usecase.RunVideoConfig{
		Pipeline: usecase.PipelineConfig{
			TargetHeight:     cfg.TargetHeight,
			ChunkDurationSec: cfg.ChunkDurationSec,
			FrameErrorPolicy: usecase.FrameErrorPolicy(cfg.FrameErrorPolicy),
		},
		ProcessorNames: cfg.Processors,
		TempDir:        cfg.TempDir,
		MaxRetries:     cfg.MaxRetries,
	})

	metricsSrv := metrics.Start(ctx, cfg.WorkerMetricsPort, log)

	consumer, err := rabbitmq.NewConsumer(consumerCfg, uc.HandleMessage, log)
	fatalOnErr(err, "create consumer")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info("fiapx-frame-worker started, consuming messages",
		zap.String("queue", cfg.RabbitMQFramesQueue),
		zap.Strings("processors", cfg.Processors),
	)

	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer error", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	consumer.Close()
	log.Info("fiapx-frame-worker stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
