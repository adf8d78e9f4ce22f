package integration

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fiapx/fiapx-frame-pipeline/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-pipeline/internal/infra/archive"
	"github.com/fiapx/fiapx-frame-pipeline/internal/infra/email"
	"github.com/fiapx/fiapx-frame-pipeline/internal/infra/ffmpeg"
	"github.com/fiapx/fiapx-frame-pipeline/internal/infra/imaging"
	miniostorage "github.com/fiapx/fiapx-frame-pipeline/internal/infra/minio"
	"github.com/fiapx/fiapx-frame-pipeline/internal/infra/opencv"
	"github.com/fiapx/fiapx-frame-pipeline/internal/infra/postgres"
	"github.com/fiapx/fiapx-frame-pipeline/internal/infra/rabbitmq"
	"github.com/fiapx/fiapx-frame-pipeline/internal/processor"
	"github.com/fiapx/fiapx-frame-pipeline/internal/usecase"
	"github.com/fiapx/fiapx-frame-pipeline/pkg/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcrabbitmq "github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"go.uber.org/zap"
)

const (
	exchange    = "fiapx.frames"
	framesQueue = "frames.processing"
	statusQueue = "frames.status"
	dlq         = "frames.processing.dlq"
)

var testVideoPath = filepath.Join("..", "testdata", "test.mp4")

// stack is one postgres, rabbitmq and minio trio plus a running worker.
type stack struct {
	pool        *pgxpool.Pool
	rmqConn     *amqp.Connection
	minioClient *miniogo.Client
}

func startStack(t *testing.T, ctx context.Context) *stack {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("runs"),
		tcpostgres.WithUsername("run_user"),
		tcpostgres.WithPassword("run_pass"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgContainer.Terminate(context.Background()) })

	pgConnStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, postgres.RunMigrations(pgConnStr, "../../migrations"))

	rmqContainer, err := tcrabbitmq.Run(ctx, "rabbitmq:3.12-management-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = rmqContainer.Terminate(context.Background()) })

	rmqURL, err := rmqContainer.AmqpURL(ctx)
	require.NoError(t, err)

	minioContainer, err := tcminio.Run(ctx,
		"minio/minio:latest",
		tcminio.WithUsername("minioadmin"),
		tcminio.WithPassword("minioadmin"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = minioContainer.Terminate(context.Background()) })

	minioEndpoint, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err)

	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:       minioEndpoint,
		AccessKey:      "minioadmin",
		SecretKey:      "minioadmin",
		SourceBucket:   "uploads",
		ArtifactBucket: "frames",
	})
	require.NoError(t, err)
	require.NoError(t, storage.EnsureBuckets(ctx))

	minioClient, err := miniogo.New(minioEndpoint, &miniogo.Options{
		Creds: credentials.NewStaticV4("minioadmin", "minioadmin", ""),
	})
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, pgConnStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	rmqConn, err := amqp.Dial(rmqURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rmqConn.Close() })

	consumerCfg := rabbitmq.ConsumerConfig{
		URL:         rmqURL,
		Queue:       framesQueue,
		Exchange:    exchange,
		DLQ:         dlq,
		StatusQueue: statusQueue,
		Prefetch:    1,
		WorkerCount: 1,
		BaseDelayMs: 100,
	}

	pub, err := rabbitmq.NewPublisher(rmqConn, exchange)
	require.NoError(t, err)
	require.NoError(t, pub.Declare(consumerCfg))

	log, err := logger.New("debug")
	require.NoError(t, err)

	names := []string{processor.NameEdge, processor.NameRaw}
	uc := usecase.NewRunVideoUseCase(usecase.RunVideoDeps{
		Backend:   ffmpeg.NewBackend(log),
		Repo:      postgres.NewRunRepository(pool),
		Publisher: rabbitmq.NewStatusPublisher(pub, statusQueue),
		Processors: processor.Factory(names, processor.Deps{
			EdgeParams:   processor.DefaultEdgeParams,
			BlurSigma:    processor.DefaultBlurSigma,
			EdgeDetector: opencv.NewEdgeDetector(),
			Blurrer:      imaging.NewBlurrer(),
			Logger:       log,
		}),
		Storage:  storage,
		Archiver: archive.NewZipCreator(),
		DLQ:      rabbitmq.NewDLQPublisher(pub, dlq),
		Notifier: email.NewSMTPNotifier("localhost", 1025, "test@test.local", zap.NewNop()),
	}, log, usecase.RunVideoConfig{
		ProcessorNames: names,
		TempDir:        t.TempDir(),
		MaxRetries:     3,
	})

	consumer, err := rabbitmq.NewConsumer(consumerCfg, uc.HandleMessage, log)
	require.NoError(t, err)

	consumerCtx, consumerCancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = consumer.Start(consumerCtx)
	}()
	t.Cleanup(func() {
		consumerCancel()
		<-done
		_ = consumer.Close()
	})
	time.Sleep(500 * time.Millisecond)

	return &stack{pool: pool, rmqConn: rmqConn, minioClient: minioClient}
}

func (s *stack) publish(t *testing.T, ctx context.Context, body []byte) {
	t.Helper()
	ch, err := s.rmqConn.Channel()
	require.NoError(t, err)
	defer ch.Close()
	require.NoError(t, ch.PublishWithContext(ctx, exchange, framesQueue, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	}))
}

func TestFrameWorkerEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if _, err := os.Stat(testVideoPath); os.IsNotExist(err) {
		t.Skip("test video not found at tests/testdata/test.mp4 - generate it with: ffmpeg -f lavfi -i testsrc=duration=2:size=320x240:rate=5 -c:v libx264 -pix_fmt yuv420p tests/testdata/test.mp4")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	s := startStack(t, ctx)

	videoKey := "testuser/test.mp4"
	_, err := s.minioClient.FPutObject(ctx, "uploads", videoKey, testVideoPath, miniogo.PutObjectOptions{
		ContentType: "video/mp4",
	})
	require.NoError(t, err)

	runID := uuid.New()
	body, err := json.Marshal(entity.FrameJobMessage{
		RunID:     runID,
		UserID:    "testuser",
		VideoKey:  videoKey,
		UserEmail: "test@test.local",
	})
	require.NoError(t, err)
	s.publish(t, ctx, body)

	statusCh, err := s.rmqConn.Channel()
	require.NoError(t, err)
	defer statusCh.Close()
	statusMsgs, err := statusCh.Consume(statusQueue, "", true, false, false, false, nil)
	require.NoError(t, err)

	var status entity.RunStatusMessage
	select {
	case d := <-statusMsgs:
		require.NoError(t, json.Unmarshal(d.Body, &status))
	case <-time.After(2 * time.Minute):
		t.Fatal("timeout waiting for status message")
	}

	assert.Equal(t, runID, status.RunID)
	require.Equal(t, entity.RunStatusCompleted, status.Status, status.ErrorMessage)
	assert.Equal(t, 720, status.TargetHeight)
	assert.Equal(t, 960, status.TargetWidth, "320x240 keeps its 4:3 aspect")
	assert.Equal(t, int64(10), status.FramesPerChunk)
	assert.Greater(t, status.FrameCount, int64(0))
	assert.Equal(t, "testuser/"+runID.String(), status.ArchivePrefix)

	// Every frame shows up once per processor across the chunk archives.
	var png, ppm int
	for i := 0; i < status.ChunkCount; i++ {
		obj, err := s.minioClient.GetObject(ctx, "frames", usecase.ChunkArchiveKey(status.ArchivePrefix, i), miniogo.GetObjectOptions{})
		require.NoError(t, err)
		data, err := io.ReadAll(obj)
		require.NoError(t, err)
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		require.NoError(t, err)
		for _, f := range zr.File {
			switch {
			case strings.HasSuffix(f.Name, ".png"):
				png++
			case strings.HasSuffix(f.Name, ".ppm"):
				ppm++
			}
		}
	}
	assert.Equal(t, int(status.FrameCount), png)
	assert.Equal(t, int(status.FrameCount), ppm)

	var dbStatus string
	var dbFrames int64
	var dbProcessors []string
	err = s.pool.QueryRow(ctx,
		"SELECT status, frame_count, processors FROM pipeline_runs WHERE id=$1", runID,
	).Scan(&dbStatus, &dbFrames, &dbProcessors)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", dbStatus)
	assert.Equal(t, status.FrameCount, dbFrames)
	assert.Equal(t, []string{"edge", "raw"}, dbProcessors)
}

func TestFrameWorkerMalformedMessage(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	s := startStack(t, ctx)

	s.publish(t, ctx, []byte(`{invalid json`))
	time.Sleep(2 * time.Second)

	dlqCh, err := s.rmqConn.Channel()
	require.NoError(t, err)
	defer dlqCh.Close()

	msg, ok, err := dlqCh.Get(dlq, true)
	require.NoError(t, err)
	assert.True(t, ok, "malformed message should be in DLQ")
	assert.Equal(t, `{invalid json`, string(msg.Body))
	assert.Contains(t, msg.Headers["x-dlq-reason"], "unmarshal_error")
}
