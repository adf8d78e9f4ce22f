package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fiapx/fiapx-frame-pipeline/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-pipeline/internal/domain/port"
	"github.com/fiapx/fiapx-frame-pipeline/internal/infra/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ProcessorFactory builds the configured frame processors writing into outputDir.
type ProcessorFactory func(outputDir string) ([]port.FrameProcessor, error)

type RunVideoDeps struct {
	Backend    port.MediaBackend
	Repo       port.RunRepository
	Publisher  port.StatusPublisher
	Processors ProcessorFactory

	// Optional. Archiving needs Storage and Archiver; the queue worker
	// additionally needs DLQ and Notifier.
	Storage  port.ArtifactStorage
	Archiver port.Archiver
	DLQ      port.DLQPublisher
	Notifier port.FailureNotifier
}

type RunVideoConfig struct {
	Pipeline        PipelineConfig
	ProcessorNames  []string
	CreateOutputDir bool
	TempDir         string
	MaxRetries      int
}

// RunRequest names the source to read and where artifacts go. A non-empty
// ArchivePrefix uploads every completed chunk under that prefix.
type RunRequest struct {
	SourcePath    string
	OutputDir     string
	ArchivePrefix string
}

type RunVideoUseCase struct {
	deps   RunVideoDeps
	cfg    RunVideoConfig
	logger *zap.Logger
}

func NewRunVideoUseCase(deps RunVideoDeps, logger *zap.Logger, cfg RunVideoConfig) *RunVideoUseCase {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	return &RunVideoUseCase{deps: deps, cfg: cfg, logger: logger}
}

// NewRun creates and persists a pending run record for sourceKey.
func (uc *RunVideoUseCase) NewRun(ctx context.Context, userID, sourceKey string) (*entity.Run, error) {
	run := entity.NewRun(userID, sourceKey, uc.cfg.ProcessorNames, uc.cfg.MaxRetries)
	if err := uc.deps.Repo.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	return run, nil
}

// Execute runs the pipeline for one attempt of run and records the outcome.
func (uc *RunVideoUseCase) Execute(ctx context.Context, run *entity.Run, req RunRequest) (RunResult, error) {
	if err := uc.begin(ctx, run); err != nil {
		return RunResult{}, err
	}
	return uc.execute(ctx, run, req)
}

func (uc *RunVideoUseCase) begin(ctx context.Context, run *entity.Run) error {
	run.MarkProcessing()
	if err := uc.deps.Repo.Update(ctx, run); err != nil {
		return fmt.Errorf("update run to PROCESSING: %w", err)
	}
	return nil
}

func (uc *RunVideoUseCase) execute(ctx context.Context, run *entity.Run, req RunRequest) (RunResult, error) {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "RunVideoUseCase.Execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("run.id", run.ID.String()),
		attribute.String("run.source", req.SourcePath),
		attribute.StringSlice("run.processors", run.Processors),
	)

	log := uc.logger.With(zap.String("run_id", run.ID.String()), zap.Int("attempt", run.Attempt))
	metrics.ActiveRuns.Inc()
	defer metrics.ActiveRuns.Dec()
	total := time.Now()

	result, err := uc.runPipeline(ctx, req, log)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		uc.fail(ctx, run, req.ArchivePrefix, err, log)
		return result, err
	}

	run.MarkCompleted(result.Summary())
	if err := uc.deps.Repo.Update(ctx, run); err != nil {
		return result, fmt.Errorf("update run to COMPLETED: %w", err)
	}
	uc.publishStatus(ctx, run, req.ArchivePrefix, log)

	metrics.RunsTotal.WithLabelValues("completed").Inc()
	metrics.RunStageDuration.WithLabelValues("total").Observe(time.Since(total).Seconds())
	log.Info("run completed",
		zap.Uint64("frame_count", result.FrameCount),
		zap.Int("chunk_count", result.ChunkCount),
		zap.Uint64("skipped_frames", result.SkippedFrames),
		zap.Duration("elapsed", time.Since(total)),
	)
	return result, nil
}

func (uc *RunVideoUseCase) runPipeline(ctx context.Context, req RunRequest, log *zap.Logger) (RunResult, error) {
	tracer := otel.Tracer("usecase")

	if uc.cfg.CreateOutputDir {
		if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
			return RunResult{}, fmt.Errorf("%w: create output dir: %v", entity.ErrWrite, err)
		}
	}
	procs, err := uc.deps.Processors(req.OutputDir)
	if err != nil {
		return RunResult{}, fmt.Errorf("build processors: %w", err)
	}

	openStart := time.Now()
	octx, openSpan := tracer.Start(ctx, "open_source")
	pipeline, err := OpenPipeline(octx, uc.deps.Backend, req.SourcePath, uc.cfg.Pipeline, log)
	if err == nil {
		_, err = pipeline.SelectVideoStream()
	}
	endSpan(openSpan, err)
	if err != nil {
		if pipeline != nil {
			pipeline.Close()
		}
		return RunResult{}, err
	}
	defer pipeline.Close()
	metrics.RunStageDuration.WithLabelValues("open").Observe(time.Since(openStart).Seconds())

	if req.ArchivePrefix != "" {
		if uc.deps.Storage == nil || uc.deps.Archiver == nil {
			return RunResult{}, errors.New("chunk archiving requested without object storage")
		}
		scratch, err := os.MkdirTemp(uc.cfg.TempDir, "chunks-")
		if err != nil {
			return RunResult{}, fmt.Errorf("create archive scratch dir: %w", err)
		}
		defer os.RemoveAll(scratch)
		pipeline.SetChunkObserver(NewChunkArchiver(uc.deps.Storage, uc.deps.Archiver, req.ArchivePrefix, scratch, log))
	}

	runStart := time.Now()
	rctx, runSpan := tracer.Start(ctx, "run_pipeline")
	result, err := pipeline.Run(rctx, procs...)
	runSpan.SetAttributes(
		attribute.Int64("frames", int64(result.FrameCount)),
		attribute.Int("chunks", result.ChunkCount),
	)
	endSpan(runSpan, err)
	metrics.RunStageDuration.WithLabelValues("pipeline").Observe(time.Since(runStart).Seconds())
	return result, err
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (uc *RunVideoUseCase) fail(ctx context.Context, run *entity.Run, archivePrefix string, cause error, log *zap.Logger) {
	log.Error("run failed", zap.Error(cause))
	run.MarkFailed(cause.Error())
	if err := uc.deps.Repo.Update(ctx, run); err != nil {
		log.Error("failed to update run to FAILED", zap.Error(err))
	}
	uc.publishStatus(ctx, run, archivePrefix, log)
	metrics.RunsTotal.WithLabelValues("failed").Inc()
}

func (uc *RunVideoUseCase) publishStatus(ctx context.Context, run *entity.Run, archivePrefix string, log *zap.Logger) {
	msg := entity.RunStatusMessage{
		RunID:          run.ID,
		UserID:         run.UserID,
		Status:         run.Status,
		VideoKey:       run.SourceKey,
		Processors:     run.Processors,
		ArchivePrefix:  archivePrefix,
		FrameCount:     run.FrameCount,
		ChunkCount:     run.ChunkCount,
		FramesPerChunk: run.FramesPerChunk,
		TargetWidth:    run.TargetWidth,
		TargetHeight:   run.TargetHeight,
		Duration:       run.VideoDuration,
		ErrorMessage:   run.ErrorMessage,
		Attempt:        run.Attempt,
		MaxAttempts:    run.MaxAttempts,
	}
	if err := uc.deps.Publisher.PublishStatus(ctx, msg); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}

// HandleMessage processes one frames.processing delivery. A nil return acks
// the message; an error asks the consumer to requeue it.
func (uc *RunVideoUseCase) HandleMessage(ctx context.Context, rawMsg []byte) error {
	if uc.deps.Storage == nil {
		return errors.New("queue processing requires object storage")
	}

	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "RunVideoUseCase.HandleMessage")
	defer span.End()

	var msg entity.FrameJobMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		uc.parkInDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		return nil
	}
	if msg.RunID == uuid.Nil || msg.VideoKey == "" {
		uc.logger.Error("message missing run_id or video_key", zap.ByteString("body", rawMsg))
		uc.parkInDLQ(ctx, rawMsg, "invalid_message: run_id and video_key are required")
		return nil
	}

	span.SetAttributes(
		attribute.String("run.id", msg.RunID.String()),
		attribute.String("run.video_key", msg.VideoKey),
	)
	log := uc.logger.With(zap.String("run_id", msg.RunID.String()), zap.String("video_key", msg.VideoKey))

	run, err := uc.deps.Repo.FindByID(ctx, msg.RunID)
	if err != nil {
		run = entity.NewRun(msg.UserID, msg.VideoKey, uc.cfg.ProcessorNames, uc.cfg.MaxRetries)
		run.ID = msg.RunID
		if err := uc.deps.Repo.Create(ctx, run); err != nil {
			log.Error("failed to create run record", zap.Error(err))
			return fmt.Errorf("create run: %w", err)
		}
	}

	if run.Status == entity.RunStatusCompleted {
		log.Info("run already completed, dropping duplicate delivery")
		return nil
	}
	if !run.CanRetry() {
		log.Warn("run exhausted retries, sending to DLQ")
		uc.permanentFailure(ctx, run, msg, rawMsg, "max retries exceeded", log)
		return nil
	}

	if err := uc.begin(ctx, run); err != nil {
		return err
	}

	workDir := filepath.Join(uc.cfg.TempDir, run.ID.String())
	outputDir := filepath.Join(workDir, "frames")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	archivePrefix := path.Join(msg.UserID, run.ID.String())

	dlStart := time.Now()
	dctx, dlSpan := tracer.Start(ctx, "download_source")
	sourcePath := filepath.Join(workDir, "input"+path.Ext(msg.VideoKey))
	err = uc.deps.Storage.DownloadSource(dctx, msg.VideoKey, sourcePath)
	endSpan(dlSpan, err)
	if err != nil {
		uc.fail(ctx, run, archivePrefix, err, log)
		return uc.afterFailure(ctx, run, msg, rawMsg, err, log)
	}
	metrics.RunStageDuration.WithLabelValues("download").Observe(time.Since(dlStart).Seconds())

	_, err = uc.execute(ctx, run, RunRequest{
		SourcePath:    sourcePath,
		OutputDir:     outputDir,
		ArchivePrefix: archivePrefix,
	})
	if err != nil && run.Status == entity.RunStatusFailed {
		return uc.afterFailure(ctx, run, msg, rawMsg, err, log)
	}
	return err
}

// afterFailure decides between a retry and a permanent failure once the
// run has been marked FAILED.
func (uc *RunVideoUseCase) afterFailure(ctx context.Context, run *entity.Run, msg entity.FrameJobMessage, rawMsg []byte, cause error, log *zap.Logger) error {
	if entity.IsPermanent(cause) || !run.CanRetry() {
		uc.permanentFailure(ctx, run, msg, rawMsg, cause.Error(), log)
		return nil
	}
	metrics.RetryTotal.WithLabelValues(strconv.Itoa(run.Attempt)).Inc()
	return &entity.RetryError{Attempt: run.Attempt, MaxAttempts: run.MaxAttempts, Err: cause}
}

func (uc *RunVideoUseCase) permanentFailure(ctx context.Context, run *entity.Run, msg entity.FrameJobMessage, rawMsg []byte, reason string, log *zap.Logger) {
	if run.Status != entity.RunStatusFailed {
		run.MarkFailed(reason)
		if err := uc.deps.Repo.Update(ctx, run); err != nil {
			log.Error("failed to update run to FAILED", zap.Error(err))
		}
		uc.publishStatus(ctx, run, "", log)
	}

	uc.parkInDLQ(ctx, rawMsg, reason)
	metrics.RunsTotal.WithLabelValues("dlq").Inc()

	if msg.UserEmail != "" && uc.deps.Notifier != nil {
		if err := uc.deps.Notifier.NotifyFailure(ctx, msg.UserEmail, run.ID.String(), msg.VideoKey, reason); err != nil {
			log.Warn("failure notification not sent", zap.Error(err))
		}
	}
}

func (uc *RunVideoUseCase) parkInDLQ(ctx context.Context, rawMsg []byte, reason string) {
	if uc.deps.DLQ == nil {
		return
	}
	if err := uc.deps.DLQ.PublishToDLQ(ctx, rawMsg, reason); err != nil {
		uc.logger.Error("failed to publish to DLQ", zap.Error(err))
	}
}
