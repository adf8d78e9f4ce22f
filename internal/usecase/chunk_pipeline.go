package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/fiapx/fiapx-frame-pipeline/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-pipeline/internal/domain/port"
	"github.com/fiapx/fiapx-frame-pipeline/internal/infra/metrics"
	"go.uber.org/zap"
)

const (
	DefaultTargetHeight     = 720
	DefaultChunkDurationSec = 2
)

type FrameErrorPolicy string

const (
	// FrameErrorFail aborts the run on the first processor failure.
	FrameErrorFail FrameErrorPolicy = "fail"
	// FrameErrorSkip logs and counts processor failures, then moves on.
	FrameErrorSkip FrameErrorPolicy = "skip"
)

type PipelineConfig struct {
	TargetHeight     int
	ChunkDurationSec int64
	FrameErrorPolicy FrameErrorPolicy
}

func (c PipelineConfig) withDefaults() PipelineConfig {
	if c.TargetHeight <= 0 {
		c.TargetHeight = DefaultTargetHeight
	}
	if c.ChunkDurationSec <= 0 {
		c.ChunkDurationSec = DefaultChunkDurationSec
	}
	if c.FrameErrorPolicy == "" {
		c.FrameErrorPolicy = FrameErrorFail
	}
	return c
}

type RunResult struct {
	Stream         entity.StreamDescriptor
	TargetWidth    int
	TargetHeight   int
	FramesPerChunk int64
	FrameCount     uint64
	ChunkCount     int
	SkippedFrames  uint64
}

func (r RunResult) Summary() entity.RunSummary {
	return entity.RunSummary{
		FrameCount:     int64(r.FrameCount),
		ChunkCount:     r.ChunkCount,
		FramesPerChunk: r.FramesPerChunk,
		TargetWidth:    r.TargetWidth,
		TargetHeight:   r.TargetHeight,
		VideoDuration:  r.Stream.Duration.Seconds(),
	}
}

// ChunkPipeline drives one source through decode, rescale and the frame
// processors. It is single-use and not safe for concurrent use.
type ChunkPipeline struct {
	backend  port.MediaBackend
	reader   port.ContainerReader
	observer port.ChunkObserver
	cfg      PipelineConfig
	logger   *zap.Logger

	stream         *entity.StreamDescriptor
	framesPerChunk int64
	frameIndex     uint64
	chunk          entity.Chunk
	chunkCount     int
	skipped        uint64
	ran            bool
}

// OpenPipeline opens path through backend. Any failure is reported as
// entity.ErrSourceUnavailable.
func OpenPipeline(ctx context.Context, backend port.MediaBackend, path string, cfg PipelineConfig, logger *zap.Logger) (*ChunkPipeline, error) {
	reader, err := backend.OpenContainer(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", entity.ErrSourceUnavailable, path, err)
	}
	return &ChunkPipeline{
		backend: backend,
		reader:  reader,
		cfg:     cfg.withDefaults(),
		logger:  logger.With(zap.String("source", path)),
	}, nil
}

func (p *ChunkPipeline) SetChunkObserver(o port.ChunkObserver) {
	p.observer = o
}

// SelectVideoStream picks the first stream of video type.
func (p *ChunkPipeline) SelectVideoStream() (entity.StreamDescriptor, error) {
	if p.stream != nil {
		return *p.stream, nil
	}
	for _, s := range p.reader.Streams() {
		if s.IsVideo() {
			p.stream = &s
			return s, nil
		}
	}
	return entity.StreamDescriptor{}, entity.ErrNoVideoStream
}

// ComputeTargetResolution keeps the source aspect ratio at a fixed 720 line height.
func ComputeTargetResolution(desc entity.StreamDescriptor) (width, height int) {
	return targetResolution(desc, DefaultTargetHeight)
}

func targetResolution(desc entity.StreamDescriptor, height int) (int, int) {
	if desc.Height <= 0 {
		return 0, height
	}
	w := math.Round(float64(height) * float64(desc.Width) / float64(desc.Height))
	return int(w), height
}

// FramesPerChunk is floor(num * seconds / den); zero when the rate is unknown.
func FramesPerChunk(rate entity.Rational, chunkSeconds int64) int64 {
	if rate.Den <= 0 || rate.Num <= 0 || chunkSeconds <= 0 {
		return 0
	}
	return rate.Num * chunkSeconds / rate.Den
}

// Run decodes every packet of the selected video stream and hands each
// rescaled frame, with its index, to processors in order.
func (p *ChunkPipeline) Run(ctx context.Context, processors ...port.FrameProcessor) (RunResult, error) {
	if p.ran {
		return RunResult{}, errors.New("pipeline already ran")
	}
	p.ran = true

	if len(processors) == 0 {
		return RunResult{}, errors.New("no frame processors configured")
	}

	stream, err := p.SelectVideoStream()
	if err != nil {
		return RunResult{}, err
	}

	width, height := targetResolution(stream, p.cfg.TargetHeight)
	if width <= 0 {
		return RunResult{}, fmt.Errorf("%w: invalid source dimensions %dx%d", entity.ErrRescale, stream.Width, stream.Height)
	}
	p.framesPerChunk = FramesPerChunk(stream.AvgFrameRate, p.cfg.ChunkDurationSec)

	log := p.logger.With(zap.Int("stream_index", stream.Index))
	log.Info("video stream selected",
		zap.String("codec", stream.Codec),
		zap.Int("source_width", stream.Width),
		zap.Int("source_height", stream.Height),
		zap.Int("target_width", width),
		zap.Int("target_height", height),
		zap.Int64("frames_per_chunk", p.framesPerChunk),
	)

	decoder, err := p.reader.OpenDecoder(stream)
	if err != nil {
		return RunResult{}, fmt.Errorf("%w: open decoder: %v", entity.ErrDecode, err)
	}
	defer decoder.Close()

	rescaler, err := p.backend.NewRescaler(stream, width, height)
	if err != nil {
		return RunResult{}, fmt.Errorf("%w: create rescaler: %v", entity.ErrRescale, err)
	}
	defer rescaler.Close()

	result := RunResult{
		Stream:         stream,
		TargetWidth:    width,
		TargetHeight:   height,
		FramesPerChunk: p.framesPerChunk,
	}
	finish := func(err error) (RunResult, error) {
		result.FrameCount = p.frameIndex
		result.ChunkCount = p.chunkCount
		result.SkippedFrames = p.skipped
		return result, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}

		pkt, err := p.reader.ReadPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return finish(fmt.Errorf("%w: read packet: %v", entity.ErrDecode, err))
		}

		if pkt.StreamIndex() != stream.Index {
			pkt.Release()
			continue
		}

		err = decoder.SendPacket(pkt)
		pkt.Release()
		if err != nil {
			return finish(&entity.FrameError{Kind: entity.ErrDecode, Index: p.frameIndex, Err: err})
		}

		if err := p.drain(ctx, decoder, rescaler, processors); err != nil {
			return finish(err)
		}
	}

	if err := decoder.SendEOF(); err != nil {
		return finish(&entity.FrameError{Kind: entity.ErrDecode, Index: p.frameIndex, Err: err})
	}
	if err := p.drain(ctx, decoder, rescaler, processors); err != nil {
		return finish(err)
	}
	if err := p.completeChunk(ctx); err != nil {
		return finish(err)
	}

	log.Info("pipeline finished",
		zap.Uint64("frames", p.frameIndex),
		zap.Int("chunks", p.chunkCount),
		zap.Uint64("skipped", p.skipped),
	)
	return finish(nil)
}

// drain pulls every frame the decoder can currently emit.
func (p *ChunkPipeline) drain(ctx context.Context, decoder port.VideoDecoder, rescaler port.Rescaler, processors []port.FrameProcessor) error {
	for {
		raw, err := decoder.ReceiveFrame()
		if errors.Is(err, port.ErrFrameUnavailable) {
			return nil
		}
		if err != nil {
			return &entity.FrameError{Kind: entity.ErrDecode, Index: p.frameIndex, Err: err}
		}

		frame, err := rescaler.Rescale(raw)
		if err != nil {
			return &entity.FrameError{Kind: entity.ErrRescale, Index: p.frameIndex, Err: err}
		}

		if err := p.dispatch(ctx, frame, processors); err != nil {
			return err
		}
	}
}

func (p *ChunkPipeline) dispatch(ctx context.Context, frame *entity.RescaledFrame, processors []port.FrameProcessor) error {
	index := p.frameIndex
	p.frameIndex++
	metrics.FramesDecodedTotal.Inc()

	if p.chunk.FrameCount == 0 {
		p.chunk.FirstFrame = index
	}

	failed := false
	for _, proc := range processors {
		artifact, err := proc.Process(ctx, frame, index)
		if err != nil {
			metrics.FramesProcessedTotal.WithLabelValues(proc.Name(), "failed").Inc()
			if p.cfg.FrameErrorPolicy != FrameErrorSkip {
				return fmt.Errorf("processor %s: %w", proc.Name(), err)
			}
			p.logger.Warn("frame skipped",
				zap.String("processor", proc.Name()),
				zap.Uint64("frame_index", index),
				zap.Error(err),
			)
			failed = true
			continue
		}
		metrics.FramesProcessedTotal.WithLabelValues(proc.Name(), "ok").Inc()
		p.chunk.Artifacts = append(p.chunk.Artifacts, artifact)
	}
	if failed {
		p.skipped++
	}

	p.chunk.LastFrame = index
	p.chunk.FrameCount++
	if p.framesPerChunk > 0 && p.chunk.FrameCount == p.framesPerChunk {
		return p.completeChunk(ctx)
	}
	return nil
}

func (p *ChunkPipeline) completeChunk(ctx context.Context) error {
	if p.chunk.FrameCount == 0 {
		return nil
	}
	chunk := p.chunk
	p.chunkCount++
	p.chunk = entity.Chunk{Index: chunk.Index + 1}
	metrics.ChunksCompletedTotal.Inc()

	p.logger.Debug("chunk completed",
		zap.Int("chunk_index", chunk.Index),
		zap.Uint64("first_frame", chunk.FirstFrame),
		zap.Uint64("last_frame", chunk.LastFrame),
		zap.Int("artifacts", len(chunk.Artifacts)),
	)

	if p.observer == nil {
		return nil
	}
	if err := p.observer.ChunkCompleted(ctx, chunk); err != nil {
		return fmt.Errorf("chunk %d: %w", chunk.Index, err)
	}
	return nil
}

// Close releases the container. Decoder and rescaler are released by Run.
func (p *ChunkPipeline) Close() error {
	return p.reader.Close()
}
