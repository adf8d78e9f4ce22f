package memory

import (
	"context"

	"github.com/fiapx/fiapx-frame-pipeline/internal/domain/entity"
	"go.uber.org/zap"
)

// StatusLog publishes run status messages to the log.
type StatusLog struct {
	logger *zap.Logger
}

func NewStatusLog(logger *zap.Logger) *StatusLog {
	return &StatusLog{logger: logger}
}

func (s *StatusLog) PublishStatus(_ context.Context, msg entity.RunStatusMessage) error {
	fields := []zap.Field{
		zap.String("run_id", msg.RunID.String()),
		zap.String("status", string(msg.Status)),
		zap.Strings("processors", msg.Processors),
		zap.Int64("frame_count", msg.FrameCount),
		zap.Int("chunk_count", msg.ChunkCount),
		zap.Int("attempt", msg.Attempt),
	}
	if msg.ErrorMessage != "" {
		fields = append(fields, zap.String("error", msg.ErrorMessage))
		s.logger.Warn("run status", fields...)
		return nil
	}
	s.logger.Info("run status", fields...)
	return nil
}
