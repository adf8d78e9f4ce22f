package ffmpeg

import (
	"context"

	"github.com/asticode/go-astiav"
	"github.com/fiapx/fiapx-frame-pipeline/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-pipeline/internal/domain/port"
	"go.uber.org/zap"
)

// Backend is the port.MediaBackend served by the linked FFmpeg libraries.
type Backend struct {
	logger *zap.Logger
}

func NewBackend(logger *zap.Logger) *Backend {
	astiav.SetLogLevel(astiav.LogLevelError)
	return &Backend{logger: logger}
}

func (b *Backend) OpenContainer(_ context.Context, path string) (port.ContainerReader, error) {
	r, err := OpenReader(path)
	if err != nil {
		return nil, err
	}
	b.logger.Debug("container opened", zap.String("path", path), zap.Int("streams", len(r.streams)))
	return r, nil
}

func (b *Backend) NewRescaler(src entity.StreamDescriptor, dstWidth, dstHeight int) (port.Rescaler, error) {
	return NewRescaler(src, dstWidth, dstHeight)
}
