package processor

import (
	"context"
	"image"

	"github.com/fiapx/fiapx-frame-pipeline/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-pipeline/internal/domain/port"
	"go.uber.org/zap"
)

// Blur writes a Gaussian-blurred copy of each frame as blurred_frame{index}.png.
type Blur struct {
	dir     string
	sigma   float64
	blurrer port.Blurrer
	logger  *zap.Logger

	rgb *image.NRGBA
}

func NewBlur(dir string, sigma float64, blurrer port.Blurrer, logger *zap.Logger) *Blur {
	return &Blur{dir: dir, sigma: sigma, blurrer: blurrer, logger: logger}
}

func (b *Blur) Name() string { return NameBlur }

func (b *Blur) Process(_ context.Context, frame *entity.RescaledFrame, index uint64) (string, error) {
	t := startTimings()
	mark := t.start

	rgb, err := rasterFromFrame(frame, b.rgb)
	if err != nil {
		return "", &entity.FrameError{Kind: entity.ErrRasterConstruction, Index: index, Err: err}
	}
	b.rgb = rgb
	t.raster = t.lap(&mark)

	blurred, err := b.blurrer.Blur(rgb, b.sigma)
	if err != nil {
		return "", &entity.FrameError{Kind: entity.ErrFilter, Index: index, Err: err}
	}
	t.filter = t.lap(&mark)

	path := artifactPath(b.dir, "blurred_frame", index, "png")
	if err := writePNG(path, blurred, index); err != nil {
		return "", err
	}
	t.write = t.lap(&mark)

	t.report(b.logger, NameBlur, index)
	return path, nil
}
