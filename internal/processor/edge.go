package processor

import (
	"context"
	"image"

	"github.com/fiapx/fiapx-frame-pipeline/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-pipeline/internal/domain/port"
	"go.uber.org/zap"
)

// EdgeDetect writes a Canny edge map of each frame as frame{index}.png.
type EdgeDetect struct {
	dir      string
	params   port.EdgeParams
	detector port.EdgeDetector
	logger   *zap.Logger

	rgb  *image.NRGBA
	gray *image.Gray
}

func NewEdgeDetect(dir string, params port.EdgeParams, detector port.EdgeDetector, logger *zap.Logger) *EdgeDetect {
	return &EdgeDetect{dir: dir, params: params, detector: detector, logger: logger}
}

func (e *EdgeDetect) Name() string { return NameEdge }

func (e *EdgeDetect) Process(_ context.Context, frame *entity.RescaledFrame, index uint64) (string, error) {
	t := startTimings()
	mark := t.start

	rgb, err := rasterFromFrame(frame, e.rgb)
	if err != nil {
		return "", &entity.FrameError{Kind: entity.ErrRasterConstruction, Index: index, Err: err}
	}
	e.rgb = rgb
	t.raster = t.lap(&mark)

	e.gray = lumaBT709(rgb, e.gray)
	edges, err := e.detector.DetectEdges(e.gray, e.params)
	if err != nil {
		return "", &entity.FrameError{Kind: entity.ErrFilter, Index: index, Err: err}
	}
	t.filter = t.lap(&mark)

	path := artifactPath(e.dir, "frame", index, "png")
	if err := writePNG(path, edges, index); err != nil {
		return "", err
	}
	t.write = t.lap(&mark)

	t.report(e.logger, NameEdge, index)
	return path, nil
}
