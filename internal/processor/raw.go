package processor

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/fiapx/fiapx-frame-pipeline/internal/domain/entity"
	"go.uber.org/zap"
)

// RawExport dumps each frame untouched as a binary PPM (frame{index}.ppm),
// for ground-truth comparisons.
type RawExport struct {
	dir    string
	logger *zap.Logger
}

func NewRawExport(dir string, logger *zap.Logger) *RawExport {
	return &RawExport{dir: dir, logger: logger}
}

func (r *RawExport) Name() string { return NameRaw }

func (r *RawExport) Process(_ context.Context, frame *entity.RescaledFrame, index uint64) (string, error) {
	t := startTimings()
	mark := t.start

	if len(frame.Pix) != frame.ExpectedLen() {
		return "", &entity.FrameError{
			Kind:  entity.ErrRasterConstruction,
			Index: index,
			Err:   fmt.Errorf("buffer holds %d bytes, want %d", len(frame.Pix), frame.ExpectedLen()),
		}
	}
	t.raster = t.lap(&mark)

	path := artifactPath(r.dir, "frame", index, "ppm")
	f, err := os.Create(path)
	if err != nil {
		return "", &entity.FrameError{Kind: entity.ErrWrite, Index: index, Err: err}
	}

	w := bufio.NewWriterSize(f, 64*1024)
	fmt.Fprintf(w, "P6\n%d %d\n255\n", frame.Width, frame.Height)
	w.Write(frame.Pix)
	if err := w.Flush(); err != nil {
		f.Close()
		return "", &entity.FrameError{Kind: entity.ErrWrite, Index: index, Err: err}
	}
	if err := f.Close(); err != nil {
		return "", &entity.FrameError{Kind: entity.ErrWrite, Index: index, Err: err}
	}
	t.write = t.lap(&mark)

	t.report(r.logger, NameRaw, index)
	return path, nil
}
