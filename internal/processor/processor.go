// Package processor holds the per-frame strategies the chunk pipeline
// dispatches to. Each writes one artifact per frame into a pre-existing
// output directory.
package processor

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/fiapx/fiapx-frame-pipeline/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-pipeline/internal/domain/port"
	"github.com/fiapx/fiapx-frame-pipeline/internal/infra/metrics"
	"go.uber.org/zap"
)

const (
	NameEdge = "edge"
	NameBlur = "blur"
	NameRaw  = "raw"
)

var (
	DefaultEdgeParams = port.EdgeParams{Sigma: 1.2, StrongThreshold: 0.2, WeakThreshold: 0.01}
	DefaultBlurSigma  = 5.0
)

type Deps struct {
	OutputDir    string
	EdgeParams   port.EdgeParams
	BlurSigma    float64
	EdgeDetector port.EdgeDetector
	Blurrer      port.Blurrer
	Logger       *zap.Logger
}

// Build returns the processors named in names, in that order. Zero-valued
// EdgeParams and BlurSigma select DefaultEdgeParams and DefaultBlurSigma.
func Build(names []string, deps Deps) ([]port.FrameProcessor, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("no processors requested")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.EdgeParams == (port.EdgeParams{}) {
		deps.EdgeParams = DefaultEdgeParams
	}
	if deps.BlurSigma == 0 {
		deps.BlurSigma = DefaultBlurSigma
	}
	if err := ValidateEdgeParams(deps.EdgeParams); err != nil {
		return nil, err
	}
	if deps.BlurSigma < 0 {
		return nil, fmt.Errorf("blur sigma must be positive, got %v", deps.BlurSigma)
	}

	seen := make(map[string]bool, len(names))
	out := make([]port.FrameProcessor, 0, len(names))
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if seen[name] {
			return nil, fmt.Errorf("processor %q requested twice", name)
		}
		seen[name] = true

		switch name {
		case NameEdge:
			if deps.EdgeDetector == nil {
				return nil, fmt.Errorf("processor %q needs an edge detector", name)
			}
			out = append(out, NewEdgeDetect(deps.OutputDir, deps.EdgeParams, deps.EdgeDetector, deps.Logger))
		case NameBlur:
			if deps.Blurrer == nil {
				return nil, fmt.Errorf("processor %q needs a blurrer", name)
			}
			out = append(out, NewBlur(deps.OutputDir, deps.BlurSigma, deps.Blurrer, deps.Logger))
		case NameRaw:
			out = append(out, NewRawExport(deps.OutputDir, deps.Logger))
		default:
			return nil, fmt.Errorf("unknown processor %q (want %s, %s or %s)", raw, NameEdge, NameBlur, NameRaw)
		}
	}
	return out, nil
}

// ValidateEdgeParams requires a positive sigma and 0 <= weak <= strong <= 1.
func ValidateEdgeParams(p port.EdgeParams) error {
	if p.Sigma <= 0 {
		return fmt.Errorf("edge sigma must be positive, got %v", p.Sigma)
	}
	if p.WeakThreshold < 0 || p.StrongThreshold > 1 || p.WeakThreshold > p.StrongThreshold {
		return fmt.Errorf("edge thresholds must satisfy 0 <= weak <= strong <= 1, got weak %v strong %v",
			p.WeakThreshold, p.StrongThreshold)
	}
	return nil
}

// timings is the per-frame breakdown reported for every processed frame.
type timings struct {
	start  time.Time
	raster time.Duration
	filter time.Duration
	write  time.Duration
}

func startTimings() *timings {
	return &timings{start: time.Now()}
}

// lap returns the time since the previous lap (or since start).
func (t *timings) lap(prev *time.Time) time.Duration {
	now := time.Now()
	d := now.Sub(*prev)
	*prev = now
	return d
}

func (t *timings) report(logger *zap.Logger, processor string, index uint64) {
	metrics.FrameStageDuration.WithLabelValues(processor, "raster").Observe(t.raster.Seconds())
	metrics.FrameStageDuration.WithLabelValues(processor, "filter").Observe(t.filter.Seconds())
	metrics.FrameStageDuration.WithLabelValues(processor, "write").Observe(t.write.Seconds())

	logger.Info("frame processed",
		zap.String("processor", processor),
		zap.Uint64("frame_index", index),
		zap.Duration("raster", t.raster),
		zap.Duration("filter", t.filter),
		zap.Duration("encode_write", t.write),
		zap.Duration("total", time.Since(t.start)),
	)
}

// writePNG creates path and encodes img into it. The output directory must
// exist. Gray images stay single channel.
func writePNG(path string, img image.Image, index uint64) error {
	f, err := os.Create(path)
	if err != nil {
		return &entity.FrameError{Kind: entity.ErrWrite, Index: index, Err: err}
	}
	if err := imaging.Encode(f, img, imaging.PNG); err != nil {
		f.Close()
		return &entity.FrameError{Kind: entity.ErrEncode, Index: index, Err: err}
	}
	if err := f.Close(); err != nil {
		return &entity.FrameError{Kind: entity.ErrWrite, Index: index, Err: err}
	}
	return nil
}

func artifactPath(dir, prefix string, index uint64, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("%s%d.%s", prefix, index, ext))
}

// Factory binds names and deps to Build, leaving the output directory to be
// chosen per run.
func Factory(names []string, deps Deps) func(outputDir string) ([]port.FrameProcessor, error) {
	names = append([]string(nil), names...)
	return func(outputDir string) ([]port.FrameProcessor, error) {
		d := deps
		d.OutputDir = outputDir
		return Build(names, d)
	}
}
