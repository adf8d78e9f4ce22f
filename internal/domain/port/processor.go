package port

import (
	"context"
	"image"

	"github.com/fiapx/fiapx-frame-pipeline/internal/domain/entity"
)

// FrameProcessor turns one rescaled frame into one artifact on disk and
// returns the artifact path.
type FrameProcessor interface {
	Name() string
	Process(ctx context.Context, frame *entity.RescaledFrame, index uint64) (string, error)
}

// ChunkObserver is told about every completed chunk, in order.
type ChunkObserver interface {
	ChunkCompleted(ctx context.Context, chunk entity.Chunk) error
}

type EdgeParams struct {
	Sigma           float64
	StrongThreshold float64
	WeakThreshold   float64
}

type EdgeDetector interface {
	DetectEdges(src *image.Gray, params EdgeParams) (*image.Gray, error)
}

type Blurrer interface {
	Blur(src image.Image, sigma float64) (image.Image, error)
}
