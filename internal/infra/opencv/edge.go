package opencv

import (
	"fmt"
	"image"

	"github.com/fiapx/fiapx-frame-pipeline/internal/domain/port"
	"gocv.io/x/gocv"
)

// gradientFullScale is the largest single-axis 3x3 Sobel response on 8-bit
// input; the relative edge thresholds are fractions of it.
const gradientFullScale = 4 * 255.0

// EdgeDetector runs Gaussian smoothing followed by OpenCV's Canny operator.
type EdgeDetector struct{}

func NewEdgeDetector() *EdgeDetector {
	return &EdgeDetector{}
}

func (d *EdgeDetector) DetectEdges(src *image.Gray, p port.EdgeParams) (*image.Gray, error) {
	b := src.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("empty source image")
	}
	if p.WeakThreshold > p.StrongThreshold {
		return nil, fmt.Errorf("weak threshold %v above strong threshold %v", p.WeakThreshold, p.StrongThreshold)
	}
	if src.Stride != b.Dx() {
		src = compactGray(src)
	}

	mat, err := gocv.NewMatFromBytes(b.Dy(), b.Dx(), gocv.MatTypeCV8U, src.Pix)
	if err != nil {
		return nil, fmt.Errorf("wrap luma raster: %w", err)
	}
	defer mat.Close()

	smoothed := gocv.NewMat()
	defer smoothed.Close()
	gocv.GaussianBlur(mat, &smoothed, image.Pt(0, 0), p.Sigma, p.Sigma, gocv.BorderReplicate)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(smoothed, &edges,
		float32(p.WeakThreshold*gradientFullScale),
		float32(p.StrongThreshold*gradientFullScale))
	if edges.Empty() || edges.Rows() != b.Dy() || edges.Cols() != b.Dx() {
		return nil, fmt.Errorf("canny produced no output for %dx%d input", b.Dx(), b.Dy())
	}

	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	copy(out.Pix, edges.ToBytes())
	return out, nil
}

func compactGray(src *image.Gray) *image.Gray {
	b := src.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		row := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
		copy(out.Pix[y*out.Stride:], row[:b.Dx()])
	}
	return out
}
