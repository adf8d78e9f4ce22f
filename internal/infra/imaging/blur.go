package imaging

import (
	"fmt"
	"image"

	imaginggo "github.com/disintegration/imaging"
)

// Blurrer applies a Gaussian blur through disintegration/imaging.
type Blurrer struct{}

func NewBlurrer() *Blurrer {
	return &Blurrer{}
}

func (b *Blurrer) Blur(src image.Image, sigma float64) (image.Image, error) {
	if sigma <= 0 {
		return nil, fmt.Errorf("blur sigma must be positive, got %v", sigma)
	}
	if src.Bounds().Empty() {
		return nil, fmt.Errorf("cannot blur an empty image")
	}
	return imaginggo.Blur(src, sigma), nil
}
