package processor

import (
	"fmt"
	"image"

	"github.com/fiapx/fiapx-frame-pipeline/internal/domain/entity"
)

// rasterFromFrame expands a packed RGB24 frame into dst, reallocating only
// when the dimensions change.
func rasterFromFrame(frame *entity.RescaledFrame, dst *image.NRGBA) (*image.NRGBA, error) {
	if frame.Width <= 0 || frame.Height <= 0 {
		return nil, fmt.Errorf("invalid frame dimensions %dx%d", frame.Width, frame.Height)
	}
	if len(frame.Pix) != frame.ExpectedLen() {
		return nil, fmt.Errorf("buffer holds %d bytes, %dx%d RGB24 needs %d",
			len(frame.Pix), frame.Width, frame.Height, frame.ExpectedLen())
	}

	rect := image.Rect(0, 0, frame.Width, frame.Height)
	if dst == nil || dst.Rect != rect {
		dst = image.NewNRGBA(rect)
	}

	src := frame.Pix
	for i, j := 0, 0; i < len(src); i, j = i+3, j+4 {
		dst.Pix[j] = src[i]
		dst.Pix[j+1] = src[i+1]
		dst.Pix[j+2] = src[i+2]
		dst.Pix[j+3] = 0xff
	}
	return dst, nil
}

// lumaBT709 converts to single channel luma with Rec. 709 weights.
func lumaBT709(src *image.NRGBA, dst *image.Gray) *image.Gray {
	if dst == nil || dst.Rect != src.Rect {
		dst = image.NewGray(src.Rect)
	}
	for i, j := 0, 0; j < len(dst.Pix); i, j = i+4, j+1 {
		r := uint32(src.Pix[i])
		g := uint32(src.Pix[i+1])
		b := uint32(src.Pix[i+2])
		dst.Pix[j] = uint8((2126*r + 7152*g + 722*b + 5000) / 10000)
	}
	return dst
}
