package ffmpeg

import (
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/fiapx/fiapx-frame-pipeline/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-pipeline/internal/domain/port"
)

// Rescaler converts decoded frames to packed RGB24 at a fixed size with
// bilinear interpolation. The swscale context is bound to the source
// geometry of the first frame and rebuilt only if that geometry changes.
type Rescaler struct {
	dstWidth  int
	dstHeight int

	ssc    *astiav.SoftwareScaleContext
	srcW   int
	srcH   int
	srcFmt astiav.PixelFormat

	dst *astiav.Frame
	out entity.RescaledFrame
}

func NewRescaler(src entity.StreamDescriptor, dstWidth, dstHeight int) (*Rescaler, error) {
	if dstWidth <= 0 || dstHeight <= 0 {
		return nil, fmt.Errorf("invalid target resolution %dx%d", dstWidth, dstHeight)
	}
	if src.Width <= 0 || src.Height <= 0 {
		return nil, fmt.Errorf("invalid source resolution %dx%d", src.Width, src.Height)
	}

	dst := astiav.AllocFrame()
	dst.SetWidth(dstWidth)
	dst.SetHeight(dstHeight)
	dst.SetPixelFormat(astiav.PixelFormatRgb24)
	if err := dst.AllocBuffer(1); err != nil {
		dst.Free()
		return nil, fmt.Errorf("alloc rgb24 buffer: %w", err)
	}
	size, err := dst.ImageBufferSize(1)
	if err != nil {
		dst.Free()
		return nil, fmt.Errorf("rgb24 buffer size: %w", err)
	}
	if want := dstWidth * dstHeight * entity.RGB24Channels; size != want {
		dst.Free()
		return nil, fmt.Errorf("rgb24 buffer size %d, want %d", size, want)
	}

	return &Rescaler{
		dstWidth:  dstWidth,
		dstHeight: dstHeight,
		dst:       dst,
		out: entity.RescaledFrame{
			Width:  dstWidth,
			Height: dstHeight,
			Pix:    make([]byte, size),
		},
	}, nil
}

func (r *Rescaler) bind(f *astiav.Frame) error {
	if r.ssc != nil && f.Width() == r.srcW && f.Height() == r.srcH && f.PixelFormat() == r.srcFmt {
		return nil
	}
	if r.ssc != nil {
		r.ssc.Free()
		r.ssc = nil
	}
	ssc, err := astiav.CreateSoftwareScaleContext(
		f.Width(), f.Height(), f.PixelFormat(),
		r.dstWidth, r.dstHeight, astiav.PixelFormatRgb24,
		astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagBilinear),
	)
	if err != nil {
		return fmt.Errorf("create swscale context: %w", err)
	}
	r.ssc = ssc
	r.srcW, r.srcH, r.srcFmt = f.Width(), f.Height(), f.PixelFormat()
	return nil
}

func (r *Rescaler) Rescale(src port.RawFrame) (*entity.RescaledFrame, error) {
	raw, ok := src.(*rawFrame)
	if !ok {
		return nil, fmt.Errorf("unexpected frame type %T", src)
	}
	if err := r.bind(raw.f); err != nil {
		return nil, err
	}
	if err := r.ssc.ScaleFrame(raw.f, r.dst); err != nil {
		return nil, fmt.Errorf("scale frame: %w", err)
	}

	n, err := r.dst.ImageCopyToBuffer(r.out.Pix, 1)
	if err != nil {
		return nil, fmt.Errorf("copy rgb24 plane: %w", err)
	}
	if n != len(r.out.Pix) {
		return nil, fmt.Errorf("copied %d rgb24 bytes, want %d", n, len(r.out.Pix))
	}
	return &r.out, nil
}

func (r *Rescaler) Close() error {
	if r.ssc != nil {
		r.ssc.Free()
		r.ssc = nil
	}
	if r.dst != nil {
		r.dst.Free()
		r.dst = nil
	}
	return nil
}
