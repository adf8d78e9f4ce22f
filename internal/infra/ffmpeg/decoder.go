package ffmpeg

import (
	"errors"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/fiapx/fiapx-frame-pipeline/internal/domain/port"
)

type rawFrame struct {
	f *astiav.Frame
}

func (r *rawFrame) Width() int  { return r.f.Width() }
func (r *rawFrame) Height() int { return r.f.Height() }

// Decoder wraps a libavcodec decoding context. The frame returned by
// ReceiveFrame is overwritten by the next call.
type Decoder struct {
	cc    *astiav.CodecContext
	frame rawFrame
}

func newDecoder(cp *astiav.CodecParameters) (*Decoder, error) {
	codec := astiav.FindDecoder(cp.CodecID())
	if codec == nil {
		return nil, fmt.Errorf("no decoder for codec %s", cp.CodecID())
	}
	cc := astiav.AllocCodecContext(codec)
	if cc == nil {
		return nil, errors.New("alloc codec context failed")
	}
	if err := cp.ToCodecContext(cc); err != nil {
		cc.Free()
		return nil, fmt.Errorf("copy codec parameters: %w", err)
	}
	if err := cc.Open(codec, nil); err != nil {
		cc.Free()
		return nil, fmt.Errorf("open codec: %w", err)
	}
	return &Decoder{cc: cc, frame: rawFrame{f: astiav.AllocFrame()}}, nil
}

func (d *Decoder) SendPacket(p port.Packet) error {
	pk, ok := p.(*packet)
	if !ok {
		return fmt.Errorf("unexpected packet type %T", p)
	}
	return d.cc.SendPacket(pk.pkt)
}

// SendEOF puts the decoder in draining mode.
func (d *Decoder) SendEOF() error {
	return d.cc.SendPacket(nil)
}

func (d *Decoder) ReceiveFrame() (port.RawFrame, error) {
	d.frame.f.Unref()
	if err := d.cc.ReceiveFrame(d.frame.f); err != nil {
		if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
			return nil, port.ErrFrameUnavailable
		}
		return nil, err
	}
	return &d.frame, nil
}

func (d *Decoder) Close() error {
	if d.frame.f != nil {
		d.frame.f.Free()
		d.frame.f = nil
	}
	if d.cc != nil {
		d.cc.Free()
		d.cc = nil
	}
	return nil
}
