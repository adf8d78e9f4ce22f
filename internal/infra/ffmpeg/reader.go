// Package ffmpeg adapts libavformat, libavcodec and libswscale (through
// go-astiav) to the container, decoder and rescaler ports.
package ffmpeg

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/fiapx/fiapx-frame-pipeline/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-pipeline/internal/domain/port"
)

type packet struct {
	pkt *astiav.Packet
}

func (p *packet) StreamIndex() int { return p.pkt.StreamIndex() }
func (p *packet) Release()         { p.pkt.Unref() }

// Reader demuxes one media file. A single packet buffer is reused for every
// ReadPacket call, so a packet must be released before the next read.
type Reader struct {
	fc      *astiav.FormatContext
	pkt     packet
	streams []entity.StreamDescriptor
}

func OpenReader(path string) (*Reader, error) {
	fc := astiav.AllocFormatContext()
	if fc == nil {
		return nil, errors.New("alloc format context failed")
	}
	if err := fc.OpenInput(path, nil, nil); err != nil {
		fc.Free()
		return nil, fmt.Errorf("open input: %w", err)
	}
	if err := fc.FindStreamInfo(nil); err != nil {
		fc.CloseInput()
		fc.Free()
		return nil, fmt.Errorf("find stream info: %w", err)
	}

	r := &Reader{
		fc:  fc,
		pkt: packet{pkt: astiav.AllocPacket()},
	}
	for _, s := range fc.Streams() {
		r.streams = append(r.streams, describe(fc, s))
	}
	return r, nil
}

func describe(fc *astiav.FormatContext, s *astiav.Stream) entity.StreamDescriptor {
	cp := s.CodecParameters()
	d := entity.StreamDescriptor{
		Index: s.Index(),
		Codec: cp.CodecID().String(),
	}
	switch cp.MediaType() {
	case astiav.MediaTypeVideo:
		d.MediaType = entity.MediaTypeVideo
		d.Width = cp.Width()
		d.Height = cp.Height()
		d.PixelFormat = cp.PixelFormat().String()
		rate := s.AvgFrameRate()
		d.AvgFrameRate = entity.Rational{Num: int64(rate.Num()), Den: int64(rate.Den())}
	case astiav.MediaTypeAudio:
		d.MediaType = entity.MediaTypeAudio
	default:
		d.MediaType = entity.MediaTypeOther
	}
	if us := fc.Duration(); us > 0 {
		d.Duration = time.Duration(us) * time.Microsecond
	}
	return d
}

func (r *Reader) Streams() []entity.StreamDescriptor {
	return append([]entity.StreamDescriptor(nil), r.streams...)
}

func (r *Reader) ReadPacket() (port.Packet, error) {
	r.pkt.pkt.Unref()
	if err := r.fc.ReadFrame(r.pkt.pkt); err != nil {
		if errors.Is(err, astiav.ErrEof) {
			return nil, io.EOF
		}
		return nil, err
	}
	return &r.pkt, nil
}

func (r *Reader) OpenDecoder(stream entity.StreamDescriptor) (port.VideoDecoder, error) {
	var target *astiav.Stream
	for _, s := range r.fc.Streams() {
		if s.Index() == stream.Index {
			target = s
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("stream %d not found", stream.Index)
	}
	return newDecoder(target.CodecParameters())
}

func (r *Reader) Close() error {
	if r.pkt.pkt != nil {
		r.pkt.pkt.Free()
		r.pkt.pkt = nil
	}
	if r.fc != nil {
		r.fc.CloseInput()
		r.fc.Free()
		r.fc = nil
	}
	return nil
}
