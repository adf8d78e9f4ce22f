package port

import (
	"context"
	"errors"

	"github.com/fiapx/fiapx-frame-pipeline/internal/domain/entity"
)

// ErrFrameUnavailable is returned by VideoDecoder.ReceiveFrame when the
// decoder has nothing more to emit without further input.
var ErrFrameUnavailable = errors.New("no decoded frame available")

// Packet is one encoded unit read from a container. It is released exactly
// once, after the decoder has consumed it or the reader skipped it.
type Packet interface {
	StreamIndex() int
	Release()
}

// RawFrame is a decoded frame in the decoder's native format. It stays valid
// only until the next ReceiveFrame call on the decoder that produced it.
type RawFrame interface {
	Width() int
	Height() int
}

type ContainerReader interface {
	Streams() []entity.StreamDescriptor
	// ReadPacket returns io.EOF once every packet has been read.
	ReadPacket() (Packet, error)
	OpenDecoder(stream entity.StreamDescriptor) (VideoDecoder, error)
	Close() error
}

type VideoDecoder interface {
	SendPacket(p Packet) error
	SendEOF() error
	ReceiveFrame() (RawFrame, error)
	Close() error
}

// Rescaler converts raw frames to RGB24 at a fixed destination size. The
// returned frame is reused by the next Rescale call.
type Rescaler interface {
	Rescale(src RawFrame) (*entity.RescaledFrame, error)
	Close() error
}

type MediaBackend interface {
	OpenContainer(ctx context.Context, path string) (ContainerReader, error)
	NewRescaler(src entity.StreamDescriptor, dstWidth, dstHeight int) (Rescaler, error)
}
