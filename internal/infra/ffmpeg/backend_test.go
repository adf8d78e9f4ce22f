package ffmpeg

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/fiapx/fiapx-frame-pipeline/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-pipeline/internal/domain/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join("..", "..", "..", "tests", "testdata", "test.mp4")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skip("test video not found at tests/testdata/test.mp4 - generate it with: ffmpeg -f lavfi -i testsrc=duration=2:size=320x240:rate=5 -c:v libx264 -pix_fmt yuv420p tests/testdata/test.mp4")
	}
	return path
}

func TestOpenContainerMissingFile(t *testing.T) {
	_, err := NewBackend(zap.NewNop()).OpenContainer(context.Background(), filepath.Join(t.TempDir(), "nope.mp4"))
	assert.Error(t, err)
}

func TestDecodeAndRescale(t *testing.T) {
	path := testVideo(t)
	backend := NewBackend(zap.NewNop())

	reader, err := backend.OpenContainer(context.Background(), path)
	require.NoError(t, err)
	defer reader.Close()

	var video *entity.StreamDescriptor
	for _, s := range reader.Streams() {
		if s.IsVideo() {
			video = &s
			break
		}
	}
	require.NotNil(t, video)
	assert.Equal(t, 320, video.Width)
	assert.Equal(t, 240, video.Height)

	dec, err := reader.OpenDecoder(*video)
	require.NoError(t, err)
	defer dec.Close()

	rs, err := backend.NewRescaler(*video, 960, 720)
	require.NoError(t, err)
	defer rs.Close()

	frames := 0
	var first *byte
	drain := func() {
		for {
			raw, err := dec.ReceiveFrame()
			if errors.Is(err, port.ErrFrameUnavailable) {
				return
			}
			require.NoError(t, err)
			out, err := rs.Rescale(raw)
			require.NoError(t, err)
			require.Equal(t, 960*720*3, len(out.Pix))
			if first == nil {
				first = &out.Pix[0]
			}
			require.Same(t, first, &out.Pix[0], "rescaled frames share one buffer")
			frames++
		}
	}

	for {
		pkt, err := reader.ReadPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		if pkt.StreamIndex() != video.Index {
			pkt.Release()
			continue
		}
		err = dec.SendPacket(pkt)
		pkt.Release()
		require.NoError(t, err)
		drain()
	}
	require.NoError(t, dec.SendEOF())
	drain()

	assert.Greater(t, frames, 0)
}

func TestRescalerSizesBufferOnce(t *testing.T) {
	src := entity.StreamDescriptor{Width: 320, Height: 240}
	rs, err := NewRescaler(src, 960, 720)
	require.NoError(t, err)
	defer rs.Close()

	assert.Len(t, rs.out.Pix, 960*720*3)
	assert.Equal(t, 960*720*3, cap(rs.out.Pix))
}

func TestRescalerRejectsBadGeometry(t *testing.T) {
	_, err := NewRescaler(entity.StreamDescriptor{Width: 320, Height: 240}, 0, 720)
	assert.Error(t, err)
	_, err = NewRescaler(entity.StreamDescriptor{}, 960, 720)
	assert.Error(t, err)
}
