package imaging

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlurKeepsUniformImage(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 16, 9))
	for i := 0; i < len(src.Pix); i += 4 {
		copy(src.Pix[i:], []byte{40, 80, 120, 255})
	}

	out, err := NewBlurrer().Blur(src, 5.0)
	require.NoError(t, err)
	assert.Equal(t, src.Bounds(), out.Bounds())

	c := color.NRGBAModel.Convert(out.At(8, 4)).(color.NRGBA)
	assert.Equal(t, color.NRGBA{40, 80, 120, 255}, c)
}

func TestBlurSpreadsASinglePoint(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 21, 21))
	for i := 3; i < len(src.Pix); i += 4 {
		src.Pix[i] = 255
	}
	src.SetNRGBA(10, 10, color.NRGBA{255, 255, 255, 255})

	out, err := NewBlurrer().Blur(src, 2.0)
	require.NoError(t, err)

	center := color.NRGBAModel.Convert(out.At(10, 10)).(color.NRGBA)
	near := color.NRGBAModel.Convert(out.At(11, 10)).(color.NRGBA)
	assert.Less(t, center.R, uint8(255))
	assert.Greater(t, near.R, uint8(0))
}

func TestBlurRejectsBadInput(t *testing.T) {
	_, err := NewBlurrer().Blur(image.NewNRGBA(image.Rect(0, 0, 4, 4)), 0)
	assert.Error(t, err)

	_, err = NewBlurrer().Blur(image.NewNRGBA(image.Rect(0, 0, 0, 0)), 1)
	assert.Error(t, err)
}
