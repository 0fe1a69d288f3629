package export

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x * 7), uint8(y * 5), 128, 255})
		}
	}
	return img
}

func TestBuffer_ResolvesOnceAndCloses(t *testing.T) {
	ch := Buffer(createTestImage(16, 16), MIMETypePNG, 1)

	res, ok := <-ch
	require.True(t, ok)
	assert.False(t, res.Empty())
	assert.Equal(t, MIMETypePNG, res.MIMEType)

	_, ok = <-ch
	assert.False(t, ok, "channel must be closed after the single result")
}

func TestBuffer_Formats(t *testing.T) {
	img := createTestImage(32, 24)

	t.Run("jpeg", func(t *testing.T) {
		res := <-Buffer(img, "IMAGE/JPEG", 0.8)
		require.False(t, res.Empty())
		decoded, err := jpeg.Decode(bytes.NewReader(res.Data))
		require.NoError(t, err)
		assert.Equal(t, img.Bounds(), decoded.Bounds())
	})

	t.Run("jpg alias", func(t *testing.T) {
		res := <-Buffer(img, "image/jpg", 0.8)
		assert.Equal(t, MIMETypeJPEG, res.MIMEType)
	})

	t.Run("png", func(t *testing.T) {
		res := <-Buffer(img, MIMETypePNG, 0.1)
		require.False(t, res.Empty())
		decoded, err := png.Decode(bytes.NewReader(res.Data))
		require.NoError(t, err)
		assert.Equal(t, img.Bounds(), decoded.Bounds())
	})

	t.Run("webp", func(t *testing.T) {
		res := <-Buffer(img, MIMETypeWebP, 0.75)
		require.False(t, res.Empty())
		assert.Equal(t, "RIFF", string(res.Data[:4]))
	})
}

func TestBuffer_QualityAffectsLossySize(t *testing.T) {
	img := createTestImage(128, 128)

	low := <-Buffer(img, MIMETypeJPEG, 0.1)
	high := <-Buffer(img, MIMETypeJPEG, 1.0)
	require.False(t, low.Empty())
	require.False(t, high.Empty())
	assert.Less(t, len(low.Data), len(high.Data))
}

func TestBuffer_EmptyOnFailure(t *testing.T) {
	img := createTestImage(8, 8)

	assert.True(t, (<-Buffer(img, "image/gif", 0.9)).Empty())
	assert.True(t, (<-Buffer(img, "", 0.9)).Empty())
	assert.True(t, (<-Buffer(nil, MIMETypePNG, 0.9)).Empty())
	assert.True(t, (<-Buffer(image.NewNRGBA(image.Rect(0, 0, 0, 0)), MIMETypeJPEG, 0.9)).Empty())
}

func TestAwait(t *testing.T) {
	res, err := Await(context.Background(), Buffer(createTestImage(4, 4), MIMETypePNG, 1))
	require.NoError(t, err)
	assert.False(t, res.Empty())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = Await(ctx, make(chan Result))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 90, percent(0.9))
	assert.Equal(t, 100, percent(1.7))
	assert.Equal(t, 1, percent(-3))
	assert.Equal(t, 1, percent(0))
	assert.Equal(t, 90, percent(nan()))
}

func TestSupportedAndExtension(t *testing.T) {
	assert.True(t, Supported("image/png"))
	assert.True(t, Supported(" image/WEBP "))
	assert.False(t, Supported("video/mp4"))

	assert.Equal(t, "png", Extension(MIMETypePNG))
	assert.Equal(t, "webp", Extension(MIMETypeWebP))
	assert.Equal(t, "jpg", Extension(MIMETypeJPEG))
}

func TestOptimalQuality(t *testing.T) {
	tests := []struct {
		w, h int
		want float64
	}{
		{800, 600, 0.95},
		{1000, 500, 0.95},
		{1000, 501, 0.9},
		{1000, 1000, 0.9},
		{1000, 1001, 0.85},
		{1920, 1080, 0.85},
		{1 << 32, 1 << 32, 0.85},
		{1 << 62, 4, 0.85},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, OptimalQuality(tc.w, tc.h), "%dx%d", tc.w, tc.h)
	}
}

func nan() float64 {
	zero := 0.0
	return zero / zero
}
