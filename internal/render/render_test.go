package render

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/coverkit/internal/cover"
)

var (
	red   = color.NRGBA{255, 0, 0, 255}
	green = color.NRGBA{0, 255, 0, 255}
	blue  = color.NRGBA{0, 0, 255, 255}
)

// createStripedImage creates a w x h image with a red left quarter, a green
// middle half and a blue right quarter.
func createStripedImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			switch {
			case x < w/4:
				img.SetNRGBA(x, y, red)
			case x >= w-w/4:
				img.SetNRGBA(x, y, blue)
			default:
				img.SetNRGBA(x, y, green)
			}
		}
	}
	return img
}

func TestToBuffer_CropsOverflowingAxis(t *testing.T) {
	src := NewRaster(createStripedImage(40, 20))

	dst, win, err := ToBuffer(src, 10, 10, WithKernel(Nearest))
	require.NoError(t, err)

	assert.Equal(t, cover.CropWindow{X: 10, Y: 0, Width: 20, Height: 20}, win)
	assert.Equal(t, image.Rect(0, 0, 10, 10), dst.Bounds())
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			require.Equal(t, green, dst.NRGBAAt(x, y), "pixel %d,%d", x, y)
		}
	}
}

func TestToBuffer_KeepsFullWidthWhenTaller(t *testing.T) {
	src := NewRaster(createStripedImage(40, 40))

	dst, win, err := ToBuffer(src, 40, 10, WithKernel(Nearest))
	require.NoError(t, err)

	assert.Equal(t, 0.0, win.X)
	assert.Equal(t, 15.0, win.Y)
	assert.Equal(t, red, dst.NRGBAAt(0, 5))
	assert.Equal(t, green, dst.NRGBAAt(20, 5))
	assert.Equal(t, blue, dst.NRGBAAt(39, 5))
}

func TestToBuffer_WritesWholeBuffer(t *testing.T) {
	src := NewRaster(createStripedImage(37, 23))

	for _, k := range []Kernel{Nearest, ApproxBiLinear, BiLinear, CatmullRom} {
		t.Run(string(k), func(t *testing.T) {
			dst, _, err := ToBuffer(src, 17, 31, WithKernel(k))
			require.NoError(t, err)
			require.Equal(t, image.Rect(0, 0, 17, 31), dst.Bounds())
			for y := 0; y < 31; y++ {
				for x := 0; x < 17; x++ {
					require.NotZero(t, dst.NRGBAAt(x, y).A, "pixel %d,%d left unwritten", x, y)
				}
			}
		})
	}
}

func TestToBuffer_UnscaledCropWritesWholeBuffer(t *testing.T) {
	tests := []struct {
		name          string
		srcW, srcH    int
		width, height int
	}{
		{"wide source, square target", 48, 28, 28, 28},
		{"tall source, wide target", 40, 40, 40, 10},
		{"identical size", 12, 12, 12, 12},
	}

	for _, tt := range tests {
		for _, k := range []Kernel{Nearest, ApproxBiLinear, BiLinear, CatmullRom} {
			t.Run(tt.name+"/"+string(k), func(t *testing.T) {
				base := createStripedImage(tt.srcW, tt.srcH)
				src := NewRaster(base)

				dst, win, err := ToBuffer(src, tt.width, tt.height, WithKernel(k))
				require.NoError(t, err)
				require.Equal(t, float64(tt.width), win.Width)
				require.Equal(t, float64(tt.height), win.Height)

				x0, y0 := int(win.X), int(win.Y)
				for y := 0; y < tt.height; y++ {
					for x := 0; x < tt.width; x++ {
						require.Equal(t, base.NRGBAAt(x0+x, y0+y), dst.NRGBAAt(x, y), "pixel %d,%d", x, y)
					}
				}
			})
		}
	}
}

func TestToBuffer_RejectsOversizedTarget(t *testing.T) {
	src := NewRaster(createStripedImage(8, 8))

	for _, size := range [][2]int{{1 << 31, 1 << 31}, {40000, 40000}, {MaxPixels, 2}} {
		_, _, err := ToBuffer(src, size[0], size[1])
		assert.ErrorIs(t, err, cover.ErrInvalidDimension, "%dx%d", size[0], size[1])
	}

	_, _, err := ToBuffer(src, 8192, 1)
	assert.NoError(t, err)
}

func TestDecode_RejectsOversizedHeader(t *testing.T) {
	// A valid PNG signature and IHDR declaring 100000x100000 pixels; no pixel data follows.
	header := []byte{
		0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n',
		0x00, 0x00, 0x00, 0x0d, 'I', 'H', 'D', 'R',
		0x00, 0x01, 0x86, 0xa0, // width 100000
		0x00, 0x01, 0x86, 0xa0, // height 100000
		0x08, 0x06, 0x00, 0x00, 0x00,
		0xa8, 0x52, 0x0b, 0xc8, // IHDR CRC
	}

	_, err := Decode(bytes.NewReader(header))
	assert.ErrorIs(t, err, ErrSourceTooLarge)
}

func TestToBuffer_OffsetBounds(t *testing.T) {
	base := createStripedImage(40, 20)
	sub := base.SubImage(image.Rect(10, 0, 30, 20)) // all green, Min.X = 10

	dst, _, err := ToBuffer(NewRaster(sub), 5, 5, WithKernel(Nearest))
	require.NoError(t, err)
	assert.Equal(t, green, dst.NRGBAAt(0, 0))
	assert.Equal(t, green, dst.NRGBAAt(4, 4))
}

func TestToBuffer_Errors(t *testing.T) {
	t.Run("pending source", func(t *testing.T) {
		_, _, err := ToBuffer(Pending(), 10, 10)
		assert.ErrorIs(t, err, cover.ErrSourceUnavailable)
	})

	t.Run("zero value raster", func(t *testing.T) {
		_, _, err := ToBuffer(&Raster{}, 10, 10)
		assert.ErrorIs(t, err, cover.ErrSourceUnavailable)
	})

	t.Run("nil raster", func(t *testing.T) {
		_, _, err := ToBuffer(nil, 10, 10)
		assert.ErrorIs(t, err, cover.ErrSourceUnavailable)
	})

	t.Run("non-positive target", func(t *testing.T) {
		src := NewRaster(createStripedImage(8, 8))
		_, _, err := ToBuffer(src, 0, 10)
		assert.ErrorIs(t, err, cover.ErrInvalidDimension)
		_, _, err = ToBuffer(src, 10, -1)
		assert.ErrorIs(t, err, cover.ErrInvalidDimension)
	})
}

func TestRaster_Lifecycle(t *testing.T) {
	r := Pending()
	assert.False(t, r.Ready())
	assert.Equal(t, cover.Dimensions{}, r.NaturalSize())
	assert.Nil(t, r.Image())

	r.Resolve(createStripedImage(64, 48))
	assert.True(t, r.Ready())
	assert.Equal(t, cover.Dimensions{Width: 64, Height: 48}, r.NaturalSize())

	r.Resolve(nil)
	assert.False(t, r.Ready())
}

func TestDecode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, createStripedImage(12, 8)))

	r, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, cover.Dimensions{Width: 12, Height: 8}, r.NaturalSize())

	_, err = Decode(bytes.NewReader([]byte("not an image")))
	assert.Error(t, err)
}

func TestParseKernel(t *testing.T) {
	k, err := ParseKernel("Bilinear")
	require.NoError(t, err)
	assert.Equal(t, BiLinear, k)

	k, err = ParseKernel("")
	require.NoError(t, err)
	assert.Equal(t, DefaultKernel, k)

	_, err = ParseKernel("lanczos9")
	assert.Error(t, err)
}

func BenchmarkToBuffer(b *testing.B) {
	src := NewRaster(createStripedImage(1920, 1080))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = ToBuffer(src, 500, 500)
	}
}

func TestResizeToCover(t *testing.T) {
	src := NewRaster(createStripedImage(200, 100))

	out, err := ResizeToCover(context.Background(), src, 60, 60)
	require.NoError(t, err)
	assert.True(t, out.Ready())
	assert.Equal(t, cover.Dimensions{Width: 60, Height: 60}, out.NaturalSize())

	_, err = ResizeToCover(context.Background(), Pending(), 60, 60)
	assert.ErrorIs(t, err, cover.ErrSourceUnavailable)
}
