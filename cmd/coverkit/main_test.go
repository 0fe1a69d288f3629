package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/coverkit/internal/cover"
	"github.com/maauso/coverkit/internal/render"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writePNG(t *testing.T, w, h int) string {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 4), G: uint8(y * 4), B: 128, A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "src.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func TestWindowCmd(t *testing.T) {
	out, err := execute(t, "window", "1920x1080", "500x500")
	require.NoError(t, err)

	assert.Contains(t, out, "Window:  x=420 y=0 width=1080 height=1080")
	assert.Contains(t, out, "Filter:  crop=1080:1080:420:0,scale=500:500")
}

func TestWindowCmd_JSON(t *testing.T) {
	out, err := execute(t, "window", "800x600", "1600x900", "--json")
	require.NoError(t, err)

	assert.JSONEq(t, `{"x":0,"y":75,"width":800,"height":450}`, out)
}

func TestWindowCmd_Invalid(t *testing.T) {
	_, err := execute(t, "window", "0x1080", "500x500")
	require.Error(t, err)
	assert.ErrorIs(t, err, cover.ErrInvalidDimension)

	_, err = execute(t, "window", "1920x1080")
	assert.Error(t, err)
}

func TestParamsCmd(t *testing.T) {
	out, err := execute(t, "params", "1920x1080", "--fps", "30")
	require.NoError(t, err)

	assert.Contains(t, out, "Bitrate:     50000k")
	assert.Contains(t, out, "Maxrate:     75000k")
	assert.Contains(t, out, "Bufsize:     100000k")
	assert.Contains(t, out, "-crf 18 -r 30")
}

func TestParamsCmd_Errors(t *testing.T) {
	_, err := execute(t, "params", "1920x1080.5")
	assert.ErrorIs(t, err, cover.ErrInvalidDimension)

	_, err = execute(t, "params", "1920x1080", "--fps", "-1")
	assert.Error(t, err)

	_, err = execute(t, "params", "1e30x1080")
	assert.ErrorIs(t, err, cover.ErrInvalidDimension)
}

func TestQualityCmd(t *testing.T) {
	tests := []struct {
		size string
		want string
	}{
		{"800x600", "quality 0.95"},
		{"1000x600", "quality 0.90"},
		{"1920x1080", "quality 0.85"},
	}

	for _, tt := range tests {
		t.Run(tt.size, func(t *testing.T) {
			out, err := execute(t, "quality", tt.size)
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestRenderCmd(t *testing.T) {
	src := writePNG(t, 64, 36)
	dst := filepath.Join(t.TempDir(), "out.png")

	out, err := execute(t, "render", src, "-o", dst, "--size", "16x16", "--kernel", "nearest")
	require.NoError(t, err)
	assert.Contains(t, out, "image/png")
	assert.Contains(t, out, "window x=14 y=0 width=36 height=36")

	raster, err := render.Open(dst)
	require.NoError(t, err)
	assert.Equal(t, cover.Dimensions{Width: 16, Height: 16}, raster.NaturalSize())
}

func TestRenderCmd_FormatFallsBackToDefault(t *testing.T) {
	src := writePNG(t, 40, 40)
	dst := filepath.Join(t.TempDir(), "out.bin")

	out, err := execute(t, "render", src, "-o", dst, "--size", "20x10", "--auto-quality")
	require.NoError(t, err)
	assert.Contains(t, out, "image/jpeg")

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD8}, data[:2])
}

func TestRenderCmd_Errors(t *testing.T) {
	src := writePNG(t, 40, 40)
	dir := t.TempDir()

	tests := []struct {
		name string
		args []string
	}{
		{"missing size", []string{"render", src, "-o", filepath.Join(dir, "a.jpg")}},
		{"missing output", []string{"render", src, "--size", "10x10"}},
		{"bad size", []string{"render", src, "-o", filepath.Join(dir, "b.jpg"), "--size", "10"}},
		{"bad format", []string{"render", src, "-o", filepath.Join(dir, "c.jpg"), "--size", "10x10", "--format", "image/gif"}},
		{"bad quality", []string{"render", src, "-o", filepath.Join(dir, "d.jpg"), "--size", "10x10", "--quality", "2"}},
		{"bad kernel", []string{"render", src, "-o", filepath.Join(dir, "e.jpg"), "--size", "10x10", "--kernel", "lanczos"}},
		{"missing input", []string{"render", filepath.Join(dir, "nope.png"), "-o", filepath.Join(dir, "f.jpg"), "--size", "10x10"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestVideoCmd(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}

	src := writePNG(t, 64, 36)
	dst := filepath.Join(t.TempDir(), "out.mp4")

	out, err := execute(t, "video", src, "-o", dst, "--size", "32x32", "--duration", "1", "--fps", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "32x32 video/mp4, 15000k bitrate")

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestVideoCmd_InvalidSize(t *testing.T) {
	src := writePNG(t, 64, 36)

	_, err := execute(t, "video", src, "-o", filepath.Join(t.TempDir(), "out.mp4"), "--size", "0x32")
	assert.ErrorIs(t, err, cover.ErrInvalidDimension)
}

func TestFormatForPath(t *testing.T) {
	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{"a.jpg", "image/jpeg", false},
		{"a.JPEG", "image/jpeg", false},
		{"dir/a.png", "image/png", false},
		{"a.webp", "image/webp", false},
		{"a.gif", "", true},
		{"noext", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := formatForPath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
