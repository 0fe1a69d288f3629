// Package render blits the cover crop window of a source raster into a
// destination buffer of exact target size.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"os"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // registers the WebP decoder

	"github.com/maauso/coverkit/internal/cover"
)

// MaxSourcePixels bounds the declared area of an image accepted by Decode.
const MaxSourcePixels = 16384 * 16384

// ErrSourceTooLarge is returned when an encoded image declares more than MaxSourcePixels.
var ErrSourceTooLarge = errors.New("source image exceeds the pixel limit")

// Compile-time check that Raster implements cover.Source.
var _ cover.Source = (*Raster)(nil)

// Raster is a source image that may still be loading.
// The zero value is a raster that is not ready.
type Raster struct {
	img     image.Image
	pending bool
}

// NewRaster wraps a decoded image.
func NewRaster(img image.Image) *Raster {
	return &Raster{img: img}
}

// Pending returns a raster placeholder whose pixels have not arrived yet.
func Pending() *Raster {
	return &Raster{pending: true}
}

// Decode reads an encoded image, applying EXIF orientation when present.
// Images whose header declares more than MaxSourcePixels are rejected before
// any pixels are decoded.
func Decode(r io.Reader) (*Raster, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil && cfg.Height > 0 &&
		cfg.Width > MaxSourcePixels/cfg.Height {
		return nil, fmt.Errorf("%w: %dx%d", ErrSourceTooLarge, cfg.Width, cfg.Height)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return NewRaster(img), nil
}

// Open decodes the image stored at path.
func Open(path string) (*Raster, error) {
	f, err := os.Open(path) // #nosec G304 - path is supplied by the operator
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Decode(f)
}

// Ready reports whether the raster holds decoded pixels.
func (r *Raster) Ready() bool {
	return r != nil && !r.pending && r.img != nil
}

// NaturalSize returns the decoded size, or zero dimensions when not ready.
func (r *Raster) NaturalSize() cover.Dimensions {
	if !r.Ready() {
		return cover.Dimensions{}
	}
	b := r.img.Bounds()
	return cover.Dimensions{Width: float64(b.Dx()), Height: float64(b.Dy())}
}

// Image returns the underlying image, nil when not ready.
func (r *Raster) Image() image.Image {
	if !r.Ready() {
		return nil
	}
	return r.img
}

// Resolve supplies the decoded image for a pending raster.
func (r *Raster) Resolve(img image.Image) {
	r.img = img
	r.pending = img == nil
}
