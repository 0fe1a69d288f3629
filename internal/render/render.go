package render

import (
	"fmt"
	"image"
	"log/slog"
	"math"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/maauso/coverkit/internal/cover"
)

// Kernel selects the resampling filter used for the blit.
type Kernel string

const (
	// Nearest picks the closest source pixel. Fastest, blocky.
	Nearest Kernel = "nearest"
	// ApproxBiLinear is a fast bilinear approximation.
	ApproxBiLinear Kernel = "approx-bilinear"
	// BiLinear is true bilinear interpolation.
	BiLinear Kernel = "bilinear"
	// CatmullRom is bicubic Catmull-Rom. Slowest, sharpest.
	CatmullRom Kernel = "catmull-rom"
)

// DefaultKernel is used when no kernel is configured.
const DefaultKernel = CatmullRom

// MaxPixels bounds the area of a destination buffer (8192x8192).
const MaxPixels = 8192 * 8192

// ParseKernel converts a configuration string into a Kernel.
func ParseKernel(s string) (Kernel, error) {
	switch k := Kernel(strings.ToLower(strings.TrimSpace(s))); k {
	case Nearest, ApproxBiLinear, BiLinear, CatmullRom:
		return k, nil
	case "":
		return DefaultKernel, nil
	default:
		return "", fmt.Errorf("unknown resample kernel %q", s)
	}
}

func (k Kernel) interpolator() draw.Interpolator {
	switch k {
	case Nearest:
		return draw.NearestNeighbor
	case ApproxBiLinear:
		return draw.ApproxBiLinear
	case BiLinear:
		return draw.BiLinear
	default:
		return draw.CatmullRom
	}
}

type options struct {
	kernel Kernel
	logger *slog.Logger
}

// Option configures ToBuffer.
type Option func(*options)

// WithKernel sets the resampling kernel.
func WithKernel(k Kernel) Option {
	return func(o *options) {
		o.kernel = k
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// ToBuffer renders the cover crop window of src into a new width x height buffer.
// It returns ErrSourceUnavailable when src is not decoded and ErrInvalidDimension
// when the target size is not positive or exceeds MaxPixels.
func ToBuffer(src *Raster, width, height int, opts ...Option) (*image.NRGBA, cover.CropWindow, error) {
	o := options{kernel: DefaultKernel, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	target := cover.Dimensions{Width: float64(width), Height: float64(height)}
	win, err := cover.FitSource(src, target)
	if err != nil {
		return nil, cover.CropWindow{}, err
	}
	if width > MaxPixels/height {
		return nil, cover.CropWindow{}, fmt.Errorf("%w: %dx%d exceeds %d pixels",
			cover.ErrInvalidDimension, width, height, MaxPixels)
	}

	img := src.Image()
	bounds := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))

	sx := target.Width / win.Width
	sy := target.Height / win.Height
	originX := float64(bounds.Min.X) + win.X
	originY := float64(bounds.Min.Y) + win.Y

	// Source-to-destination transform: translate the window origin to (0,0), then scale.
	s2d := f64.Aff3{
		sx, 0, -sx * originX,
		0, sy, -sy * originY,
	}
	sr := image.Rect(
		int(math.Floor(originX)),
		int(math.Floor(originY)),
		int(math.Ceil(originX+win.Width)),
		int(math.Ceil(originY+win.Height)),
	).Intersect(bounds)

	if sx == 1 && sy == 1 && originX == math.Trunc(originX) && originY == math.Trunc(originY) {
		// Unscaled whole-pixel crop. x/image's NearestNeighbor and ApproxBiLinear
		// shortcut pure translations through Copy with a wrong Y offset.
		x0, y0 := int(originX), int(originY)
		draw.Copy(dst, image.Point{}, img, image.Rect(x0, y0, x0+width, y0+height), draw.Src, nil)
	} else {
		o.kernel.interpolator().Transform(dst, s2d, img, sr, draw.Src, nil)
	}

	o.logger.Debug("rendered cover buffer",
		slog.Group("source", slog.Int("w", bounds.Dx()), slog.Int("h", bounds.Dy())),
		slog.Group("window",
			slog.Float64("x", win.X), slog.Float64("y", win.Y),
			slog.Float64("w", win.Width), slog.Float64("h", win.Height)),
		slog.Group("target", slog.Int("w", width), slog.Int("h", height)),
		slog.String("kernel", string(o.kernel)),
	)

	return dst, win, nil
}
