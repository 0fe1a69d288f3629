// Package cover computes "cover" crop windows: the largest centered region of a
// source raster that has the target's aspect ratio, so that stretching it onto the
// target fills it completely without distortion.
package cover

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Static errors for crop window computation.
var (
	// ErrInvalidDimension is returned when a width or height is zero, negative,
	// NaN or infinite.
	ErrInvalidDimension = errors.New("invalid dimension: width and height must be positive and finite")
	// ErrSourceUnavailable is returned when the source raster is not fully available yet.
	ErrSourceUnavailable = errors.New("source unavailable: raster is not ready")
)

// Epsilon is the tolerance used when comparing crop window geometry.
const Epsilon = 1e-6

// Dimensions is a width/height pair in pixels.
type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Validate returns ErrInvalidDimension unless both components are positive and finite.
func (d Dimensions) Validate() error {
	if !positive(d.Width) || !positive(d.Height) {
		return fmt.Errorf("%w: width=%v, height=%v", ErrInvalidDimension, d.Width, d.Height)
	}
	return nil
}

// Ratio returns Width / Height.
func (d Dimensions) Ratio() float64 {
	return d.Width / d.Height
}

// String formats the dimensions as WxH.
func (d Dimensions) String() string {
	return strconv.FormatFloat(d.Width, 'f', -1, 64) + "x" + strconv.FormatFloat(d.Height, 'f', -1, 64)
}

// ParseDimensions parses "WxH" (for example "1920x1080").
func ParseDimensions(s string) (Dimensions, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return Dimensions{}, fmt.Errorf("%w: %q is not WxH", ErrInvalidDimension, s)
	}
	width, err := strconv.ParseFloat(w, 64)
	if err != nil {
		return Dimensions{}, fmt.Errorf("%w: width %q: %w", ErrInvalidDimension, w, err)
	}
	height, err := strconv.ParseFloat(h, 64)
	if err != nil {
		return Dimensions{}, fmt.Errorf("%w: height %q: %w", ErrInvalidDimension, h, err)
	}
	d := Dimensions{Width: width, Height: height}
	if err := d.Validate(); err != nil {
		return Dimensions{}, err
	}
	return d, nil
}

// Source is a raster whose natural size can be read once it is ready.
type Source interface {
	// NaturalSize returns the decoded size of the raster.
	NaturalSize() Dimensions
	// Ready reports whether the raster is fully decoded.
	Ready() bool
}

// Fit computes the crop window of src that maps onto the whole of dst while
// preserving src's aspect ratio.
//
// When src is relatively wider than dst the full height is kept and the width is
// cropped symmetrically. Otherwise, including when both ratios are equal, the full
// width is kept and the height is cropped symmetrically.
func Fit(src, dst Dimensions) (CropWindow, error) {
	if err := src.Validate(); err != nil {
		return CropWindow{}, fmt.Errorf("source: %w", err)
	}
	if err := dst.Validate(); err != nil {
		return CropWindow{}, fmt.Errorf("target: %w", err)
	}

	sourceRatio := src.Ratio()
	targetRatio := dst.Ratio()

	var w CropWindow
	if sourceRatio > targetRatio {
		w.Height = src.Height
		w.Width = w.Height * targetRatio
		w.X = (src.Width - w.Width) / 2
		w.Y = 0
	} else {
		w.Width = src.Width
		w.Height = w.Width / targetRatio
		w.X = 0
		w.Y = (src.Height - w.Height) / 2
	}
	return w, nil
}

// FitSource is Fit for a Source that may not be decoded yet.
func FitSource(src Source, dst Dimensions) (CropWindow, error) {
	if src == nil || !src.Ready() {
		return CropWindow{}, ErrSourceUnavailable
	}
	return Fit(src.NaturalSize(), dst)
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1) && !math.IsNaN(v)
}
