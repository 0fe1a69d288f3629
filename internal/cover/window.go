package cover

import (
	"fmt"
	"image"
	"math"
)

// CropWindow is a rectangle in source coordinates.
type CropWindow struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Size returns the window's width and height.
func (w CropWindow) Size() Dimensions {
	return Dimensions{Width: w.Width, Height: w.Height}
}

// Within reports whether the window lies inside src, allowing Epsilon of slack.
func (w CropWindow) Within(src Dimensions) bool {
	return w.X >= -Epsilon && w.Y >= -Epsilon &&
		w.X+w.Width <= src.Width+Epsilon &&
		w.Y+w.Height <= src.Height+Epsilon
}

// Scale returns the factor applied to the window when it is stretched onto dst.
// Both axes share the same factor.
func (w CropWindow) Scale(dst Dimensions) float64 {
	return dst.Width / w.Width
}

// Rect rounds the window to whole pixels, clamped to bounds.
func (w CropWindow) Rect(bounds image.Rectangle) image.Rectangle {
	x0 := bounds.Min.X + int(math.Round(w.X))
	y0 := bounds.Min.Y + int(math.Round(w.Y))
	x1 := bounds.Min.X + int(math.Round(w.X+w.Width))
	y1 := bounds.Min.Y + int(math.Round(w.Y+w.Height))
	return image.Rect(x0, y0, x1, y1).Intersect(bounds)
}

// FFmpegFilter returns a crop+scale video filter that applies the window and
// stretches it onto dst.
func (w CropWindow) FFmpegFilter(dst Dimensions) string {
	r := w.Rect(image.Rect(0, 0, math.MaxInt32, math.MaxInt32))
	return fmt.Sprintf("crop=%d:%d:%d:%d,scale=%d:%d",
		r.Dx(), r.Dy(), r.Min.X, r.Min.Y,
		int(math.Round(dst.Width)), int(math.Round(dst.Height)))
}
