// Package export serializes rendered buffers into encoded image bytes.
package export

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"
	"strings"

	"github.com/chai2010/webp"
)

// Supported MIME types.
const (
	MIMETypeJPEG = "image/jpeg"
	MIMETypePNG  = "image/png"
	MIMETypeWebP = "image/webp"
)

// Defaults applied when the caller does not choose a format or quality.
const (
	DefaultMIMEType = MIMETypeJPEG
	DefaultQuality  = 0.9
)

// Result is the outcome of an export. An empty result means the export failed.
type Result struct {
	MIMEType string
	Data     []byte
}

// Empty reports whether the export produced no bytes.
func (r Result) Empty() bool {
	return len(r.Data) == 0
}

// Supported reports whether mimeType can be exported.
func Supported(mimeType string) bool {
	switch normalize(mimeType) {
	case MIMETypeJPEG, MIMETypePNG, MIMETypeWebP:
		return true
	}
	return false
}

// Extension returns the file extension for mimeType, without the dot.
func Extension(mimeType string) string {
	switch normalize(mimeType) {
	case MIMETypePNG:
		return "png"
	case MIMETypeWebP:
		return "webp"
	default:
		return "jpg"
	}
}

// Buffer encodes img as mimeType in the background.
//
// The returned channel receives exactly one Result and is then closed. Quality is
// in [0,1] and only affects lossy formats. Unsupported formats, a nil image or an
// encoder failure all yield an empty Result; Buffer never retries.
func Buffer(img image.Image, mimeType string, quality float64) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		ch <- encode(img, mimeType, quality)
	}()
	return ch
}

// Await waits for the export on ch. Cancelling ctx stops the wait, not the encoder.
func Await(ctx context.Context, ch <-chan Result) (Result, error) {
	select {
	case res := <-ch:
		return res, nil
	case <-ctx.Done():
		return Result{}, fmt.Errorf("await export: %w", ctx.Err())
	}
}

// Encode is the synchronous form of Buffer.
func Encode(img image.Image, mimeType string, quality float64) Result {
	return encode(img, mimeType, quality)
}

func encode(img image.Image, mimeType string, quality float64) (res Result) {
	if img == nil || img.Bounds().Empty() {
		return Result{}
	}
	mt := normalize(mimeType)

	// Codecs can panic on degenerate images; a panic is an empty result like any other failure.
	defer func() {
		if recover() != nil {
			res = Result{}
		}
	}()

	var buf bytes.Buffer
	var err error
	switch mt {
	case MIMETypeJPEG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: percent(quality)})
	case MIMETypePNG:
		err = png.Encode(&buf, img)
	case MIMETypeWebP:
		err = webp.Encode(&buf, img, &webp.Options{Quality: float32(percent(quality))})
	default:
		return Result{}
	}
	if err != nil || buf.Len() == 0 {
		return Result{}
	}
	return Result{MIMEType: mt, Data: buf.Bytes()}
}

// percent maps a [0,1] quality onto the 1..100 scale used by the codecs.
func percent(quality float64) int {
	if math.IsNaN(quality) {
		quality = DefaultQuality
	}
	q := int(math.Round(clamp(quality, 0, 1) * 100))
	if q < 1 {
		q = 1
	}
	return q
}

func normalize(mimeType string) string {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if mt == "image/jpg" {
		return MIMETypeJPEG
	}
	return mt
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
