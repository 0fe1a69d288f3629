package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/maauso/coverkit/internal/export"
)

// ErrEncodingFailed is returned when an intermediate export yields no bytes.
var ErrEncodingFailed = errors.New("encoding produced an empty result")

// resizeQuality is the JPEG quality used for ResizeToCover's intermediate encode.
const resizeQuality = 0.92

// ResizeToCover renders the cover crop of src at width x height, encodes it as
// JPEG and decodes it back into a new raster.
func ResizeToCover(ctx context.Context, src *Raster, width, height int, opts ...Option) (*Raster, error) {
	buf, _, err := ToBuffer(src, width, height, opts...)
	if err != nil {
		return nil, err
	}

	res, err := export.Await(ctx, export.Buffer(buf, export.MIMETypeJPEG, resizeQuality))
	if err != nil {
		return nil, err
	}
	if res.Empty() {
		return nil, fmt.Errorf("resize to cover: %w", ErrEncodingFailed)
	}
	return Decode(bytes.NewReader(res.Data))
}
