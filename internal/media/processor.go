// Package media wraps ffmpeg for cover-cropping still images and encoding
// rendered frames into video, and derives the encoder parameter table.
package media

import (
	"context"

	"github.com/maauso/coverkit/internal/cover"
)

// Processor defines the ffmpeg-backed media operations.
type Processor interface {
	// ResizeImageToCover scales src to exactly w x h, cropping the overflowing
	// axis symmetrically so no padding is added. The result is written to dst.
	ResizeImageToCover(ctx context.Context, src, dst string, w, h int) error

	// EncodeFrames encodes an image sequence (an ffmpeg input pattern such as
	// "frame_%05d.png") into output using params.
	EncodeFrames(ctx context.Context, pattern, output string, params EncodingParams) error

	// EncodeStill encodes a single image into a video of the given duration.
	EncodeStill(ctx context.Context, imagePath, output string, duration float64, params EncodingParams) error

	// Probe returns the dimensions of the first video stream in path.
	Probe(ctx context.Context, path string) (cover.Dimensions, error)
}
