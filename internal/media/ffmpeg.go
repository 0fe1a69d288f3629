package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/maauso/coverkit/internal/cover"
)

// Compile-time check that FFmpegProcessor implements Processor.
var _ Processor = (*FFmpegProcessor)(nil)

// Static errors for media operations.
var (
	// ErrInvalidDimensions is returned when the provided dimensions are not positive.
	ErrInvalidDimensions = errors.New("invalid dimensions: width and height must be positive")
	// ErrInvalidDuration is returned when duration is not positive.
	ErrInvalidDuration = errors.New("invalid duration: must be positive")
	// ErrInvalidFrameRate is returned when an image sequence is encoded without a frame rate.
	ErrInvalidFrameRate = errors.New("invalid frame rate: must be positive")
	// ErrNoVideoStream is returned when a probed file has no video stream.
	ErrNoVideoStream = errors.New("no video stream found")
)

// FFmpegProcessor implements Processor using the ffmpeg and ffprobe CLIs.
type FFmpegProcessor struct {
	ffmpegPath  string
	ffprobePath string
}

// NewFFmpegProcessor creates a new FFmpegProcessor.
// Empty paths default to "ffmpeg" and "ffprobe" (found via PATH).
func NewFFmpegProcessor(ffmpegPath, ffprobePath string) *FFmpegProcessor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegProcessor{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// ResizeImageToCover scales src to exactly w x h. The crop window is computed
// from the probed source size so the result matches render.ToBuffer.
func (p *FFmpegProcessor) ResizeImageToCover(ctx context.Context, src, dst string, w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, w, h)
	}

	size, err := p.Probe(ctx, src)
	if err != nil {
		return fmt.Errorf("probe source: %w", err)
	}

	target := cover.Dimensions{Width: float64(w), Height: float64(h)}
	win, err := cover.Fit(size, target)
	if err != nil {
		return err
	}

	args := []string{
		"-y",      // Overwrite output file without asking
		"-i", src, // Input file
		"-vf", win.FFmpegFilter(target), // Crop window, then stretch onto target
		"-frames:v", "1", // Output single frame (image)
		dst,
	}
	return p.runFFmpeg(ctx, args)
}

// EncodeFrames encodes an image sequence into output using params.
func (p *FFmpegProcessor) EncodeFrames(ctx context.Context, pattern, output string, params EncodingParams) error {
	if params.FPS <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidFrameRate, params.FPS)
	}
	if params.Width <= 0 || params.Height <= 0 {
		return fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, params.Width, params.Height)
	}

	args := []string{
		"-y",
		"-framerate", fmt.Sprint(params.FPS), // Input frame rate
		"-i", pattern,
		"-vf", fmt.Sprintf("scale=%d:%d", params.Width, params.Height),
	}
	args = append(args, params.Args()...)
	args = append(args, "-movflags", "+faststart", output)

	return p.runFFmpeg(ctx, args)
}

// EncodeStill encodes a single image into a video of the given duration.
func (p *FFmpegProcessor) EncodeStill(ctx context.Context, imagePath, output string, duration float64, params EncodingParams) error {
	if duration <= 0 {
		return fmt.Errorf("%w: got %.2f", ErrInvalidDuration, duration)
	}
	if params.Width <= 0 || params.Height <= 0 {
		return fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, params.Width, params.Height)
	}

	args := []string{
		"-y",
		"-loop", "1", // Loop the input image
		"-i", imagePath,
		"-t", fmt.Sprintf("%.2f", duration),
		"-vf", fmt.Sprintf("scale=%d:%d", params.Width, params.Height),
	}
	args = append(args, params.Args()...)
	args = append(args, output)

	return p.runFFmpeg(ctx, args)
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (p *FFmpegProcessor) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}
	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
