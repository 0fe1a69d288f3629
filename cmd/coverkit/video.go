package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/maauso/coverkit/internal/export"
	"github.com/maauso/coverkit/internal/media"
	"github.com/maauso/coverkit/internal/render"
)

type videoOptions struct {
	output     string
	size       string
	duration   float64
	fps        int
	frames     bool
	withFFmpeg bool
}

func newVideoCmd(root *rootOptions) *cobra.Command {
	opts := &videoOptions{}

	cmd := &cobra.Command{
		Use:   "video [input]",
		Short: "Encode a cover-fitted still or frame sequence into an MP4",
		Long: `Crop an image to fill the target size and encode it as an H.264 MP4 using
the encoder parameter table for that resolution.

By default the crop is rendered in-process. --ffmpeg-crop lets ffmpeg apply the
crop instead. With --frames the input is an ffmpeg image sequence pattern
(for example frames/%04d.png) that is encoded at --fps without cropping.

Examples:
  coverkit video poster.jpg -o intro.mp4 --size 1280x720 --duration 5
  coverkit video poster.jpg -o intro.mp4 --size 1080x1920 --duration 3 --fps 30 --ffmpeg-crop
  coverkit video 'frames/%04d.png' -o clip.mp4 --size 1280x720 --fps 25 --frames`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runVideo(ctx, cmd, root, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output MP4 file (required)")
	cmd.Flags().StringVarP(&opts.size, "size", "s", "", "Target size as WxH (required)")
	cmd.Flags().Float64VarP(&opts.duration, "duration", "d", 5, "Length of a still video in seconds")
	cmd.Flags().IntVar(&opts.fps, "fps", 0, "Output frame rate")
	cmd.Flags().BoolVar(&opts.frames, "frames", false, "Treat input as an image sequence pattern")
	cmd.Flags().BoolVar(&opts.withFFmpeg, "ffmpeg-crop", false, "Let ffmpeg apply the cover crop")
	_ = cmd.MarkFlagRequired("output")
	_ = cmd.MarkFlagRequired("size")

	return cmd
}

func runVideo(ctx context.Context, cmd *cobra.Command, root *rootOptions, opts *videoOptions, input string) error {
	w, h, err := parseSize(opts.size)
	if err != nil {
		return err
	}
	if opts.fps < 0 {
		return fmt.Errorf("fps must not be negative, got %d", opts.fps)
	}

	proc := media.NewFFmpegProcessor(root.cfg.FFmpegPath, root.cfg.FFprobePath)
	params := media.EncodingParamsFor(w, h, opts.fps)

	if opts.frames {
		if err := proc.EncodeFrames(ctx, input, opts.output, params); err != nil {
			return err
		}
		return reportVideo(cmd, opts.output, params)
	}

	tmpDir, err := os.MkdirTemp("", "coverkit-video-*")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	still := filepath.Join(tmpDir, "still.png")
	if opts.withFFmpeg {
		err = proc.ResizeImageToCover(ctx, input, still, w, h)
	} else {
		err = renderStill(ctx, root, input, still, w, h)
	}
	if err != nil {
		return err
	}

	root.logger.Debug("encoding still",
		slog.String("still", still),
		slog.Float64("duration", opts.duration),
		slog.Int("bitrate_kbps", params.BitrateKbps),
	)

	if err := proc.EncodeStill(ctx, still, opts.output, opts.duration, params); err != nil {
		return err
	}
	return reportVideo(cmd, opts.output, params)
}

// renderStill writes the cover crop of input as a lossless PNG.
func renderStill(ctx context.Context, root *rootOptions, input, output string, w, h int) error {
	src, err := render.Open(input)
	if err != nil {
		return err
	}
	buf, _, err := render.ToBuffer(src, w, h, render.WithKernel(root.cfg.Kernel()), render.WithLogger(root.logger))
	if err != nil {
		return err
	}
	res, err := export.Await(ctx, export.Buffer(buf, export.MIMETypePNG, 1))
	if err != nil {
		return err
	}
	if res.Empty() {
		return fmt.Errorf("export still: %w", render.ErrEncodingFailed)
	}
	return os.WriteFile(output, res.Data, 0o644)
}

func reportVideo(cmd *cobra.Command, output string, params media.EncodingParams) error {
	info, err := os.Stat(output)
	if err != nil {
		return fmt.Errorf("stat output: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %dx%d %s, %dk bitrate, %s\n",
		output, params.Width, params.Height, params.MIMEType, params.BitrateKbps, humanize.Bytes(uint64(info.Size())))
	return nil
}
