package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/maauso/coverkit/internal/config"
	"github.com/maauso/coverkit/internal/cover"
	"github.com/maauso/coverkit/internal/export"
)

// rootOptions is shared by every subcommand.
type rootOptions struct {
	verbose bool
	cfg     *config.Config
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "coverkit",
		Short: "Cover-fit images and pick encoder settings",
		Long: `coverkit fills a target viewport with a source image without distortion,
cropping the overflowing axis symmetrically.

Commands:
- window:  print the source crop window for a source and target size
- render:  render an image file into a cover-fitted JPEG, PNG or WebP
- video:   render a still into an H.264 MP4 of a given length
- params:  print the H.264 parameter table for a resolution
- quality: print the suggested export quality for a resolution

Defaults for format, quality, resampling and ffmpeg paths come from the same
environment variables as the server (DEFAULT_FORMAT, RESAMPLE, FFMPEG_PATH, ...).`,
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			opts.cfg = cfg

			level := slog.LevelWarn
			if opts.verbose {
				level = slog.LevelDebug
			}
			opts.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose output")

	cmd.AddCommand(
		newWindowCmd(opts),
		newRenderCmd(opts),
		newVideoCmd(opts),
		newParamsCmd(),
		newQualityCmd(),
	)
	return cmd
}

// maxSide bounds each axis of a size given on the command line.
const maxSide = 1 << 20

// parseSize parses "WxH" into whole pixel dimensions.
func parseSize(s string) (int, int, error) {
	d, err := cover.ParseDimensions(s)
	if err != nil {
		return 0, 0, err
	}
	if d.Width > maxSide || d.Height > maxSide {
		return 0, 0, fmt.Errorf("%w: %s exceeds %d pixels per side", cover.ErrInvalidDimension, s, maxSide)
	}
	w, h := int(d.Width), int(d.Height)
	if float64(w) != d.Width || float64(h) != d.Height {
		return 0, 0, fmt.Errorf("%w: %s is not a whole pixel size", cover.ErrInvalidDimension, s)
	}
	return w, h, nil
}

// formatForPath infers the export MIME type from a file extension.
func formatForPath(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return export.MIMETypeJPEG, nil
	case ".png":
		return export.MIMETypePNG, nil
	case ".webp":
		return export.MIMETypeWebP, nil
	default:
		return "", fmt.Errorf("cannot infer format from %q (use .jpg, .png or .webp, or pass --format)", path)
	}
}
