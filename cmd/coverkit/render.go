package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/maauso/coverkit/internal/cover"
	"github.com/maauso/coverkit/internal/export"
	"github.com/maauso/coverkit/internal/render"
)

type renderOptions struct {
	output      string
	size        string
	format      string
	quality     float64
	autoQuality bool
	kernel      string
}

func newRenderCmd(root *rootOptions) *cobra.Command {
	opts := &renderOptions{}

	cmd := &cobra.Command{
		Use:   "render [input]",
		Short: "Render an image into a cover-fitted JPEG, PNG or WebP",
		Long: `Decode an image, crop it to fill the target size without distortion and
write the encoded result.

The output format is taken from --format, or inferred from the output file
extension, or falls back to DEFAULT_FORMAT.

Examples:
  coverkit render photo.jpg -o thumb.jpg --size 500x500
  coverkit render photo.png -o banner.webp --size 1600x400 --quality 0.8
  coverkit render photo.jpg -o hero.jpg --size 1920x1080 --auto-quality --kernel bilinear`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd.Context(), cmd, root, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file (required)")
	cmd.Flags().StringVarP(&opts.size, "size", "s", "", "Target size as WxH (required)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "Output MIME type (image/jpeg, image/png, image/webp)")
	cmd.Flags().Float64VarP(&opts.quality, "quality", "q", -1, "Export quality 0-1 (default DEFAULT_QUALITY)")
	cmd.Flags().BoolVar(&opts.autoQuality, "auto-quality", false, "Pick quality from the target resolution")
	cmd.Flags().StringVarP(&opts.kernel, "kernel", "k", "", "Resampling kernel (nearest, approx-bilinear, bilinear, catmull-rom)")
	_ = cmd.MarkFlagRequired("output")
	_ = cmd.MarkFlagRequired("size")

	return cmd
}

func runRender(ctx context.Context, cmd *cobra.Command, root *rootOptions, opts *renderOptions, input string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	w, h, err := parseSize(opts.size)
	if err != nil {
		return err
	}

	format, err := resolveFormat(root, opts.format, opts.output)
	if err != nil {
		return err
	}

	kernel := root.cfg.Kernel()
	if opts.kernel != "" {
		if kernel, err = render.ParseKernel(opts.kernel); err != nil {
			return err
		}
	}

	quality := root.cfg.DefaultQuality
	switch {
	case opts.autoQuality:
		quality = export.OptimalQuality(w, h)
	case opts.quality >= 0:
		if opts.quality > 1 {
			return fmt.Errorf("quality must be between 0 and 1, got %g", opts.quality)
		}
		quality = opts.quality
	}

	src, err := render.Open(input)
	if err != nil {
		return err
	}

	buf, win, err := render.ToBuffer(src, w, h, render.WithKernel(kernel), render.WithLogger(root.logger))
	if err != nil {
		return err
	}

	res, err := export.Await(ctx, export.Buffer(buf, format, quality))
	if err != nil {
		return err
	}
	if res.Empty() {
		return fmt.Errorf("export %s: %w", format, render.ErrEncodingFailed)
	}

	if err := os.WriteFile(opts.output, res.Data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	root.logger.Debug("rendered image",
		slog.String("input", input),
		slog.String("output", opts.output),
		slog.String("kernel", string(kernel)),
		slog.Float64("quality", quality),
	)

	fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) -> %s %dx%d %s, %s\n",
		input, src.NaturalSize(), opts.output, w, h, format, humanize.Bytes(uint64(len(res.Data))))
	fmt.Fprintf(cmd.OutOrStdout(), "window x=%g y=%g width=%g height=%g, scale %.4g\n",
		win.X, win.Y, win.Width, win.Height,
		win.Scale(cover.Dimensions{Width: float64(w), Height: float64(h)}))
	return nil
}

// resolveFormat picks the explicit format, then the output extension, then
// the configured default.
func resolveFormat(root *rootOptions, explicit, output string) (string, error) {
	if explicit != "" {
		if !export.Supported(explicit) {
			return "", fmt.Errorf("unsupported format %q", explicit)
		}
		return explicit, nil
	}
	if format, err := formatForPath(output); err == nil {
		return format, nil
	}
	return root.cfg.DefaultFormat, nil
}
