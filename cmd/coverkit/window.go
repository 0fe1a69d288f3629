package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/maauso/coverkit/internal/cover"
)

func newWindowCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "window [source WxH] [target WxH]",
		Short: "Print the cover crop window for a source and target size",
		Long: `Print the source rectangle that fills the target without distortion.

Examples:
  coverkit window 1920x1080 500x500
  coverkit window 800x600 1600x900 --json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := cover.ParseDimensions(args[0])
			if err != nil {
				return fmt.Errorf("source: %w", err)
			}
			dst, err := cover.ParseDimensions(args[1])
			if err != nil {
				return fmt.Errorf("target: %w", err)
			}

			win, err := cover.Fit(src, dst)
			if err != nil {
				return err
			}
			opts.logger.Debug("computed crop window",
				slog.String("source", src.String()),
				slog.String("target", dst.String()),
			)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(win)
			}

			fmt.Fprintf(out, "Source:  %s\n", src)
			fmt.Fprintf(out, "Target:  %s\n", dst)
			fmt.Fprintf(out, "Window:  x=%g y=%g width=%g height=%g\n", win.X, win.Y, win.Width, win.Height)
			fmt.Fprintf(out, "Scale:   %.6g\n", win.Scale(dst))
			fmt.Fprintf(out, "Filter:  %s\n", win.FFmpegFilter(dst))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the window as JSON")
	return cmd
}
