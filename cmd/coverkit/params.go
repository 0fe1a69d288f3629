package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/maauso/coverkit/internal/media"
)

func newParamsCmd() *cobra.Command {
	var fps int

	cmd := &cobra.Command{
		Use:   "params [WxH]",
		Short: "Print the H.264 encoder parameters for a resolution",
		Long: `Print bitrate, maxrate, bufsize and the ffmpeg flags used to encode a
video of the given resolution. The bitrate does not depend on the frame rate.

Examples:
  coverkit params 1920x1080
  coverkit params 1280x720 --fps 30`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, h, err := parseSize(args[0])
			if err != nil {
				return err
			}
			if fps < 0 {
				return fmt.Errorf("fps must not be negative, got %d", fps)
			}

			p := media.EncodingParamsFor(w, h, fps)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Resolution:  %dx%d (%s pixels)\n", p.Width, p.Height, humanize.Comma(int64(w*h)))
			fmt.Fprintf(out, "Bitrate:     %dk\n", p.BitrateKbps)
			fmt.Fprintf(out, "Maxrate:     %gk\n", p.MaxrateKbps)
			fmt.Fprintf(out, "Bufsize:     %dk\n", p.BufsizeKbps)
			fmt.Fprintf(out, "CRF:         %d\n", p.CRF)
			fmt.Fprintf(out, "Container:   %s\n", p.MIMEType)
			fmt.Fprintf(out, "Args:        %s\n", strings.Join(p.Args(), " "))
			return nil
		},
	}

	cmd.Flags().IntVar(&fps, "fps", 0, "Output frame rate (adds -r when set)")
	return cmd
}
