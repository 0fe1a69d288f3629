package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/maauso/coverkit/internal/export"
)

func newQualityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quality [WxH]",
		Short: "Print the suggested export quality for a resolution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, h, err := parseSize(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%dx%d (%s pixels): quality %.2f\n",
				w, h, humanize.Comma(int64(w*h)), export.OptimalQuality(w, h))
			return nil
		},
	}
}
