package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eringen/sitegen/packager"
)

var packLevel int

var packCmd = &cobra.Command{
	Use:   "pack <dir> <out.zip>",
	Short: "Package a directory into a deterministic zip archive",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		arc, err := packager.Packager{Level: packLevel}.Pack(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d entries, %d bytes, sha256 %s\n",
			arc.Path, len(arc.Entries), arc.Size, arc.SHA256)
		return nil
	},
}

func init() {
	packCmd.Flags().IntVar(&packLevel, "level", 0, "Deflate level 1-9 (default best compression)")
}
