package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/luma/cmdmessenger/internal/meta"
)

var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		info := meta.GetInfo()

		fmt.Fprintf(cmd.OutOrStdout(), "cmdmessenger %s\n", info.String())
	},
}
