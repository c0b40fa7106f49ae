package gen

import (
	"github.com/spf13/cobra"
)

var RootCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate documentation for cmdmessenger",
	Long: `Generate man pages or markdown reference pages for cmdmessenger and
its subcommands, e.g. for packaging or a project wiki.`,
	Args: cobra.NoArgs,
}

func init() {
	RootCmd.AddCommand(ManPagesCmd)
	RootCmd.AddCommand(MarkdownCmd)
}
