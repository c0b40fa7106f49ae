package gen

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
)

var markdownDir string

var MarkdownCmd = &cobra.Command{
	Use:   "markdown",
	Short: "Generate markdown reference pages for cmdmessenger",
	Long: `Writes one markdown page per command, linked to each other, to the
"docs" directory under the current directory unless --dir is given.`,
	Args: cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		if err := os.MkdirAll(markdownDir, 0750); err != nil {
			return err
		}

		cmd.Root().DisableAutoGenTag = true

		if err := doc.GenMarkdownTree(cmd.Root(), markdownDir); err != nil {
			return fmt.Errorf("Failed to generate markdown in %s: %w", markdownDir, err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Wrote markdown pages to", markdownDir)
		return nil
	},
}

func init() {
	flags := MarkdownCmd.PersistentFlags()

	flags.StringVar(&markdownDir, "dir", "docs/", "the directory to write the markdown pages.")

	if err := flags.SetAnnotation("dir", cobra.BashCompSubdirsInDir, []string{}); err != nil {
		panic(err)
	}
}
