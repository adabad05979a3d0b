package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tanq16/mediastitch/internal/output"
	"github.com/tanq16/mediastitch/internal/utils"
)

func newCleanCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "clean [--output OUTPUT_PATH]",
		Short: "Clean up temporary files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if outputPath != "" {
				err = utils.CleanFunction(outputPath)
			} else {
				err = utils.CleanTempDir(cfg.OutputDir)
			}
			if err != nil {
				return err
			}
			output.PrintSuccess("Temporary files cleaned up")
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Clean only the leftovers of this output path")
	return cmd
}
