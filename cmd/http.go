package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tanq16/mediastitch/internal/media"
	"github.com/tanq16/mediastitch/internal/pipeline"
)

func newHTTPCmd() *cobra.Command {
	var outputPath, title string

	cmd := &cobra.Command{
		Use:   "http [URL] [--output OUTPUT_PATH]",
		Short: "Download a direct media file via HTTP/HTTPS",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSingle(pipeline.Request{URL: args[0], Kind: media.KindFile, Title: title}, outputPath)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path")
	cmd.Flags().StringVar(&title, "title", "", "Title used for the generated filename")
	return cmd
}
