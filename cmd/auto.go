package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tanq16/mediastitch/internal/pipeline"
)

func newAutoCmd() *cobra.Command {
	var outputPath, title, quality, contentType string

	cmd := &cobra.Command{
		Use:   "auto [URL] [--output OUTPUT_PATH]",
		Short: "Classify a URL and download it with the matching pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSingle(pipeline.Request{
				URL:         args[0],
				Title:       title,
				Quality:     quality,
				ContentType: contentType,
			}, outputPath)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path")
	cmd.Flags().StringVar(&title, "title", "", "Title used for the generated filename")
	cmd.Flags().StringVar(&quality, "quality", "", "Quality hint")
	cmd.Flags().StringVar(&contentType, "type", "", "Content type observed for the URL, helps classification")
	return cmd
}
