package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/tanq16/mediastitch/internal/media"
	"github.com/tanq16/mediastitch/internal/pipeline"
	"github.com/tanq16/mediastitch/internal/scheduler"
)

// runSingle runs one request through the scheduler.
func runSingle(req pipeline.Request, outputPath string) error {
	a, err := newApp(context.Background())
	if err != nil {
		return err
	}
	return a.run([]scheduler.Entry{{Request: req, Output: outputPath}})
}

func newHLSCmd() *cobra.Command {
	var outputPath, title, quality string

	cmd := &cobra.Command{
		Use:   "hls [URL] [--output OUTPUT_PATH]",
		Short: "Download an HLS playlist and join its segments into an MP4",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSingle(pipeline.Request{
				URL:     args[0],
				Kind:    media.KindM3U8,
				Title:   title,
				Quality: quality,
			}, outputPath)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path")
	cmd.Flags().StringVar(&title, "title", "", "Title used for the generated filename")
	cmd.Flags().StringVar(&quality, "quality", "", "Quality hint such as 720p (re-derived from the URL when possible)")
	return cmd
}
