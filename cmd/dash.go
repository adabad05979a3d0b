package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tanq16/mediastitch/internal/media"
	"github.com/tanq16/mediastitch/internal/pipeline"
)

func newDASHCmd() *cobra.Command {
	var outputPath, title, quality, videoURL, audioURL string

	cmd := &cobra.Command{
		Use:   "dash --video URL --audio URL [--output OUTPUT_PATH]",
		Short: "Download separate video and audio fragment streams and merge them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSingle(pipeline.Request{
				URL:      videoURL,
				AudioURL: audioURL,
				Kind:     media.KindDASH,
				Title:    title,
				Quality:  quality,
			}, outputPath)
		},
	}

	cmd.Flags().StringVar(&videoURL, "video", "", "Video stream URL")
	cmd.Flags().StringVar(&audioURL, "audio", "", "Audio stream URL")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path")
	cmd.Flags().StringVar(&title, "title", "", "Title used for the generated filename")
	cmd.Flags().StringVar(&quality, "quality", "", "Quality hint such as 1080p")
	cmd.MarkFlagRequired("video")
	cmd.MarkFlagRequired("audio")
	return cmd
}
