package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"
	"github.com/tanq16/mediastitch/internal/bmff"
	"github.com/tanq16/mediastitch/internal/output"
)

func newPatchDurationCmd() *cobra.Command {
	var seconds float64

	cmd := &cobra.Command{
		Use:   "patch-duration [FILE] --seconds N",
		Short: "Rewrite the movie, track and media header durations of an MP4",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if seconds <= 0 {
				return fmt.Errorf("--seconds must be positive")
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("error reading file: %w", err)
			}
			patched := bmff.PatchDuration(data, seconds)
			if bytes.Equal(patched, data) {
				output.PrintWarning("No moov/mvhd to patch, file left unchanged")
				return nil
			}
			if err := renameio.WriteFile(args[0], patched, 0644); err != nil {
				return fmt.Errorf("error writing file: %w", err)
			}
			output.PrintSuccess(fmt.Sprintf("Patched %s to %.3fs", args[0], seconds))
			return nil
		},
	}

	cmd.Flags().Float64Var(&seconds, "seconds", 0, "Duration in seconds")
	cmd.MarkFlagRequired("seconds")
	return cmd
}
