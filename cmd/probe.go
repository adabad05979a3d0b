package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tanq16/mediastitch/internal/bmff"
	"github.com/tanq16/mediastitch/internal/output"
	"github.com/tanq16/mediastitch/internal/tsprobe"
)

func probeReport(path string, data []byte) []string {
	r := tsprobe.Probe(data)
	if r.SyncOK {
		source := "pmt"
		if r.FromScan {
			source = "bitstream scan"
		}
		return []string{
			fmt.Sprintf("%s: transport stream, sync at %d", path, r.SyncOffset),
			fmt.Sprintf("  pmt pid 0x%04x, stream types % x", r.PMTPID, r.StreamTypes),
			fmt.Sprintf("  video codec %s (from %s)", r.VideoCodec, source),
		}
	}
	boxes := bmff.Parse(data, 0, len(data))
	if len(boxes) == 0 {
		return []string{fmt.Sprintf("%s: not a transport stream or mp4 file", path)}
	}
	lines := []string{fmt.Sprintf("%s: mp4, %d top-level boxes", path, len(boxes))}
	for _, b := range boxes {
		lines = append(lines, fmt.Sprintf("  %s at %d, %d bytes", b, b.Offset, b.Size))
	}
	if s := bmff.SidxDurationSeconds(data); s > 0 {
		lines = append(lines, fmt.Sprintf("  sidx duration %.3fs", s))
	}
	return lines
}

func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe [FILE...]",
		Short: "Report packet alignment and video codec of TS segments, or the box layout of MP4 files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					output.PrintError(fmt.Sprintf("%s: %v", path, err))
					failed++
					continue
				}
				report := probeReport(path, data)
				output.PrintHeader(report[0])
				for _, l := range report[1:] {
					output.PrintDetail(l)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d file(s) could not be read", failed)
			}
			return nil
		},
	}
}
