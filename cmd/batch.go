package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tanq16/mediastitch/internal/output"
	"github.com/tanq16/mediastitch/internal/scheduler"
	"github.com/tanq16/mediastitch/internal/utils"
	"gopkg.in/yaml.v3"
)

// readBatch parses a YAML list of candidates, skipping entries without a URL.
func readBatch(path string) ([]utils.Candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading batch file: %w", err)
	}
	var cands []utils.Candidate
	if err := yaml.Unmarshal(data, &cands); err != nil {
		return nil, fmt.Errorf("error parsing batch file: %w", err)
	}
	valid := cands[:0]
	for i, c := range cands {
		if c.URL == "" {
			output.PrintWarning(fmt.Sprintf("Entry %d has no url, skipping", i+1))
			continue
		}
		valid = append(valid, c)
	}
	return valid, nil
}

func newBatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "batch [YAML_FILE]",
		Short: "Process multiple downloads from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cands, err := readBatch(args[0])
			if err != nil {
				return err
			}
			if len(cands) == 0 {
				return fmt.Errorf("no valid entries found in the batch file")
			}
			a, err := newApp(context.Background())
			if err != nil {
				return err
			}
			return a.run(scheduler.EntriesFromCandidates(cands))
		},
	}
}
