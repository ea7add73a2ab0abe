package main

import (
	"fmt"
	"os"

	"github.com/nemaniarjun/storyengine/internal/diagnose"
	"github.com/spf13/cobra"
)

func newExplainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "explain <jsonl-file>",
		Short: "Summarize a dispatch event log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening event log: %w", err)
			}
			defer f.Close()

			report, err := diagnose.AnalyzeJSONL(f)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), report.String())
			return nil
		},
	}
}
