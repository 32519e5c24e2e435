package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Show the fused analysis of one catalog track",
	RunE:  runAnalyze,
}

var analyzeTrack string

func init() {
	analyzeCmd.Flags().StringVar(&analyzeTrack, "track", "", "Catalog id of the track (required)")
	if err := analyzeCmd.MarkFlagRequired("track"); err != nil {
		panic(fmt.Sprintf("failed to mark track flag as required: %v", err))
	}
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	a, cleanup, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	catalog, err := catalogFor(a)
	if err != nil {
		return err
	}

	analysis, err := a.Analyzer.Analyze(cmd.Context(), catalog, analyzeTrack)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), analysis)
}
