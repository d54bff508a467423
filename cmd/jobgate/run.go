package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/marcus/jobgate/internal/types"
)

var runCmd = &cobra.Command{
	Use:   "run <run-id>",
	Short: "Execute an eligible pipeline run",
	Long: "Drive an eligible run through the configured stages until it " +
		"completes, is rejected, fails, or parks for manual review.",
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

var runAllCmd = &cobra.Command{
	Use:   "run-eligible",
	Short: "Execute every eligible run",
	RunE:  runRunEligible,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(runAllCmd)
}

func runRun(_ *cobra.Command, args []string) error {
	runID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", args[0], err)
	}

	ctx := cmdContext()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	status, err := a.orch.Start(ctx, runID)
	if err != nil {
		return err
	}
	fmt.Printf("run %s: %s\n", runID, status)
	return nil
}

func runRunEligible(_ *cobra.Command, _ []string) error {
	ctx := cmdContext()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	runs, err := a.store.ListRuns(ctx, types.RunStatusEligible, 500)
	if err != nil {
		return fmt.Errorf("failed to list eligible runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("no eligible runs")
		return nil
	}

	for _, run := range runs {
		status, err := a.orch.Start(ctx, run.ID)
		if err != nil {
			fmt.Printf("run %s: error: %v\n", run.ID, err)
			continue
		}
		fmt.Printf("run %s (%s): %s\n", run.ID, run.PostingKey, status)
	}
	return nil
}
