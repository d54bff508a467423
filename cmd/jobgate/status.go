package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var listStatus string

var statusCmd = &cobra.Command{
	Use:   "status <run-id>",
	Short: "Show the state of a pipeline run",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List pipeline runs, newest first",
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "",
		"only show runs with this status")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
}

func runStatus(_ *cobra.Command, args []string) error {
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

	run, err := a.store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	a.printer.PrintRun(run, a.orch.StageNames())
	return nil
}

func runList(_ *cobra.Command, _ []string) error {
	ctx := cmdContext()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	runs, err := a.store.ListRuns(ctx, listStatus, 50)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("no runs")
		return nil
	}
	for _, run := range runs {
		fmt.Printf("%s  %-16s  %s\n", run.ID, run.Status, run.PostingKey)
	}
	return nil
}
