package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/marcus/jobgate/internal/stages"
)

var resumeReview string

var resumeCmd = &cobra.Command{
	Use:   "resume <run-id>",
	Short: "Resume a run parked for manual review",
	Long: "Re-enter a run that stopped at the manual review stage. Pass " +
		"--review approved or --review rejected to record the operator's " +
		"verdict before resuming; without a verdict the run stays parked.",
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().StringVar(&resumeReview, "review", "",
		"review verdict to record before resuming (approved|rejected)")
	rootCmd.AddCommand(resumeCmd)
}

func runResume(_ *cobra.Command, args []string) error {
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

	switch resumeReview {
	case "":
	case string(stages.ReviewApproved):
		a.reviews.Record(runID.String(), stages.ReviewApproved)
	case string(stages.ReviewRejected):
		a.reviews.Record(runID.String(), stages.ReviewRejected)
	default:
		return fmt.Errorf("invalid review verdict %q: want approved or rejected", resumeReview)
	}

	status, err := a.orch.Resume(ctx, runID)
	if err != nil {
		return err
	}
	fmt.Printf("run %s: %s\n", runID, status)
	return nil
}
