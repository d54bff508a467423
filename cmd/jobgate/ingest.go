package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcus/jobgate/internal/fetch"
	"github.com/marcus/jobgate/internal/ingestion"
	"github.com/marcus/jobgate/internal/types"
)

var ingestWatch bool

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Poll configured sources and gate discovered postings",
	Long: "Poll every feed in the config, run each discovered posting " +
		"through the duplicate gate, and register pipeline runs for the " +
		"distinct ones.",
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestWatch, "watch", false, "Keep polling on the configured interval")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(_ *cobra.Command, _ []string) error {
	ctx := cmdContext()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if len(a.cfg.Feeds) == 0 {
		return fmt.Errorf("no feeds configured")
	}

	fetcher := fetch.NewCachedFetcher(nil, 0)
	sources := make([]ingestion.Source, 0, len(a.cfg.Feeds))
	for i, feedURL := range a.cfg.Feeds {
		var opts []ingestion.FeedOption
		if a.cfg.UseBrowser {
			opts = append(opts, ingestion.WithBrowserFallback())
		}
		name := fmt.Sprintf("feed-%d", i+1)
		sources = append(sources, ingestion.NewFeedSource(name, feedURL, fetcher, opts...))
	}

	poller, err := ingestion.NewPoller(sources, func(ctx context.Context, posting types.Posting) error {
		decision, run, err := a.admitPosting(ctx, &posting)
		if err != nil {
			return err
		}
		if decision == nil {
			// Already known from an earlier poll.
			return nil
		}
		if a.cfg.Verbose {
			a.printer.PrintPosting(&posting)
			a.printer.PrintDecision(posting.Key, decision)
		}
		switch {
		case decision.IsDuplicate():
			fmt.Printf("%s: duplicate (tier %d, confidence %.3f)\n",
				posting.Key, decision.Tier, decision.Confidence)
		case run != nil:
			fmt.Printf("%s: distinct, run %s registered\n", posting.Key, run.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if ingestWatch {
		return poller.Run(ctx, a.cfg.PollIntervalDuration())
	}
	return poller.PollOnce(ctx)
}
