// Package ingestion discovers postings from configured sources and hands
// them to the gate. Sources are polled concurrently; each discovered
// posting flows through a single sink so the caller controls ordering
// guarantees per source.
package ingestion

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/marcus/jobgate/internal/types"
)

// Source discovers postings from one external feed or board.
type Source interface {
	// Name is the posting key's source component. Must be stable across
	// polls and unique among configured sources.
	Name() string
	// Poll returns the postings currently visible on the source.
	Poll(ctx context.Context) ([]types.Posting, error)
}

// Sink receives each discovered posting. Implementations must be safe
// for concurrent calls; sources run in parallel.
type Sink func(ctx context.Context, posting types.Posting) error

// Poller drives the configured sources on an interval.
type Poller struct {
	sources []Source
	sink    Sink
}

// NewPoller builds a poller over the given sources.
func NewPoller(sources []Source, sink Sink) (*Poller, error) {
	if sink == nil {
		return nil, fmt.Errorf("sink is required")
	}
	seen := make(map[string]bool, len(sources))
	for _, s := range sources {
		if s.Name() == "" {
			return nil, fmt.Errorf("source with empty name")
		}
		if seen[s.Name()] {
			return nil, fmt.Errorf("duplicate source name %q", s.Name())
		}
		seen[s.Name()] = true
	}
	return &Poller{sources: sources, sink: sink}, nil
}

// PollOnce polls every source concurrently and feeds the results to the
// sink. A failing source does not stop the others; the first error is
// returned after all sources finish.
func (p *Poller) PollOnce(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, src := range p.sources {
		g.Go(func() error {
			postings, err := src.Poll(gctx)
			if err != nil {
				return fmt.Errorf("source %s poll failed: %w", src.Name(), err)
			}
			for _, posting := range postings {
				if err := p.sink(gctx, posting); err != nil {
					return fmt.Errorf("sink failed for %s: %w", posting.Key, err)
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// Run polls on the given interval until the context is canceled. Poll
// errors are logged and the loop continues.
func (p *Poller) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := p.PollOnce(ctx); err != nil {
			log.Printf("poll failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
