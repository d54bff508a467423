package stages

import (
	"context"
	"fmt"
	"sync"

	"github.com/marcus/jobgate/internal/pipeline"
)

// StageManualReview is the name of the human sign-off stage.
const StageManualReview = "manual_review"

// ReviewDecision is an operator's verdict on a parked run.
type ReviewDecision string

const (
	// ReviewApproved lets the run proceed on the next resume.
	ReviewApproved ReviewDecision = "approved"
	// ReviewRejected terminates the run on the next resume.
	ReviewRejected ReviewDecision = "rejected"
	// ReviewPending means no operator has decided yet.
	ReviewPending ReviewDecision = "pending"
)

// ReviewQueue answers whether an operator has signed off on a run.
type ReviewQueue interface {
	Decision(ctx context.Context, runID string) (ReviewDecision, error)
}

// ManualReview parks the run until an operator records a verdict in the
// review queue. While undecided the stage returns a pending result, so
// the run re-enters here on every resume until someone signs off.
type ManualReview struct {
	queue ReviewQueue
}

// NewManualReview builds the human sign-off stage.
func NewManualReview(queue ReviewQueue) *ManualReview {
	return &ManualReview{queue: queue}
}

// Name implements pipeline.Stage.
func (m *ManualReview) Name() string { return StageManualReview }

// Execute implements pipeline.Stage.
func (m *ManualReview) Execute(ctx context.Context, rc *pipeline.RunContext) (*pipeline.StageResult, error) {
	decision, err := m.queue.Decision(ctx, rc.RunID)
	if err != nil {
		return nil, pipeline.Transient(fmt.Errorf("failed to read review decision: %w", err))
	}

	switch decision {
	case ReviewApproved:
		return &pipeline.StageResult{
			Decision: pipeline.DecisionApprove,
			Payload:  map[string]any{"review": string(ReviewApproved)},
		}, nil
	case ReviewRejected:
		return &pipeline.StageResult{
			Decision: pipeline.DecisionReject,
			Payload:  map[string]any{"review": string(ReviewRejected)},
		}, nil
	case ReviewPending, "":
		return &pipeline.StageResult{Decision: pipeline.DecisionPending}, nil
	default:
		return nil, pipeline.Permanent(fmt.Errorf("unknown review decision %q", decision))
	}
}

// MemoryReviewQueue is an in-process ReviewQueue. The HTTP layer records
// operator verdicts here before resuming the run.
type MemoryReviewQueue struct {
	mu        sync.RWMutex
	decisions map[string]ReviewDecision
}

// NewMemoryReviewQueue builds an empty in-process review queue.
func NewMemoryReviewQueue() *MemoryReviewQueue {
	return &MemoryReviewQueue{decisions: make(map[string]ReviewDecision)}
}

// Record stores an operator verdict for a run, replacing any earlier one.
func (q *MemoryReviewQueue) Record(runID string, decision ReviewDecision) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.decisions[runID] = decision
}

// Decision implements ReviewQueue.
func (q *MemoryReviewQueue) Decision(_ context.Context, runID string) (ReviewDecision, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if d, ok := q.decisions[runID]; ok {
		return d, nil
	}
	return ReviewPending, nil
}
