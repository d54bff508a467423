// Package pipeline provides the checkpointed stage orchestrator that
// drives a posting through an ordered stage list with retry, resume, and
// durable per-stage checkpoints.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/marcus/jobgate/internal/types"
)

// Decision is a stage's verdict on the run.
type Decision string

const (
	// DecisionApprove advances the run to the next stage.
	DecisionApprove Decision = "approve"
	// DecisionReject terminates the run early by choice, not error.
	DecisionReject Decision = "reject"
	// DecisionPending parks the run for manual intervention; the stage
	// re-executes on resume.
	DecisionPending Decision = "pending"
)

// StageResult is what a stage hands back on success. The orchestrator never
// inspects Payload beyond persisting it.
type StageResult struct {
	Decision Decision       `json:"decision"`
	Payload  map[string]any `json:"payload,omitempty"`
}

// RunContext is the read-only view a stage receives: the posting under
// processing and the payloads of every stage completed before it.
type RunContext struct {
	RunID   string
	Posting *types.Posting
	Outputs map[string]any
}

// Stage is the contract every pipeline stage implements. Stages are opaque
// to the orchestrator beyond this interface, which is what keeps the
// orchestrator reusable across stage sets.
type Stage interface {
	// Name identifies the stage in checkpoints. Must be unique within
	// the configured stage order.
	Name() string
	// Execute runs the stage. Errors should be classified with
	// Transient or Permanent; unclassified errors are retried once at
	// most.
	Execute(ctx context.Context, rc *RunContext) (*StageResult, error)
}

// StageError attaches a retry category to a stage failure.
type StageError struct {
	Category string
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Category, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Transient marks an error as retriable (network, timeout, rate limit).
func Transient(err error) error {
	return &StageError{Category: types.ErrorCategoryTransient, Err: err}
}

// Permanent marks an error as non-retriable (validation, auth, malformed
// input).
func Permanent(err error) error {
	return &StageError{Category: types.ErrorCategoryPermanent, Err: err}
}

// Categorize returns the error's category, or "" when unclassified.
func Categorize(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Category
	}
	return ""
}
