package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/marcus/jobgate/internal/store"
	"github.com/marcus/jobgate/internal/types"
)

// RetryPolicy configures retries per error category, not per stage.
// Ceilings count total attempts of a stage for an error category.
type RetryPolicy struct {
	// TransientAttempts is the attempt ceiling for transient errors.
	TransientAttempts int `json:"transient_attempts" validate:"gte=1"`
	// UnclassifiedAttempts is the lower ceiling for errors a stage did
	// not classify, so a misclassified permanent fault cannot loop.
	UnclassifiedAttempts int `json:"unclassified_attempts" validate:"gte=1"`
	// BaseDelay is the first backoff delay; it doubles per retry.
	BaseDelay time.Duration `json:"base_delay"`
}

// DefaultRetryPolicy returns the production policy: 3 transient attempts
// with 2s base backoff, 1 attempt for unclassified errors.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		TransientAttempts:    3,
		UnclassifiedAttempts: 1,
		BaseDelay:            2 * time.Second,
	}
}

func (p RetryPolicy) attemptsFor(category string) int {
	switch category {
	case types.ErrorCategoryTransient:
		return p.TransientAttempts
	case types.ErrorCategoryPermanent:
		return 1
	default:
		return p.UnclassifiedAttempts
	}
}

// ProgressEvent reports orchestrator progress to an optional observer.
type ProgressEvent struct {
	RunID   string `json:"run_id"`
	Stage   string `json:"stage"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ProgressFunc receives progress events.
type ProgressFunc func(event ProgressEvent)

// Orchestrator executes the configured stage order against runs, persisting
// a checkpoint after every stage attempt. One worker drives one run at a
// time; cross-worker exclusion rides on the store's version check.
type Orchestrator struct {
	store      store.Store
	stages     []Stage
	stageNames []string
	policy     RetryPolicy
	onProgress ProgressFunc
	sleep      func(ctx context.Context, d time.Duration) error
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(policy RetryPolicy) OrchestratorOption {
	return func(o *Orchestrator) { o.policy = policy }
}

// WithProgress installs a progress observer.
func WithProgress(fn ProgressFunc) OrchestratorOption {
	return func(o *Orchestrator) { o.onProgress = fn }
}

// withSleep overrides backoff sleeping, for tests.
func withSleep(fn func(ctx context.Context, d time.Duration) error) OrchestratorOption {
	return func(o *Orchestrator) { o.sleep = fn }
}

// NewOrchestrator builds an orchestrator over the given store and ordered
// stage list. Stage names must be unique and non-empty.
func NewOrchestrator(st store.Store, stages []Stage, opts ...OrchestratorOption) (*Orchestrator, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("at least one stage is required")
	}
	seen := make(map[string]bool, len(stages))
	names := make([]string, 0, len(stages))
	for _, stage := range stages {
		name := stage.Name()
		if name == "" {
			return nil, fmt.Errorf("stage with empty name")
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate stage name %q", name)
		}
		seen[name] = true
		names = append(names, name)
	}

	o := &Orchestrator{
		store:      st,
		stages:     stages,
		stageNames: names,
		policy:     DefaultRetryPolicy(),
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// StageNames returns the configured stage order.
func (o *Orchestrator) StageNames() []string {
	return append([]string(nil), o.stageNames...)
}

// Start begins executing an eligible run and drives it until a terminal or
// parked state. Returns the run's final status.
func (o *Orchestrator) Start(ctx context.Context, runID uuid.UUID) (string, error) {
	run, err := o.store.GetRun(ctx, runID)
	if err != nil {
		return "", err
	}
	if run.Status != types.RunStatusEligible {
		return run.Status, fmt.Errorf("run %s is %s, not %s", runID, run.Status, types.RunStatusEligible)
	}

	run.Status = types.RunStatusRunning
	if err := o.store.SaveCheckpoint(ctx, run); err != nil {
		return "", fmt.Errorf("failed to start run %s: %w", runID, err)
	}
	return o.execute(ctx, run)
}

// Resume re-enters a pending-manual run at the first stage not yet
// completed. It is idempotent: calling it on a run in any other state is a
// no-op that returns the current status, because duplicate triggers are
// expected in an at-least-once delivery environment.
func (o *Orchestrator) Resume(ctx context.Context, runID uuid.UUID) (string, error) {
	run, err := o.store.GetRun(ctx, runID)
	if err != nil {
		return "", err
	}
	if run.Status != types.RunStatusPendingManual {
		return run.Status, nil
	}

	// Re-entry clears the error record but never the completed list.
	run.Status = types.RunStatusRunning
	run.LastError = nil
	if err := o.store.SaveCheckpoint(ctx, run); err != nil {
		if isVersionConflict(err) {
			// A concurrent resume won the race; report what it did.
			current, getErr := o.store.GetRun(ctx, runID)
			if getErr != nil {
				return "", getErr
			}
			return current.Status, nil
		}
		return "", fmt.Errorf("failed to resume run %s: %w", runID, err)
	}
	return o.execute(ctx, run)
}

// RunStatus is the read-only view of a run for monitoring collaborators.
type RunStatus struct {
	RunID           string          `json:"run_id"`
	PostingID       string          `json:"posting_id"`
	Status          string          `json:"status"`
	CurrentStage    string          `json:"current_stage,omitempty"`
	CompletedStages []string        `json:"completed_stages"`
	LastError       *types.RunError `json:"last_error,omitempty"`
}

// Status reports a run's current state.
func (o *Orchestrator) Status(ctx context.Context, runID uuid.UUID) (*RunStatus, error) {
	run, err := o.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	status := &RunStatus{
		RunID:           run.ID.String(),
		PostingID:       run.PostingKey.String(),
		Status:          run.Status,
		CompletedStages: append([]string{}, run.CompletedStages...),
		LastError:       run.LastError,
	}
	if !types.IsTerminalStatus(run.Status) && run.CurrentStageIndex < len(o.stageNames) {
		status.CurrentStage = o.stageNames[run.CurrentStageIndex]
	}
	return status, nil
}

// execute drives the run from its resume point to a terminal or parked
// state, checkpointing after every stage attempt.
func (o *Orchestrator) execute(ctx context.Context, run *types.PipelineRun) (string, error) {
	if err := o.verifyCheckpoint(run); err != nil {
		return o.failCorrupt(ctx, run, err)
	}

	posting, err := o.store.GetPosting(ctx, run.PostingKey)
	if err != nil {
		return "", fmt.Errorf("failed to load posting for run %s: %w", run.ID, err)
	}

	for i := len(run.CompletedStages); i < len(o.stages); i++ {
		stage := o.stages[i]
		rc := &RunContext{
			RunID:   run.ID.String(),
			Posting: posting,
			Outputs: run.StageOutputs,
		}

		result, stageErr := o.attemptStage(ctx, run, stage, rc)
		if stageErr != nil {
			// Retries exhausted or permanent; run state was already
			// persisted by attemptStage.
			return run.Status, nil
		}

		switch result.Decision {
		case DecisionReject:
			run.Status = types.RunStatusRejected
			run.CompletedStages = append(run.CompletedStages, stage.Name())
			run.StageOutputs[stage.Name()] = payloadOrEmpty(result)
			run.CurrentStageIndex = len(run.CompletedStages)
			if err := o.saveCheckpoint(ctx, run); err != nil {
				return "", err
			}
			o.emit(run, stage.Name(), "stage rejected the posting")
			return run.Status, nil

		case DecisionPending:
			// The stage wants a human; it is not completed and will
			// re-execute on resume.
			run.Status = types.RunStatusPendingManual
			if err := o.saveCheckpoint(ctx, run); err != nil {
				return "", err
			}
			o.emit(run, stage.Name(), "stage requested manual review")
			return run.Status, nil

		default:
			run.CompletedStages = append(run.CompletedStages, stage.Name())
			run.StageOutputs[stage.Name()] = payloadOrEmpty(result)
			run.CurrentStageIndex = len(run.CompletedStages)
			if run.CurrentStageIndex == len(o.stages) {
				run.Status = types.RunStatusCompleted
			}
			if err := o.saveCheckpoint(ctx, run); err != nil {
				return "", err
			}
			o.emit(run, stage.Name(), "stage completed")
		}
	}

	return run.Status, nil
}

// attemptStage executes one stage under the retry policy. On exhaustion or
// permanent failure it persists the resulting run state and returns the
// final error; the caller then stops the loop.
func (o *Orchestrator) attemptStage(ctx context.Context, run *types.PipelineRun, stage Stage, rc *RunContext) (*StageResult, error) {
	attempt := 0
	for {
		attempt++
		result, err := stage.Execute(ctx, rc)
		if err == nil {
			if result == nil {
				err = Permanent(fmt.Errorf("stage returned no result"))
			} else {
				return result, nil
			}
		}

		category := Categorize(err)
		ceiling := o.policy.attemptsFor(category)

		if category != types.ErrorCategoryPermanent && attempt < ceiling {
			o.emit(run, stage.Name(), fmt.Sprintf("attempt %d failed, retrying: %v", attempt, err))
			if sleepErr := o.sleep(ctx, o.backoff(attempt)); sleepErr != nil {
				// Abort without advancing state; the persisted
				// checkpoint still points at this stage.
				return nil, sleepErr
			}
			continue
		}

		runErr := &types.RunError{
			Stage:     stage.Name(),
			Category:  category,
			Message:   err.Error(),
			Timestamp: time.Now().UTC(),
		}
		if category == types.ErrorCategoryPermanent {
			run.Status = types.RunStatusFailed
		} else {
			// Transient (or unclassified, treated as transient) with
			// retries exhausted: park for a human.
			if runErr.Category == "" {
				runErr.Category = types.ErrorCategoryTransient
			}
			run.Status = types.RunStatusPendingManual
		}
		run.LastError = runErr

		if saveErr := o.saveCheckpoint(ctx, run); saveErr != nil {
			return nil, saveErr
		}
		o.emit(run, stage.Name(), fmt.Sprintf("stage failed after %d attempt(s): %v", attempt, err))
		return nil, err
	}
}

// backoff returns the delay before the next attempt: base doubling per
// completed attempt.
func (o *Orchestrator) backoff(attempt int) time.Duration {
	delay := o.policy.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

// verifyCheckpoint refuses to execute from a checkpoint that violates the
// run invariants. Corruption is surfaced, never guessed at or repaired.
func (o *Orchestrator) verifyCheckpoint(run *types.PipelineRun) error {
	if run.CurrentStageIndex != len(run.CompletedStages) {
		return fmt.Errorf("stage index %d does not match %d completed stages",
			run.CurrentStageIndex, len(run.CompletedStages))
	}
	if len(run.CompletedStages) > len(o.stages) {
		return fmt.Errorf("%d completed stages exceed configured %d",
			len(run.CompletedStages), len(o.stages))
	}
	for i, name := range run.CompletedStages {
		if name != o.stageNames[i] {
			return fmt.Errorf("completed stage %q at position %d, expected %q",
				name, i, o.stageNames[i])
		}
		if _, ok := run.StageOutputs[name]; !ok {
			return fmt.Errorf("completed stage %q has no recorded output", name)
		}
	}
	return nil
}

// failCorrupt transitions a run with an untrustworthy checkpoint to failed
// with the dedicated corrupt-state category.
func (o *Orchestrator) failCorrupt(ctx context.Context, run *types.PipelineRun, cause error) (string, error) {
	stageName := ""
	if run.CurrentStageIndex >= 0 && run.CurrentStageIndex < len(o.stageNames) {
		stageName = o.stageNames[run.CurrentStageIndex]
	}
	run.Status = types.RunStatusFailed
	run.LastError = &types.RunError{
		Stage:     stageName,
		Category:  types.ErrorCategoryCorruptState,
		Message:   cause.Error(),
		Timestamp: time.Now().UTC(),
	}
	if err := o.saveCheckpoint(ctx, run); err != nil {
		return "", err
	}
	o.emit(run, stageName, fmt.Sprintf("corrupt checkpoint: %v", cause))
	return run.Status, nil
}

// saveCheckpoint persists run state. A failed write aborts the current
// stage advance so a retry re-executes the same stage rather than letting
// memory and storage diverge.
func (o *Orchestrator) saveCheckpoint(ctx context.Context, run *types.PipelineRun) error {
	if err := o.store.SaveCheckpoint(ctx, run); err != nil {
		return fmt.Errorf("failed to checkpoint run %s: %w", run.ID, err)
	}
	return nil
}

func (o *Orchestrator) emit(run *types.PipelineRun, stage, message string) {
	if o.onProgress != nil {
		o.onProgress(ProgressEvent{
			RunID:   run.ID.String(),
			Stage:   stage,
			Status:  run.Status,
			Message: message,
		})
	}
}

func isVersionConflict(err error) bool {
	return errors.Is(err, store.ErrVersionConflict)
}

func payloadOrEmpty(result *StageResult) map[string]any {
	if result.Payload == nil {
		return map[string]any{}
	}
	return result.Payload
}
