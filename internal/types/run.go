package types

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus values for a pipeline run's state machine. Eligible is initial;
// completed, rejected, and failed are terminal. PendingManual is re-entrant
// via an explicit resume.
const (
	RunStatusEligible      = "eligible"
	RunStatusRunning       = "running"
	RunStatusCompleted     = "completed"
	RunStatusRejected      = "rejected"
	RunStatusPendingManual = "pending-manual"
	RunStatusFailed        = "failed"
)

// IsTerminalStatus reports whether status admits no further transitions.
func IsTerminalStatus(status string) bool {
	switch status {
	case RunStatusCompleted, RunStatusRejected, RunStatusFailed:
		return true
	}
	return false
}

// Error categories for stage failures. Transient errors are retried with
// backoff; permanent errors fail the run immediately. CorruptState marks a
// checkpoint the orchestrator refused to trust on resume.
const (
	ErrorCategoryTransient    = "transient"
	ErrorCategoryPermanent    = "permanent"
	ErrorCategoryCorruptState = "corrupt-state"
)

// RunError is the persisted record of the last stage failure on a run.
type RunError struct {
	Stage     string    `json:"stage"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// PipelineRun is the processing state of one pipeline-eligible posting.
// It is mutated exclusively by the orchestrator after each stage attempt.
type PipelineRun struct {
	ID         uuid.UUID  `json:"id"`
	PostingKey PostingKey `json:"posting_key"`
	Status     string     `json:"status"`

	// CurrentStageIndex is the index of the next stage to execute.
	// CompletedStages is always a strict prefix of the configured stage
	// order, and StageOutputs has exactly one entry per completed stage.
	CurrentStageIndex int              `json:"current_stage_index"`
	CompletedStages   []string         `json:"completed_stages"`
	StageOutputs      map[string]any   `json:"stage_outputs"`
	LastError         *RunError        `json:"last_error,omitempty"`

	// Version supports optimistic concurrency at checkpoint-save time.
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy so workers can mutate run state without
// aliasing what the store handed out.
func (r *PipelineRun) Clone() *PipelineRun {
	cp := *r
	cp.CompletedStages = append([]string(nil), r.CompletedStages...)
	cp.StageOutputs = make(map[string]any, len(r.StageOutputs))
	for k, v := range r.StageOutputs {
		cp.StageOutputs[k] = v
	}
	if r.LastError != nil {
		e := *r.LastError
		cp.LastError = &e
	}
	return &cp
}

// RunRecord is the serialized layout of a run required for compatibility
// with external monitoring collaborators.
type RunRecord struct {
	PostingID         string         `json:"postingId"`
	Status            string         `json:"status"`
	CurrentStageIndex int            `json:"currentStageIndex"`
	CompletedStages   []string       `json:"completedStages"`
	StageOutputs      map[string]any `json:"stageOutputs"`
	LastError         *RunError      `json:"lastError"`
}

// Record converts the run to its compatibility layout.
func (r *PipelineRun) Record() RunRecord {
	completed := r.CompletedStages
	if completed == nil {
		completed = []string{}
	}
	outputs := r.StageOutputs
	if outputs == nil {
		outputs = map[string]any{}
	}
	return RunRecord{
		PostingID:         r.PostingKey.String(),
		Status:            r.Status,
		CurrentStageIndex: r.CurrentStageIndex,
		CompletedStages:   completed,
		StageOutputs:      outputs,
		LastError:         r.LastError,
	}
}
