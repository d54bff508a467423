// Package store defines durable storage for postings, duplicate groups,
// and pipeline runs, with an in-memory implementation for tests and a
// PostgreSQL implementation for production.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/marcus/jobgate/internal/types"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrVersionConflict is returned by SaveCheckpoint when the run was
// modified since it was read. The worker must reload and retry or abort.
var ErrVersionConflict = errors.New("run version conflict")

// ErrAlreadyExists is returned when creating a record whose identity is
// already taken.
var ErrAlreadyExists = errors.New("record already exists")

// RecordStore is plain CRUD plus indexed lookup over postings, groups,
// and runs. It carries no business logic.
type RecordStore interface {
	// CreatePosting persists a newly discovered posting. The key must
	// be unused.
	CreatePosting(ctx context.Context, posting *types.Posting) error
	// GetPosting returns a posting by key, or ErrNotFound.
	GetPosting(ctx context.Context, key types.PostingKey) (*types.Posting, error)
	// RecentPostings returns postings discovered at or after since,
	// ordered by discovery time ascending.
	RecentPostings(ctx context.Context, since time.Time) ([]*types.Posting, error)

	// GroupOf returns the duplicate group a posting belongs to, or nil.
	GroupOf(ctx context.Context, key types.PostingKey) (*types.DuplicateGroup, error)
	// CreateGroup creates a duplicate group with the given canonical member.
	CreateGroup(ctx context.Context, canonical types.PostingKey) (*types.DuplicateGroup, error)
	// AssignGroup records a posting's group membership.
	AssignGroup(ctx context.Context, key types.PostingKey, groupID uuid.UUID) error

	// CreateRun registers a pipeline-eligible posting with a fresh run
	// in the eligible state. At most one run exists per posting.
	CreateRun(ctx context.Context, key types.PostingKey) (*types.PipelineRun, error)
	// GetRun returns a run by id, or ErrNotFound.
	GetRun(ctx context.Context, runID uuid.UUID) (*types.PipelineRun, error)
	// ListRuns returns runs, newest first, optionally filtered by status.
	ListRuns(ctx context.Context, status string, limit int) ([]*types.PipelineRun, error)
}

// CheckpointStore persists per-run progress so execution can resume at the
// first stage not yet completed. Saves are atomic: either the whole run
// state (status, stage index, completed list, outputs, last error) lands,
// or none of it does.
type CheckpointStore interface {
	// SaveCheckpoint persists the run's full state, guarded by the
	// optimistic version the run was loaded with. On success the run's
	// Version field is advanced in place. Returns ErrVersionConflict
	// when another worker advanced the run first.
	SaveCheckpoint(ctx context.Context, run *types.PipelineRun) error
	// LoadResumePoint returns the index of the first stage not yet
	// completed for the run.
	LoadResumePoint(ctx context.Context, runID uuid.UUID) (int, error)
	// AllOutputs returns the structured payloads of every completed
	// stage, keyed by stage name.
	AllOutputs(ctx context.Context, runID uuid.UUID) (map[string]any, error)
}

// Store is the full persistence surface the application composes over.
type Store interface {
	RecordStore
	CheckpointStore
}
