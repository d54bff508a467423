package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marcus/jobgate/internal/types"
)

// Memory is an in-process Store used by tests and single-process
// deployments. All methods are safe for concurrent use.
type Memory struct {
	mu       sync.Mutex
	postings map[types.PostingKey]*types.Posting
	groups   map[uuid.UUID]*types.DuplicateGroup
	runs     map[uuid.UUID]*types.PipelineRun
	// runsByPosting enforces the one-run-per-posting invariant.
	runsByPosting map[types.PostingKey]uuid.UUID
	now           func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		postings:      make(map[types.PostingKey]*types.Posting),
		groups:        make(map[uuid.UUID]*types.DuplicateGroup),
		runs:          make(map[uuid.UUID]*types.PipelineRun),
		runsByPosting: make(map[types.PostingKey]uuid.UUID),
		now:           time.Now,
	}
}

// SetClock overrides the clock, for tests.
func (m *Memory) SetClock(now func() time.Time) { m.now = now }

// CreatePosting persists a newly discovered posting.
func (m *Memory) CreatePosting(_ context.Context, posting *types.Posting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.postings[posting.Key]; ok {
		return fmt.Errorf("posting %s: %w", posting.Key, ErrAlreadyExists)
	}
	cp := *posting
	m.postings[posting.Key] = &cp
	return nil
}

// GetPosting returns a posting by key.
func (m *Memory) GetPosting(_ context.Context, key types.PostingKey) (*types.Posting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	posting, ok := m.postings[key]
	if !ok {
		return nil, fmt.Errorf("posting %s: %w", key, ErrNotFound)
	}
	cp := *posting
	return &cp, nil
}

// RecentPostings returns postings discovered at or after since, ascending.
func (m *Memory) RecentPostings(_ context.Context, since time.Time) ([]*types.Posting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.Posting
	for _, posting := range m.postings {
		if !posting.DiscoveredAt.Before(since) {
			cp := *posting
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DiscoveredAt.Equal(out[j].DiscoveredAt) {
			return out[i].DiscoveredAt.Before(out[j].DiscoveredAt)
		}
		return out[i].Key.String() < out[j].Key.String()
	})
	return out, nil
}

// GroupOf returns the group a posting belongs to, or nil.
func (m *Memory) GroupOf(_ context.Context, key types.PostingKey) (*types.DuplicateGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	posting, ok := m.postings[key]
	if !ok {
		return nil, fmt.Errorf("posting %s: %w", key, ErrNotFound)
	}
	if posting.GroupID == nil {
		return nil, nil
	}
	group, ok := m.groups[*posting.GroupID]
	if !ok {
		return nil, fmt.Errorf("group %s: %w", posting.GroupID, ErrNotFound)
	}
	cp := *group
	return &cp, nil
}

// CreateGroup creates a duplicate group with the given canonical member.
func (m *Memory) CreateGroup(_ context.Context, canonical types.PostingKey) (*types.DuplicateGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	group := &types.DuplicateGroup{
		ID:           uuid.New(),
		CanonicalKey: canonical,
		CreatedAt:    m.now(),
	}
	m.groups[group.ID] = group
	cp := *group
	return &cp, nil
}

// AssignGroup records a posting's group membership.
func (m *Memory) AssignGroup(_ context.Context, key types.PostingKey, groupID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	posting, ok := m.postings[key]
	if !ok {
		return fmt.Errorf("posting %s: %w", key, ErrNotFound)
	}
	if _, ok := m.groups[groupID]; !ok {
		return fmt.Errorf("group %s: %w", groupID, ErrNotFound)
	}
	posting.GroupID = &groupID
	return nil
}

// CreateRun registers a fresh eligible run for a posting.
func (m *Memory) CreateRun(_ context.Context, key types.PostingKey) (*types.PipelineRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.postings[key]; !ok {
		return nil, fmt.Errorf("posting %s: %w", key, ErrNotFound)
	}
	if existing, ok := m.runsByPosting[key]; ok {
		return nil, fmt.Errorf("posting %s already has run %s: %w", key, existing, ErrAlreadyExists)
	}
	now := m.now()
	run := &types.PipelineRun{
		ID:           uuid.New(),
		PostingKey:   key,
		Status:       types.RunStatusEligible,
		StageOutputs: map[string]any{},
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.runs[run.ID] = run
	m.runsByPosting[key] = run.ID
	return run.Clone(), nil
}

// GetRun returns a run by id.
func (m *Memory) GetRun(_ context.Context, runID uuid.UUID) (*types.PipelineRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return run.Clone(), nil
}

// ListRuns returns runs newest first, optionally filtered by status.
func (m *Memory) ListRuns(_ context.Context, status string, limit int) ([]*types.PipelineRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.PipelineRun
	for _, run := range m.runs {
		if status != "" && run.Status != status {
			continue
		}
		out = append(out, run.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SaveCheckpoint atomically replaces the run's state, guarded by the
// version the caller loaded.
func (m *Memory) SaveCheckpoint(_ context.Context, run *types.PipelineRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.runs[run.ID]
	if !ok {
		return fmt.Errorf("run %s: %w", run.ID, ErrNotFound)
	}
	if stored.Version != run.Version {
		return fmt.Errorf("run %s: expected version %d, stored %d: %w",
			run.ID, run.Version, stored.Version, ErrVersionConflict)
	}
	next := run.Clone()
	next.Version = run.Version + 1
	next.UpdatedAt = m.now()
	m.runs[run.ID] = next
	run.Version = next.Version
	run.UpdatedAt = next.UpdatedAt
	return nil
}

// LoadResumePoint returns the index of the first stage not yet completed.
func (m *Memory) LoadResumePoint(ctx context.Context, runID uuid.UUID) (int, error) {
	run, err := m.GetRun(ctx, runID)
	if err != nil {
		return 0, err
	}
	return len(run.CompletedStages), nil
}

// AllOutputs returns the payloads of every completed stage.
func (m *Memory) AllOutputs(ctx context.Context, runID uuid.UUID) (map[string]any, error) {
	run, err := m.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	return run.StageOutputs, nil
}
