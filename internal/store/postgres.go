package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marcus/jobgate/internal/types"
)

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// ConnectPostgres establishes a connection pool and verifies it.
func ConnectPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// EnsureSchema creates the tables if they do not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS duplicate_groups (
    id UUID PRIMARY KEY,
    canonical_source TEXT NOT NULL,
    canonical_source_id TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS postings (
    source TEXT NOT NULL,
    source_id TEXT NOT NULL,
    title TEXT NOT NULL,
    organization TEXT NOT NULL,
    body TEXT NOT NULL,
    location TEXT NOT NULL,
    remote BOOLEAN NOT NULL DEFAULT FALSE,
    compensation DOUBLE PRECISION,
    discovered_at TIMESTAMPTZ NOT NULL,
    group_id UUID REFERENCES duplicate_groups(id),
    PRIMARY KEY (source, source_id)
);

CREATE INDEX IF NOT EXISTS idx_postings_discovered_at ON postings (discovered_at);

CREATE TABLE IF NOT EXISTS pipeline_runs (
    id UUID PRIMARY KEY,
    source TEXT NOT NULL,
    source_id TEXT NOT NULL,
    status TEXT NOT NULL,
    current_stage_index INT NOT NULL DEFAULT 0,
    completed_stages JSONB NOT NULL DEFAULT '[]',
    stage_outputs JSONB NOT NULL DEFAULT '{}',
    last_error JSONB,
    version INT NOT NULL DEFAULT 1,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (source, source_id),
    FOREIGN KEY (source, source_id) REFERENCES postings (source, source_id)
);

CREATE INDEX IF NOT EXISTS idx_pipeline_runs_status ON pipeline_runs (status);
`

// CreatePosting persists a newly discovered posting.
func (p *Postgres) CreatePosting(ctx context.Context, posting *types.Posting) error {
	tag, err := p.pool.Exec(ctx,
		`INSERT INTO postings (source, source_id, title, organization, body, location, remote, compensation, discovered_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (source, source_id) DO NOTHING`,
		posting.Key.Source, posting.Key.SourceID, posting.Title, posting.Organization,
		posting.Body, posting.Location, posting.Remote, posting.Compensation, posting.DiscoveredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create posting: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("posting %s: %w", posting.Key, ErrAlreadyExists)
	}
	return nil
}

const postingColumns = `source, source_id, title, organization, body, location, remote, compensation, discovered_at, group_id`

func scanPosting(row pgx.Row) (*types.Posting, error) {
	var posting types.Posting
	err := row.Scan(&posting.Key.Source, &posting.Key.SourceID, &posting.Title,
		&posting.Organization, &posting.Body, &posting.Location, &posting.Remote,
		&posting.Compensation, &posting.DiscoveredAt, &posting.GroupID)
	if err != nil {
		return nil, err
	}
	return &posting, nil
}

// GetPosting returns a posting by key.
func (p *Postgres) GetPosting(ctx context.Context, key types.PostingKey) (*types.Posting, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+postingColumns+` FROM postings WHERE source = $1 AND source_id = $2`,
		key.Source, key.SourceID,
	)
	posting, err := scanPosting(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("posting %s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get posting: %w", err)
	}
	return posting, nil
}

// RecentPostings returns postings discovered at or after since, ascending.
func (p *Postgres) RecentPostings(ctx context.Context, since time.Time) ([]*types.Posting, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+postingColumns+` FROM postings WHERE discovered_at >= $1 ORDER BY discovered_at ASC, source, source_id`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent postings: %w", err)
	}
	defer rows.Close()

	var postings []*types.Posting
	for rows.Next() {
		posting, err := scanPosting(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan posting: %w", err)
		}
		postings = append(postings, posting)
	}
	return postings, rows.Err()
}

// GroupOf returns the group a posting belongs to, or nil.
func (p *Postgres) GroupOf(ctx context.Context, key types.PostingKey) (*types.DuplicateGroup, error) {
	var group types.DuplicateGroup
	err := p.pool.QueryRow(ctx,
		`SELECT g.id, g.canonical_source, g.canonical_source_id, g.created_at
		 FROM postings p JOIN duplicate_groups g ON p.group_id = g.id
		 WHERE p.source = $1 AND p.source_id = $2`,
		key.Source, key.SourceID,
	).Scan(&group.ID, &group.CanonicalKey.Source, &group.CanonicalKey.SourceID, &group.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return &group, nil
}

// CreateGroup creates a duplicate group with the given canonical member.
func (p *Postgres) CreateGroup(ctx context.Context, canonical types.PostingKey) (*types.DuplicateGroup, error) {
	group := types.DuplicateGroup{ID: uuid.New(), CanonicalKey: canonical}
	err := p.pool.QueryRow(ctx,
		`INSERT INTO duplicate_groups (id, canonical_source, canonical_source_id)
		 VALUES ($1, $2, $3)
		 RETURNING created_at`,
		group.ID, canonical.Source, canonical.SourceID,
	).Scan(&group.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}
	return &group, nil
}

// AssignGroup records a posting's group membership.
func (p *Postgres) AssignGroup(ctx context.Context, key types.PostingKey, groupID uuid.UUID) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE postings SET group_id = $1 WHERE source = $2 AND source_id = $3`,
		groupID, key.Source, key.SourceID,
	)
	if err != nil {
		return fmt.Errorf("failed to assign group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("posting %s: %w", key, ErrNotFound)
	}
	return nil
}

// CreateRun registers a fresh eligible run for a posting.
func (p *Postgres) CreateRun(ctx context.Context, key types.PostingKey) (*types.PipelineRun, error) {
	run := types.PipelineRun{
		ID:           uuid.New(),
		PostingKey:   key,
		Status:       types.RunStatusEligible,
		StageOutputs: map[string]any{},
		Version:      1,
	}
	err := p.pool.QueryRow(ctx,
		`INSERT INTO pipeline_runs (id, source, source_id, status)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (source, source_id) DO NOTHING
		 RETURNING created_at, updated_at`,
		run.ID, key.Source, key.SourceID, run.Status,
	).Scan(&run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("posting %s already has a run: %w", key, ErrAlreadyExists)
		}
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return &run, nil
}

const runColumns = `id, source, source_id, status, current_stage_index, completed_stages, stage_outputs, last_error, version, created_at, updated_at`

func scanRun(row pgx.Row) (*types.PipelineRun, error) {
	var run types.PipelineRun
	var completedJSON, outputsJSON []byte
	var lastErrorJSON []byte
	err := row.Scan(&run.ID, &run.PostingKey.Source, &run.PostingKey.SourceID, &run.Status,
		&run.CurrentStageIndex, &completedJSON, &outputsJSON, &lastErrorJSON,
		&run.Version, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(completedJSON, &run.CompletedStages); err != nil {
		return nil, fmt.Errorf("failed to decode completed stages: %w", err)
	}
	if err := json.Unmarshal(outputsJSON, &run.StageOutputs); err != nil {
		return nil, fmt.Errorf("failed to decode stage outputs: %w", err)
	}
	if lastErrorJSON != nil {
		run.LastError = &types.RunError{}
		if err := json.Unmarshal(lastErrorJSON, run.LastError); err != nil {
			return nil, fmt.Errorf("failed to decode last error: %w", err)
		}
	}
	return &run, nil
}

// GetRun returns a run by id.
func (p *Postgres) GetRun(ctx context.Context, runID uuid.UUID) (*types.PipelineRun, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM pipeline_runs WHERE id = $1`, runID)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs newest first, optionally filtered by status.
func (p *Postgres) ListRuns(ctx context.Context, status string, limit int) ([]*types.PipelineRun, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + runColumns + ` FROM pipeline_runs`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*types.PipelineRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// SaveCheckpoint persists the run's full state in a single statement so the
// write is atomic, guarded by the optimistic version check. A conflicting
// concurrent save loses with ErrVersionConflict instead of interleaving.
func (p *Postgres) SaveCheckpoint(ctx context.Context, run *types.PipelineRun) error {
	completedJSON, err := json.Marshal(run.CompletedStages)
	if err != nil {
		return fmt.Errorf("failed to encode completed stages: %w", err)
	}
	if run.CompletedStages == nil {
		completedJSON = []byte("[]")
	}
	outputsJSON, err := json.Marshal(run.StageOutputs)
	if err != nil {
		return fmt.Errorf("failed to encode stage outputs: %w", err)
	}
	if run.StageOutputs == nil {
		outputsJSON = []byte("{}")
	}
	var lastErrorJSON []byte
	if run.LastError != nil {
		lastErrorJSON, err = json.Marshal(run.LastError)
		if err != nil {
			return fmt.Errorf("failed to encode last error: %w", err)
		}
	}

	var newVersion int
	var updatedAt time.Time
	err = p.pool.QueryRow(ctx,
		`UPDATE pipeline_runs
		 SET status = $1, current_stage_index = $2, completed_stages = $3,
		     stage_outputs = $4, last_error = $5, version = version + 1, updated_at = NOW()
		 WHERE id = $6 AND version = $7
		 RETURNING version, updated_at`,
		run.Status, run.CurrentStageIndex, completedJSON, outputsJSON, lastErrorJSON,
		run.ID, run.Version,
	).Scan(&newVersion, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Distinguish a missing run from a stale version.
			if _, getErr := p.GetRun(ctx, run.ID); getErr != nil {
				return getErr
			}
			return fmt.Errorf("run %s at version %d: %w", run.ID, run.Version, ErrVersionConflict)
		}
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	run.Version = newVersion
	run.UpdatedAt = updatedAt
	return nil
}

// LoadResumePoint returns the index of the first stage not yet completed.
func (p *Postgres) LoadResumePoint(ctx context.Context, runID uuid.UUID) (int, error) {
	run, err := p.GetRun(ctx, runID)
	if err != nil {
		return 0, err
	}
	return len(run.CompletedStages), nil
}

// AllOutputs returns the payloads of every completed stage.
func (p *Postgres) AllOutputs(ctx context.Context, runID uuid.UUID) (map[string]any, error) {
	run, err := p.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	return run.StageOutputs, nil
}
