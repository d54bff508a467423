// Package types defines the shared domain types for postings, duplicate
// groups, and pipeline runs.
package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostingKey is the source-qualified identity of a posting. It is immutable
// once the posting is created.
type PostingKey struct {
	Source   string `json:"source"`
	SourceID string `json:"source_id"`
}

// String returns the canonical "source:id" form used in logs and storage keys.
func (k PostingKey) String() string {
	return fmt.Sprintf("%s:%s", k.Source, k.SourceID)
}

// Posting is a candidate opportunity discovered from an external source.
// Fields other than GroupID are never edited after creation; only upstream
// discovery may correct them.
type Posting struct {
	Key          PostingKey `json:"key"`
	Title        string     `json:"title"`
	Organization string     `json:"organization"`
	Body         string     `json:"body"`
	Location     string     `json:"location"`
	Remote       bool       `json:"remote"`
	// Compensation is the annualized figure when known; nil when the
	// source did not disclose one.
	Compensation *float64  `json:"compensation,omitempty"`
	DiscoveredAt time.Time `json:"discovered_at"`

	// GroupID is set when the posting has been merged into a duplicate
	// group. A posting belongs to at most one group.
	GroupID *uuid.UUID `json:"group_id,omitempty"`
}

// DuplicateGroup clusters postings judged to refer to the same underlying
// opportunity. Merging is monotonic: groups grow and are never split.
type DuplicateGroup struct {
	ID uuid.UUID `json:"id"`
	// CanonicalKey is the earliest-discovered member of the group.
	CanonicalKey PostingKey `json:"canonical_key"`
	CreatedAt    time.Time  `json:"created_at"`
}

// DuplicateDecision is the outcome of evaluating a posting against the
// recent candidate pool.
type DuplicateDecision struct {
	// GroupID is non-nil when the posting merged into an existing or
	// freshly created group.
	GroupID *uuid.UUID `json:"group_id,omitempty"`
	// MatchedKey is the candidate the posting merged with, when any.
	MatchedKey *PostingKey `json:"matched_key,omitempty"`
	// Confidence is the combined similarity score of the winning match,
	// or the best score seen when no merge happened.
	Confidence float64 `json:"confidence"`
	// Tier records which pass produced the decision: 1 for the cheap
	// deterministic pass, 2 for the semantic escalation, 0 when no
	// candidate cleared the ambiguity floor.
	Tier int `json:"tier"`
}

// IsDuplicate reports whether the posting merged into a group.
func (d *DuplicateDecision) IsDuplicate() bool {
	return d.GroupID != nil
}
