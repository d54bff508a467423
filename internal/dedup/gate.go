// Package dedup implements the two-tier duplicate detection gate that
// decides whether a newly discovered posting refers to an opportunity the
// system has already seen.
package dedup

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/marcus/jobgate/internal/similarity"
	"github.com/marcus/jobgate/internal/types"
)

// Weights holds the per-field weights of the combined similarity score.
// The fields must sum to 1.0; this is validated at configuration load
// (internal/config), not per evaluation.
type Weights struct {
	Title        float64 `json:"title" validate:"gte=0,lte=1"`
	Organization float64 `json:"organization" validate:"gte=0,lte=1"`
	Body         float64 `json:"body" validate:"gte=0,lte=1"`
	Location     float64 `json:"location" validate:"gte=0,lte=1"`
}

// DefaultWeights are the fixed production weights.
func DefaultWeights() Weights {
	return Weights{Title: 0.20, Organization: 0.10, Body: 0.50, Location: 0.20}
}

// Thresholds frame the gate's decision bands. AutoMerge and Ambiguous must
// satisfy 0 < Ambiguous < AutoMerge <= 1 (validated at config load).
type Thresholds struct {
	// AutoMerge is inclusive: a score of exactly AutoMerge merges.
	AutoMerge float64 `json:"auto_merge" validate:"gt=0,lte=1"`
	// Ambiguous is inclusive: a score of exactly Ambiguous escalates to
	// Tier 2 rather than being dropped.
	Ambiguous float64 `json:"ambiguous" validate:"gt=0,lte=1"`
}

// DefaultThresholds returns the production decision bands.
func DefaultThresholds() Thresholds {
	return Thresholds{AutoMerge: 0.90, Ambiguous: 0.75}
}

// SemanticScorer is the pluggable Tier-2 similarity used for ambiguous
// candidates. Implementations are expected to be expensive (embedding
// providers); a failure degrades that candidate to "not a match".
type SemanticScorer interface {
	// Score returns a semantic similarity in [0,1] between two texts.
	Score(ctx context.Context, a, b string) (float64, error)
}

// GroupStore is the slice of the record store the gate needs: group
// creation and membership assignment at merge time.
type GroupStore interface {
	// GroupOf returns the group a posting belongs to, or nil.
	GroupOf(ctx context.Context, key types.PostingKey) (*types.DuplicateGroup, error)
	// CreateGroup creates a group with the given canonical member.
	CreateGroup(ctx context.Context, canonical types.PostingKey) (*types.DuplicateGroup, error)
	// AssignGroup records a posting's membership in a group.
	AssignGroup(ctx context.Context, key types.PostingKey, groupID uuid.UUID) error
}

// Gate combines the field scorers into the two-tier decision policy.
type Gate struct {
	weights    Weights
	thresholds Thresholds
	window     time.Duration
	semantic   SemanticScorer
	groups     GroupStore
	now        func() time.Time
}

// Option configures a Gate.
type Option func(*Gate)

// WithWindow overrides the default 30-day candidate recency window.
func WithWindow(window time.Duration) Option {
	return func(g *Gate) { g.window = window }
}

// WithSemanticScorer installs the Tier-2 scorer. Without one, ambiguous
// candidates are treated as distinct.
func WithSemanticScorer(s SemanticScorer) Option {
	return func(g *Gate) { g.semantic = s }
}

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// DefaultWindow bounds the candidate pool to recently discovered postings.
const DefaultWindow = 30 * 24 * time.Hour

// NewGate builds a gate over the given group store. Weights and thresholds
// are assumed validated by the configuration layer.
func NewGate(groups GroupStore, weights Weights, thresholds Thresholds, opts ...Option) *Gate {
	g := &Gate{
		weights:    weights,
		thresholds: thresholds,
		window:     DefaultWindow,
		groups:     groups,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// tier1Score is the weighted combination of the four deterministic field
// scorers.
func (g *Gate) tier1Score(a, b *types.Posting) float64 {
	return g.weights.Title*similarity.TokenSet(a.Title, b.Title) +
		g.weights.Organization*similarity.Organization(a.Organization, b.Organization) +
		g.weights.Body*similarity.BodyPrefix(a.Body, b.Body) +
		g.weights.Location*similarity.Location(a.Location, a.Remote, b.Location, b.Remote)
}

// tier2Score recombines the field weights with the semantic scorer standing
// in for the cheap text scorers on title and body. Organization and
// location keep their deterministic scorers; embeddings add nothing there.
func (g *Gate) tier2Score(ctx context.Context, a, b *types.Posting) (float64, error) {
	titleSim, err := g.semantic.Score(ctx, a.Title, b.Title)
	if err != nil {
		return 0, err
	}
	bodySim, err := g.semantic.Score(ctx, bodyPrefix(a.Body), bodyPrefix(b.Body))
	if err != nil {
		return 0, err
	}
	return g.weights.Title*titleSim +
		g.weights.Organization*similarity.Organization(a.Organization, b.Organization) +
		g.weights.Body*bodySim +
		g.weights.Location*similarity.Location(a.Location, a.Remote, b.Location, b.Remote), nil
}

func bodyPrefix(s string) string {
	runes := []rune(s)
	if len(runes) <= similarity.BodyPrefixRunes {
		return s
	}
	return string(runes[:similarity.BodyPrefixRunes])
}

type scoredCandidate struct {
	posting *types.Posting
	score   float64
}

// Evaluate applies the two-tier decision policy to a new posting against
// the candidate pool. Candidates outside the recency window are skipped.
// On a merge it returns the group (creating one for a previously ungrouped
// candidate) and updates membership through the group store.
func (g *Gate) Evaluate(ctx context.Context, posting *types.Posting, candidates []*types.Posting) (*types.DuplicateDecision, error) {
	cutoff := g.now().Add(-g.window)

	scored := make([]scoredCandidate, 0, len(candidates))
	for _, cand := range candidates {
		if cand.Key == posting.Key {
			continue
		}
		if cand.DiscoveredAt.Before(cutoff) {
			continue
		}
		score := g.tier1Score(posting, cand)
		if score >= g.thresholds.Ambiguous {
			scored = append(scored, scoredCandidate{posting: cand, score: score})
		}
	}

	// Highest score first; ties broken by earliest discovery, then key,
	// so evaluation order is deterministic regardless of pool order.
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		if !scored[i].posting.DiscoveredAt.Equal(scored[j].posting.DiscoveredAt) {
			return scored[i].posting.DiscoveredAt.Before(scored[j].posting.DiscoveredAt)
		}
		return scored[i].posting.Key.String() < scored[j].posting.Key.String()
	})

	best := 0.0
	for _, sc := range scored {
		if sc.score > best {
			best = sc.score
		}

		if sc.score >= g.thresholds.AutoMerge {
			// First sufficiently confident match wins.
			return g.merge(ctx, posting, sc.posting, sc.score, 1)
		}

		// Ambiguous band: escalate this candidate only.
		if g.semantic == nil {
			continue
		}
		semScore, err := g.tier2Score(ctx, posting, sc.posting)
		if err != nil {
			// Best effort: a Tier-2 failure must not block pipeline
			// entry. A missed duplicate is the acceptable outcome.
			log.Printf("dedup: tier-2 scoring failed for %s vs %s, treating as distinct: %v",
				posting.Key, sc.posting.Key, err)
			continue
		}
		if semScore >= g.thresholds.AutoMerge {
			return g.merge(ctx, posting, sc.posting, semScore, 2)
		}
	}

	return &types.DuplicateDecision{Confidence: best}, nil
}

// merge places the posting in the matched candidate's group, creating the
// group when the candidate had none. The earlier-discovered member is the
// canonical one.
func (g *Gate) merge(ctx context.Context, posting, matched *types.Posting, score float64, tier int) (*types.DuplicateDecision, error) {
	group, err := g.groups.GroupOf(ctx, matched.Key)
	if err != nil {
		return nil, err
	}
	if group == nil {
		canonical := matched.Key
		if posting.DiscoveredAt.Before(matched.DiscoveredAt) {
			canonical = posting.Key
		}
		group, err = g.groups.CreateGroup(ctx, canonical)
		if err != nil {
			return nil, err
		}
		if err := g.groups.AssignGroup(ctx, matched.Key, group.ID); err != nil {
			return nil, err
		}
	}
	if err := g.groups.AssignGroup(ctx, posting.Key, group.ID); err != nil {
		return nil, err
	}

	matchedKey := matched.Key
	return &types.DuplicateDecision{
		GroupID:    &group.ID,
		MatchedKey: &matchedKey,
		Confidence: score,
		Tier:       tier,
	}, nil
}
