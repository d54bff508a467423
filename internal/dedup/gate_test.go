package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus/jobgate/internal/store"
	"github.com/marcus/jobgate/internal/types"
)

// scriptedScorer returns fixed semantic scores keyed by text pair, or an
// error when armed to fail.
type scriptedScorer struct {
	score float64
	err   error
	calls int
}

func (s *scriptedScorer) Score(context.Context, string, string) (float64, error) {
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	return s.score, nil
}

var gateNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func newGateStore(t *testing.T, postings ...*types.Posting) *store.Memory {
	t.Helper()
	m := store.NewMemory()
	for _, p := range postings {
		require.NoError(t, m.CreatePosting(context.Background(), p))
	}
	return m
}

func posting(id, title, org, body, location string, discovered time.Time) *types.Posting {
	return &types.Posting{
		Key:          types.PostingKey{Source: "boardA", SourceID: id},
		Title:        title,
		Organization: org,
		Body:         body,
		Location:     location,
		DiscoveredAt: discovered,
	}
}

func TestEvaluate_IdenticalPosting_AutoMergesOnTier1(t *testing.T) {
	ctx := context.Background()
	body := "We are hiring a data engineer to build batch and streaming pipelines on modern cloud infrastructure."
	existing := posting("1", "Data Engineer", "Acme Inc", body, "Austin, TX", gateNow.Add(-24*time.Hour))
	incoming := posting("2", "Data Engineer", "Acme Pty Ltd", body, "Austin, Texas", gateNow)

	m := newGateStore(t, existing, incoming)
	sem := &scriptedScorer{}
	gate := NewGate(m, DefaultWeights(), DefaultThresholds(),
		WithSemanticScorer(sem), WithClock(func() time.Time { return gateNow }))

	decision, err := gate.Evaluate(ctx, incoming, []*types.Posting{existing})
	require.NoError(t, err)
	require.True(t, decision.IsDuplicate())
	assert.Equal(t, 1, decision.Tier)
	assert.Equal(t, 0, sem.calls, "Tier 2 must not run for confident Tier-1 matches")
	assert.Equal(t, existing.Key, *decision.MatchedKey)

	// Earlier-discovered member is canonical
	group, err := m.GroupOf(ctx, incoming.Key)
	require.NoError(t, err)
	require.NotNil(t, group)
	assert.Equal(t, existing.Key, group.CanonicalKey)
}

func TestEvaluate_DistinctPosting_NoMerge(t *testing.T) {
	ctx := context.Background()
	existing := posting("1", "Accountant", "Beta LLC", "Ledger reconciliation and reporting.", "Boston, MA", gateNow.Add(-time.Hour))
	incoming := posting("2", "Plumber", "Gamma Corp", "Residential pipe repair.", "Denver, CO", gateNow)

	m := newGateStore(t, existing, incoming)
	gate := NewGate(m, DefaultWeights(), DefaultThresholds(), WithClock(func() time.Time { return gateNow }))

	decision, err := gate.Evaluate(ctx, incoming, []*types.Posting{existing})
	require.NoError(t, err)
	assert.False(t, decision.IsDuplicate())
	assert.Equal(t, 0, decision.Tier)
}

func TestEvaluate_WindowExcludesStaleCandidates(t *testing.T) {
	ctx := context.Background()
	body := "Shared body text for identical postings used in the recency window test."
	stale := posting("1", "Data Engineer", "Acme", body, "Remote", gateNow.Add(-45*24*time.Hour))
	incoming := posting("2", "Data Engineer", "Acme", body, "Remote", gateNow)

	m := newGateStore(t, stale, incoming)
	gate := NewGate(m, DefaultWeights(), DefaultThresholds(), WithClock(func() time.Time { return gateNow }))

	decision, err := gate.Evaluate(ctx, incoming, []*types.Posting{stale})
	require.NoError(t, err)
	assert.False(t, decision.IsDuplicate(), "candidates outside the window are never compared")
}

func TestEvaluate_AmbiguousEscalatesToTier2(t *testing.T) {
	ctx := context.Background()
	// Same org and location, similar bodies, different titles: lands in
	// the ambiguous band on Tier 1.
	bodyA := "Design and maintain data pipelines. Work with Spark, Airflow, and warehouse modeling. Partner analytics."
	bodyB := "Design and maintain data pipelines. Work with Spark, Airflow, and warehouse modeling. Mentor juniors."
	existing := posting("1", "Data Engineer", "Acme Inc", bodyA, "Austin, TX", gateNow.Add(-48*time.Hour))
	incoming := posting("2", "Senior Data Engineer", "Acme Inc", bodyB, "Austin, TX", gateNow)

	m := newGateStore(t, existing, incoming)
	sem := &scriptedScorer{score: 0.97}
	gate := NewGate(m, DefaultWeights(), DefaultThresholds(),
		WithSemanticScorer(sem), WithClock(func() time.Time { return gateNow }))

	decision, err := gate.Evaluate(ctx, incoming, []*types.Posting{existing})
	require.NoError(t, err)
	require.True(t, decision.IsDuplicate())
	assert.Equal(t, 2, decision.Tier)
	assert.Greater(t, sem.calls, 0)

	group, err := m.GroupOf(ctx, existing.Key)
	require.NoError(t, err)
	require.NotNil(t, group)
	assert.Equal(t, existing.Key, group.CanonicalKey, "earlier discovery is canonical")
}

func TestEvaluate_Tier2BelowThreshold_Distinct(t *testing.T) {
	ctx := context.Background()
	bodyA := "Design and maintain data pipelines. Work with Spark, Airflow, and warehouse modeling. Partner analytics."
	bodyB := "Design and maintain data pipelines. Work with Spark, Airflow, and warehouse modeling. Mentor juniors."
	existing := posting("1", "Data Engineer", "Acme Inc", bodyA, "Austin, TX", gateNow.Add(-48*time.Hour))
	incoming := posting("2", "Senior Data Engineer", "Acme Inc", bodyB, "Austin, TX", gateNow)

	m := newGateStore(t, existing, incoming)
	sem := &scriptedScorer{score: 0.40}
	gate := NewGate(m, DefaultWeights(), DefaultThresholds(),
		WithSemanticScorer(sem), WithClock(func() time.Time { return gateNow }))

	decision, err := gate.Evaluate(ctx, incoming, []*types.Posting{existing})
	require.NoError(t, err)
	assert.False(t, decision.IsDuplicate())
}

func TestEvaluate_Tier2Failure_DegradesToDistinct(t *testing.T) {
	ctx := context.Background()
	bodyA := "Design and maintain data pipelines. Work with Spark, Airflow, and warehouse modeling. Partner analytics."
	bodyB := "Design and maintain data pipelines. Work with Spark, Airflow, and warehouse modeling. Mentor juniors."
	existing := posting("1", "Data Engineer", "Acme Inc", bodyA, "Austin, TX", gateNow.Add(-48*time.Hour))
	incoming := posting("2", "Senior Data Engineer", "Acme Inc", bodyB, "Austin, TX", gateNow)

	m := newGateStore(t, existing, incoming)
	sem := &scriptedScorer{err: errors.New("embedding provider unavailable")}
	gate := NewGate(m, DefaultWeights(), DefaultThresholds(),
		WithSemanticScorer(sem), WithClock(func() time.Time { return gateNow }))

	decision, err := gate.Evaluate(ctx, incoming, []*types.Posting{existing})
	require.NoError(t, err, "a Tier-2 failure must not fail the evaluation")
	assert.False(t, decision.IsDuplicate())
}

func TestEvaluate_Deterministic(t *testing.T) {
	ctx := context.Background()
	body := "Identical body content so the pair clears the merge threshold deterministically."
	a := posting("1", "Data Engineer", "Acme", body, "Remote", gateNow.Add(-2*time.Hour))
	b := posting("2", "Data Engineer", "Acme", body, "Remote", gateNow.Add(-time.Hour))
	incoming := posting("3", "Data Engineer", "Acme", body, "Remote", gateNow)

	run := func() types.PostingKey {
		m := newGateStore(t, a, b, incoming)
		gate := NewGate(m, DefaultWeights(), DefaultThresholds(), WithClock(func() time.Time { return gateNow }))
		decision, err := gate.Evaluate(ctx, incoming, []*types.Posting{a, b})
		require.NoError(t, err)
		require.True(t, decision.IsDuplicate())
		return *decision.MatchedKey
	}
	runReversed := func() types.PostingKey {
		m := newGateStore(t, a, b, incoming)
		gate := NewGate(m, DefaultWeights(), DefaultThresholds(), WithClock(func() time.Time { return gateNow }))
		decision, err := gate.Evaluate(ctx, incoming, []*types.Posting{b, a})
		require.NoError(t, err)
		require.True(t, decision.IsDuplicate())
		return *decision.MatchedKey
	}

	first := run()
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, run())
		assert.Equal(t, first, runReversed(), "pool order must not change the decision")
	}
	// Equal scores tie-break on earliest discovery
	assert.Equal(t, a.Key, first)
}

func TestEvaluate_SkipsSelf(t *testing.T) {
	ctx := context.Background()
	incoming := posting("1", "Data Engineer", "Acme", "body", "Remote", gateNow)
	m := newGateStore(t, incoming)
	gate := NewGate(m, DefaultWeights(), DefaultThresholds(), WithClock(func() time.Time { return gateNow }))

	decision, err := gate.Evaluate(ctx, incoming, []*types.Posting{incoming})
	require.NoError(t, err)
	assert.False(t, decision.IsDuplicate())
}

func TestEvaluate_GroupGrowsWithLaterMatches(t *testing.T) {
	ctx := context.Background()
	body := "Identical body content reused across three postings of the same opportunity."
	first := posting("1", "Data Engineer", "Acme", body, "Remote", gateNow.Add(-3*time.Hour))
	second := posting("2", "Data Engineer", "Acme", body, "Remote", gateNow.Add(-time.Hour))
	third := posting("3", "Data Engineer", "Acme", body, "Remote", gateNow)

	m := newGateStore(t, first, second, third)
	gate := NewGate(m, DefaultWeights(), DefaultThresholds(), WithClock(func() time.Time { return gateNow }))

	d1, err := gate.Evaluate(ctx, second, []*types.Posting{first})
	require.NoError(t, err)
	require.True(t, d1.IsDuplicate())

	d2, err := gate.Evaluate(ctx, third, []*types.Posting{first, second})
	require.NoError(t, err)
	require.True(t, d2.IsDuplicate())

	// All three share one group; a posting belongs to at most one group.
	assert.Equal(t, *d1.GroupID, *d2.GroupID)
	g, err := m.GroupOf(ctx, first.Key)
	require.NoError(t, err)
	assert.Equal(t, *d1.GroupID, g.ID)
}

// thresholdGate builds a gate whose Tier-1 score is fully controlled by the
// title scorer, making exact boundary values easy to construct.
func TestEvaluate_ThresholdBoundaries(t *testing.T) {
	ctx := context.Background()
	// With weights title=1.0 the Tier-1 score equals the token-set
	// similarity of the titles.
	weights := Weights{Title: 1.0}

	t.Run("exactly 0.90 auto-merges without Tier 2", func(t *testing.T) {
		// 9 shared tokens of 10 union = 0.9
		titleA := "a b c d e f g h i j"
		titleB := "a b c d e f g h i"
		existing := posting("1", titleA, "Acme", "", "", gateNow.Add(-time.Hour))
		incoming := posting("2", titleB, "Acme", "", "", gateNow)
		m := newGateStore(t, existing, incoming)
		sem := &scriptedScorer{score: 0.0}
		gate := NewGate(m, weights, DefaultThresholds(),
			WithSemanticScorer(sem), WithClock(func() time.Time { return gateNow }))

		decision, err := gate.Evaluate(ctx, incoming, []*types.Posting{existing})
		require.NoError(t, err)
		assert.True(t, decision.IsDuplicate())
		assert.Equal(t, 1, decision.Tier)
		assert.Equal(t, 0, sem.calls)
	})

	t.Run("exactly 0.75 escalates to Tier 2", func(t *testing.T) {
		// 3 shared tokens of 4 union = 0.75
		titleA := "a b c d"
		titleB := "a b c"
		existing := posting("1", titleA, "Acme", "", "", gateNow.Add(-time.Hour))
		incoming := posting("2", titleB, "Acme", "", "", gateNow)
		m := newGateStore(t, existing, incoming)
		sem := &scriptedScorer{score: 0.95}
		gate := NewGate(m, weights, DefaultThresholds(),
			WithSemanticScorer(sem), WithClock(func() time.Time { return gateNow }))

		decision, err := gate.Evaluate(ctx, incoming, []*types.Posting{existing})
		require.NoError(t, err)
		assert.Greater(t, sem.calls, 0, "boundary candidates are escalated, never dropped")
		assert.True(t, decision.IsDuplicate())
		assert.Equal(t, 2, decision.Tier)
	})

	t.Run("just below 0.75 is distinct", func(t *testing.T) {
		// 2 shared tokens of 3 union ≈ 0.667
		existing := posting("1", "a b c", "Acme", "", "", gateNow.Add(-time.Hour))
		incoming := posting("2", "a b", "Acme", "", "", gateNow)
		m := newGateStore(t, existing, incoming)
		sem := &scriptedScorer{score: 1.0}
		gate := NewGate(m, weights, DefaultThresholds(),
			WithSemanticScorer(sem), WithClock(func() time.Time { return gateNow }))

		decision, err := gate.Evaluate(ctx, incoming, []*types.Posting{existing})
		require.NoError(t, err)
		assert.False(t, decision.IsDuplicate())
		assert.Equal(t, 0, sem.calls)
	})
}
