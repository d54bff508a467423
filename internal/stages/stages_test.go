package stages

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus/jobgate/internal/llm"
	"github.com/marcus/jobgate/internal/pipeline"
	"github.com/marcus/jobgate/internal/types"
)

// fakeClient returns canned responses without touching a provider.
type fakeClient struct {
	text    string
	jsonOut string
	err     error
}

func (f *fakeClient) GenerateContent(_ context.Context, _ string, _ llm.ModelTier) (string, error) {
	return f.text, f.err
}

func (f *fakeClient) GenerateJSON(_ context.Context, _ string, _ llm.ModelTier) (string, error) {
	return f.jsonOut, f.err
}

func (f *fakeClient) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, f.err
}

func (f *fakeClient) Close() error { return nil }

func testRunContext() *pipeline.RunContext {
	return &pipeline.RunContext{
		RunID: "run-1",
		Posting: &types.Posting{
			Key:          types.PostingKey{Source: "boards", SourceID: "42"},
			Title:        "Backend Engineer",
			Organization: "Initech",
			Location:     "Austin, TX",
			Body:         "Build and operate Go services.",
		},
		Outputs: map[string]any{},
	}
}

func TestScoreFitApprovesAboveThreshold(t *testing.T) {
	client := &fakeClient{jsonOut: `{"score": 0.82, "reasoning": "strong backend overlap"}`}
	stage := NewScoreFit(client, "Go backend engineer", 0.6)

	result, err := stage.Execute(context.Background(), testRunContext())
	require.NoError(t, err)
	assert.Equal(t, pipeline.DecisionApprove, result.Decision)
	assert.Equal(t, 0.82, result.Payload["score"])
}

func TestScoreFitRejectsBelowThreshold(t *testing.T) {
	client := &fakeClient{jsonOut: `{"score": 0.3, "reasoning": "different domain"}`}
	stage := NewScoreFit(client, "Go backend engineer", 0.6)

	result, err := stage.Execute(context.Background(), testRunContext())
	require.NoError(t, err)
	assert.Equal(t, pipeline.DecisionReject, result.Decision)
}

func TestScoreFitProviderErrorIsTransient(t *testing.T) {
	client := &fakeClient{err: errors.New("rate limited")}
	stage := NewScoreFit(client, "profile", 0.6)

	_, err := stage.Execute(context.Background(), testRunContext())
	require.Error(t, err)
	assert.Equal(t, types.ErrorCategoryTransient, pipeline.Categorize(err))
}

func TestScoreFitMalformedJSONIsTransient(t *testing.T) {
	client := &fakeClient{jsonOut: "not json"}
	stage := NewScoreFit(client, "profile", 0.6)

	_, err := stage.Execute(context.Background(), testRunContext())
	require.Error(t, err)
	assert.Equal(t, types.ErrorCategoryTransient, pipeline.Categorize(err))
}

func TestGenerateDocumentsProducesCoverLetter(t *testing.T) {
	client := &fakeClient{text: "Dear hiring team, ..."}
	stage := NewGenerateDocuments(client, "Go backend engineer")

	result, err := stage.Execute(context.Background(), testRunContext())
	require.NoError(t, err)
	assert.Equal(t, pipeline.DecisionApprove, result.Decision)
	assert.Equal(t, "Dear hiring team, ...", result.Payload["cover_letter"])
}

func TestGenerateDocumentsEmptyContentIsTransient(t *testing.T) {
	client := &fakeClient{text: ""}
	stage := NewGenerateDocuments(client, "profile")

	_, err := stage.Execute(context.Background(), testRunContext())
	require.Error(t, err)
	assert.Equal(t, types.ErrorCategoryTransient, pipeline.Categorize(err))
}

func TestQualityCheckBands(t *testing.T) {
	rc := testRunContext()
	rc.Outputs[StageGenerateDocuments] = map[string]any{"cover_letter": "Dear hiring team, ..."}

	cases := []struct {
		name     string
		verdict  string
		decision pipeline.Decision
	}{
		{"high score approves", `{"score": 0.95, "issues": []}`, pipeline.DecisionApprove},
		{"borderline parks for review", `{"score": 0.6, "issues": ["vague second paragraph"]}`, pipeline.DecisionPending},
		{"low score rejects", `{"score": 0.2, "issues": ["generic"]}`, pipeline.DecisionReject},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stage := NewQualityCheck(&fakeClient{jsonOut: tc.verdict}, 0.8, 0.5)
			result, err := stage.Execute(context.Background(), rc)
			require.NoError(t, err)
			assert.Equal(t, tc.decision, result.Decision)
		})
	}
}

func TestQualityCheckMissingLetterIsPermanent(t *testing.T) {
	stage := NewQualityCheck(&fakeClient{}, 0.8, 0.5)

	_, err := stage.Execute(context.Background(), testRunContext())
	require.Error(t, err)
	assert.Equal(t, types.ErrorCategoryPermanent, pipeline.Categorize(err))
}

func TestManualReviewFollowsQueueDecision(t *testing.T) {
	queue := NewMemoryReviewQueue()
	stage := NewManualReview(queue)
	rc := testRunContext()

	// Undecided parks the run.
	result, err := stage.Execute(context.Background(), rc)
	require.NoError(t, err)
	assert.Equal(t, pipeline.DecisionPending, result.Decision)

	queue.Record("run-1", ReviewApproved)
	result, err = stage.Execute(context.Background(), rc)
	require.NoError(t, err)
	assert.Equal(t, pipeline.DecisionApprove, result.Decision)

	queue.Record("run-1", ReviewRejected)
	result, err = stage.Execute(context.Background(), rc)
	require.NoError(t, err)
	assert.Equal(t, pipeline.DecisionReject, result.Decision)
}
