// Package stages provides the application's pipeline stages. Each stage
// implements the pipeline.Stage contract; the orchestrator treats them as
// opaque beyond decision and error category.
package stages

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/marcus/jobgate/internal/llm"
	"github.com/marcus/jobgate/internal/pipeline"
)

// StageScoreFit is the name of the fit-scoring stage.
const StageScoreFit = "score_fit"

// ScoreFit asks the model how well a posting matches the configured
// candidate profile and rejects poor fits early.
type ScoreFit struct {
	client   llm.Client
	profile  string
	minScore float64
}

// NewScoreFit builds the fit-scoring stage. Postings scoring below
// minScore are rejected.
func NewScoreFit(client llm.Client, profile string, minScore float64) *ScoreFit {
	return &ScoreFit{client: client, profile: profile, minScore: minScore}
}

// Name implements pipeline.Stage.
func (s *ScoreFit) Name() string { return StageScoreFit }

type fitVerdict struct {
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning"`
}

// Execute implements pipeline.Stage.
func (s *ScoreFit) Execute(ctx context.Context, rc *pipeline.RunContext) (*pipeline.StageResult, error) {
	if rc.Posting == nil {
		return nil, pipeline.Permanent(fmt.Errorf("run has no posting"))
	}

	prompt := fmt.Sprintf(`Rate how well this job posting fits the candidate profile.
Respond with JSON: {"score": <0.0-1.0>, "reasoning": "<one sentence>"}.

Candidate profile:
%s

Posting title: %s
Organization: %s
Location: %s

Posting body:
%s`, s.profile, rc.Posting.Title, rc.Posting.Organization, rc.Posting.Location, rc.Posting.Body)

	raw, err := s.client.GenerateJSON(ctx, prompt, llm.TierLite)
	if err != nil {
		// Provider failures are retriable
		return nil, pipeline.Transient(fmt.Errorf("fit scoring failed: %w", err))
	}

	var verdict fitVerdict
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return nil, pipeline.Transient(fmt.Errorf("failed to parse fit verdict: %w", err))
	}
	if verdict.Score < 0 || verdict.Score > 1 {
		return nil, pipeline.Transient(fmt.Errorf("fit score %v out of range", verdict.Score))
	}

	decision := pipeline.DecisionApprove
	if verdict.Score < s.minScore {
		decision = pipeline.DecisionReject
	}
	return &pipeline.StageResult{
		Decision: decision,
		Payload: map[string]any{
			"score":     verdict.Score,
			"reasoning": verdict.Reasoning,
			"min_score": s.minScore,
		},
	}, nil
}
