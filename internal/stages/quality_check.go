package stages

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/marcus/jobgate/internal/llm"
	"github.com/marcus/jobgate/internal/pipeline"
)

// StageQualityCheck is the name of the quality-review stage.
const StageQualityCheck = "quality_check"

// QualityCheck grades the generated documents. Confident passes approve,
// confident failures reject, and borderline drafts park the run for a
// human reviewer.
type QualityCheck struct {
	client llm.Client
	// passScore and borderScore split the verdict range into
	// approve / pending / reject bands.
	passScore   float64
	borderScore float64
}

// NewQualityCheck builds the quality-review stage. Verdicts at or above
// passScore approve; verdicts below borderScore reject; the band between
// parks the run pending manual review.
func NewQualityCheck(client llm.Client, passScore, borderScore float64) *QualityCheck {
	return &QualityCheck{client: client, passScore: passScore, borderScore: borderScore}
}

// Name implements pipeline.Stage.
func (q *QualityCheck) Name() string { return StageQualityCheck }

type qualityVerdict struct {
	Score  float64  `json:"score"`
	Issues []string `json:"issues"`
}

// Execute implements pipeline.Stage.
func (q *QualityCheck) Execute(ctx context.Context, rc *pipeline.RunContext) (*pipeline.StageResult, error) {
	letter := coverLetterFrom(rc.Outputs)
	if letter == "" {
		return nil, pipeline.Permanent(fmt.Errorf("no cover letter in prior stage outputs"))
	}

	prompt := fmt.Sprintf(`Grade this cover letter for clarity, specificity, and
fit to the posting. Respond with JSON:
{"score": <0.0-1.0>, "issues": ["<issue>", ...]}.

Posting title: %s
Organization: %s

Cover letter:
%s`, rc.Posting.Title, rc.Posting.Organization, letter)

	raw, err := q.client.GenerateJSON(ctx, prompt, llm.TierAdvanced)
	if err != nil {
		return nil, pipeline.Transient(fmt.Errorf("quality check failed: %w", err))
	}

	var verdict qualityVerdict
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return nil, pipeline.Transient(fmt.Errorf("failed to parse quality verdict: %w", err))
	}

	payload := map[string]any{
		"score":  verdict.Score,
		"issues": verdict.Issues,
	}
	switch {
	case verdict.Score >= q.passScore:
		return &pipeline.StageResult{Decision: pipeline.DecisionApprove, Payload: payload}, nil
	case verdict.Score < q.borderScore:
		return &pipeline.StageResult{Decision: pipeline.DecisionReject, Payload: payload}, nil
	default:
		return &pipeline.StageResult{Decision: pipeline.DecisionPending, Payload: payload}, nil
	}
}

func coverLetterFrom(outputs map[string]any) string {
	out, ok := outputs[StageGenerateDocuments]
	if !ok {
		return ""
	}
	payload, ok := out.(map[string]any)
	if !ok {
		return ""
	}
	letter, _ := payload["cover_letter"].(string)
	return letter
}
