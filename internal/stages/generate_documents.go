package stages

import (
	"context"
	"fmt"

	"github.com/marcus/jobgate/internal/llm"
	"github.com/marcus/jobgate/internal/pipeline"
)

// StageGenerateDocuments is the name of the document-generation stage.
const StageGenerateDocuments = "generate_documents"

// GenerateDocuments drafts a cover letter tailored to the posting. The
// draft lands in the stage payload for the quality check to judge.
type GenerateDocuments struct {
	client  llm.Client
	profile string
}

// NewGenerateDocuments builds the document-generation stage.
func NewGenerateDocuments(client llm.Client, profile string) *GenerateDocuments {
	return &GenerateDocuments{client: client, profile: profile}
}

// Name implements pipeline.Stage.
func (g *GenerateDocuments) Name() string { return StageGenerateDocuments }

// Execute implements pipeline.Stage.
func (g *GenerateDocuments) Execute(ctx context.Context, rc *pipeline.RunContext) (*pipeline.StageResult, error) {
	if rc.Posting == nil {
		return nil, pipeline.Permanent(fmt.Errorf("run has no posting"))
	}

	prompt := fmt.Sprintf(`Write a concise cover letter for this posting. Three
paragraphs, no salutation placeholder, grounded only in the profile below.

Candidate profile:
%s

Posting title: %s
Organization: %s

Posting body:
%s`, g.profile, rc.Posting.Title, rc.Posting.Organization, rc.Posting.Body)

	letter, err := g.client.GenerateContent(ctx, prompt, llm.TierStandard)
	if err != nil {
		return nil, pipeline.Transient(fmt.Errorf("document generation failed: %w", err))
	}
	if letter == "" {
		return nil, pipeline.Transient(fmt.Errorf("document generation returned empty content"))
	}

	return &pipeline.StageResult{
		Decision: pipeline.DecisionApprove,
		Payload: map[string]any{
			"cover_letter": letter,
		},
	}, nil
}
