package observability

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/marcus/jobgate/internal/types"
)

func TestPrintPosting(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintPosting(&types.Posting{
		Key:          types.PostingKey{Source: "boards", SourceID: "101"},
		Title:        "Backend Engineer",
		Organization: "Initech",
		Location:     "Austin, TX",
		Remote:       true,
		DiscoveredAt: time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC),
	})
	output := buf.String()

	assert.Contains(t, output, "POSTING")
	assert.Contains(t, output, "boards:101")
	assert.Contains(t, output, "Backend Engineer")
	assert.Contains(t, output, "(remote)")
	assert.Contains(t, output, "2026-08-20")
}

func TestPrintPosting_Nil(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintPosting(nil)

	assert.Empty(t, buf.String())
}

func TestPrintDecision_Duplicate(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	groupID := uuid.New()
	matched := types.PostingKey{Source: "boards", SourceID: "100"}
	p.PrintDecision(types.PostingKey{Source: "boards", SourceID: "101"}, &types.DuplicateDecision{
		GroupID:    &groupID,
		MatchedKey: &matched,
		Confidence: 0.93,
		Tier:       1,
	})
	output := buf.String()

	assert.Contains(t, output, "DUPLICATE GATE")
	assert.Contains(t, output, "duplicate")
	assert.Contains(t, output, "boards:100")
	assert.Contains(t, output, "0.930")
}

func TestPrintDecision_Distinct(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintDecision(types.PostingKey{Source: "boards", SourceID: "101"}, &types.DuplicateDecision{
		Confidence: 0.42,
	})
	output := buf.String()

	assert.Contains(t, output, "distinct")
	assert.NotContains(t, output, "Matched")
}

func TestPrintRun(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintRun(&types.PipelineRun{
		ID:                uuid.New(),
		PostingKey:        types.PostingKey{Source: "boards", SourceID: "101"},
		Status:            types.RunStatusRunning,
		CurrentStageIndex: 1,
		CompletedStages:   []string{"score_fit"},
	}, []string{"score_fit", "generate_documents", "quality_check"})
	output := buf.String()

	assert.Contains(t, output, "PIPELINE RUN")
	assert.Contains(t, output, "✓ score_fit")
	assert.Contains(t, output, "→ generate_documents")
	assert.Contains(t, output, "quality_check")
}

func TestPrintRunShowsError(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintRun(&types.PipelineRun{
		ID:         uuid.New(),
		PostingKey: types.PostingKey{Source: "boards", SourceID: "102"},
		Status:     types.RunStatusFailed,
		LastError: &types.RunError{
			Stage:    "score_fit",
			Category: types.ErrorCategoryPermanent,
			Message:  "malformed posting",
		},
	}, []string{"score_fit"})
	output := buf.String()

	assert.Contains(t, output, "score_fit [permanent]")
	assert.Contains(t, output, "malformed posting")
}
