package schemas

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus/jobgate/internal/types"
)

func TestValidateRunRecord_Valid(t *testing.T) {
	record := `{
		"postingId": "boards:101",
		"status": "running",
		"currentStageIndex": 1,
		"completedStages": ["score_fit"],
		"stageOutputs": {"score_fit": {"score": 0.8}},
		"lastError": null
	}`

	assert.NoError(t, ValidateRunRecord(record))
}

func TestValidateRunRecord_AcceptsRealRecord(t *testing.T) {
	run := &types.PipelineRun{
		PostingKey:        types.PostingKey{Source: "boards", SourceID: "101"},
		Status:            types.RunStatusPendingManual,
		CurrentStageIndex: 2,
		CompletedStages:   []string{"score_fit", "generate_documents"},
		StageOutputs: map[string]any{
			"score_fit":          map[string]any{"score": 0.8},
			"generate_documents": map[string]any{"cover_letter": "..."},
		},
		LastError: &types.RunError{
			Stage:     "quality_check",
			Category:  types.ErrorCategoryTransient,
			Message:   "rate limited",
			Timestamp: time.Now(),
		},
	}

	data, err := json.Marshal(run.Record())
	require.NoError(t, err)
	assert.NoError(t, ValidateRunRecord(string(data)))
}

func TestValidateRunRecord_MissingRequiredField(t *testing.T) {
	record := `{
		"status": "running",
		"currentStageIndex": 0,
		"completedStages": [],
		"stageOutputs": {}
	}`

	err := ValidateRunRecord(record)
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, err.Error(), "postingId")
}

func TestValidateRunRecord_UnknownStatus(t *testing.T) {
	record := `{
		"postingId": "boards:101",
		"status": "paused",
		"currentStageIndex": 0,
		"completedStages": [],
		"stageOutputs": {}
	}`

	assert.Error(t, ValidateRunRecord(record))
}

func TestValidateRunRecord_BadErrorCategory(t *testing.T) {
	record := `{
		"postingId": "boards:101",
		"status": "failed",
		"currentStageIndex": 0,
		"completedStages": [],
		"stageOutputs": {},
		"lastError": {"stage": "score_fit", "category": "mysterious", "message": "boom"}
	}`

	assert.Error(t, ValidateRunRecord(record))
}

func TestValidateRunRecord_MalformedPostingID(t *testing.T) {
	record := `{
		"postingId": "no-colon",
		"status": "eligible",
		"currentStageIndex": 0,
		"completedStages": [],
		"stageOutputs": {}
	}`

	assert.Error(t, ValidateRunRecord(record))
}

func TestValidateJSONString_InvalidSchema(t *testing.T) {
	err := ValidateJSONString(`{"type": 42}`, `{}`)
	assert.Error(t, err)
}
