package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanJSONBlock_JSONFence(t *testing.T) {
	input := "```json\n{\"score\": 0.8}\n```"
	assert.Equal(t, `{"score": 0.8}`, CleanJSONBlock(input))
}

func TestCleanJSONBlock_GenericFence(t *testing.T) {
	input := "```\n{\"score\": 0.8}\n```"
	assert.Equal(t, `{"score": 0.8}`, CleanJSONBlock(input))
}

func TestCleanJSONBlock_Unwrapped(t *testing.T) {
	assert.Equal(t, `{"a":1}`, CleanJSONBlock(`{"a":1}`))
}

func TestCleanJSONBlock_LanguageIdentifier(t *testing.T) {
	input := "```javascript\n{\"a\":1}\n```"
	assert.Equal(t, `{"a":1}`, CleanJSONBlock(input))
}
