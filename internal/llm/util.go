package llm

import (
	"regexp"
	"strings"
)

// Matches an opening code fence with an optional language tag, e.g.
// "```json" or "```javascript".
var fenceOpen = regexp.MustCompile("^```[a-zA-Z]*\n?")

// CleanJSONBlock strips a markdown code fence from a model response.
// Models wrap JSON in ``` fences often enough that every structured
// response goes through this before unmarshalling.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = fenceOpen.ReplaceAllString(text, "")
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}
