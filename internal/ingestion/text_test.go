package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanTextNormalizesLineEndings(t *testing.T) {
	assert.Equal(t, "one\ntwo\nthree", CleanText("one\r\ntwo\rthree"))
}

func TestCleanTextCollapsesSpaceRuns(t *testing.T) {
	assert.Equal(t, "Build and operate Go services", CleanText("Build   and  operate\tGo services"))
}

func TestCleanTextPreservesBullets(t *testing.T) {
	in := "Requirements:\n- 5 years of Go\n  - including gRPC\n* on-call rotation"
	assert.Equal(t, in, CleanText(in))
}

func TestCleanTextNormalizesHeadings(t *testing.T) {
	assert.Equal(t, "## About the role", CleanText("   ## About the role"))
}

func TestCleanTextLimitsBlankLines(t *testing.T) {
	out := CleanText("para one\n\n\n\n\npara two")
	assert.Equal(t, "para one\n\npara two", out)
}

func TestCleanTextTrimsEdges(t *testing.T) {
	assert.Equal(t, "body", CleanText("\n\n  body  \n\n"))
	assert.Equal(t, "", CleanText(""))
	assert.Equal(t, "", CleanText("   \n \t \n"))
}
