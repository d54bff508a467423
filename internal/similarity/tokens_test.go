package similarity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenSet_ReorderedPhrases(t *testing.T) {
	// Order and punctuation must not matter
	score := TokenSet("Senior Data Engineer", "Data Engineer, Senior")
	assert.Equal(t, 1.0, score)
}

func TestTokenSet_CaseInsensitive(t *testing.T) {
	score := TokenSet("DATA ENGINEER", "data engineer")
	assert.Equal(t, 1.0, score)
}

func TestTokenSet_PartialOverlap(t *testing.T) {
	// {data, engineer} vs {senior, data, engineer}: 2 shared of 3 total
	score := TokenSet("Data Engineer", "Senior Data Engineer")
	assert.InDelta(t, 2.0/3.0, score, 1e-9)
}

func TestTokenSet_Disjoint(t *testing.T) {
	assert.Equal(t, 0.0, TokenSet("Accountant", "Plumber"))
}

func TestTokenSet_EmptyInputs(t *testing.T) {
	assert.Equal(t, 1.0, TokenSet("", ""))
	assert.Equal(t, 0.0, TokenSet("Data Engineer", ""))
	assert.Equal(t, 0.0, TokenSet("", "Data Engineer"))
}

func TestTokenSet_DuplicateTokensCollapse(t *testing.T) {
	// Sets, not bags: repeated tokens do not change the score
	assert.Equal(t, 1.0, TokenSet("go go go developer", "go developer"))
}

func TestBodyPrefix_IgnoresLongTail(t *testing.T) {
	shared := strings.Repeat("platform engineering kubernetes terraform ", 60)
	a := shared + strings.Repeat("alpha ", 500)
	b := shared + strings.Repeat("omega ", 500)

	// Tails beyond the prefix window diverge completely, but the shared
	// prefix dominates the bounded comparison.
	assert.Greater(t, BodyPrefix(a, b), 0.9)
}

func TestTokenize_StripsPunctuation(t *testing.T) {
	assert.Equal(t, []string{"data", "engineer", "senior"}, Tokenize("Data Engineer, (Senior)"))
}
