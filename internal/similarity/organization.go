package similarity

import "strings"

// legalSuffixes are trailing legal-entity markers that carry no identity
// signal. They are stripped before comparing organization names so
// "Acme Pty Ltd" and "Acme Inc" compare as "acme" vs "acme".
var legalSuffixes = []string{
	"pty ltd", "pty. ltd.", "ltd", "ltd.", "limited",
	"inc", "inc.", "incorporated", "llc", "l.l.c.",
	"gmbh", "corp", "corp.", "corporation", "co", "co.",
	"plc", "s.a.", "b.v.", "ag",
}

// NormalizeOrganization lowercases, collapses whitespace, and strips legal
// entity suffixes from an organization name.
func NormalizeOrganization(name string) string {
	norm := strings.Join(Tokenize(name), " ")
	for changed := true; changed; {
		changed = false
		for _, suffix := range legalSuffixes {
			trimmed := strings.TrimSuffix(norm, " "+strings.Join(Tokenize(suffix), " "))
			if trimmed != norm {
				norm = strings.TrimSpace(trimmed)
				changed = true
			}
		}
	}
	return norm
}

// Organization scores two organization names by normalized edit distance
// after legal-suffix stripping. Identical normalized names score 1.0.
func Organization(a, b string) float64 {
	na, nb := NormalizeOrganization(a), NormalizeOrganization(b)
	if na == "" && nb == "" {
		return 1.0
	}
	if na == "" || nb == "" {
		return 0.0
	}
	return editSimilarity(na, nb)
}

// editSimilarity converts Levenshtein distance to a [0,1] similarity by
// normalizing against the longer string's length.
func editSimilarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 1.0
	}
	dist := levenshtein(ra, rb)
	return 1.0 - float64(dist)/float64(maxLen)
}

// levenshtein computes edit distance with a single rolling row.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
