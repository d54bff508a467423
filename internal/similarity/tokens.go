// Package similarity provides the deterministic per-field scorers used by
// the duplicate detection gate. Every scorer is a pure function returning a
// value in [0,1]; none consults external services, which is what keeps the
// gate's first pass cheap.
package similarity

import (
	"strings"
	"unicode"
)

// Tokenize lowercases s, strips punctuation, and splits into tokens.
// Order and multiplicity are discarded by callers that build sets.
func Tokenize(s string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.Fields(cleaned)
}

// TokenSet scores two texts by token-set overlap (Jaccard), insensitive to
// case, punctuation, and token order, so "Senior Data Engineer" and
// "Data Engineer, Senior" score 1.0. Two empty texts count as identical;
// one empty text matches nothing.
func TokenSet(a, b string) float64 {
	setA := toSet(Tokenize(a))
	setB := toSet(Tokenize(b))

	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0.0
	}

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// BodyPrefixRunes bounds how much of a posting body the token scorer reads.
// Long bodies differ mostly in boilerplate tails; the prefix carries the
// discriminating content.
const BodyPrefixRunes = 2000

// BodyPrefix scores the leading sections of two posting bodies with the
// token-set scorer.
func BodyPrefix(a, b string) float64 {
	return TokenSet(truncateRunes(a, BodyPrefixRunes), truncateRunes(b, BodyPrefixRunes))
}

func toSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	return set
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
