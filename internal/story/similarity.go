package story

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"
)

const (
	titleWeight   = 0.50
	summaryWeight = 0.50
	bodyWeight    = 0.10

	// bodyLeadChars bounds how much of the full text takes part in story
	// similarity. The lead of an article carries its facts.
	bodyLeadChars = 600
)

// Similarity scores two strings in [0, 1] as the better of token overlap and
// character sequence ratio over their normalized forms.
func Similarity(a, b string) float64 {
	na := normalizeForSimilarity(a)
	nb := normalizeForSimilarity(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	score := tokenOverlap(strings.Fields(na), strings.Fields(nb))
	if ratio := sequenceRatio(na, nb); ratio > score {
		score = ratio
	}
	return clamp01(score)
}

// WeightedStorySimilarity blends title, summary and body similarity. Summary
// and body only contribute when both records carry them; the result is
// renormalized by the weights that took part.
func WeightedStorySimilarity(a, b Record) float64 {
	total := titleWeight * Similarity(a.Title, b.Title)
	weights := titleWeight

	summaryA := CleanSummary(a.Summary)
	summaryB := CleanSummary(b.Summary)
	if summaryA != "" && summaryB != "" {
		total += summaryWeight * Similarity(summaryA, summaryB)
		weights += summaryWeight
	}

	bodyA := leadingRunes(a.FullText, bodyLeadChars)
	bodyB := leadingRunes(b.FullText, bodyLeadChars)
	if strings.TrimSpace(bodyA) != "" && strings.TrimSpace(bodyB) != "" {
		total += bodyWeight * Similarity(bodyA, bodyB)
		weights += bodyWeight
	}

	return clamp01(total / weights)
}

func normalizeForSimilarity(raw string) string {
	lowered := strings.ToLower(raw)
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, lowered)
	return strings.Join(strings.Fields(mapped), " ")
}

func tokenOverlap(left, right []string) float64 {
	leftSet := tokenSet(left)
	rightSet := tokenSet(right)

	small, large := leftSet, rightSet
	if len(small) > len(large) {
		small, large = large, small
	}

	shared := 0
	for token := range small {
		if _, ok := large[token]; ok {
			shared++
		}
	}
	return float64(shared) / float64(max(1, len(small)))
}

func tokenSet(tokens []string) map[string]struct{} {
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

func sequenceRatio(a, b string) float64 {
	matcher := difflib.NewMatcher(splitRunes(a), splitRunes(b))
	return matcher.Ratio()
}

func splitRunes(s string) []string {
	out := make([]string, 0, utf8.RuneCountInString(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

func leadingRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
