package story

import (
	"regexp"
	"strings"
)

var (
	numberPattern    = regexp.MustCompile(`\d+(?:\.\d+)?`)
	isoDatePattern   = regexp.MustCompile(`\b\d{4}-\d{1,2}-\d{1,2}\b`)
	slashDatePattern = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/(?:\d{4}|\d{2})\b`)
	// A run of two or more capitalized words of three or more letters. The
	// leading group keeps matches from starting inside a word.
	namedSpanPattern = regexp.MustCompile(`(?:^|[^\p{L}])(\p{Lu}\p{L}{2,}(?:\s+\p{Lu}\p{L}{2,})+)`)
)

// Metadata is the set of lower-cased factual anchors found in a text: numbers,
// dates and multi-word named spans.
type Metadata map[string]struct{}

// ExtractMetadata pulls factual anchors out of text. Two reports of the same
// event tend to share them even when worded differently.
func ExtractMetadata(text string) Metadata {
	out := make(Metadata)
	if strings.TrimSpace(text) == "" {
		return out
	}

	for _, match := range numberPattern.FindAllString(text, -1) {
		out[match] = struct{}{}
	}
	for _, match := range isoDatePattern.FindAllString(text, -1) {
		out[match] = struct{}{}
	}
	for _, match := range slashDatePattern.FindAllString(text, -1) {
		out[match] = struct{}{}
	}
	for _, groups := range namedSpanPattern.FindAllStringSubmatch(text, -1) {
		span := strings.Join(strings.Fields(groups[1]), " ")
		out[strings.ToLower(span)] = struct{}{}
	}
	return out
}

// Has reports whether the anchor is present.
func (m Metadata) Has(anchor string) bool {
	_, ok := m[anchor]
	return ok
}

// MetadataOverlapRatio is |A ∩ B| / max(1, min(|A|, |B|)). Empty on either
// side yields 0.
func MetadataOverlapRatio(a, b Metadata) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	shared := 0
	for anchor := range small {
		if _, ok := large[anchor]; ok {
			shared++
		}
	}
	return float64(shared) / float64(max(1, len(small)))
}
