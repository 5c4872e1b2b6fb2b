package story

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const (
	publishedBonus          = 2.0
	summaryLengthCap        = 220
	lowInformationThreshold = 60
	lowInformationPenalty   = 1.0
	administrativePenalty   = 0.75
)

var administrativeKeywords = []string{
	"sponsored",
	"press release",
	"newsletter",
	"roundup",
	"transcript",
	"webinar",
	"digest",
	"opinion",
	"podcast",
	"advertisement",
	"event",
}

// QualityScore rates how useful a record is to a reader. Dated records with a
// substantive summary score highest; thin and administrative entries are
// penalized.
func QualityScore(rec Record) float64 {
	score := 0.0
	if _, ok := rec.PublishedAt(); ok {
		score += publishedBonus
	}

	length := utf8.RuneCountInString(CleanSummary(rec.Summary))
	score += float64(min(length, summaryLengthCap)) / summaryLengthCap
	if length < lowInformationThreshold {
		score -= lowInformationPenalty
	}
	if IsAdministrative(rec) {
		score -= administrativePenalty
	}
	return score
}

// IsLowInformation reports whether the cleaned summary is too short to tell
// the reader anything.
func IsLowInformation(rec Record) bool {
	return utf8.RuneCountInString(CleanSummary(rec.Summary)) < lowInformationThreshold
}

// IsAdministrative reports whether the title or summary names an
// administrative content type. Keywords match whole words or their plural,
// so "events" fires but "prevented" does not.
func IsAdministrative(rec Record) bool {
	text := " " + normalizeForSimilarity(rec.Title+" "+CleanSummary(rec.Summary)) + " "
	for _, keyword := range administrativeKeywords {
		if strings.Contains(text, " "+keyword+" ") || strings.Contains(text, " "+keyword+"s ") {
			return true
		}
	}
	return false
}

// CleanSummary strips markup from a feed summary and collapses whitespace.
func CleanSummary(raw string) string {
	text := raw
	if strings.ContainsAny(text, "<&") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(text)); err == nil {
			doc.Find("script, style, noscript").Remove()
			text = doc.Text()
		}
	}
	return strings.Join(strings.Fields(text), " ")
}
