package story

import (
	"math"
	"strings"
	"testing"
	"time"
)

func TestQualityScore(t *testing.T) {
	t.Parallel()

	published := time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)
	longSummary := strings.Repeat("word ", 60)

	cases := []struct {
		name string
		rec  Record
		want float64
	}{
		{
			name: "dated with full summary",
			rec:  Record{Title: "Council approves transit plan", Summary: longSummary, Published: &published},
			want: 3.0,
		},
		{
			name: "undated without summary",
			rec:  Record{Title: "Council approves transit plan"},
			want: -1.0,
		},
		{
			name: "administrative keyword",
			rec:  Record{Title: "Weekly newsletter: transit plan", Summary: longSummary, Published: &published},
			want: 2.25,
		},
		{
			name: "short summary penalized",
			rec:  Record{Title: "Council approves transit plan", Summary: strings.Repeat("a", 44), Published: &published},
			want: 2.0 + 44.0/220.0 - 1.0,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := QualityScore(tc.rec); math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("QualityScore = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIsAdministrativeMatchesWholeWords(t *testing.T) {
	t.Parallel()

	if IsAdministrative(Record{Title: "Police prevented an attack downtown"}) {
		t.Fatalf("substring inside a word must not count as a keyword")
	}
	if !IsAdministrative(Record{Title: "Markets", Summary: "A sponsored look at bond yields."}) {
		t.Fatalf("expected keyword in summary to flag the record")
	}
	if !IsAdministrative(Record{Title: "Earnings call transcript: Acme Q3"}) {
		t.Fatalf("expected transcript keyword to flag the record")
	}
	if !IsAdministrative(Record{Title: "Press Release - Acme opens plant"}) {
		t.Fatalf("expected multi-word keyword to flag the record")
	}
	for _, title := range []string{
		"Podcasts: the week in tech",
		"Upcoming events in the city",
		"Webinars on tax filing",
		"Acme press releases quarterly numbers",
	} {
		if !IsAdministrative(Record{Title: title}) {
			t.Fatalf("expected plural keyword in %q to flag the record", title)
		}
	}
	if IsAdministrative(Record{Title: "Eventually the talks resumed"}) {
		t.Fatalf("keyword prefix of a longer word must not count")
	}
}

func TestCleanSummaryStripsMarkup(t *testing.T) {
	t.Parallel()

	got := CleanSummary("<p>Rates &amp; bonds <b>rally</b></p>\n<script>track()</script>")
	if got != "Rates & bonds rally" {
		t.Fatalf("unexpected cleaned summary: %q", got)
	}
	if got := CleanSummary("  plain   text \n here "); got != "plain text here" {
		t.Fatalf("unexpected cleaned plain text: %q", got)
	}
}

func TestIsLowInformation(t *testing.T) {
	t.Parallel()

	if !IsLowInformation(Record{Summary: "<p>Short.</p>"}) {
		t.Fatalf("expected short summary to be low information")
	}
	if IsLowInformation(Record{Summary: strings.Repeat("detail ", 12)}) {
		t.Fatalf("expected long summary not to be low information")
	}
}
