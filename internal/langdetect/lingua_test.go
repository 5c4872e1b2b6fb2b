package langdetect

import "testing"

func TestDetectISO6391SkipsShortSamples(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "   ", "AI 2024", "Q3: +5%"} {
		if got := DetectISO6391(input); got != "" {
			t.Fatalf("expected no language for %q, got %q", input, got)
		}
	}
}
