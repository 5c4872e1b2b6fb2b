package langdetect

import (
	"strings"
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"
)

// minLetters is the shortest sample worth classifying. Headlines below this
// produce noise.
const minLetters = 6

// sampleRunes bounds the text handed to the detector.
const sampleRunes = 800

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// DetectISO6391 returns the two-letter code for text, or "" when unsure.
func DetectISO6391(text string) string {
	sample := strings.TrimSpace(text)
	if sample == "" {
		return ""
	}

	letters := 0
	for _, r := range sample {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if letters < minLetters {
		return ""
	}
	if runes := []rune(sample); len(runes) > sampleRunes {
		sample = string(runes[:sampleRunes])
	}

	language, exists := getDetector().DetectLanguageOf(sample)
	if !exists {
		return ""
	}
	code := strings.ToLower(language.IsoCode639_1().String())
	if len(code) != 2 {
		return ""
	}
	return code
}

// DetectStory classifies a headline together with its summary. The title
// alone is often too short.
func DetectStory(title, summary string) string {
	return DetectISO6391(strings.TrimSpace(title + ". " + summary))
}

func getDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromAllLanguages().
			WithMinimumRelativeDistance(0.1).
			Build()
	})
	return detector
}
