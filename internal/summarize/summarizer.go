// Package summarize writes the one-sentence item blurbs and the per-topic
// overview paragraphs. Any model failure falls back to extractive text built
// from the feed itself, so an edition can always be rendered.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/isaiahnixon/newspaper/internal/llm"
	"github.com/isaiahnixon/newspaper/internal/reader"
	"github.com/isaiahnixon/newspaper/internal/story"
)

const (
	DefaultDescriptionChars = 1200
	DefaultTopicItemChars   = 280

	itemSystemPrompt = "You are a careful news summarizer. Be neutral and factual. " +
		"Avoid sensational adjectives, loaded framing, or speculation. " +
		"If evidence is unclear, say so briefly. " +
		"Write exactly one sentence in plain language, 20-35 words."

	topicSystemPrompt = "You write neutral multi-source topic summaries. " +
		"Use 3-6 sentences. Avoid speculation or sensational framing. " +
		"Highlight what happened and why it matters, using plain language. " +
		"If evidence is unclear, say so briefly."

	extractiveTopicItems = 3
)

type Options struct {
	ItemModel   string
	TopicModel  string
	Temperature *float64
	// TopicAttempts is how many times a topic summary is requested before
	// falling back. Values below one mean one.
	TopicAttempts    int
	DescriptionChars int
	TopicItemChars   int
}

// Item pairs a selected record with its blurb. Generated is false when the
// blurb was extracted from the feed text.
type Item struct {
	Record    story.Record `json:"record"`
	Summary   string       `json:"summary"`
	Generated bool         `json:"generated"`
}

type Summarizer struct {
	provider llm.Provider
	opts     Options
	logger   zerolog.Logger
}

func New(provider llm.Provider, opts Options, logger zerolog.Logger) *Summarizer {
	if provider == nil {
		provider = llm.DryRun{}
	}
	if opts.TopicAttempts < 1 {
		opts.TopicAttempts = 1
	}
	if opts.DescriptionChars <= 0 {
		opts.DescriptionChars = DefaultDescriptionChars
	}
	if opts.TopicItemChars <= 0 {
		opts.TopicItemChars = DefaultTopicItemChars
	}
	return &Summarizer{provider: provider, opts: opts, logger: logger}
}

// Items summarizes records in order.
func (s *Summarizer) Items(ctx context.Context, topic string, records []story.Record) []Item {
	s.logger.Debug().Str("topic", topic).Int("items", len(records)).Msg("summarizing items")
	out := make([]Item, 0, len(records))
	for _, rec := range records {
		summary, generated := s.Item(ctx, rec)
		out = append(out, Item{Record: rec, Summary: summary, Generated: generated})
	}
	return out
}

// Item returns a one-sentence summary and whether a model wrote it.
func (s *Summarizer) Item(ctx context.Context, rec story.Record) (string, bool) {
	text, err := s.provider.Complete(ctx, llm.Prompt{
		Model:       s.opts.ItemModel,
		System:      itemSystemPrompt,
		User:        s.itemPrompt(rec),
		Temperature: s.opts.Temperature,
	})
	text = strings.TrimSpace(text)
	if err == nil && text != "" {
		return text, true
	}
	s.logFallback(err, "item", rec.Title)
	return ExtractiveItem(rec), false
}

// Topic writes the overview paragraph for a topic's items.
func (s *Summarizer) Topic(ctx context.Context, topic string, items []Item) (string, bool) {
	if len(items) == 0 {
		return "", false
	}

	prompt := llm.Prompt{
		Model:       s.opts.TopicModel,
		System:      topicSystemPrompt,
		User:        s.topicPrompt(topic, items),
		Temperature: s.opts.Temperature,
	}

	var lastErr error
	for attempt := 1; attempt <= s.opts.TopicAttempts; attempt++ {
		text, err := s.provider.Complete(ctx, prompt)
		text = strings.TrimSpace(text)
		if err == nil && text != "" {
			return text, true
		}
		if err == nil {
			err = fmt.Errorf("empty topic summary")
		}
		lastErr = err
		if errors.Is(err, llm.ErrDryRun) || ctx.Err() != nil {
			break
		}
		s.logger.Debug().Err(err).Str("topic", topic).Int("attempt", attempt).Msg("topic summary attempt failed")
	}
	s.logFallback(lastErr, "topic", topic)
	return ExtractiveTopic(items), false
}

func (s *Summarizer) logFallback(err error, kind, subject string) {
	if errors.Is(err, llm.ErrDryRun) {
		return
	}
	event := s.logger.Warn()
	if err != nil {
		event = event.Err(err)
	}
	event.Str("kind", kind).Str("subject", subject).Msg("summary fell back to extractive text")
}

func (s *Summarizer) itemPrompt(rec story.Record) string {
	description := compactText(s.opts.DescriptionChars, story.CleanSummary(rec.Summary), rec.FullText)
	return "Summarize the following item in one neutral sentence. Do not invent facts.\n\n" +
		"Title: " + rec.Title + "\n" +
		"Description: " + description + "\n" +
		"Source: " + rec.SourceLabel + "\n"
}

func (s *Summarizer) topicPrompt(topic string, items []Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a 3-6 sentence topic summary for %s. Use the items below.\n\nItems:\n", topic)
	for i, item := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- %s: %s", item.Record.Title, compactText(s.opts.TopicItemChars, story.CleanSummary(item.Record.Summary)))
	}
	return b.String()
}

// ExtractiveItem is the first sentence of the feed summary, then of the
// full text, then the title.
func ExtractiveItem(rec story.Record) string {
	for _, text := range []string{story.CleanSummary(rec.Summary), rec.FullText} {
		if sentence := firstSentence(text); sentence != "" {
			return sentence
		}
	}
	return strings.TrimSpace(rec.Title)
}

// ExtractiveTopic strings together the leading item blurbs.
func ExtractiveTopic(items []Item) string {
	parts := make([]string, 0, extractiveTopicItems)
	for _, item := range items {
		if len(parts) == extractiveTopicItems {
			break
		}
		summary := strings.TrimSpace(item.Summary)
		if summary == "" {
			summary = strings.TrimSpace(item.Record.Title)
		}
		if summary == "" {
			continue
		}
		if !endsSentence(summary) {
			summary += "."
		}
		parts = append(parts, summary)
	}
	return strings.Join(parts, " ")
}

func compactText(maxChars int, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			kept = append(kept, part)
		}
	}
	combined := strings.Join(strings.Fields(strings.Join(kept, "\n")), " ")
	clipped, _ := reader.TruncateText(combined, maxChars)
	return clipped
}

func firstSentence(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return ""
	}
	runes := []rune(text)
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
			return string(runes[:i+1])
		}
	}
	clipped, _ := reader.TruncateText(text, DefaultTopicItemChars)
	return clipped
}

func endsSentence(s string) bool {
	return strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?") || strings.HasSuffix(s, "…")
}
