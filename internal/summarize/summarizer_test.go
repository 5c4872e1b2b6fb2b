package summarize

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/isaiahnixon/newspaper/internal/llm"
	"github.com/isaiahnixon/newspaper/internal/story"
)

type scriptedProvider struct {
	replies []string
	errs    []error
	prompts []llm.Prompt
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(_ context.Context, prompt llm.Prompt) (string, error) {
	i := len(p.prompts)
	p.prompts = append(p.prompts, prompt)
	var reply string
	var err error
	if i < len(p.replies) {
		reply = p.replies[i]
	}
	if i < len(p.errs) {
		err = p.errs[i]
	}
	return reply, err
}

var budget = story.Record{
	Topic:       "World",
	Title:       "Parliament passes budget",
	Link:        "https://news.example.com/budget",
	SourceLabel: "Wire",
	Summary:     "<p>Lawmakers approved the spending plan late on Tuesday. The vote was 210 to 190.</p>",
	FullText:    "Opposition members walked out before the final count.",
}

func TestItemUsesModelReply(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{replies: []string{"  Lawmakers approved a spending plan after a close vote.  "}}
	s := New(provider, Options{ItemModel: "item-model"}, zerolog.Nop())

	got, generated := s.Item(context.Background(), budget)
	if !generated || got != "Lawmakers approved a spending plan after a close vote." {
		t.Fatalf("unexpected summary %q generated=%v", got, generated)
	}

	prompt := provider.prompts[0]
	if prompt.Model != "item-model" || prompt.System != itemSystemPrompt {
		t.Fatalf("unexpected prompt settings: %+v", prompt)
	}
	for _, want := range []string{
		"Title: Parliament passes budget",
		"Description: Lawmakers approved the spending plan late on Tuesday. The vote was 210 to 190. Opposition members",
		"Source: Wire",
	} {
		if !strings.Contains(prompt.User, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt.User)
		}
	}
}

func TestItemFallsBackToFirstSentence(t *testing.T) {
	t.Parallel()

	s := New(llm.DryRun{}, Options{}, zerolog.Nop())
	got, generated := s.Item(context.Background(), budget)
	if generated {
		t.Fatalf("dry run must not report a generated summary")
	}
	if got != "Lawmakers approved the spending plan late on Tuesday." {
		t.Fatalf("unexpected extractive summary %q", got)
	}

	titleOnly := story.Record{Title: "Markets closed for holiday"}
	if got := ExtractiveItem(titleOnly); got != "Markets closed for holiday" {
		t.Fatalf("expected title fallback, got %q", got)
	}
}

func TestTopicRetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{
		replies: []string{"", "", "Budget talks dominated the day."},
		errs:    []error{errors.New("upstream 502"), nil, nil},
	}
	s := New(provider, Options{TopicAttempts: 3, TopicModel: "topic-model"}, zerolog.Nop())

	items := []Item{{Record: budget, Summary: "Lawmakers approved the plan."}}
	got, generated := s.Topic(context.Background(), "World", items)
	if !generated || got != "Budget talks dominated the day." {
		t.Fatalf("unexpected topic summary %q generated=%v", got, generated)
	}
	if len(provider.prompts) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(provider.prompts))
	}
	if !strings.Contains(provider.prompts[0].User, "- Parliament passes budget: Lawmakers approved") {
		t.Fatalf("unexpected topic prompt:\n%s", provider.prompts[0].User)
	}
}

func TestTopicFallsBackAfterAttempts(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{errs: []error{errors.New("a"), errors.New("b")}}
	s := New(provider, Options{TopicAttempts: 2}, zerolog.Nop())

	items := []Item{
		{Record: story.Record{Title: "One"}, Summary: "First thing happened."},
		{Record: story.Record{Title: "Two"}, Summary: "Second thing happened"},
		{Record: story.Record{Title: "Three"}},
		{Record: story.Record{Title: "Four"}, Summary: "Not included."},
	}
	got, generated := s.Topic(context.Background(), "World", items)
	if generated {
		t.Fatalf("expected extractive fallback")
	}
	if got != "First thing happened. Second thing happened. Three." {
		t.Fatalf("unexpected extractive topic %q", got)
	}
	if len(provider.prompts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(provider.prompts))
	}
}

func TestTopicDryRunDoesNotRetry(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{errs: []error{llm.ErrDryRun, llm.ErrDryRun}}
	s := New(provider, Options{TopicAttempts: 2}, zerolog.Nop())
	_, generated := s.Topic(context.Background(), "World", []Item{{Record: budget, Summary: "x."}})
	if generated || len(provider.prompts) != 1 {
		t.Fatalf("expected a single dry-run attempt, got %d", len(provider.prompts))
	}
}
