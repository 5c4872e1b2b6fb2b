package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/isaiahnixon/newspaper/internal/config"
	"github.com/isaiahnixon/newspaper/internal/feed"
	"github.com/isaiahnixon/newspaper/internal/selection"
	"github.com/isaiahnixon/newspaper/internal/story"
)

type stubFetcher struct {
	records []story.Record
	stats   feed.Stats
	err     error
	topics  []string
}

func (f *stubFetcher) FetchTopics(ctx context.Context, topics []config.Topic, out chan<- story.Record) (feed.Stats, error) {
	for _, topic := range topics {
		f.topics = append(f.topics, topic.Name)
	}
	for _, rec := range f.records {
		select {
		case out <- rec:
		case <-ctx.Done():
			return f.stats, ctx.Err()
		}
	}
	return f.stats, f.err
}

func at(t time.Time) *time.Time {
	return &t
}

// 2024-01-01 was a Monday.
var monday = time.Date(2024, time.January, 1, 8, 0, 0, 0, time.UTC)

func testEdition() *config.Edition {
	return &config.Edition{
		SiteTitle: "Test Paper",
		Topics: []config.Topic{
			{Name: "World", LookbackHours: 24, ItemsPerTopic: 2, DomainCap: 2},
			{Name: "Science", LookbackHours: 72, ItemsPerTopic: 2, DomainCap: 2, FrequencyDays: []time.Weekday{time.Friday}},
			{Name: "Business", LookbackHours: 24, ItemsPerTopic: 3, DomainCap: 2},
		},
	}
}

func TestRunBuildsEditionForScheduledTopics(t *testing.T) {
	t.Parallel()

	summary := "Officials said the agreement covers 12 provinces and takes effect in March after a final vote."
	fetcher := &stubFetcher{
		stats: feed.Stats{SourcesChecked: 4, Paywalled: 2},
		records: []story.Record{
			{Topic: "World", Title: "Truce agreement signed", Link: "https://a.example.com/truce", SourceLabel: "A", Summary: summary, Published: at(monday.Add(-time.Hour))},
			{Topic: "World", Title: "Truce agreement signed", Link: "https://a.example.com/truce?utm_medium=rss", SourceLabel: "A", Summary: summary, Published: at(monday.Add(-time.Hour))},
			{Topic: "World", Title: "Storm closes airports", Link: "https://b.example.com/storm", SourceLabel: "B", Summary: "Flights were grounded across the region on Sunday night.", Published: at(monday.Add(-2 * time.Hour))},
			{Topic: "World", Title: "Old news", Link: "https://c.example.com/old", SourceLabel: "C", Published: at(monday.Add(-48 * time.Hour))},
		},
	}

	svc := NewService(testEdition(), Deps{Fetcher: fetcher}, zerolog.Nop())
	edition, err := svc.Run(context.Background(), monday)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if edition.UUID == "" || !edition.GeneratedAt.Equal(monday) || edition.Title != "Test Paper" {
		t.Fatalf("unexpected edition header: %+v", edition)
	}
	if len(fetcher.topics) != 2 || fetcher.topics[0] != "World" || fetcher.topics[1] != "Business" {
		t.Fatalf("expected only Monday topics to be fetched, got %v", fetcher.topics)
	}
	if edition.SourcesChecked != 4 || edition.PaywalledExcluded != 2 {
		t.Fatalf("unexpected footer stats: %+v", edition)
	}
	if edition.Stats.Ingest.Stale != 1 || edition.Stats.Ingest.Skipped != 1 || edition.Stats.Ingest.Added != 2 {
		t.Fatalf("unexpected ingest counters: %+v", edition.Stats.Ingest)
	}

	if len(edition.Topics) != 1 {
		t.Fatalf("expected only the World section, got %+v", edition.Topics)
	}
	world := edition.Topics[0]
	if world.Name != "World" || len(world.Items) != 2 {
		t.Fatalf("unexpected World section: %+v", world)
	}
	if world.Items[0].Record.Title != "Truce agreement signed" {
		t.Fatalf("expected the richer story first, got %q", world.Items[0].Record.Title)
	}
	if world.Items[0].Generated || world.SummaryGenerated {
		t.Fatalf("dry-run summaries must be extractive")
	}
	if world.Items[0].Summary != "Officials said the agreement covers 12 provinces and takes effect in March after a final vote." {
		t.Fatalf("unexpected item summary %q", world.Items[0].Summary)
	}
	if world.Summary == "" {
		t.Fatalf("expected an extractive topic summary")
	}
	if edition.ItemCount() != 2 {
		t.Fatalf("unexpected item count %d", edition.ItemCount())
	}
}

func TestRunReturnsFetchCancellation(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{err: context.Canceled}
	svc := NewService(testEdition(), Deps{Fetcher: fetcher}, zerolog.Nop())
	if _, err := svc.Run(context.Background(), monday); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation error, got %v", err)
	}
}

func TestRunWithNoScheduledTopics(t *testing.T) {
	t.Parallel()

	cfg := &config.Edition{Topics: []config.Topic{
		{Name: "Weekend", LookbackHours: 24, ItemsPerTopic: 1, FrequencyDays: []time.Weekday{time.Saturday}},
	}}
	fetcher := &stubFetcher{}
	edition, err := NewService(cfg, Deps{Fetcher: fetcher}, zerolog.Nop()).Run(context.Background(), monday)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(edition.Topics) != 0 || len(fetcher.topics) != 0 {
		t.Fatalf("expected an empty edition without fetching, got %+v", edition)
	}
}

func TestSelectAllUsesRankerPerTopic(t *testing.T) {
	t.Parallel()

	cfg := testEdition()
	var calls int
	ranker := selection.RankerFunc(func(_ context.Context, req selection.RankRequest) (string, error) {
		calls++
		return "2", nil
	})
	svc := NewService(cfg, Deps{Fetcher: &stubFetcher{}, Ranker: ranker}, zerolog.Nop())

	pool := []story.Record{
		{Topic: "World", Title: "Alpha", Link: "https://a.example.com/1", SourceLabel: "A"},
		{Topic: "World", Title: "Bravo", Link: "https://b.example.com/2", SourceLabel: "B"},
		{Topic: "World", Title: "Charlie", Link: "https://c.example.com/3", SourceLabel: "C"},
	}
	topic := cfg.Topics[0]
	topic.ItemsPerTopic = 1

	out, err := svc.SelectAll(context.Background(), []config.Topic{topic}, [][]story.Record{pool})
	if err != nil {
		t.Fatalf("SelectAll returned error: %v", err)
	}
	if calls != 1 || len(out[0]) != 1 || out[0][0].Title != "Bravo" {
		t.Fatalf("expected ranker pick Bravo, got %+v (calls=%d)", out[0], calls)
	}

	if _, err := svc.SelectAll(context.Background(), cfg.Topics, nil); err == nil {
		t.Fatalf("expected mismatched pools error")
	}
}

func TestSelectionOptionsDisablesNonPositiveDomainCap(t *testing.T) {
	t.Parallel()

	svc := NewService(&config.Edition{Dedup: config.DedupSettings{NearDuplicateThreshold: 0.9}}, Deps{}, zerolog.Nop())
	opts := svc.SelectionOptions(config.Topic{Name: "X", ItemsPerTopic: 4, SourceCap: 1})
	if opts.DomainCap != -1 || opts.Limit != 4 || opts.SourceCap != 1 || opts.NearDuplicateThreshold != 0.9 {
		t.Fatalf("unexpected selection options: %+v", opts)
	}
}
