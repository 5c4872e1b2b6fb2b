package db

import (
	"testing"
	"time"

	"gorm.io/gorm/logger"
)

func TestBuildEditionDetailGroupsItemsByTopicPosition(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, time.January, 1, 8, 0, 0, 0, time.UTC)
	published := at.Add(-time.Hour)
	edition := Edition{
		EditionUUID:       "5f0c6d43-6f0d-4b3e-9d54-0d1d8c4a3c11",
		Title:             "Morning Post",
		GeneratedAt:       at,
		SourcesChecked:    5,
		PaywalledExcluded: 1,
		ItemCount:         3,
	}
	topics := []EditionTopic{
		{Position: 0, Name: "World", Summary: "World summary", SummaryGenerated: true},
		{Position: 1, Name: "Science"},
	}
	items := []EditionItem{
		{TopicPosition: 0, ItemPosition: 0, Title: "A", CanonicalURL: "https://a.example.com/1", PublishedAt: &published},
		{TopicPosition: 0, ItemPosition: 1, Title: "B", CanonicalURL: "https://b.example.com/2"},
		{TopicPosition: 1, ItemPosition: 0, Title: "C", CanonicalURL: "https://c.example.com/3"},
		{TopicPosition: 7, ItemPosition: 0, Title: "orphan"},
	}

	detail := buildEditionDetail(edition, topics, items)
	if detail.TopicCount != 2 || detail.ItemCount != 3 || detail.Title != "Morning Post" {
		t.Fatalf("unexpected summary: %+v", detail.EditionSummary)
	}
	if len(detail.Topics[0].Items) != 2 || detail.Topics[0].Items[1].Title != "B" {
		t.Fatalf("unexpected World items: %+v", detail.Topics[0].Items)
	}
	if len(detail.Topics[1].Items) != 1 || detail.Topics[1].Items[0].Title != "C" {
		t.Fatalf("unexpected Science items: %+v", detail.Topics[1].Items)
	}
	if detail.Topics[0].Items[0].PublishedAt == nil || !detail.Topics[0].Items[0].PublishedAt.Equal(published) {
		t.Fatalf("expected publish time to survive")
	}
}

func TestNormalizePageSize(t *testing.T) {
	t.Parallel()

	cases := map[int]int{0: DefaultEditionPageSize, -3: DefaultEditionPageSize, 5: 5, 1000: MaxEditionPageSize}
	for input, want := range cases {
		if got := normalizePageSize(input); got != want {
			t.Fatalf("normalizePageSize(%d)=%d, want %d", input, got, want)
		}
	}
}

func TestResolveGormLogLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		level string
		env   string
		want  logger.LogLevel
	}{
		{level: "debug", want: logger.Info},
		{level: "info", want: logger.Warn},
		{level: "error", want: logger.Error},
		{level: "silent", want: logger.Silent},
		{level: "verbose", env: "local", want: logger.Warn},
		{level: "verbose", env: "production", want: logger.Error},
	}
	for _, tc := range cases {
		if got := resolveGormLogLevel(tc.level, tc.env); got != tc.want {
			t.Fatalf("resolveGormLogLevel(%q, %q)=%v, want %v", tc.level, tc.env, got, tc.want)
		}
	}
}
