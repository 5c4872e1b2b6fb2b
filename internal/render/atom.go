package render

import (
	"fmt"
	"strings"

	"github.com/gorilla/feeds"

	"github.com/isaiahnixon/newspaper/internal/pipeline"
)

// Atom renders the edition as an Atom feed, one entry per selected story.
func Atom(edition pipeline.Edition, siteURL string) (string, error) {
	siteURL = strings.TrimRight(strings.TrimSpace(siteURL), "/")
	title := edition.Title
	if title == "" {
		title = "Daily Paper"
	}

	feed := &feeds.Feed{
		Title:       title,
		Link:        &feeds.Link{Href: siteURL + "/"},
		Description: "Text-first daily briefing with neutral summaries.",
		Id:          "urn:uuid:" + edition.UUID,
		Created:     edition.GeneratedAt,
		Updated:     edition.GeneratedAt,
	}

	for _, section := range edition.Topics {
		for _, item := range section.Items {
			rec := item.Record
			created := edition.GeneratedAt
			if published, ok := rec.PublishedAt(); ok {
				created = published
			}
			entry := &feeds.Item{
				Title:       rec.Title,
				Link:        &feeds.Link{Href: rec.Link},
				Description: item.Summary,
				Id:          rec.Link,
				Created:     created,
				Updated:     edition.GeneratedAt,
			}
			if rec.SourceLabel != "" {
				entry.Author = &feeds.Author{Name: rec.SourceLabel}
			}
			feed.Items = append(feed.Items, entry)
		}
	}

	atom, err := feed.ToAtom()
	if err != nil {
		return "", fmt.Errorf("render atom feed: %w", err)
	}
	return atom, nil
}
