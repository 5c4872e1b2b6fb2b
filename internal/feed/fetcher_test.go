package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/isaiahnixon/newspaper/internal/config"
	"github.com/isaiahnixon/newspaper/internal/story"
)

const worldRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>World Wire</title>
<language>en-GB</language>
<item>
  <title>Parliament passes budget</title>
  <link>http://news.example.com/budget/?utm_source=rss</link>
  <description>&lt;p&gt;Lawmakers approved the &lt;b&gt;spending plan&lt;/b&gt;.&lt;/p&gt;</description>
  <pubDate>Mon, 01 Jan 2024 09:00:00 GMT</pubDate>
  <source url="https://agency.example.org/rss">Agency Press</source>
</item>
<item>
  <title>Entry without a link</title>
</item>
<item>
  <title>Tabloid gossip</title>
  <link>https://www.tabloid.example.net/story</link>
</item>
<item>
  <title>Port strike enters second week</title>
  <link>https://news.example.com/strike</link>
</item>
</channel>
</rss>`

const scienceAtom = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
<title>Lab Notes</title>
<entry>
  <title>Telescope spots icy moon plumes</title>
  <link href="https://lab.example.org/plumes"/>
  <updated>2024-01-01T06:30:00Z</updated>
  <summary>Plumes rise from the south pole.</summary>
</entry>
</feed>`

func newFeedServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept"), "application/rss+xml") {
			w.WriteHeader(http.StatusNotAcceptable)
			return
		}
		switch r.URL.Path {
		case "/world.rss":
			w.Header().Set("Content-Type", "application/rss+xml")
			_, _ = io.WriteString(w, worldRSS)
		case "/science.atom":
			w.Header().Set("Content-Type", "application/atom+xml")
			_, _ = io.WriteString(w, scienceAtom)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func collect(t *testing.T, f *Fetcher, topics []config.Topic) ([]story.Record, Stats) {
	t.Helper()
	out := make(chan story.Record)
	var records []story.Record
	done := make(chan struct{})
	go func() {
		defer close(done)
		for rec := range out {
			records = append(records, rec)
		}
	}()

	stats, err := f.FetchTopics(context.Background(), topics, out)
	close(out)
	<-done
	if err != nil {
		t.Fatalf("FetchTopics returned error: %v", err)
	}
	return records, stats
}

func TestFetchTopicsDeliversRecordsInConfigOrder(t *testing.T) {
	t.Parallel()

	server := newFeedServer(t)
	topics := []config.Topic{
		{
			Name: "World",
			Feeds: []config.Feed{
				{Name: "Broken", URL: server.URL + "/missing.rss"},
				{Name: "World Wire", URL: server.URL + "/world.rss", SourceGroup: "Wire"},
			},
		},
		{
			Name:  "Science",
			Feeds: []config.Feed{{Name: "Lab Notes", URL: server.URL + "/science.atom"}},
		},
	}

	fetcher := NewFetcher(Options{
		Concurrency:    3,
		HTTPClient:     server.Client(),
		BlockedDomains: []string{"tabloid.example.net"},
	}, zerolog.Nop())

	records, stats := collect(t, fetcher, topics)

	if stats.SourcesChecked != 3 || stats.FeedsFailed != 1 {
		t.Fatalf("unexpected source stats: %+v", stats)
	}
	if stats.Skipped != 1 || stats.Blocked != 1 {
		t.Fatalf("expected one skipped and one blocked entry, got %+v", stats)
	}

	var titles []string
	for _, rec := range records {
		titles = append(titles, rec.Topic+"/"+rec.Title)
	}
	want := []string{
		"World/Parliament passes budget",
		"World/Port strike enters second week",
		"Science/Telescope spots icy moon plumes",
	}
	if fmt.Sprint(titles) != fmt.Sprint(want) {
		t.Fatalf("unexpected record order\nwant: %v\ngot:  %v", want, titles)
	}

	budget := records[0]
	if budget.Link != "https://news.example.com/budget" {
		t.Fatalf("expected canonical link, got %q", budget.Link)
	}
	if budget.SourceLabel != "Agency Press" {
		t.Fatalf("expected source label from <source>, got %q", budget.SourceLabel)
	}
	if budget.SourceGroup != "Wire" {
		t.Fatalf("expected source group Wire, got %q", budget.SourceGroup)
	}
	if budget.Published == nil || budget.Published.Hour() != 9 {
		t.Fatalf("unexpected publish time %v", budget.Published)
	}
	if budget.Language != "en" {
		t.Fatalf("expected declared channel language, got %q", budget.Language)
	}
	if !strings.Contains(budget.Summary, "spending plan") {
		t.Fatalf("unexpected summary %q", budget.Summary)
	}

	if records[1].SourceLabel != "World Wire" {
		t.Fatalf("expected feed name as label, got %q", records[1].SourceLabel)
	}
	if records[1].Published != nil {
		t.Fatalf("expected unknown publish time, got %v", records[1].Published)
	}

	plumes := records[2]
	if plumes.SourceGroup != "Lab Notes" || plumes.Published == nil || plumes.Language != "" {
		t.Fatalf("unexpected atom record %+v", plumes)
	}
}

func TestFetchTopicsLimitsItemsPerFeed(t *testing.T) {
	t.Parallel()

	server := newFeedServer(t)
	topics := []config.Topic{{
		Name:  "World",
		Feeds: []config.Feed{{Name: "World Wire", URL: server.URL + "/world.rss"}},
	}}

	fetcher := NewFetcher(Options{HTTPClient: server.Client(), MaxItemsPerFeed: 1}, zerolog.Nop())
	records, _ := collect(t, fetcher, topics)
	if len(records) != 1 || records[0].Title != "Parliament passes budget" {
		t.Fatalf("expected only the first entry, got %+v", records)
	}
}

func TestFetchTopicsExcludesPaywalledArticles(t *testing.T) {
	t.Parallel()

	var articles *httptest.Server
	articles = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rss":
			w.Header().Set("Content-Type", "application/rss+xml")
			_, _ = fmt.Fprintf(w, `<?xml version="1.0"?><rss version="2.0"><channel><title>T</title>
<item><title>Locked story</title><link>%[1]s/locked</link></item>
<item><title>Open story</title><link>%[1]s/open</link></item>
</channel></rss>`, articles.URL)
		case "/locked":
			w.WriteHeader(http.StatusPaymentRequired)
		case "/open":
			w.Header().Set("Content-Type", "text/html")
			_, _ = io.WriteString(w, "<html><body><article><p>Crews restored power overnight.</p></article></body></html>")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer articles.Close()

	topics := []config.Topic{{
		Name:  "Local",
		Feeds: []config.Feed{{Name: "Town", URL: articles.URL + "/rss"}},
	}}
	fetcher := NewFetcher(Options{
		HTTPClient:       articles.Client(),
		FetchFullText:    true,
		MaxFullTextChars: 500,
	}, zerolog.Nop())

	records, stats := collect(t, fetcher, topics)
	if stats.Paywalled != 1 {
		t.Fatalf("expected one paywalled item, got %+v", stats)
	}
	if len(records) != 1 || records[0].Title != "Open story" {
		t.Fatalf("unexpected records %+v", records)
	}
	if !strings.Contains(records[0].FullText, "Crews restored power overnight.") {
		t.Fatalf("expected extracted full text, got %q", records[0].FullText)
	}
}

func TestIsBlocked(t *testing.T) {
	t.Parallel()

	blocked := []string{"Example.com", " www.tabloid.net "}
	cases := map[string]bool{
		"example.com":        true,
		"news.example.com":   true,
		"www.example.com":    true,
		"badexample.com":     false,
		"tabloid.net":        true,
		"sports.tabloid.net": true,
		"":                   false,
	}
	for host, want := range cases {
		if got := IsBlocked(host, blocked); got != want {
			t.Fatalf("IsBlocked(%q)=%v, want %v", host, got, want)
		}
	}
}
