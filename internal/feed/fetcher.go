// Package feed pulls RSS and Atom sources and turns their entries into
// story records. Feeds are fetched concurrently but records are delivered
// in configuration order so registration is deterministic.
package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/isaiahnixon/newspaper/internal/config"
	"github.com/isaiahnixon/newspaper/internal/langdetect"
	"github.com/isaiahnixon/newspaper/internal/reader"
	"github.com/isaiahnixon/newspaper/internal/story"
)

const (
	DefaultConcurrency     = 8
	DefaultTimeout         = 15 * time.Second
	DefaultMaxItemsPerFeed = 50

	feedBodyLimit = 8 * 1024 * 1024
	feedAccept    = "application/rss+xml, application/xml;q=0.9, */*;q=0.8"
)

type Options struct {
	Concurrency int
	// RequestsPerSecond throttles every outbound request. Zero disables it.
	RequestsPerSecond float64
	UserAgent         string
	Timeout           time.Duration
	HTTPClient        *http.Client

	MaxItemsPerFeed  int
	BlockedDomains   []string
	FetchFullText    bool
	MaxFullTextChars int
	DetectLanguage   bool
}

// Stats counts what happened during one fetch. Paywalled items are excluded
// from the edition and reported in its footer.
type Stats struct {
	SourcesChecked int `json:"sources_checked"`
	FeedsFailed    int `json:"feeds_failed"`
	Entries        int `json:"entries"`
	Skipped        int `json:"skipped"`
	Blocked        int `json:"blocked"`
	Paywalled      int `json:"paywalled"`
}

func (s *Stats) add(other Stats) {
	s.SourcesChecked += other.SourcesChecked
	s.FeedsFailed += other.FeedsFailed
	s.Entries += other.Entries
	s.Skipped += other.Skipped
	s.Blocked += other.Blocked
	s.Paywalled += other.Paywalled
}

type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	opts    Options
	logger  zerolog.Logger
}

func NewFetcher(opts Options, logger zerolog.Logger) *Fetcher {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxItemsPerFeed <= 0 {
		opts.MaxItemsPerFeed = DefaultMaxItemsPerFeed
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = reader.DefaultUserAgent
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		burst := max(1, int(opts.RequestsPerSecond))
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return &Fetcher{
		client:  client,
		limiter: limiter,
		opts:    opts,
		logger:  logger,
	}
}

type job struct {
	topic string
	feed  config.Feed
}

type result struct {
	records []story.Record
	stats   Stats
	done    chan struct{}
}

// FetchTopics fetches every feed of the given topics and sends the records to
// out in configuration order. It does not close out. A failing feed is logged
// and counted; only context cancellation aborts the run.
func (f *Fetcher) FetchTopics(ctx context.Context, topics []config.Topic, out chan<- story.Record) (Stats, error) {
	jobs := make([]job, 0)
	for _, topic := range topics {
		for _, feed := range topic.Feeds {
			jobs = append(jobs, job{topic: topic.Name, feed: feed})
		}
	}

	results := make([]*result, len(jobs))
	for i := range results {
		results[i] = &result{done: make(chan struct{})}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.opts.Concurrency)

	var emitErr error
	var emitWG sync.WaitGroup
	emitWG.Add(1)
	var total Stats
	go func() {
		defer emitWG.Done()
		for _, res := range results {
			select {
			case <-res.done:
			case <-ctx.Done():
				emitErr = ctx.Err()
				return
			}
			total.add(res.stats)
			for _, rec := range res.records {
				select {
				case out <- rec:
				case <-ctx.Done():
					emitErr = ctx.Err()
					return
				}
			}
		}
	}()

	for i, j := range jobs {
		res := results[i]
		g.Go(func() error {
			defer close(res.done)
			res.records, res.stats = f.fetchFeed(gctx, j.topic, j.feed)
			return nil
		})
	}

	waitErr := g.Wait()
	emitWG.Wait()
	if emitErr != nil {
		return total, emitErr
	}
	if waitErr != nil {
		return total, waitErr
	}
	if err := ctx.Err(); err != nil {
		return total, err
	}
	return total, nil
}

func (f *Fetcher) fetchFeed(ctx context.Context, topic string, src config.Feed) ([]story.Record, Stats) {
	stats := Stats{SourcesChecked: 1}
	logger := f.logger.With().Str("topic", topic).Str("feed", src.Name).Logger()

	parsed, err := f.parse(ctx, src.URL)
	if err != nil {
		stats.FeedsFailed = 1
		logger.Warn().Err(err).Str("url", src.URL).Msg("feed fetch failed")
		return nil, stats
	}

	declared := langdetect.PrimaryCode(parsed.Language)
	records := make([]story.Record, 0, min(len(parsed.Items), f.opts.MaxItemsPerFeed))
	for _, item := range parsed.Items {
		if len(records) >= f.opts.MaxItemsPerFeed {
			break
		}
		if ctx.Err() != nil {
			break
		}
		stats.Entries++

		rec, rawLink, ok := f.buildRecord(topic, src, item)
		if !ok {
			stats.Skipped++
			continue
		}
		if IsBlocked(story.Hostname(rec.Link), f.opts.BlockedDomains) {
			stats.Blocked++
			continue
		}

		if f.opts.FetchFullText {
			text, err := f.fullText(ctx, rawLink, rec.Title)
			if errors.Is(err, reader.ErrPaywalled) {
				stats.Paywalled++
				logger.Debug().Str("link", rec.Link).Msg("paywalled item skipped")
				continue
			}
			if err != nil {
				logger.Debug().Err(err).Str("link", rec.Link).Msg("full text unavailable")
			}
			rec.FullText = text
		}
		if f.opts.DetectLanguage {
			rec.Language = langdetect.DetectStory(rec.Title, rec.Summary)
		}
		if rec.Language == "" {
			rec.Language = declared
		}
		records = append(records, rec)
	}

	logger.Debug().
		Int("entries", len(parsed.Items)).
		Int("kept", len(records)).
		Int("skipped", stats.Skipped).
		Int("blocked", stats.Blocked).
		Int("paywalled", stats.Paywalled).
		Msg("feed parsed")
	return records, stats
}

func (f *Fetcher) parse(ctx context.Context, url string) (*gofeed.Feed, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", feedAccept)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("feed status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, feedBodyLimit))
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("empty feed body")
	}

	parser := gofeed.NewParser()
	parser.RSSTranslator = &sourceTranslator{}
	parsed, err := parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return parsed, nil
}

// fullText fetches the article at the link the feed published. The
// canonical form may not be reachable when it upgraded the scheme.
func (f *Fetcher) fullText(ctx context.Context, link, title string) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return reader.FetchText(ctx, link, title, reader.FetchOptions{
		Timeout:    f.opts.Timeout,
		UserAgent:  f.opts.UserAgent,
		HTTPClient: f.client,
		MaxChars:   f.opts.MaxFullTextChars,
	})
}

func (f *Fetcher) buildRecord(topic string, src config.Feed, item *gofeed.Item) (story.Record, string, bool) {
	if item == nil {
		return story.Record{}, "", false
	}
	title := reader.HTMLToText(item.Title)
	link := strings.TrimSpace(item.Link)
	if link == "" && len(item.Links) > 0 {
		link = strings.TrimSpace(item.Links[0])
	}
	if title == "" || link == "" {
		return story.Record{}, "", false
	}

	summary := item.Description
	if strings.TrimSpace(summary) == "" {
		summary = item.Content
	}

	rec := story.Record{
		Topic:       topic,
		Title:       title,
		Link:        story.Canonicalize(link),
		SourceLabel: sourceLabel(src, item),
		SourceGroup: src.Group(),
		Summary:     strings.TrimSpace(summary),
		Published:   publishedAt(item),
	}
	return rec, link, true
}

// sourceLabel prefers the publisher named inside the entry, as aggregator
// feeds carry items from many outlets.
func sourceLabel(src config.Feed, item *gofeed.Item) string {
	if item.Custom != nil {
		if label := strings.TrimSpace(item.Custom[sourceKey]); label != "" {
			return label
		}
	}
	return src.Name
}

func publishedAt(item *gofeed.Item) *time.Time {
	switch {
	case item.PublishedParsed != nil:
		t := item.PublishedParsed.UTC()
		return &t
	case item.UpdatedParsed != nil:
		t := item.UpdatedParsed.UTC()
		return &t
	default:
		return nil
	}
}

// IsBlocked reports whether host equals a blocked domain or is a subdomain
// of one.
func IsBlocked(host string, blocked []string) bool {
	host = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(host)), "www.")
	if host == "" {
		return false
	}
	for _, domain := range blocked {
		domain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "www.")
		if domain == "" {
			continue
		}
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
