package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/isaiahnixon/newspaper/internal/config"
	"github.com/isaiahnixon/newspaper/internal/feed"
	"github.com/isaiahnixon/newspaper/internal/ingest"
	"github.com/isaiahnixon/newspaper/internal/selection"
	"github.com/isaiahnixon/newspaper/internal/story"
	"github.com/isaiahnixon/newspaper/internal/summarize"
)

const recordBuffer = 64

// Fetcher streams records for the given topics into out without closing it.
type Fetcher interface {
	FetchTopics(ctx context.Context, topics []config.Topic, out chan<- story.Record) (feed.Stats, error)
}

// Edition is one generated newspaper.
type Edition struct {
	UUID              string         `json:"edition_uuid"`
	Title             string         `json:"title"`
	GeneratedAt       time.Time      `json:"generated_at"`
	SourcesChecked    int            `json:"sources_checked"`
	PaywalledExcluded int            `json:"paywalled_excluded"`
	Topics            []TopicSection `json:"topics"`
	Stats             RunStats       `json:"stats"`
}

type TopicSection struct {
	Name             string           `json:"name"`
	Summary          string           `json:"summary"`
	SummaryGenerated bool             `json:"summary_generated"`
	Items            []summarize.Item `json:"items"`
}

type RunStats struct {
	Feed     feed.Stats      `json:"feed"`
	Ingest   ingest.Counters `json:"ingest"`
	Registry story.Stats     `json:"registry"`
	// Pool is the deduplicated pool size per topic before selection.
	Pool map[string]int `json:"pool"`
}

// ItemCount is the number of stories across all sections.
func (e Edition) ItemCount() int {
	total := 0
	for _, section := range e.Topics {
		total += len(section.Items)
	}
	return total
}

type Deps struct {
	Fetcher    Fetcher
	Engine     *selection.Engine
	Summarizer *summarize.Summarizer
	// Ranker is optional; without it selection keeps quality order.
	Ranker selection.Ranker
}

type Service struct {
	cfg    *config.Edition
	deps   Deps
	logger zerolog.Logger
}

func NewService(cfg *config.Edition, deps Deps, logger zerolog.Logger) *Service {
	if deps.Engine == nil {
		deps.Engine = selection.NewEngine(logger)
	}
	if deps.Summarizer == nil {
		deps.Summarizer = summarize.New(nil, summarize.Options{}, logger)
	}
	return &Service{cfg: cfg, deps: deps, logger: logger}
}

// Run builds the edition for now: fetch, deduplicate, select and summarize
// every topic scheduled for today.
func (s *Service) Run(ctx context.Context, now time.Time) (Edition, error) {
	if s == nil || s.cfg == nil {
		return Edition{}, fmt.Errorf("pipeline service is not initialized")
	}
	if s.deps.Fetcher == nil {
		return Edition{}, fmt.Errorf("pipeline fetcher is not configured")
	}

	now = now.UTC()
	edition := Edition{
		UUID:        uuid.NewString(),
		Title:       s.cfg.SiteTitle,
		GeneratedAt: now,
	}

	active := s.cfg.ActiveTopics(now)
	if len(active) == 0 {
		s.logger.Warn().Str("weekday", now.Weekday().String()).Msg("no topics scheduled for today")
		return edition, nil
	}

	registrar := NewRegistrar(s.cfg, active, s.logger)

	records := make(chan story.Record, recordBuffer)
	g, gctx := errgroup.WithContext(ctx)
	var fetchStats feed.Stats
	g.Go(func() error {
		defer close(records)
		stats, err := s.deps.Fetcher.FetchTopics(gctx, active, records)
		fetchStats = stats
		if err != nil {
			return fmt.Errorf("fetch feeds: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return registrar.Run(gctx, records, now)
	})
	if err := g.Wait(); err != nil {
		return Edition{}, err
	}

	edition.SourcesChecked = fetchStats.SourcesChecked
	edition.PaywalledExcluded = fetchStats.Paywalled
	edition.Stats = RunStats{
		Feed:     fetchStats,
		Ingest:   registrar.Counters(),
		Registry: registrar.RegistryStats(),
		Pool:     make(map[string]int, len(active)),
	}

	pools := make([][]story.Record, len(active))
	for i, topic := range active {
		pools[i] = registrar.Pool(topic.Name)
		edition.Stats.Pool[topic.Name] = len(pools[i])
	}

	selected, err := s.SelectAll(ctx, active, pools)
	if err != nil {
		return Edition{}, err
	}

	for i, topic := range active {
		if len(selected[i]) == 0 {
			s.logger.Info().Str("topic", topic.Name).Msg("no items selected; section omitted")
			continue
		}
		items := s.deps.Summarizer.Items(ctx, topic.Name, selected[i])
		summary, generated := s.deps.Summarizer.Topic(ctx, topic.Name, items)
		edition.Topics = append(edition.Topics, TopicSection{
			Name:             topic.Name,
			Summary:          summary,
			SummaryGenerated: generated,
			Items:            items,
		})
	}

	s.logger.Info().
		Str("edition_uuid", edition.UUID).
		Int("sources_checked", edition.SourcesChecked).
		Int("paywalled", edition.PaywalledExcluded).
		Int("sections", len(edition.Topics)).
		Int("items", edition.ItemCount()).
		Msg("edition built")
	return edition, nil
}

// SelectAll runs selection for every topic in parallel. pools[i] belongs to
// topics[i] and the result is indexed the same way.
func (s *Service) SelectAll(ctx context.Context, topics []config.Topic, pools [][]story.Record) ([][]story.Record, error) {
	if len(topics) != len(pools) {
		return nil, fmt.Errorf("got %d pools for %d topics", len(pools), len(topics))
	}

	out := make([][]story.Record, len(topics))
	g, gctx := errgroup.WithContext(ctx)
	for i, topic := range topics {
		g.Go(func() error {
			out[i] = s.deps.Engine.Select(gctx, pools[i], s.SelectionOptions(topic))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// SelectionOptions maps a topic's config onto selection options. A
// non-positive domain cap in the config disables the cap.
func (s *Service) SelectionOptions(topic config.Topic) selection.Options {
	domainCap := topic.DomainCap
	if domainCap <= 0 {
		domainCap = -1
	}
	return selection.Options{
		Topic:                  topic.Name,
		Limit:                  topic.ItemsPerTopic,
		SourceCap:              topic.SourceCap,
		DomainCap:              domainCap,
		NearDuplicateThreshold: s.cfg.Dedup.NearDuplicateThreshold,
		Ranker:                 s.deps.Ranker,
	}
}

// NewRegistrar builds the run's registrar with the edition's dedup settings
// and the lookback windows of the active topics.
func NewRegistrar(cfg *config.Edition, active []config.Topic, logger zerolog.Logger) *ingest.Registrar {
	lookback := make(map[string]int, len(active))
	for _, topic := range active {
		lookback[topic.Name] = topic.LookbackHours
	}
	return ingest.NewRegistrar(ingest.Options{
		Registry: story.Options{
			SimilarityThreshold: cfg.Dedup.SimilarityThreshold,
			MetadataThreshold:   cfg.Dedup.MetadataThreshold,
			MetadataTimeWindow:  time.Duration(cfg.Dedup.MetadataWindowMinutes) * time.Minute,
		},
		LookbackHours:    lookback,
		PruneWindowHours: config.PruneWindowHours(active),
	}, logger)
}
