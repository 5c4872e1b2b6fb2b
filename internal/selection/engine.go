package selection

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/isaiahnixon/newspaper/internal/story"
)

const (
	DefaultDomainCap              = 2
	DefaultNearDuplicateThreshold = 0.86
	defaultCandidateSummaryChars  = 200
)

// Options controls one selection call.
type Options struct {
	Topic string
	Limit int
	// SourceCap bounds accepted records per source group. Zero means no cap.
	SourceCap int
	// DomainCap is the soft per-hostname cap. Zero takes DefaultDomainCap and
	// a negative value disables it.
	DomainCap              int
	NearDuplicateThreshold float64
	SummaryChars           int
	Ranker                 Ranker
}

func (o Options) withDefaults() Options {
	if o.DomainCap == 0 {
		o.DomainCap = DefaultDomainCap
	}
	if o.NearDuplicateThreshold <= 0 {
		o.NearDuplicateThreshold = DefaultNearDuplicateThreshold
	}
	if o.SummaryChars <= 0 {
		o.SummaryChars = defaultCandidateSummaryChars
	}
	return o
}

type Engine struct {
	logger zerolog.Logger
}

func NewEngine(logger zerolog.Logger) *Engine {
	return &Engine{logger: logger}
}

type candidate struct {
	record         story.Record
	quality        float64
	hostname       string
	group          string
	foldedTitle    string
	lowInformation bool
	administrative bool
}

// Select picks up to opts.Limit records from a deduplicated pool. The pool is
// ranked by quality, optionally reordered by the ranker, and then walked
// under the near-duplicate, source and domain constraints.
func (e *Engine) Select(ctx context.Context, pool []story.Record, opts Options) []story.Record {
	opts = opts.withDefaults()
	if opts.Limit <= 0 || len(pool) == 0 {
		return nil
	}

	ranked := rankByQuality(pool)
	order := ranked
	if len(pool) > opts.Limit && opts.Ranker != nil {
		order = e.applyRanker(ctx, ranked, opts)
	}

	selected := constrain(order, opts)
	out := make([]story.Record, 0, len(selected))
	for _, c := range selected {
		out = append(out, c.record)
	}

	e.logger.Debug().
		Str("topic", opts.Topic).
		Int("pool", len(pool)).
		Int("limit", opts.Limit).
		Int("selected", len(out)).
		Msg("selection complete")
	return out
}

func rankByQuality(pool []story.Record) []candidate {
	ranked := make([]candidate, 0, len(pool))
	for _, rec := range pool {
		ranked = append(ranked, candidate{
			record:         rec,
			quality:        story.QualityScore(rec),
			hostname:       story.Hostname(rec.Link),
			group:          rec.Group(),
			foldedTitle:    strings.ToLower(strings.TrimSpace(rec.Title)),
			lowInformation: story.IsLowInformation(rec),
			administrative: story.IsAdministrative(rec),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].quality != ranked[j].quality {
			return ranked[i].quality > ranked[j].quality
		}
		return ranked[i].foldedTitle < ranked[j].foldedTitle
	})
	return ranked
}

func (e *Engine) applyRanker(ctx context.Context, ranked []candidate, opts Options) []candidate {
	req := RankRequest{
		Topic:      opts.Topic,
		Count:      opts.Limit,
		Candidates: make([]Candidate, 0, len(ranked)),
	}
	for i, c := range ranked {
		req.Candidates = append(req.Candidates, Candidate{
			Index:   i + 1,
			Title:   c.record.Title,
			Source:  c.record.SourceLabel,
			Domain:  c.hostname,
			Summary: truncateRunes(story.CleanSummary(c.record.Summary), opts.SummaryChars),
		})
	}

	response, err := opts.Ranker.Rank(ctx, req)
	if err != nil {
		e.logger.Warn().Err(err).Str("topic", opts.Topic).Msg("ranker failed; using quality order")
		return ranked
	}
	if strings.TrimSpace(response) == "" {
		e.logger.Warn().Str("topic", opts.Topic).Msg("ranker returned an empty response; using quality order")
		return ranked
	}

	picks := ParseRanking(response, len(ranked), opts.Limit)
	order := make([]candidate, 0, len(ranked))
	used := make([]bool, len(ranked))
	for _, pick := range picks {
		order = append(order, ranked[pick-1])
		used[pick-1] = true
	}
	for i, c := range ranked {
		if !used[i] {
			order = append(order, c)
		}
	}
	return order
}

type selector struct {
	opts        Options
	accepted    []candidate
	acceptedIdx map[int]bool
	groupCounts map[string]int
	hostCounts  map[string]int
}

func constrain(order []candidate, opts Options) []candidate {
	s := &selector{
		opts:        opts,
		acceptedIdx: make(map[int]bool, opts.Limit),
		groupCounts: make(map[string]int),
		hostCounts:  make(map[string]int),
	}
	alternatives := laterOtherHosts(order)

	var deferred []int
	for i, c := range order {
		if s.full() {
			break
		}
		if s.isNearDuplicate(c) || s.sourceCapReached(c) {
			continue
		}
		if c.lowInformation || c.administrative {
			deferred = append(deferred, i)
			continue
		}
		if opts.DomainCap > 0 && s.hostCounts[c.hostname] >= opts.DomainCap && alternatives[i] {
			deferred = append(deferred, i)
			continue
		}
		s.accept(i, c)
	}

	for _, i := range deferred {
		if s.full() {
			break
		}
		s.tryAccept(i, order[i])
	}

	for i, c := range order {
		if s.full() {
			break
		}
		if s.acceptedIdx[i] {
			continue
		}
		s.tryAccept(i, c)
	}

	return s.accepted
}

func (s *selector) full() bool {
	return len(s.accepted) >= s.opts.Limit
}

func (s *selector) tryAccept(i int, c candidate) {
	if s.isNearDuplicate(c) || s.sourceCapReached(c) {
		return
	}
	s.accept(i, c)
}

func (s *selector) accept(i int, c candidate) {
	s.accepted = append(s.accepted, c)
	s.acceptedIdx[i] = true
	s.groupCounts[c.group]++
	s.hostCounts[c.hostname]++
}

func (s *selector) isNearDuplicate(c candidate) bool {
	for _, prior := range s.accepted {
		if prior.hostname != c.hostname {
			continue
		}
		if story.Similarity(prior.record.Title, c.record.Title) >= s.opts.NearDuplicateThreshold {
			return true
		}
	}
	return false
}

func (s *selector) sourceCapReached(c candidate) bool {
	return s.opts.SourceCap > 0 && s.groupCounts[c.group] >= s.opts.SourceCap
}

// laterOtherHosts reports, per position, whether any later candidate has a
// different hostname.
func laterOtherHosts(order []candidate) []bool {
	out := make([]bool, len(order))
	var firstHost string
	seenAny := false
	multiple := false
	for i := len(order) - 1; i >= 0; i-- {
		host := order[i].hostname
		out[i] = multiple || (seenAny && firstHost != host)
		if !seenAny {
			firstHost = host
			seenAny = true
		} else if host != firstHost {
			multiple = true
		}
	}
	return out
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if n <= 0 || len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n])) + "…"
}
