// Package ingest is the single consumer between the concurrent feed fetchers
// and the dedup registry.
package ingest

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/isaiahnixon/newspaper/internal/story"
)

type Options struct {
	Registry story.Options
	// LookbackHours maps a topic to its freshness window. Dated records older
	// than the window are dropped before registration and the window also
	// bounds fuzzy comparisons for that topic.
	LookbackHours    map[string]int
	PruneWindowHours int
}

type Counters struct {
	Received int `json:"received"`
	Stale    int `json:"stale"`
	Added    int `json:"added"`
	Replaced int `json:"replaced"`
	Skipped  int `json:"skipped"`
}

// Registrar owns the registry for one run. Register and Run must not be
// called concurrently.
type Registrar struct {
	registry *story.Registry
	opts     Options
	logger   zerolog.Logger
	counters Counters
}

func NewRegistrar(opts Options, logger zerolog.Logger) *Registrar {
	registryOpts := opts.Registry
	if registryOpts.Logger == nil {
		registryOpts.Logger = &logger
	}
	return &Registrar{
		registry: story.NewRegistry(registryOpts),
		opts:     opts,
		logger:   logger,
	}
}

// Run registers records from in until it is closed. now is fixed for the
// whole run so every record sees the same windows.
func (r *Registrar) Run(ctx context.Context, in <-chan story.Record, now time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec, ok := <-in:
			if !ok {
				r.logger.Debug().
					Int("received", r.counters.Received).
					Int("stale", r.counters.Stale).
					Int("added", r.counters.Added).
					Int("replaced", r.counters.Replaced).
					Int("skipped", r.counters.Skipped).
					Int("tracked", r.registry.Len()).
					Msg("registration finished")
				return nil
			}
			r.Register(rec, now)
		}
	}
}

// Register runs a single record through the freshness filter and registry.
// Stale records report false.
func (r *Registrar) Register(rec story.Record, now time.Time) (story.Outcome, bool) {
	r.counters.Received++

	lookback := r.opts.LookbackHours[rec.Topic]
	if r.stale(rec, now, lookback) {
		r.counters.Stale++
		return story.Skipped, false
	}

	outcome := r.registry.Register(rec, now, lookback, r.opts.PruneWindowHours)
	switch outcome {
	case story.Added:
		r.counters.Added++
	case story.Replaced:
		r.counters.Replaced++
	case story.Skipped:
		r.counters.Skipped++
	}
	return outcome, true
}

func (r *Registrar) stale(rec story.Record, now time.Time, lookbackHours int) bool {
	if lookbackHours <= 0 {
		return false
	}
	published, ok := rec.PublishedAt()
	if !ok {
		return false
	}
	return published.Before(now.Add(-time.Duration(lookbackHours) * time.Hour))
}

// Pools returns each topic's kept records in bucket order.
func (r *Registrar) Pools() map[string][]story.Record {
	topics := r.registry.Topics()
	out := make(map[string][]story.Record, len(topics))
	for _, topic := range topics {
		out[topic] = r.registry.Bucket(topic)
	}
	return out
}

func (r *Registrar) Pool(topic string) []story.Record {
	return r.registry.Bucket(topic)
}

func (r *Registrar) Counters() Counters {
	return r.counters
}

func (r *Registrar) RegistryStats() story.Stats {
	return r.registry.Stats()
}
