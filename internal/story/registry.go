package story

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultSimilarityThreshold = 0.82
	DefaultMetadataThreshold   = 0.65
	DefaultMetadataTimeWindow  = 180 * time.Minute
)

// Outcome is the registry's decision for one incoming record.
type Outcome int

const (
	Added Outcome = iota + 1
	Replaced
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Added:
		return "added"
	case Replaced:
		return "replaced"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// MatchReason names the signal that tied an incoming record to a tracked story.
type MatchReason string

const (
	ReasonNone         MatchReason = ""
	ReasonCanonicalURL MatchReason = "canonical_url"
	ReasonSimilar      MatchReason = "similar"
	ReasonMetadata     MatchReason = "metadata"
	// ReasonTranslation is a metadata match between records whose detected
	// languages differ.
	ReasonTranslation MatchReason = "translation"
)

// Options tunes fuzzy matching. Zero values take the package defaults.
type Options struct {
	SimilarityThreshold float64
	MetadataThreshold   float64
	MetadataTimeWindow  time.Duration
	Logger              *zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.SimilarityThreshold <= 0 {
		o.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if o.MetadataThreshold <= 0 {
		o.MetadataThreshold = DefaultMetadataThreshold
	}
	if o.MetadataTimeWindow <= 0 {
		o.MetadataTimeWindow = DefaultMetadataTimeWindow
	}
	return o
}

// Stats counts registry decisions since construction.
type Stats struct {
	Added    int                 `json:"added"`
	Replaced int                 `json:"replaced"`
	Skipped  int                 `json:"skipped"`
	Pruned   int                 `json:"pruned"`
	Matches  map[MatchReason]int `json:"matches"`
}

type bucketEntry struct {
	id     uint64
	record Record
}

// Registry deduplicates records within a single run. It is not safe for
// concurrent use; feed it from one goroutine.
type Registry struct {
	opts   Options
	logger zerolog.Logger

	index   map[string]*SeenRecord
	seen    []*SeenRecord
	buckets map[string][]bucketEntry
	topics  []string
	nextID  uint64
	stats   Stats
}

func NewRegistry(opts Options) *Registry {
	opts = opts.withDefaults()
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Registry{
		opts:    opts,
		logger:  logger,
		index:   make(map[string]*SeenRecord),
		buckets: make(map[string][]bucketEntry),
		stats:   Stats{Matches: make(map[MatchReason]int)},
	}
}

// Register runs one record through prune, canonical match, fuzzy match and
// insert, in that order.
//
// compareWindowHours limits fuzzy candidates to tracked records published
// within that many hours of the incoming one when both are dated; zero or
// less compares against everything tracked. pruneWindowHours drops dated
// records older than now minus the window before matching, from both the
// tracked set and their topic bucket; the boundary is inclusive and zero or
// less disables pruning.
func (r *Registry) Register(rec Record, now time.Time, compareWindowHours, pruneWindowHours int) Outcome {
	r.prune(now, pruneWindowHours)

	incoming := newSeenRecord(rec)

	if incoming.URL != "" {
		if existing, ok := r.index[incoming.URL]; ok {
			return r.resolve(existing, incoming, ReasonCanonicalURL)
		}
	}

	if existing, reason := r.fuzzyMatch(incoming, compareWindowHours); existing != nil {
		return r.resolve(existing, incoming, reason)
	}

	r.insert(incoming)
	return Added
}

// Bucket returns the kept records of a topic in bucket order.
func (r *Registry) Bucket(topic string) []Record {
	entries := r.buckets[topic]
	out := make([]Record, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.record.clone())
	}
	return out
}

// Topics lists topics in the order their first record was kept.
func (r *Registry) Topics() []string {
	out := make([]string, 0, len(r.topics))
	for _, topic := range r.topics {
		if len(r.buckets[topic]) > 0 {
			out = append(out, topic)
		}
	}
	return out
}

// Len is the number of tracked stories.
func (r *Registry) Len() int {
	return len(r.seen)
}

// Contains reports whether a link's canonical form is tracked.
func (r *Registry) Contains(link string) bool {
	_, ok := r.index[Canonicalize(link)]
	return ok
}

// Seen returns a snapshot of the tracked stories in insertion order.
func (r *Registry) Seen() []SeenRecord {
	out := make([]SeenRecord, 0, len(r.seen))
	for _, slot := range r.seen {
		out = append(out, *slot)
	}
	return out
}

func (r *Registry) Stats() Stats {
	out := r.stats
	out.Matches = make(map[MatchReason]int, len(r.stats.Matches))
	for reason, count := range r.stats.Matches {
		out.Matches[reason] = count
	}
	return out
}

func (r *Registry) prune(now time.Time, pruneWindowHours int) {
	if pruneWindowHours <= 0 || len(r.seen) == 0 {
		return
	}
	cutoff := now.Add(-time.Duration(pruneWindowHours) * time.Hour)

	kept := r.seen[:0]
	for _, slot := range r.seen {
		published, ok := slot.Record.PublishedAt()
		if !ok || !published.Before(cutoff) {
			kept = append(kept, slot)
			continue
		}
		r.unindex(slot)
		r.removeFromBucket(slot.Record.Topic, slot.id)
		r.stats.Pruned++
		r.logger.Debug().
			Str("url", slot.URL).
			Time("published_at", published).
			Msg("pruned stale story")
	}
	for i := len(kept); i < len(r.seen); i++ {
		r.seen[i] = nil
	}
	r.seen = kept
	r.assertConsistent()
}

func (r *Registry) fuzzyMatch(incoming SeenRecord, compareWindowHours int) (*SeenRecord, MatchReason) {
	if incoming.Hostname == "" {
		return nil, ReasonNone
	}
	incomingTime, incomingDated := incoming.Record.PublishedAt()
	compareWindow := time.Duration(compareWindowHours) * time.Hour

	for _, slot := range r.seen {
		if slot.Hostname != incoming.Hostname {
			continue
		}
		slotTime, slotDated := slot.Record.PublishedAt()
		bothDated := incomingDated && slotDated
		if bothDated && compareWindow > 0 && absDuration(incomingTime.Sub(slotTime)) > compareWindow {
			continue
		}

		if WeightedStorySimilarity(slot.Record, incoming.Record) >= r.opts.SimilarityThreshold {
			return slot, ReasonSimilar
		}
		if bothDated && absDuration(incomingTime.Sub(slotTime)) <= r.opts.MetadataTimeWindow &&
			MetadataOverlapRatio(slot.Metadata, incoming.Metadata) >= r.opts.MetadataThreshold {
			if languagesDiffer(slot.Record.Language, incoming.Record.Language) {
				return slot, ReasonTranslation
			}
			return slot, ReasonMetadata
		}
	}
	return nil, ReasonNone
}

func (r *Registry) resolve(existing *SeenRecord, incoming SeenRecord, reason MatchReason) Outcome {
	r.stats.Matches[reason]++

	if incoming.Quality <= existing.Quality {
		r.stats.Skipped++
		r.logger.Debug().
			Str("reason", string(reason)).
			Str("kept", existing.URL).
			Str("dropped", incoming.URL).
			Msg("duplicate skipped")
		return Skipped
	}

	r.removeFromBucket(existing.Record.Topic, existing.id)
	if existing.URL != incoming.URL {
		r.unindex(existing)
	}

	previousURL := existing.URL
	r.nextID++
	incoming.id = r.nextID
	*existing = incoming
	if existing.URL != "" {
		r.index[existing.URL] = existing
	}
	r.appendToBucket(existing)
	r.assertConsistent()

	r.stats.Replaced++
	r.logger.Debug().
		Str("reason", string(reason)).
		Str("replaced", previousURL).
		Str("kept", existing.URL).
		Msg("duplicate replaced")
	return Replaced
}

func (r *Registry) insert(incoming SeenRecord) {
	r.nextID++
	incoming.id = r.nextID
	slot := &incoming
	r.seen = append(r.seen, slot)
	if slot.URL != "" {
		r.index[slot.URL] = slot
	}
	r.appendToBucket(slot)
	r.assertConsistent()
	r.stats.Added++
}

func (r *Registry) appendToBucket(slot *SeenRecord) {
	topic := slot.Record.Topic
	if _, ok := r.buckets[topic]; !ok {
		r.topics = append(r.topics, topic)
	}
	r.buckets[topic] = append(r.buckets[topic], bucketEntry{id: slot.id, record: slot.Record})
}

func (r *Registry) removeFromBucket(topic string, id uint64) {
	entries := r.buckets[topic]
	for i, entry := range entries {
		if entry.id == id {
			r.buckets[topic] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
	panic(fmt.Sprintf("story registry: record %d missing from topic bucket %q", id, topic))
}

func (r *Registry) unindex(slot *SeenRecord) {
	if slot.URL == "" {
		return
	}
	if r.index[slot.URL] != slot {
		panic(fmt.Sprintf("story registry: index entry for %q does not point at its record", slot.URL))
	}
	delete(r.index, slot.URL)
}

// assertConsistent checks that the URL index and the tracked records describe
// the same set of stories.
func (r *Registry) assertConsistent() {
	indexed := 0
	for _, slot := range r.seen {
		if slot.URL == "" {
			continue
		}
		indexed++
		if r.index[slot.URL] != slot {
			panic(fmt.Sprintf("story registry: %q is tracked but not indexed", slot.URL))
		}
	}
	if indexed != len(r.index) {
		panic(fmt.Sprintf("story registry: index holds %d urls for %d tracked records", len(r.index), indexed))
	}
}

func languagesDiffer(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	return a != "" && b != "" && a != b
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
