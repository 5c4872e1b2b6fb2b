package story

import (
	"strings"
	"time"
)

// Record is one feed entry as it arrives from a source. Records are treated as
// immutable once built; the registry stores copies.
type Record struct {
	Topic       string     `json:"topic"`
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	SourceLabel string     `json:"source_label,omitempty"`
	SourceGroup string     `json:"source_group,omitempty"`
	Summary     string     `json:"summary,omitempty"`
	FullText    string     `json:"full_text,omitempty"`
	Language    string     `json:"language,omitempty"`
	Published   *time.Time `json:"published_at,omitempty"`
}

// Group returns the source grouping key used by per-source caps. Records
// without an explicit group fall back to their source label.
func (r Record) Group() string {
	if group := strings.TrimSpace(r.SourceGroup); group != "" {
		return group
	}
	return strings.TrimSpace(r.SourceLabel)
}

// PublishedAt returns the publish time in UTC and whether it is known.
func (r Record) PublishedAt() (time.Time, bool) {
	if r.Published == nil || r.Published.IsZero() {
		return time.Time{}, false
	}
	return r.Published.UTC(), true
}

func (r Record) clone() Record {
	out := r
	if r.Published != nil {
		published := *r.Published
		out.Published = &published
	}
	return out
}

// SeenRecord is the registry's view of an accepted record.
type SeenRecord struct {
	Record   Record
	URL      string
	Hostname string
	Metadata Metadata
	Quality  float64

	id uint64
}

func newSeenRecord(rec Record) SeenRecord {
	rec = rec.clone()
	canonical := Canonicalize(rec.Link)
	return SeenRecord{
		Record:   rec,
		URL:      canonical,
		Hostname: Hostname(canonical),
		Metadata: recordMetadata(rec),
		Quality:  QualityScore(rec),
	}
}

// recordMetadata extracts title and summary separately so a span cannot run
// across the boundary between them.
func recordMetadata(rec Record) Metadata {
	out := ExtractMetadata(rec.Title)
	for anchor := range ExtractMetadata(CleanSummary(rec.Summary)) {
		out[anchor] = struct{}{}
	}
	return out
}
