package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxItemsProcessedPerSource = 50
	DefaultDomainDiversityCap         = 2
	DefaultSiteTitle                  = "Daily Paper"
)

var requiredEditionKeys = []string{
	"output_dir",
	"output_file",
	"archive_dir",
	"fetch_full_text",
	"max_full_text_chars",
	"items_per_topic",
	"item_model",
	"selection_model",
	"topic_model",
	"topic_summary_max_retries",
	"temperature",
	"dry_run",
	"verbose",
	"llm_timeout_secs",
	"llm_max_retries",
	"llm_retry_backoff_secs",
	"llm_retry_on_timeout",
	"topics",
}

var weekdayByName = map[string]time.Weekday{
	"mon":       time.Monday,
	"monday":    time.Monday,
	"tue":       time.Tuesday,
	"tues":      time.Tuesday,
	"tuesday":   time.Tuesday,
	"wed":       time.Wednesday,
	"wednesday": time.Wednesday,
	"thu":       time.Thursday,
	"thur":      time.Thursday,
	"thurs":     time.Thursday,
	"thursday":  time.Thursday,
	"fri":       time.Friday,
	"friday":    time.Friday,
	"sat":       time.Saturday,
	"saturday":  time.Saturday,
	"sun":       time.Sunday,
	"sunday":    time.Sunday,
}

// Edition is the newspaper layout: where pages go, which models write them,
// and which feeds feed each topic.
type Edition struct {
	SiteTitle string
	SiteURL   string

	OutputDir  string
	OutputFile string
	ArchiveDir string

	FetchFullText              bool
	MaxFullTextChars           int
	ItemsPerTopic              int
	MaxItemsProcessedPerSource int
	// MaxItemsPerSource is the selection source cap. Zero means no cap.
	MaxItemsPerSource  int
	DomainDiversityCap int
	DetectLanguage     bool
	BlockedDomains     []string

	ItemModel              string
	SelectionModel         string
	TopicModel             string
	TopicSummaryMaxRetries int
	Temperature            *float64

	DryRun  bool
	Verbose bool

	LLMTimeout        time.Duration
	LLMMaxRetries     int
	LLMRetryBackoff   time.Duration
	LLMRetryOnTimeout bool

	Dedup  DedupSettings
	Topics []Topic
}

// DedupSettings overrides the fuzzy matching thresholds. Zero values keep the
// built-in defaults.
type DedupSettings struct {
	SimilarityThreshold    float64 `yaml:"similarity_threshold"`
	MetadataThreshold      float64 `yaml:"metadata_threshold"`
	MetadataWindowMinutes  int     `yaml:"metadata_window_minutes"`
	NearDuplicateThreshold float64 `yaml:"near_duplicate_threshold"`
}

type Topic struct {
	Name          string
	LookbackHours int
	ItemsPerTopic int
	// SourceCap and DomainCap are resolved against the edition-wide values.
	SourceCap int
	DomainCap int
	// FrequencyDays is nil when the topic runs every day.
	FrequencyDays []time.Weekday
	Feeds         []Feed
}

type Feed struct {
	Name        string
	URL         string
	SourceGroup string
}

// Group is the diversity unit for the feed: its source group, or its name.
func (f Feed) Group() string {
	if group := strings.TrimSpace(f.SourceGroup); group != "" {
		return group
	}
	return strings.TrimSpace(f.Name)
}

func (t Topic) RunsOn(day time.Weekday) bool {
	if t.FrequencyDays == nil {
		return true
	}
	for _, d := range t.FrequencyDays {
		if d == day {
			return true
		}
	}
	return false
}

func (e *Edition) OutputPath() string {
	return filepath.Join(e.OutputDir, e.OutputFile)
}

// ActiveTopics returns the topics scheduled for now's UTC weekday.
func (e *Edition) ActiveTopics(now time.Time) []Topic {
	day := now.UTC().Weekday()
	out := make([]Topic, 0, len(e.Topics))
	for _, topic := range e.Topics {
		if topic.RunsOn(day) {
			out = append(out, topic)
		}
	}
	return out
}

func (e *Edition) Topic(name string) (Topic, bool) {
	for _, topic := range e.Topics {
		if topic.Name == name {
			return topic, true
		}
	}
	return Topic{}, false
}

// PruneWindowHours is the longest lookback across topics, so no topic loses
// records that are still inside its own window.
func PruneWindowHours(topics []Topic) int {
	longest := 0
	for _, topic := range topics {
		longest = max(longest, topic.LookbackHours)
	}
	return longest
}

// LoadEdition reads and validates the YAML edition config.
func LoadEdition(path string) (*Edition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}
	cfg, err := ParseEdition(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseEdition validates every key and fails on the first problem.
func ParseEdition(data []byte) (*Edition, error) {
	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config file must contain a YAML mapping at the top level: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("config file must contain a YAML mapping at the top level")
	}

	var missing []string
	for _, key := range requiredEditionKeys {
		if _, ok := doc[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("missing required config keys: %s", strings.Join(missing, ", "))
	}

	r := keyReader{doc: doc}
	cfg := &Edition{
		SiteTitle:                  r.optionalString("site_title", DefaultSiteTitle),
		SiteURL:                    r.optionalString("site_url", ""),
		OutputDir:                  r.str("output_dir"),
		OutputFile:                 r.str("output_file"),
		ArchiveDir:                 r.str("archive_dir"),
		FetchFullText:              r.boolean("fetch_full_text"),
		MaxFullTextChars:           r.integer("max_full_text_chars"),
		ItemsPerTopic:              r.integer("items_per_topic"),
		MaxItemsProcessedPerSource: r.optionalInt("max_items_processed_per_source", DefaultMaxItemsProcessedPerSource),
		MaxItemsPerSource:          r.positiveIntOrNull("max_items_per_source"),
		DomainDiversityCap:         r.optionalInt("domain_diversity_cap", DefaultDomainDiversityCap),
		DetectLanguage:             r.optionalBool("detect_language", false),
		BlockedDomains:             r.stringList("blocked_domains"),
		ItemModel:                  r.str("item_model"),
		SelectionModel:             r.str("selection_model"),
		TopicModel:                 r.str("topic_model"),
		TopicSummaryMaxRetries:     r.integer("topic_summary_max_retries"),
		Temperature:                r.numberOrNull("temperature"),
		DryRun:                     r.boolean("dry_run"),
		Verbose:                    r.boolean("verbose"),
		LLMTimeout:                 r.seconds("llm_timeout_secs"),
		LLMMaxRetries:              r.integer("llm_max_retries"),
		LLMRetryBackoff:            r.seconds("llm_retry_backoff_secs"),
		LLMRetryOnTimeout:          r.boolean("llm_retry_on_timeout"),
	}
	if node, ok := doc["dedup"]; ok && r.err == nil {
		if err := node.Decode(&cfg.Dedup); err != nil {
			r.err = fmt.Errorf("config key 'dedup' is invalid: %w", err)
		}
	}
	if r.err != nil {
		return nil, r.err
	}

	if cfg.TopicSummaryMaxRetries < 1 {
		return nil, fmt.Errorf("config key 'topic_summary_max_retries' must be at least 1")
	}
	if cfg.ItemsPerTopic < 1 {
		return nil, fmt.Errorf("config key 'items_per_topic' must be at least 1")
	}
	if cfg.MaxFullTextChars < 0 {
		return nil, fmt.Errorf("config key 'max_full_text_chars' must be >= 0")
	}
	if cfg.LLMMaxRetries < 0 {
		return nil, fmt.Errorf("config key 'llm_max_retries' must be >= 0")
	}

	topicsNode := doc["topics"]
	topics, err := parseTopics(&topicsNode, cfg)
	if err != nil {
		return nil, err
	}
	cfg.Topics = topics
	return cfg, nil
}

type rawTopic struct {
	Name               string     `yaml:"name"`
	LookbackHours      *int       `yaml:"lookback_hours"`
	ItemsPerTopic      *int       `yaml:"items_per_topic"`
	MaxItemsPerSource  *int       `yaml:"max_items_per_source"`
	DomainDiversityCap *int       `yaml:"domain_diversity_cap"`
	FrequencyDays      *[]string  `yaml:"frequency_days"`
	Feeds              *[]rawFeed `yaml:"feeds"`
}

type rawFeed struct {
	Name        string  `yaml:"name"`
	URL         string  `yaml:"url"`
	SourceGroup *string `yaml:"source_group"`
}

func parseTopics(node *yaml.Node, cfg *Edition) ([]Topic, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("config key 'topics' must be a list of topics")
	}

	topics := make([]Topic, 0, len(node.Content))
	seen := make(map[string]bool, len(node.Content))
	for idx, item := range node.Content {
		if item.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("topic entry %d must be a mapping", idx+1)
		}
		var raw rawTopic
		if err := item.Decode(&raw); err != nil {
			return nil, fmt.Errorf("topic entry %d: %w", idx+1, err)
		}

		name := strings.TrimSpace(raw.Name)
		if name == "" {
			return nil, fmt.Errorf("each topic must include a non-empty 'name'")
		}
		if seen[name] {
			return nil, fmt.Errorf("topic %q is defined more than once", name)
		}
		seen[name] = true

		if raw.LookbackHours == nil {
			return nil, fmt.Errorf("topic %q must set 'lookback_hours'", name)
		}
		if *raw.LookbackHours < 1 {
			return nil, fmt.Errorf("topic %q key 'lookback_hours' must be at least 1", name)
		}

		topic := Topic{
			Name:          name,
			LookbackHours: *raw.LookbackHours,
			ItemsPerTopic: cfg.ItemsPerTopic,
			SourceCap:     cfg.MaxItemsPerSource,
			DomainCap:     cfg.DomainDiversityCap,
		}
		if raw.ItemsPerTopic != nil {
			if *raw.ItemsPerTopic < 1 {
				return nil, fmt.Errorf("topic %q key 'items_per_topic' must be at least 1", name)
			}
			topic.ItemsPerTopic = *raw.ItemsPerTopic
		}
		if raw.MaxItemsPerSource != nil {
			if *raw.MaxItemsPerSource < 1 {
				return nil, fmt.Errorf("topic %q key 'max_items_per_source' must be at least 1", name)
			}
			topic.SourceCap = *raw.MaxItemsPerSource
		}
		if raw.DomainDiversityCap != nil {
			topic.DomainCap = *raw.DomainDiversityCap
		}

		days, err := parseFrequencyDays(name, raw.FrequencyDays)
		if err != nil {
			return nil, err
		}
		topic.FrequencyDays = days

		feeds, err := parseFeeds(name, raw.Feeds)
		if err != nil {
			return nil, err
		}
		topic.Feeds = feeds
		topics = append(topics, topic)
	}
	return topics, nil
}

func parseFrequencyDays(topic string, raw *[]string) ([]time.Weekday, error) {
	if raw == nil {
		return nil, nil
	}
	if len(*raw) == 0 {
		return nil, fmt.Errorf("topic %q key 'frequency_days' cannot be empty", topic)
	}

	set := make(map[time.Weekday]bool, len(*raw))
	for idx, value := range *raw {
		normalized := strings.ToLower(strings.TrimSpace(value))
		if normalized == "" {
			return nil, fmt.Errorf("topic %q has invalid weekday at frequency_days[%d]", topic, idx+1)
		}
		day, ok := weekdayByName[normalized]
		if !ok {
			return nil, fmt.Errorf("topic %q has unsupported weekday %q in 'frequency_days'", topic, value)
		}
		set[day] = true
	}

	days := make([]time.Weekday, 0, len(set))
	for day := range set {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days, nil
}

func parseFeeds(topic string, raw *[]rawFeed) ([]Feed, error) {
	if raw == nil {
		return nil, fmt.Errorf("topic %q must include a list of feeds", topic)
	}
	feeds := make([]Feed, 0, len(*raw))
	for idx, feed := range *raw {
		name := strings.TrimSpace(feed.Name)
		url := strings.TrimSpace(feed.URL)
		if name == "" {
			return nil, fmt.Errorf("feed entry %d in topic %q needs a non-empty 'name'", idx+1, topic)
		}
		if url == "" {
			return nil, fmt.Errorf("feed entry %d in topic %q needs a non-empty 'url'", idx+1, topic)
		}
		group := ""
		if feed.SourceGroup != nil {
			group = strings.TrimSpace(*feed.SourceGroup)
			if group == "" {
				return nil, fmt.Errorf("feed entry %d in topic %q has invalid 'source_group'", idx+1, topic)
			}
		}
		feeds = append(feeds, Feed{Name: name, URL: url, SourceGroup: group})
	}
	return feeds, nil
}

// keyReader decodes top-level keys and keeps the first error.
type keyReader struct {
	doc map[string]yaml.Node
	err error
}

func (r *keyReader) decode(key string, dst any, kind string) bool {
	if r.err != nil {
		return false
	}
	node, ok := r.doc[key]
	if !ok {
		return false
	}
	if err := node.Decode(dst); err != nil {
		r.err = fmt.Errorf("config key '%s' must be %s", key, kind)
		return false
	}
	return true
}

func isNull(node yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.Tag == "!!null"
}

func (r *keyReader) str(key string) string {
	var value string
	if node := r.doc[key]; isNull(node) || !r.decode(key, &value, "a non-empty string") || strings.TrimSpace(value) == "" {
		if r.err == nil {
			r.err = fmt.Errorf("config key '%s' must be a non-empty string", key)
		}
		return ""
	}
	return value
}

func (r *keyReader) optionalString(key, def string) string {
	if _, ok := r.doc[key]; !ok {
		return def
	}
	var value string
	if !r.decode(key, &value, "a string") {
		return def
	}
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}

func (r *keyReader) boolean(key string) bool {
	var value bool
	if node := r.doc[key]; node.Tag != "!!bool" {
		if r.err == nil {
			r.err = fmt.Errorf("config key '%s' must be a boolean", key)
		}
		return false
	}
	r.decode(key, &value, "a boolean")
	return value
}

func (r *keyReader) optionalBool(key string, def bool) bool {
	if _, ok := r.doc[key]; !ok {
		return def
	}
	return r.boolean(key)
}

func (r *keyReader) integer(key string) int {
	var value int
	if node := r.doc[key]; node.Tag != "!!int" {
		if r.err == nil {
			r.err = fmt.Errorf("config key '%s' must be an integer", key)
		}
		return 0
	}
	r.decode(key, &value, "an integer")
	return value
}

func (r *keyReader) optionalInt(key string, def int) int {
	if _, ok := r.doc[key]; !ok {
		return def
	}
	return r.integer(key)
}

func (r *keyReader) positiveIntOrNull(key string) int {
	node, ok := r.doc[key]
	if !ok || isNull(node) {
		return 0
	}
	value := r.integer(key)
	if r.err == nil && value < 1 {
		r.err = fmt.Errorf("config key '%s' must be at least 1 when provided", key)
	}
	return value
}

func (r *keyReader) number(key string) float64 {
	var value float64
	if node := r.doc[key]; node.Tag != "!!int" && node.Tag != "!!float" {
		if r.err == nil {
			r.err = fmt.Errorf("config key '%s' must be a number", key)
		}
		return 0
	}
	r.decode(key, &value, "a number")
	return value
}

func (r *keyReader) numberOrNull(key string) *float64 {
	if isNull(r.doc[key]) {
		return nil
	}
	value := r.number(key)
	return &value
}

func (r *keyReader) seconds(key string) time.Duration {
	value := r.number(key)
	if r.err == nil && value < 0 {
		r.err = fmt.Errorf("config key '%s' must be >= 0", key)
	}
	return time.Duration(value * float64(time.Second))
}

func (r *keyReader) stringList(key string) []string {
	if _, ok := r.doc[key]; !ok {
		return nil
	}
	var values []string
	if !r.decode(key, &values, "a list of strings") {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.ToLower(strings.TrimSpace(value)); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
