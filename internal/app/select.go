package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/isaiahnixon/newspaper/internal/cli"
	"github.com/isaiahnixon/newspaper/internal/config"
	"github.com/isaiahnixon/newspaper/internal/ingest"
	"github.com/isaiahnixon/newspaper/internal/logging"
	"github.com/isaiahnixon/newspaper/internal/pipeline"
	"github.com/isaiahnixon/newspaper/internal/selection"
	"github.com/isaiahnixon/newspaper/internal/story"
)

type selectReport struct {
	Now          time.Time           `json:"now"`
	Files        int                 `json:"files"`
	Records      int                 `json:"records"`
	UnknownTopic int                 `json:"unknown_topic"`
	Ingest       ingest.Counters     `json:"ingest"`
	Registry     story.Stats         `json:"registry"`
	Topics       []selectTopicReport `json:"topics"`
}

type selectTopicReport struct {
	Name     string           `json:"name"`
	Pool     int              `json:"pool"`
	Selected []selectedRecord `json:"selected"`
}

type selectedRecord struct {
	Rank        int        `json:"rank"`
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	Source      string     `json:"source"`
	Quality     float64    `json:"quality"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

func runSelect(args []string) int {
	fs := flag.NewFlagSet("select", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	dir := fs.String("dir", "testdata/records", "Directory containing .json record files")
	recursive := fs.Bool("recursive", true, "Recursively scan subdirectories")
	configPath := fs.String("config", "", "Edition YAML path (default $NEWSPAPER_CONFIG)")
	nowRaw := fs.String("now", "", "Reference time for lookback windows (RFC3339 or YYYY-MM-DD, UTC)")
	allTopics := fs.Bool("all-topics", false, "Ignore frequency_days and select for every topic")
	formatRaw := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	format, err := parseOutputFormat(*formatRaw, outputFormatTable)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 2
	}
	now, err := resolveNow(*nowRaw)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 2
	}

	cfg, logger, err := loadRuntime(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}

	edition, err := config.LoadEdition(resolveConfigPath(*configPath, cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load edition config: %v\n", err)
		return 1
	}
	logger = logging.Verbose(logger, edition.Verbose)

	files, err := collectJSONFiles(strings.TrimSpace(*dir), *recursive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Select setup failed: %v\n", err)
		return 1
	}
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "Select failed: no .json files found under %s\n", strings.TrimSpace(*dir))
		return 1
	}

	var records []story.Record
	for _, path := range files {
		fileRecords, err := readRecordFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "INVALID %s: %v\n", path, err)
			return 1
		}
		records = append(records, fileRecords...)
	}

	topics := edition.Topics
	if !*allTopics {
		topics = edition.ActiveTopics(now)
	}

	report, err := selectRecords(context.Background(), edition, topics, records, now, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Select failed: %v\n", err)
		return 1
	}
	report.Files = len(files)

	if format == outputFormatJSON {
		if err := printJSON(report); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON output: %v\n", err)
			return 1
		}
		return 0
	}

	rows := make([][]string, 0)
	for _, topic := range report.Topics {
		for _, rec := range topic.Selected {
			rows = append(rows, []string{
				topic.Name,
				strconv.Itoa(rec.Rank),
				strconv.FormatFloat(rec.Quality, 'f', 2, 64),
				truncateForTable(rec.Source, 24),
				truncateForTable(rec.Title, 72),
				formatUTCTimestampPtr(rec.PublishedAt),
			})
		}
	}
	if err := writeTable([]string{"TOPIC", "RANK", "QUALITY", "SOURCE", "TITLE", "PUBLISHED_AT"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write table output: %v\n", err)
		return 1
	}
	fmt.Printf(
		"select records=%d added=%d replaced=%d skipped=%d stale=%d unknown_topic=%d\n",
		report.Records,
		report.Ingest.Added,
		report.Ingest.Replaced,
		report.Ingest.Skipped,
		report.Ingest.Stale,
		report.UnknownTopic,
	)
	return 0
}

// selectRecords registers records in order and selects each topic offline.
// Records for topics outside topics are counted and ignored.
func selectRecords(
	ctx context.Context,
	edition *config.Edition,
	topics []config.Topic,
	records []story.Record,
	now time.Time,
	logger zerolog.Logger,
) (selectReport, error) {
	report := selectReport{Now: now.UTC(), Records: len(records)}

	known := make(map[string]struct{}, len(topics))
	for _, topic := range topics {
		known[topic.Name] = struct{}{}
	}

	registrar := pipeline.NewRegistrar(edition, topics, logger)
	for _, rec := range records {
		if _, ok := known[rec.Topic]; !ok {
			report.UnknownTopic++
			continue
		}
		registrar.Register(rec, now)
	}
	report.Ingest = registrar.Counters()
	report.Registry = registrar.RegistryStats()

	pools := make([][]story.Record, len(topics))
	for i, topic := range topics {
		pools[i] = registrar.Pool(topic.Name)
	}

	service := pipeline.NewService(edition, pipeline.Deps{Engine: selection.NewEngine(logger)}, logger)
	selected, err := service.SelectAll(ctx, topics, pools)
	if err != nil {
		return report, err
	}

	for i, topic := range topics {
		section := selectTopicReport{
			Name:     topic.Name,
			Pool:     len(pools[i]),
			Selected: make([]selectedRecord, 0, len(selected[i])),
		}
		for rank, rec := range selected[i] {
			var published *time.Time
			if at, ok := rec.PublishedAt(); ok {
				published = &at
			}
			section.Selected = append(section.Selected, selectedRecord{
				Rank:        rank + 1,
				Title:       rec.Title,
				Link:        rec.Link,
				Source:      rec.SourceLabel,
				Quality:     story.QualityScore(rec),
				PublishedAt: published,
			})
		}
		report.Topics = append(report.Topics, section)
	}
	return report, nil
}
