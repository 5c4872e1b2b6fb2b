package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/isaiahnixon/newspaper/internal/cli"
	"github.com/isaiahnixon/newspaper/internal/config"
	"github.com/isaiahnixon/newspaper/internal/db"
	"github.com/isaiahnixon/newspaper/internal/feed"
	"github.com/isaiahnixon/newspaper/internal/globaltime"
	"github.com/isaiahnixon/newspaper/internal/logging"
	"github.com/isaiahnixon/newspaper/internal/pipeline"
	"github.com/isaiahnixon/newspaper/internal/render"
	"github.com/isaiahnixon/newspaper/internal/selection"
	"github.com/isaiahnixon/newspaper/internal/summarize"
)

type runSummary struct {
	EditionUUID       string            `json:"edition_uuid"`
	GeneratedAt       time.Time         `json:"generated_at"`
	Topics            int               `json:"topics"`
	Items             int               `json:"items"`
	SourcesChecked    int               `json:"sources_checked"`
	PaywalledExcluded int               `json:"paywalled_excluded"`
	Published         render.Published  `json:"published"`
	Stats             pipeline.RunStats `json:"stats"`
	Persisted         bool              `json:"persisted"`
}

func runEdition(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	configPath := fs.String("config", "", "Edition YAML path (default $NEWSPAPER_CONFIG)")
	nowRaw := fs.String("now", "", "Override the edition time (RFC3339 or YYYY-MM-DD, UTC)")
	timeout := fs.Duration("timeout", 0, "Abort the run after this long (0 disables)")
	dryRun := fs.Bool("dry-run", false, "Skip language model calls regardless of the config")
	noDB := fs.Bool("no-db", false, "Do not store the edition even when DATABASE_URL is set")
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
	if *timeout < 0 {
		fmt.Fprintln(os.Stderr, "--timeout must be >= 0")
		return 2
	}

	cfg, logger, err := loadRuntime(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}

	edition, err := config.LoadEdition(resolveConfigPath(*configPath, cfg))
	if err != nil {
		logger.Error().Err(err).Msg("load edition config failed")
		fmt.Fprintf(os.Stderr, "Failed to load edition config: %v\n", err)
		return 1
	}
	if *dryRun {
		edition.DryRun = true
	}
	logger = logging.Verbose(logger, edition.Verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	provider, closeProvider, err := buildProvider(ctx, cfg, edition, logger)
	if err != nil {
		logger.Error().Err(err).Msg("language model setup failed")
		fmt.Fprintf(os.Stderr, "Failed to set up language model: %v\n", err)
		return 1
	}
	defer closeProvider()

	ranker := buildRanker(provider, edition)

	service := pipeline.NewService(edition, pipeline.Deps{
		Fetcher: feed.NewFetcher(feed.Options{
			Concurrency:       cfg.FetchConcurrency,
			RequestsPerSecond: cfg.FetchRPS,
			UserAgent:         cfg.HTTPUserAgent,
			MaxItemsPerFeed:   edition.MaxItemsProcessedPerSource,
			BlockedDomains:    edition.BlockedDomains,
			FetchFullText:     edition.FetchFullText,
			MaxFullTextChars:  edition.MaxFullTextChars,
			DetectLanguage:    edition.DetectLanguage,
		}, logger),
		Engine: selection.NewEngine(logger),
		Summarizer: summarize.New(provider, summarize.Options{
			ItemModel:     edition.ItemModel,
			TopicModel:    edition.TopicModel,
			Temperature:   edition.Temperature,
			TopicAttempts: edition.TopicSummaryMaxRetries,
		}, logger),
		Ranker: ranker,
	}, logger)

	started := globaltime.Now()
	result, err := service.Run(ctx, now)
	if err != nil {
		logger.Error().Err(err).Msg("edition run failed")
		fmt.Fprintf(os.Stderr, "Edition run failed: %v\n", err)
		return 1
	}

	published, err := render.Publish(layoutFor(edition), result, edition.SiteURL, logger)
	if err != nil {
		logger.Error().Err(err).Msg("publish edition failed")
		fmt.Fprintf(os.Stderr, "Publish failed: %v\n", err)
		return 1
	}

	summary := runSummary{
		EditionUUID:       result.UUID,
		GeneratedAt:       result.GeneratedAt,
		Topics:            len(result.Topics),
		Items:             result.ItemCount(),
		SourcesChecked:    result.SourcesChecked,
		PaywalledExcluded: result.PaywalledExcluded,
		Published:         published,
		Stats:             result.Stats,
	}

	exitCode := 0
	if cfg.HasDatabase() && !*noDB {
		if err := persistEdition(ctx, cfg, result, logger); err != nil {
			logger.Error().Err(err).Str("edition_uuid", result.UUID).Msg("store edition failed")
			fmt.Fprintf(os.Stderr, "Store edition failed: %v\n", err)
			exitCode = 1
		} else {
			summary.Persisted = true
		}
	}

	logger.Info().
		Str("edition_uuid", result.UUID).
		Int("topics", summary.Topics).
		Int("items", summary.Items).
		Int("sources_checked", summary.SourcesChecked).
		Int("paywalled_excluded", summary.PaywalledExcluded).
		Dur("elapsed", globaltime.Since(started)).
		Msg("edition run complete")

	if format == outputFormatJSON {
		if err := printJSON(summary); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON output: %v\n", err)
			return 1
		}
		return exitCode
	}

	rows := make([][]string, 0, len(result.Topics))
	for _, section := range result.Topics {
		rows = append(rows, []string{
			section.Name,
			strconv.Itoa(len(section.Items)),
			strconv.Itoa(result.Stats.Pool[section.Name]),
			strconv.FormatBool(section.SummaryGenerated),
		})
	}
	if err := writeTable([]string{"TOPIC", "ITEMS", "POOL", "LLM_SUMMARY"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write table output: %v\n", err)
		return 1
	}
	fmt.Printf("edition=%s page=%s sources=%d paywalled=%d\n",
		result.UUID, published.Page, result.SourcesChecked, result.PaywalledExcluded)
	return exitCode
}

func persistEdition(ctx context.Context, cfg *config.Config, edition pipeline.Edition, logger zerolog.Logger) error {
	dbCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	pool, err := db.NewPool(dbCtx, cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	editionID, err := pool.SaveEdition(dbCtx, edition)
	if err != nil {
		return err
	}
	logger.Info().Int64("edition_id", editionID).Str("edition_uuid", edition.UUID).Msg("edition stored")
	return nil
}

func layoutFor(edition *config.Edition) render.Layout {
	return render.Layout{
		OutputDir:  edition.OutputDir,
		OutputFile: edition.OutputFile,
		ArchiveDir: edition.ArchiveDir,
	}
}
