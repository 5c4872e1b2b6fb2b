package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/isaiahnixon/newspaper/internal/cli"
	"github.com/isaiahnixon/newspaper/internal/config"
)

type topicCheck struct {
	Name          string   `json:"name"`
	Active        bool     `json:"active"`
	Days          []string `json:"days"`
	Feeds         int      `json:"feeds"`
	LookbackHours int      `json:"lookback_hours"`
	ItemsPerTopic int      `json:"items_per_topic"`
	SourceCap     int      `json:"source_cap"`
	DomainCap     int      `json:"domain_cap"`
}

func runCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	configPath := fs.String("config", "", "Edition YAML path (default $NEWSPAPER_CONFIG)")
	nowRaw := fs.String("now", "", "Day to check schedules against (RFC3339 or YYYY-MM-DD, UTC)")
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

	cfg, _, err := loadRuntime(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}

	path := resolveConfigPath(*configPath, cfg)
	edition, err := config.LoadEdition(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "INVALID %s: %v\n", path, err)
		return 1
	}

	checks := describeTopics(edition, now)
	if format == outputFormatJSON {
		if err := printJSON(map[string]any{
			"config":  path,
			"weekday": now.Weekday().String(),
			"dry_run": edition.DryRun,
			"topics":  checks,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON output: %v\n", err)
			return 1
		}
		return 0
	}

	rows := make([][]string, 0, len(checks))
	active := 0
	for _, check := range checks {
		if check.Active {
			active++
		}
		rows = append(rows, []string{
			check.Name,
			strconv.FormatBool(check.Active),
			strings.Join(check.Days, ","),
			strconv.Itoa(check.Feeds),
			strconv.Itoa(check.LookbackHours),
			strconv.Itoa(check.ItemsPerTopic),
			capLabel(check.SourceCap),
			capLabel(check.DomainCap),
		})
	}
	if err := writeTable([]string{"TOPIC", "ACTIVE", "DAYS", "FEEDS", "LOOKBACK_H", "ITEMS", "SOURCE_CAP", "DOMAIN_CAP"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write table output: %v\n", err)
		return 1
	}
	fmt.Printf("ok: %s topics=%d active=%d weekday=%s\n", path, len(checks), active, now.Weekday())
	return 0
}

func describeTopics(edition *config.Edition, now time.Time) []topicCheck {
	out := make([]topicCheck, 0, len(edition.Topics))
	for _, topic := range edition.Topics {
		days := []string{"daily"}
		if topic.FrequencyDays != nil {
			days = make([]string, 0, len(topic.FrequencyDays))
			for _, day := range topic.FrequencyDays {
				days = append(days, day.String()[:3])
			}
		}
		out = append(out, topicCheck{
			Name:          topic.Name,
			Active:        topic.RunsOn(now.UTC().Weekday()),
			Days:          days,
			Feeds:         len(topic.Feeds),
			LookbackHours: topic.LookbackHours,
			ItemsPerTopic: topic.ItemsPerTopic,
			SourceCap:     topic.SourceCap,
			DomainCap:     topic.DomainCap,
		})
	}
	return out
}

func capLabel(value int) string {
	if value <= 0 {
		return "-"
	}
	return strconv.Itoa(value)
}
