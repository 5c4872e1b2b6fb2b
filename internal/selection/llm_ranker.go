package selection

import (
	"context"
	"fmt"
	"strings"

	"github.com/isaiahnixon/newspaper/internal/llm"
)

const rankerSystemPrompt = "You are the editor of a daily news briefing. " +
	"Pick the most important, distinct stories and prefer a mix of sources. " +
	"Answer only with the chosen item numbers as a comma-separated list, most important first."

// LLMRanker asks a language model to order candidates.
type LLMRanker struct {
	Provider    llm.Provider
	Model       string
	Temperature *float64
}

func (r *LLMRanker) Rank(ctx context.Context, req RankRequest) (string, error) {
	if r == nil || r.Provider == nil {
		return "", fmt.Errorf("ranker has no provider")
	}
	return r.Provider.Complete(ctx, llm.Prompt{
		Model:       r.Model,
		System:      rankerSystemPrompt,
		User:        buildRankPrompt(req),
		Temperature: r.Temperature,
	})
}

func buildRankPrompt(req RankRequest) string {
	var b strings.Builder
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		topic = "general news"
	}
	fmt.Fprintf(&b, "Topic: %s\n", topic)
	fmt.Fprintf(&b, "Choose the %d best items from the %d below.\n\n", req.Count, len(req.Candidates))
	for _, c := range req.Candidates {
		fmt.Fprintf(&b, "%d. %s\n", c.Index, strings.TrimSpace(c.Title))
		fmt.Fprintf(&b, "   source: %s | domain: %s\n", strings.TrimSpace(c.Source), c.Domain)
		if summary := strings.TrimSpace(c.Summary); summary != "" {
			fmt.Fprintf(&b, "   %s\n", summary)
		}
	}
	fmt.Fprintf(&b, "\nReply with exactly %d numbers, for example: 3, 1, 7", req.Count)
	return b.String()
}
