package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/isaiahnixon/newspaper/internal/config"
	"github.com/isaiahnixon/newspaper/internal/llm"
	"github.com/isaiahnixon/newspaper/internal/selection"
)

// buildRanker returns nil when no model is reachable, so selection keeps the
// quality order without logging a ranker failure per topic.
func buildRanker(provider llm.Provider, edition *config.Edition) selection.Ranker {
	if edition.DryRun {
		return nil
	}
	if _, dry := provider.(llm.DryRun); dry || provider == nil {
		return nil
	}
	return &selection.LLMRanker{
		Provider:    provider,
		Model:       edition.SelectionModel,
		Temperature: edition.Temperature,
	}
}

// buildProvider resolves LLM_PROVIDER into a provider wrapped with the
// edition's retry policy. Dry runs never build a network client. The returned
// close func is always safe to call.
func buildProvider(ctx context.Context, cfg *config.Config, edition *config.Edition, logger zerolog.Logger) (llm.Provider, func(), error) {
	noop := func() {}
	if edition.DryRun || cfg.Provider() == "none" {
		logger.Info().Bool("dry_run", edition.DryRun).Msg("language model disabled, using extractive summaries")
		return llm.DryRun{}, noop, nil
	}

	registry := llm.NewRegistry(cfg.Provider())
	closers := make([]func(), 0, 1)
	closeAll := func() {
		for _, closeFn := range closers {
			closeFn()
		}
	}

	if err := registry.Register(llm.NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, edition.ItemModel, edition.LLMTimeout)); err != nil {
		return nil, noop, err
	}
	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		gemini, err := llm.NewGeminiProvider(ctx, cfg.GeminiAPIKey, edition.ItemModel)
		if err != nil {
			return nil, noop, fmt.Errorf("init gemini provider: %w", err)
		}
		closers = append(closers, func() {
			if err := gemini.Close(); err != nil {
				logger.Warn().Err(err).Msg("close gemini client failed")
			}
		})
		if err := registry.Register(gemini); err != nil {
			closeAll()
			return nil, noop, err
		}
	}

	provider, err := registry.Provider(cfg.Provider())
	if err != nil {
		closeAll()
		return nil, noop, err
	}

	logger.Info().
		Str("provider", provider.Name()).
		Str("item_model", edition.ItemModel).
		Str("selection_model", edition.SelectionModel).
		Str("topic_model", edition.TopicModel).
		Msg("language model provider ready")

	return llm.WithRetry(provider, llm.RetryOptions{
		MaxRetries:     edition.LLMMaxRetries,
		Backoff:        edition.LLMRetryBackoff,
		RetryOnTimeout: edition.LLMRetryOnTimeout,
		AttemptTimeout: edition.LLMTimeout,
		Logger:         logger,
	}), closeAll, nil
}
