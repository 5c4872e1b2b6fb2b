package llm

import (
	"context"
	"errors"
)

// ErrDryRun is returned by the dry-run provider. Callers treat it like any
// other provider failure and fall back to their offline behavior.
var ErrDryRun = errors.New("llm: dry run, no request sent")

// Prompt is one chat completion request.
type Prompt struct {
	Model       string
	System      string
	User        string
	Temperature *float64
}

// Provider completes prompts against a language model.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

const dryRunProviderName = "none"

// DryRun never contacts a model.
type DryRun struct{}

func (DryRun) Name() string {
	return dryRunProviderName
}

func (DryRun) Complete(context.Context, Prompt) (string, error) {
	return "", ErrDryRun
}
