package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

type RetryOptions struct {
	MaxRetries     int
	Backoff        time.Duration
	RetryOnTimeout bool
	// AttemptTimeout bounds each attempt. Zero leaves the caller's deadline.
	AttemptTimeout time.Duration
	Logger         zerolog.Logger
}

type retryingProvider struct {
	next Provider
	opts RetryOptions
}

// WithRetry retries failed completions with linear backoff. Dry runs and
// client errors other than 429 are not retried.
func WithRetry(next Provider, opts RetryOptions) Provider {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &retryingProvider{next: next, opts: opts}
}

func (p *retryingProvider) Name() string {
	return p.next.Name()
}

func (p *retryingProvider) Complete(ctx context.Context, prompt Prompt) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= p.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := p.opts.Backoff * time.Duration(attempt)
			p.opts.Logger.Debug().
				Err(lastErr).
				Int("attempt", attempt+1).
				Dur("backoff", wait).
				Str("provider", p.next.Name()).
				Msg("retrying completion")
			if err := sleepContext(ctx, wait); err != nil {
				return "", err
			}
		}

		content, err := p.attempt(ctx, prompt)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if !p.retryable(ctx, err) {
			break
		}
	}
	return "", lastErr
}

func (p *retryingProvider) attempt(ctx context.Context, prompt Prompt) (string, error) {
	if p.opts.AttemptTimeout <= 0 {
		return p.next.Complete(ctx, prompt)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, p.opts.AttemptTimeout)
	defer cancel()
	return p.next.Complete(attemptCtx, prompt)
}

func (p *retryingProvider) retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, ErrDryRun) {
		return false
	}
	if isTimeout(err) {
		return p.opts.RetryOnTimeout
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}
	return true
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
