package llm

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/pillarsite/internal/foundation/errors"
	"git.home.luguber.info/inful/pillarsite/internal/logfields"
	"git.home.luguber.info/inful/pillarsite/internal/metrics"
	"git.home.luguber.info/inful/pillarsite/internal/retry"
)

// Instrument records duration and outcome of every request under the stage found in ctx.
func Instrument(c Completer, provider string, rec metrics.Recorder) Completer {
	rec = metrics.OrNoop(rec)
	return CompleterFunc(func(ctx context.Context, prompt string, maxTokens int) (string, error) {
		start := time.Now()
		out, err := c.Complete(ctx, prompt, maxTokens)
		rec.ObserveRequest(StageFrom(ctx), provider, time.Since(start), err == nil)
		return out, err
	})
}

// WithRetry retries retryable generation errors according to p. Parse, validation and
// cancellation errors are never retried.
func WithRetry(c Completer, p retry.Policy, rec metrics.Recorder) Completer {
	if p.MaxRetries <= 0 {
		return c
	}
	rec = metrics.OrNoop(rec)
	return CompleterFunc(func(ctx context.Context, prompt string, maxTokens int) (string, error) {
		var out string
		err := retry.Do(ctx, p, func(ctx context.Context) error {
			var err error
			out, err = c.Complete(ctx, prompt, maxTokens)
			return err
		}, retryable, func(attempt int, err error) {
			stage := StageFrom(ctx)
			rec.IncRequestRetry(stage)
			slog.Warn("Retrying generation request",
				logfields.Stage(stage),
				logfields.Attempt(attempt),
				logfields.Error(err))
		})
		return out, err
	})
}

func retryable(err error) bool {
	return errors.HasCategory(err, errors.CategoryGeneration) && errors.IsRetryable(err)
}
