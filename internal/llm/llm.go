// Package llm wraps generative text APIs behind a single-method Completer.
package llm

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"

	"git.home.luguber.info/inful/pillarsite/internal/foundation/errors"
)

// Completer turns one prompt into one text response.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt string, maxTokens int) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return f(ctx, prompt, maxTokens)
}

type stageKey struct{}

// WithStage annotates ctx with the pipeline stage issuing requests.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey{}, stage)
}

// StageFrom returns the stage set by WithStage, or "unknown".
func StageFrom(ctx context.Context) string {
	if s, ok := ctx.Value(stageKey{}).(string); ok && s != "" {
		return s
	}
	return "unknown"
}

// classify maps a provider failure onto a generation error. Rate limits and server
// errors are marked retryable; cancellation keeps its own category.
func classify(err error, provider string, status int) error {
	if stderrors.Is(err, context.Canceled) {
		return errors.WrapError(err, errors.CategoryCanceled, "generation request canceled").
			WithContext("provider", provider).Build()
	}
	b := errors.WrapError(err, errors.CategoryGeneration, "generation request failed").
		WithContext("provider", provider)
	if status != 0 {
		b = b.WithContext("status", status)
	}
	switch {
	case status == http.StatusTooManyRequests:
		b = b.RateLimit()
	case status >= 500, status == 0 && !stderrors.Is(err, context.DeadlineExceeded):
		b = b.Retryable()
	}
	return b.Build()
}

func emptyResponse(provider string) error {
	return errors.GenerationError("generation response contained no text").
		WithContext("provider", provider).Build()
}

func joinText(parts []string) string {
	return strings.Join(parts, "")
}
