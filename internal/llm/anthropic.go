package llm

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicOptions configures the Messages API client.
type AnthropicOptions struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Anthropic calls the Anthropic Messages API with a single user turn per prompt.
type Anthropic struct {
	client anthropic.Client
	model  string
}

// NewAnthropic builds a client. SDK-level retries are disabled; retrying is the
// caller's policy.
func NewAnthropic(o AnthropicOptions) *Anthropic {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if o.APIKey != "" {
		opts = append(opts, option.WithAPIKey(o.APIKey))
	}
	if o.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(o.BaseURL))
	}
	if o.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(o.Timeout))
	}
	return &Anthropic{client: anthropic.NewClient(opts...), model: o.Model}
}

func (a *Anthropic) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if stderrors.As(err, &apiErr) {
			return "", classify(err, "anthropic", apiErr.StatusCode)
		}
		return "", classify(err, "anthropic", 0)
	}
	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return "", emptyResponse("anthropic")
	}
	return joinText(parts), nil
}
