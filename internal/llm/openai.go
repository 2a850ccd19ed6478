package llm

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIOptions configures an OpenAI-compatible chat completions client. BaseURL points
// it at compatible services such as https://api.groq.com/openai/v1.
type OpenAIOptions struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAI calls the chat completions endpoint with a single user message per prompt.
type OpenAI struct {
	client openai.Client
	model  string
}

func NewOpenAI(o OpenAIOptions) *OpenAI {
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
	return &OpenAI{client: openai.NewClient(opts...), model: o.Model}
}

func (c *OpenAI) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(c.model),
		Messages:            []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
	})
	if err != nil {
		var apiErr *openai.Error
		if stderrors.As(err, &apiErr) {
			return "", classify(err, "openai", apiErr.StatusCode)
		}
		return "", classify(err, "openai", 0)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", emptyResponse("openai")
	}
	return resp.Choices[0].Message.Content, nil
}
