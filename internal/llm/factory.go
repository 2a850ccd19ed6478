package llm

import (
	"os"

	"git.home.luguber.info/inful/pillarsite/internal/config"
	"git.home.luguber.info/inful/pillarsite/internal/foundation/errors"
	"git.home.luguber.info/inful/pillarsite/internal/metrics"
	"git.home.luguber.info/inful/pillarsite/internal/retry"
)

// New builds the configured provider wrapped with metrics and the retry policy.
func New(cfg *config.Config, rec metrics.Recorder) (Completer, error) {
	g := cfg.Generator
	timeout := cfg.ParseDurations().RequestTimeout

	var base Completer
	switch g.Provider {
	case config.ProviderStub:
		base = NewStub()
	case config.ProviderOpenAI:
		key := firstNonEmpty(g.APIKey, os.Getenv("OPENAI_API_KEY"), os.Getenv("GROQ_API_KEY"))
		if key == "" {
			return nil, missingKey(g.Provider)
		}
		base = NewOpenAI(OpenAIOptions{APIKey: key, BaseURL: g.BaseURL, Model: g.Model, Timeout: timeout})
	case config.ProviderAnthropic, "":
		key := firstNonEmpty(g.APIKey, os.Getenv("ANTHROPIC_API_KEY"))
		if key == "" {
			return nil, missingKey(config.ProviderAnthropic)
		}
		base = NewAnthropic(AnthropicOptions{APIKey: key, BaseURL: g.BaseURL, Model: g.Model, Timeout: timeout})
	default:
		return nil, errors.ConfigError("unknown generator provider").
			WithContext("provider", string(g.Provider)).Build()
	}

	return WithRetry(Instrument(base, string(g.Provider), rec), retry.FromConfig(cfg), rec), nil
}

func missingKey(p config.Provider) error {
	return errors.ConfigError("generator.api_key is required for this provider").
		WithContext("provider", string(p)).Build()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
