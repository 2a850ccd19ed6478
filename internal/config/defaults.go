package config

// Default model identifiers per provider.
const (
	DefaultAnthropicModel = "claude-sonnet-4-20250514"
	DefaultOpenAIModel    = "gpt-4o"
)

// Default per-stage response caps.
const (
	DefaultMaxTokensTopics      = 4000
	DefaultMaxTokensClusters    = 4000
	DefaultMaxTokensPillarBody  = 16000
	DefaultMaxTokensClusterBody = 8000
)

const (
	DefaultFullArticlesPerPillar = 3
	DefaultArticleCount          = 30
	DefaultOutputDir             = "./site"
	DefaultNATSSubject           = "pillarsite.progress"
	DefaultMetricsPath           = "/metrics"
	DefaultDaemonInterval        = "24h"
	DefaultAddr                  = ":8080"
	DefaultPublishBranch         = "main"
	DefaultAuthorName            = "pillarsite"
	DefaultAuthorEmail           = "pillarsite@localhost"
)

// ApplyDefaults fills every unset field. It runs after Normalize so enum values are
// already canonical.
func ApplyDefaults(c *Config) {
	if c.Site.BaseURL == "" {
		c.Site.BaseURL = DefaultBaseURL
	}
	if c.Site.ArticleCount == 0 {
		c.Site.ArticleCount = DefaultArticleCount
	}

	g := &c.Generator
	if g.Provider == "" {
		g.Provider = ProviderAnthropic
	}
	if g.Model == "" {
		switch g.Provider {
		case ProviderOpenAI:
			g.Model = DefaultOpenAIModel
		default:
			g.Model = DefaultAnthropicModel
		}
	}
	if g.FullArticlesPerPillar == 0 {
		g.FullArticlesPerPillar = DefaultFullArticlesPerPillar
	}
	if g.MaxTokens.Topics <= 0 {
		g.MaxTokens.Topics = DefaultMaxTokensTopics
	}
	if g.MaxTokens.Clusters <= 0 {
		g.MaxTokens.Clusters = DefaultMaxTokensClusters
	}
	if g.MaxTokens.PillarBody <= 0 {
		g.MaxTokens.PillarBody = DefaultMaxTokensPillarBody
	}
	if g.MaxTokens.ClusterBody <= 0 {
		g.MaxTokens.ClusterBody = DefaultMaxTokensClusterBody
	}
	if g.Retry.Backoff == "" {
		g.Retry.Backoff = RetryBackoffLinear
	}
	if g.Retry.InitialDelay == "" {
		g.Retry.InitialDelay = "1s"
	}
	if g.Retry.MaxDelay == "" {
		g.Retry.MaxDelay = "30s"
	}

	if c.Output.Directory == "" {
		c.Output.Directory = DefaultOutputDir
	}
	if c.Archive.Driver == "" {
		c.Archive.Driver = StoreSQLite
	}
	if c.Events.Subject == "" {
		c.Events.Subject = DefaultNATSSubject
	}
	if c.Publish.Branch == "" {
		c.Publish.Branch = DefaultPublishBranch
	}
	if c.Publish.AuthorName == "" {
		c.Publish.AuthorName = DefaultAuthorName
	}
	if c.Publish.AuthorEmail == "" {
		c.Publish.AuthorEmail = DefaultAuthorEmail
	}
	if c.Daemon.Interval == "" {
		c.Daemon.Interval = DefaultDaemonInterval
	}
	if c.Daemon.Addr == "" {
		c.Daemon.Addr = DefaultAddr
	}
	if c.Monitoring.Logging.Level == "" {
		c.Monitoring.Logging.Level = LogLevelInfo
	}
	if c.Monitoring.Logging.Format == "" {
		c.Monitoring.Logging.Format = LogFormatText
	}
	if c.Monitoring.Metrics.Path == "" {
		c.Monitoring.Metrics.Path = DefaultMetricsPath
	}
}
