// Package config loads, normalizes, defaults and validates the pillarsite YAML configuration.
package config

import (
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/pillarsite/internal/foundation/errors"
	"git.home.luguber.info/inful/pillarsite/internal/site"
)

// CurrentVersion is the configuration format understood by this build.
const CurrentVersion = "1.0"

// DefaultPath is used when no --config flag is given.
const DefaultPath = "pillarsite.yaml"

// Config is the root of pillarsite.yaml.
type Config struct {
	Version    string            `yaml:"version"`
	Site       SiteConfig        `yaml:"site"`
	Brand      site.BrandProfile `yaml:"brand"`
	Generator  GeneratorConfig   `yaml:"generator"`
	Output     OutputConfig      `yaml:"output"`
	Archive    ArchiveConfig     `yaml:"archive,omitempty"`
	Events     EventsConfig      `yaml:"events,omitempty"`
	Publish    PublishConfig     `yaml:"publish,omitempty"`
	Daemon     DaemonConfig      `yaml:"daemon,omitempty"`
	Monitoring MonitoringConfig  `yaml:"monitoring,omitempty"`
}

// SiteConfig describes what to generate.
type SiteConfig struct {
	Keyword      string `yaml:"keyword"`
	ArticleCount int    `yaml:"article_count"`
	BaseURL      string `yaml:"base_url"`
}

// GeneratorConfig selects and tunes the generative API.
type GeneratorConfig struct {
	Provider              Provider       `yaml:"provider"`
	Model                 string         `yaml:"model"`
	APIKey                string         `yaml:"api_key,omitempty"`
	BaseURL               string         `yaml:"base_url,omitempty"`
	RequestTimeout        string         `yaml:"request_timeout,omitempty"` // 0 or empty: none
	FullArticlesPerPillar int            `yaml:"full_articles_per_pillar"`
	MaxTokens             MaxTokenConfig `yaml:"max_tokens"`
	Retry                 RetryConfig    `yaml:"retry"`
}

// MaxTokenConfig caps each stage's response size.
type MaxTokenConfig struct {
	Topics      int `yaml:"topics"`
	Clusters    int `yaml:"clusters"`
	PillarBody  int `yaml:"pillar_body"`
	ClusterBody int `yaml:"cluster_body"`
}

// RetryConfig controls retries of failed generation requests.
type RetryConfig struct {
	MaxRetries   int              `yaml:"max_retries"`
	Backoff      RetryBackoffMode `yaml:"backoff"`
	InitialDelay string           `yaml:"initial_delay"`
	MaxDelay     string           `yaml:"max_delay"`
}

// OutputConfig controls where and how the bundle is written.
type OutputConfig struct {
	Directory         string `yaml:"directory"`
	Clean             bool   `yaml:"clean"`
	ExportMarkdown    bool   `yaml:"export_markdown"`
	FailOnBrokenLinks bool   `yaml:"fail_on_broken_links"`
}

// ArchiveConfig stores completed bundles in a database.
type ArchiveConfig struct {
	Enabled bool        `yaml:"enabled"`
	Driver  StoreDriver `yaml:"driver"`
	DSN     string      `yaml:"dsn"`
}

// EventsConfig configures the run event store and NATS progress publishing.
type EventsConfig struct {
	StorePath string `yaml:"store_path,omitempty"`
	NATSURL   string `yaml:"nats_url,omitempty"`
	Subject   string `yaml:"subject,omitempty"`
}

// PublishConfig commits the written bundle into a git repository.
type PublishConfig struct {
	Enabled     bool   `yaml:"enabled"`
	RepoPath    string `yaml:"repo_path"`
	RemoteURL   string `yaml:"remote_url,omitempty"`
	Branch      string `yaml:"branch,omitempty"`
	Username    string `yaml:"username,omitempty"`
	Token       string `yaml:"token,omitempty"`
	AuthorName  string `yaml:"author_name,omitempty"`
	AuthorEmail string `yaml:"author_email,omitempty"`
	Push        bool   `yaml:"push"`
}

// DaemonConfig controls scheduled regeneration. Schedule, a cron expression,
// takes precedence over Interval.
type DaemonConfig struct {
	Interval   string `yaml:"interval"`
	Schedule   string `yaml:"schedule,omitempty"`
	Addr       string `yaml:"addr"`
	RunOnStart bool   `yaml:"run_on_start,omitempty"`
}

// MonitoringConfig groups logging and metrics settings.
type MonitoringConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig selects slog level and handler.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// MetricsConfig enables the Prometheus recorder.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads configPath, expands ${VAR} references, then normalizes, defaults and
// validates the result.
func Load(configPath string) (*Config, error) {
	loadEnvFiles(filepath.Dir(configPath))

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFoundError("configuration file not found").
				WithContext("path", configPath).Build()
		}
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to read config file").
			WithContext("path", configPath).Build()
	}
	return Parse(data)
}

// Parse is Load without the filesystem and .env handling.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to unmarshal config").Build()
	}
	if cfg.Version != CurrentVersion {
		return nil, errors.ConfigError("unsupported configuration version").
			WithContext("version", cfg.Version).
			WithContext("expected", CurrentVersion).Build()
	}
	for _, w := range Normalize(&cfg) {
		slog.Warn("Config normalized", slog.String("detail", w))
	}
	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Example returns the configuration written by Init.
func Example() Config {
	cfg := Config{
		Version: CurrentVersion,
		Site: SiteConfig{
			Keyword:      "content marketing",
			ArticleCount: 30,
			BaseURL:      DefaultBaseURL,
		},
		Brand: site.BrandProfile{
			Name:             "Acme Content Co",
			Tagline:          "Content that ranks",
			ValueProposition: "We turn expertise into search traffic.",
			Products:         "Content audits, editorial calendars, SEO copywriting",
			CallToAction:     "Book a free content audit",
		},
		Generator: GeneratorConfig{
			Provider: ProviderAnthropic,
			APIKey:   "${ANTHROPIC_API_KEY}",
		},
		Output: OutputConfig{Directory: "./site", Clean: true},
		Archive: ArchiveConfig{
			Driver: StoreSQLite,
			DSN:    "pillarsite.db",
		},
		Daemon: DaemonConfig{Interval: "24h", Addr: ":8080"},
	}
	ApplyDefaults(&cfg)
	return cfg
}

// Init writes an example configuration file to configPath.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.ValidationError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).Build()
	}
	data, err := yaml.Marshal(Example())
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to marshal example config").Build()
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write config file").
			WithContext("path", configPath).Build()
	}
	return nil
}
