package config

import (
	"log/slog"

	"git.home.luguber.info/inful/pillarsite/internal/foundation/normalization"
)

// DefaultBaseURL is the placeholder origin used in absolute links until the user sets one.
const DefaultBaseURL = "https://yoursite.com"

// Provider names a generative API backend.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderStub      Provider = "stub"
)

var providerEnum = normalization.NewEnum("generator.provider", map[string]Provider{
	"anthropic": ProviderAnthropic,
	"claude":    ProviderAnthropic,
	"openai":    ProviderOpenAI,
	"groq":      ProviderOpenAI,
	"stub":      ProviderStub,
}, ProviderAnthropic)

// StoreDriver names a database/sql driver for the archive.
type StoreDriver string

const (
	StoreSQLite StoreDriver = "sqlite"
	StoreMySQL  StoreDriver = "mysql"
)

var storeDriverEnum = normalization.NewEnum("archive.driver", map[string]StoreDriver{
	"sqlite":  StoreSQLite,
	"sqlite3": StoreSQLite,
	"mysql":   StoreMySQL,
}, StoreSQLite)

// RetryBackoffMode enumerates supported backoff strategies for retries.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

var retryBackoffEnum = normalization.NewEnum("generator.retry.backoff", map[string]RetryBackoffMode{
	"fixed":       RetryBackoffFixed,
	"linear":      RetryBackoffLinear,
	"exponential": RetryBackoffExponential,
}, RetryBackoffLinear)

// NormalizeRetryBackoff converts user input into a mode, returning "" for unknown values.
func NormalizeRetryBackoff(raw string) RetryBackoffMode {
	if !retryBackoffEnum.Valid(raw) {
		return ""
	}
	return retryBackoffEnum.Normalize(raw)
}

// LogLevel enumerates supported logging levels.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var logLevelEnum = normalization.NewEnum("monitoring.logging.level", map[string]LogLevel{
	"debug":   LogLevelDebug,
	"info":    LogLevelInfo,
	"warn":    LogLevelWarn,
	"warning": LogLevelWarn,
	"error":   LogLevelError,
}, LogLevelInfo)

// SlogLevel maps the configured level onto slog.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogFormat enumerates supported log output formats.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

var logFormatEnum = normalization.NewEnum("monitoring.logging.format", map[string]LogFormat{
	"json": LogFormatJSON,
	"text": LogFormatText,
}, LogFormatText)
