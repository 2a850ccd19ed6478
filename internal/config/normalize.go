package config

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/pillarsite/internal/foundation/normalization"
)

// Normalize canonicalizes enumerations in place and returns a warning for every value it
// had to change or replace.
func Normalize(c *Config) []string {
	var warnings []string
	normalizeEnum(&c.Generator.Provider, "generator.provider", providerEnum, &warnings)
	normalizeEnum(&c.Generator.Retry.Backoff, "generator.retry.backoff", retryBackoffEnum, &warnings)
	normalizeEnum(&c.Archive.Driver, "archive.driver", storeDriverEnum, &warnings)
	normalizeEnum(&c.Monitoring.Logging.Level, "monitoring.logging.level", logLevelEnum, &warnings)
	normalizeEnum(&c.Monitoring.Logging.Format, "monitoring.logging.format", logFormatEnum, &warnings)

	c.Site.Keyword = strings.TrimSpace(c.Site.Keyword)
	c.Site.BaseURL = strings.TrimRight(strings.TrimSpace(c.Site.BaseURL), "/")
	c.Brand.Name = strings.TrimSpace(c.Brand.Name)
	if c.Generator.Retry.MaxRetries < 0 {
		warnings = append(warnings, fmt.Sprintf("generator.retry.max_retries %d coerced to 0", c.Generator.Retry.MaxRetries))
		c.Generator.Retry.MaxRetries = 0
	}
	return warnings
}

func normalizeEnum[T ~string](field *T, name string, e *normalization.Enum[T], warnings *[]string) {
	raw := string(*field)
	if strings.TrimSpace(raw) == "" {
		*field = ""
		return
	}
	if !e.Valid(raw) {
		fallback := e.Normalize(raw)
		*warnings = append(*warnings, fmt.Sprintf("unknown %s %q, using %q", name, raw, fallback))
		*field = fallback
		return
	}
	v := e.Normalize(raw)
	if string(v) != raw {
		*warnings = append(*warnings, fmt.Sprintf("normalized %s from %q to %q", name, raw, v))
	}
	*field = v
}
