package config

import (
	"net/url"
	"time"

	"git.home.luguber.info/inful/pillarsite/internal/foundation"
	"git.home.luguber.info/inful/pillarsite/internal/foundation/errors"
)

// Validate checks the defaulted configuration and reports every problem at once as a
// config error. Generation inputs (keyword, brand name) are validated per run by the
// orchestrator so commands such as serve work without them.
func Validate(c *Config) error {
	var p foundation.Problems

	if c.Site.ArticleCount < 1 {
		p.Add("site.article_count", "must be at least 1")
	}
	if u, err := url.Parse(c.Site.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		p.Add("site.base_url", "must be an absolute URL")
	}
	if c.Generator.FullArticlesPerPillar < 0 {
		p.Add("generator.full_articles_per_pillar", "cannot be negative")
	}
	validateDuration(&p, "generator.request_timeout", c.Generator.RequestTimeout, true)
	validateDuration(&p, "generator.retry.initial_delay", c.Generator.Retry.InitialDelay, false)
	validateDuration(&p, "generator.retry.max_delay", c.Generator.Retry.MaxDelay, false)
	if c.Generator.BaseURL != "" {
		if u, err := url.Parse(c.Generator.BaseURL); err != nil || u.Scheme == "" {
			p.Add("generator.base_url", "must be an absolute URL")
		}
	}

	if c.Archive.Enabled {
		p.Require("archive.dsn", c.Archive.DSN)
	}
	if c.Publish.Enabled {
		p.Require("publish.repo_path", c.Publish.RepoPath)
		if c.Publish.Push && c.Publish.RemoteURL == "" {
			p.Add("publish.remote_url", "is required when push is enabled")
		}
	}
	validateDuration(&p, "daemon.interval", c.Daemon.Interval, false)

	return p.Err(errors.CategoryConfig, "configuration validation failed")
}

func validateDuration(p *foundation.Problems, field, raw string, allowZero bool) {
	if raw == "" {
		return
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		p.Add(field, "invalid duration %q", raw)
		return
	}
	if d < 0 || (d == 0 && !allowZero) {
		p.Add(field, "must be positive")
	}
}

// Durations holds the parsed duration fields.
type Durations struct {
	RequestTimeout time.Duration
	RetryInitial   time.Duration
	RetryMax       time.Duration
	DaemonInterval time.Duration
}

// ParseDurations converts duration strings. It assumes Validate has passed; unparsable
// values yield zero.
func (c *Config) ParseDurations() Durations {
	parse := func(s string) time.Duration {
		d, _ := time.ParseDuration(s)
		return d
	}
	return Durations{
		RequestTimeout: parse(c.Generator.RequestTimeout),
		RetryInitial:   parse(c.Generator.Retry.InitialDelay),
		RetryMax:       parse(c.Generator.Retry.MaxDelay),
		DaemonInterval: parse(c.Daemon.Interval),
	}
}
