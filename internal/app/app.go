// Package app assembles a runnable generator from a loaded configuration:
// provider, planner, sinks and delivery steps.
package app

import (
	"context"
	stderrors "errors"
	"log/slog"
	"path/filepath"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/pillarsite/internal/archive"
	"git.home.luguber.info/inful/pillarsite/internal/config"
	"git.home.luguber.info/inful/pillarsite/internal/eventstore"
	"git.home.luguber.info/inful/pillarsite/internal/export"
	"git.home.luguber.info/inful/pillarsite/internal/llm"
	"git.home.luguber.info/inful/pillarsite/internal/logfields"
	"git.home.luguber.info/inful/pillarsite/internal/metrics"
	"git.home.luguber.info/inful/pillarsite/internal/notify"
	"git.home.luguber.info/inful/pillarsite/internal/orchestrator"
	"git.home.luguber.info/inful/pillarsite/internal/output"
	"git.home.luguber.info/inful/pillarsite/internal/planner"
	"git.home.luguber.info/inful/pillarsite/internal/publish"
)

// historySize bounds the in-memory run history.
const historySize = 50

// Options overrides parts of the assembly.
type Options struct {
	// Completer replaces the configured provider when set.
	Completer llm.Completer
	// Registry and Recorder are reused instead of creating new ones when
	// metrics are enabled. A registry accepts each collector once, so
	// long-lived callers rebuilding an App pass both.
	Registry *prom.Registry
	Recorder metrics.Recorder
	// SkipDelivery disables writing, exporting, archiving and publishing.
	SkipDelivery bool
	Logger       *slog.Logger
}

// App is a fully wired generator. Close releases its connections.
type App struct {
	Config       *config.Config
	Orchestrator *orchestrator.Orchestrator
	Registry     *prom.Registry
	Recorder     metrics.Recorder
	Archive      *archive.Store
	Events       eventstore.Store
	History      *eventstore.RunHistoryProjection

	closers []func() error
	logger  *slog.Logger
}

// Build wires an App from cfg. Every resource opened before a failure is
// closed again.
func Build(ctx context.Context, cfg *config.Config, opts Options) (_ *App, err error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, logger: logger, Recorder: metrics.NoopRecorder{}}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if cfg.Monitoring.Metrics.Enabled {
		a.Registry = opts.Registry
		if a.Registry == nil {
			a.Registry = metrics.NewRegistry()
		}
		a.Recorder = opts.Recorder
		if a.Recorder == nil {
			a.Recorder = metrics.NewPrometheusRecorder(a.Registry)
		}
	}

	completer := opts.Completer
	if completer == nil {
		completer, err = llm.New(cfg, a.Recorder)
		if err != nil {
			return nil, err
		}
	}

	g := cfg.Generator
	p := planner.New(completer, planner.Options{
		FullArticlesPerPillar: g.FullArticlesPerPillar,
		Limits: planner.Limits{
			Topics:      g.MaxTokens.Topics,
			Clusters:    g.MaxTokens.Clusters,
			PillarBody:  g.MaxTokens.PillarBody,
			ClusterBody: g.MaxTokens.ClusterBody,
		},
		Recorder: a.Recorder,
		Logger:   logger,
	})

	sinks, err := a.sinks(ctx, cfg)
	if err != nil {
		return nil, err
	}

	oo := orchestrator.Options{
		Provider:          string(g.Provider),
		Sinks:             sinks,
		Recorder:          a.Recorder,
		Logger:            logger,
		FailOnBrokenLinks: cfg.Output.FailOnBrokenLinks,
	}
	if !opts.SkipDelivery {
		if err := a.delivery(ctx, cfg, &oo); err != nil {
			return nil, err
		}
	}

	a.Orchestrator = orchestrator.New(p, oo)
	return a, nil
}

func (a *App) sinks(ctx context.Context, cfg *config.Config) ([]orchestrator.Sink, error) {
	sinks := []orchestrator.Sink{
		&orchestrator.LogSink{Logger: a.logger},
		&orchestrator.MetricsSink{Recorder: a.Recorder},
	}

	if path := cfg.Events.StorePath; path != "" {
		store, err := eventstore.NewSQLiteStore(path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		a.Events = store
		a.History = eventstore.NewRunHistoryProjection(store, historySize)
		if err := a.History.Rebuild(ctx); err != nil {
			a.logger.Warn("Run history rebuild failed", logfields.Path(path), logfields.Error(err))
		}
		sinks = append(sinks, &orchestrator.EventStoreSink{Store: store, Projection: a.History})
	}

	if url := cfg.Events.NATSURL; url != "" {
		pub, err := notify.Connect(url, cfg.Events.Subject, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pub.Close)
		sinks = append(sinks, &orchestrator.NATSSink{Publisher: pub})
	}
	return sinks, nil
}

func (a *App) delivery(ctx context.Context, cfg *config.Config, oo *orchestrator.Options) error {
	out := cfg.Output
	oo.Writer = &output.Writer{Dir: out.Directory, Clean: out.Clean, Logger: a.logger}
	if out.ExportMarkdown {
		oo.Exporter = &export.Exporter{PreviousDir: out.Directory, Logger: a.logger}
	}

	if cfg.Archive.Enabled {
		store, err := archive.Open(ctx, string(cfg.Archive.Driver), cfg.Archive.DSN)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, store.Close)
		a.Archive = store
		oo.Archive = store
	}

	if pc := cfg.Publish; pc.Enabled {
		oo.Publisher = &publish.Repo{Options: publish.Options{
			RepoPath:    filepath.Clean(pc.RepoPath),
			RemoteURL:   pc.RemoteURL,
			Branch:      pc.Branch,
			Username:    pc.Username,
			Token:       pc.Token,
			AuthorName:  pc.AuthorName,
			AuthorEmail: pc.AuthorEmail,
			Push:        pc.Push,
			Logger:      a.logger,
		}}
	}
	return nil
}

// Request builds the orchestrator request described by the configuration.
func (a *App) Request() orchestrator.Request {
	return RequestFrom(a.Config)
}

// RequestFrom maps configuration onto a generation request.
func RequestFrom(cfg *config.Config) orchestrator.Request {
	return orchestrator.Request{
		Keyword:      cfg.Site.Keyword,
		ArticleCount: cfg.Site.ArticleCount,
		Brand:        cfg.Brand,
		BaseURL:      cfg.Site.BaseURL,
	}
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return stderrors.Join(errs...)
}
