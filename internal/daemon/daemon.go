// Package daemon regenerates the site on a schedule, reloads its configuration
// when the file changes and serves the latest output with status and metrics.
package daemon

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/pillarsite/internal/app"
	"git.home.luguber.info/inful/pillarsite/internal/archive"
	"git.home.luguber.info/inful/pillarsite/internal/config"
	"git.home.luguber.info/inful/pillarsite/internal/foundation/errors"
	"git.home.luguber.info/inful/pillarsite/internal/logfields"
	"git.home.luguber.info/inful/pillarsite/internal/metrics"
	"git.home.luguber.info/inful/pillarsite/internal/orchestrator"
	"git.home.luguber.info/inful/pillarsite/internal/server"
	"git.home.luguber.info/inful/pillarsite/internal/site"
)

const jobName = "regenerate"

// Builder assembles an App for a configuration. app.Build is the default.
type Builder func(ctx context.Context, cfg *config.Config, opts app.Options) (*app.App, error)

// Options configures a Daemon.
type Options struct {
	Config *config.Config
	// ConfigPath enables hot reload when set.
	ConfigPath string
	Build      Builder
	Debounce   time.Duration
	Logger     *slog.Logger
}

// Daemon owns the scheduler, the config watcher, the HTTP server and the
// current App. Only one generation runs at a time.
type Daemon struct {
	opts   Options
	logger *slog.Logger

	registry *prom.Registry
	recorder metrics.Recorder

	mu       sync.RWMutex
	cfg      *config.Config
	app      *app.App
	jobID    string
	schedule string
	state    State
	started  time.Time
	progress *orchestrator.Progress
	lastRun  *RunRecord
	runs     int
	failures int

	running atomic.Bool
	runMu   sync.Mutex

	scheduler *Scheduler
	watcher   *ConfigWatcher
	server    *server.Server
	ctx       context.Context
	cancel    context.CancelFunc
}

// New validates opts. Nothing is opened until Start.
func New(opts Options) (*Daemon, error) {
	if opts.Config == nil {
		return nil, errors.ConfigError("daemon requires a configuration").Build()
	}
	if opts.Build == nil {
		opts.Build = app.Build
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	d := &Daemon{opts: opts, logger: logger, cfg: opts.Config, state: StateStopped}
	if opts.Config.Monitoring.Metrics.Enabled {
		d.registry = metrics.NewRegistry()
		d.recorder = metrics.NewPrometheusRecorder(d.registry)
	}
	return d, nil
}

// Start builds the App, schedules regeneration, starts the HTTP server and
// the config watcher. Runs stop when ctx is canceled or Stop is called.
func (d *Daemon) Start(ctx context.Context) error {
	d.ctx, d.cancel = context.WithCancel(ctx)

	a, err := d.build(d.ctx, d.cfg)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.app = a
	d.started = time.Now()
	d.state = StateIdle
	d.mu.Unlock()

	sched, err := NewScheduler()
	if err != nil {
		return d.abort(err)
	}
	d.mu.Lock()
	d.scheduler = sched
	d.mu.Unlock()
	if err := d.reschedule(d.cfg); err != nil {
		return d.abort(err)
	}
	d.scheduler.Start()

	if addr := d.cfg.Daemon.Addr; addr != "" {
		d.server = server.New(server.Options{
			Dir:         d.cfg.Output.Directory,
			Archive:     d,
			Registry:    d.registry,
			MetricsPath: d.cfg.Monitoring.Metrics.Path,
			Status:      func() any { return d.Status() },
			Logger:      d.logger,
		})
		if err := d.server.Start(d.ctx, addr); err != nil {
			return d.abort(err)
		}
	}

	if d.opts.ConfigPath != "" {
		w, err := NewConfigWatcher(d.opts.ConfigPath, d.opts.Debounce, d.Reload)
		if err != nil {
			return d.abort(err)
		}
		if err := w.Start(d.ctx); err != nil {
			return d.abort(err)
		}
		d.watcher = w
	}

	d.logger.Info("Daemon started",
		slog.String("schedule", d.scheduleLabel()),
		slog.String("addr", d.cfg.Daemon.Addr))

	if d.cfg.Daemon.RunOnStart {
		go d.runScheduled()
	}
	return nil
}

func (d *Daemon) abort(err error) error {
	_ = d.Stop(context.Background())
	return err
}

// Stop cancels any running generation and shuts every component down.
func (d *Daemon) Stop(ctx context.Context) error {
	if d.cancel != nil {
		d.cancel()
	}
	var errs []error
	if d.watcher != nil {
		if err := d.watcher.Stop(); err != nil {
			errs = append(errs, err)
		}
		d.watcher = nil
	}
	d.mu.Lock()
	sched := d.scheduler
	d.scheduler = nil
	d.mu.Unlock()
	if sched != nil {
		if err := sched.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if d.server != nil {
		if err := d.server.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
		d.server = nil
	}

	d.runMu.Lock()
	d.mu.Lock()
	a := d.app
	d.app = nil
	d.state = StateStopped
	d.mu.Unlock()
	d.runMu.Unlock()
	if a != nil {
		if err := a.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.WrapError(errs[0], errors.CategoryInternal, "daemon shutdown incomplete").
			WithContext("errors", len(errs)).Build()
	}
	return nil
}

// Addr is the bound HTTP address, or "" when no server runs.
func (d *Daemon) Addr() string {
	if d.server == nil {
		return ""
	}
	return d.server.Addr()
}

func (d *Daemon) build(ctx context.Context, cfg *config.Config) (*app.App, error) {
	return d.opts.Build(ctx, cfg, app.Options{
		Registry: d.registry,
		Recorder: d.recorder,
		Logger:   d.logger,
	})
}

func (d *Daemon) scheduleLabel() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.schedule
}

// reschedule replaces the regeneration job when the schedule changed.
func (d *Daemon) reschedule(cfg *config.Config) error {
	label := cfg.Daemon.Schedule
	if label == "" {
		label = "every " + cfg.ParseDurations().DaemonInterval.String()
	}

	d.mu.RLock()
	unchanged := d.jobID != "" && d.schedule == label
	old := d.jobID
	d.mu.RUnlock()
	if unchanged {
		return nil
	}

	var (
		id  string
		err error
	)
	if cfg.Daemon.Schedule != "" {
		id, err = d.scheduler.ScheduleCron(jobName, cfg.Daemon.Schedule, d.runScheduled)
	} else {
		id, err = d.scheduler.ScheduleEvery(jobName, cfg.ParseDurations().DaemonInterval, d.runScheduled)
	}
	if err != nil {
		return err
	}
	if old != "" {
		if err := d.scheduler.Remove(old); err != nil {
			d.logger.Warn("Failed to remove previous schedule", logfields.Error(err))
		}
	}

	d.mu.Lock()
	d.jobID, d.schedule = id, label
	d.mu.Unlock()
	return nil
}

func (d *Daemon) runScheduled() {
	ctx := d.ctx
	if ctx == nil || ctx.Err() != nil {
		return
	}
	if _, err := d.RunOnce(ctx); err != nil && !errors.HasCategory(err, errors.CategoryCanceled) {
		d.logger.Error("Scheduled generation failed", logfields.Error(err))
	}
}

// RunOnce runs one generation with the current App. A call made while
// another run is in progress fails with a validation error.
func (d *Daemon) RunOnce(ctx context.Context) (*orchestrator.Result, error) {
	if !d.running.CompareAndSwap(false, true) {
		return nil, errors.ValidationError("a generation run is already in progress").Build()
	}
	defer d.running.Store(false)

	d.runMu.Lock()
	defer d.runMu.Unlock()

	d.mu.Lock()
	a := d.app
	if a == nil {
		d.mu.Unlock()
		return nil, errors.ValidationError("daemon is not running").Build()
	}
	d.state = StateRunning
	d.progress = nil
	d.mu.Unlock()

	started := time.Now()
	res, err := a.Orchestrator.Run(ctx, a.Request(), func(p orchestrator.Progress) {
		d.mu.Lock()
		d.progress = &p
		d.mu.Unlock()
	})

	rec := &RunRecord{StartedAt: started, Duration: time.Since(started).Round(time.Millisecond).String()}
	if err != nil {
		rec.Error = err.Error()
	} else {
		rec.RunID = res.RunID
		rec.Files = len(res.Bundle.Files)
	}

	d.mu.Lock()
	d.lastRun = rec
	d.runs++
	if err != nil {
		d.failures++
	}
	d.progress = nil
	if d.state == StateRunning {
		d.state = StateIdle
	}
	d.mu.Unlock()
	return res, err
}

// Reload reads the configuration file again and swaps in a new App. The old
// App is closed once any running generation has finished. On error the
// current configuration stays active.
func (d *Daemon) Reload(ctx context.Context) error {
	if d.opts.ConfigPath == "" {
		return errors.ConfigError("no configuration file to reload").Build()
	}
	cfg, err := config.Load(d.opts.ConfigPath)
	if err != nil {
		return err
	}
	return d.Apply(ctx, cfg)
}

// Apply switches the daemon to cfg.
func (d *Daemon) Apply(ctx context.Context, cfg *config.Config) error {
	a, err := d.build(ctx, cfg)
	if err != nil {
		return err
	}

	d.mu.RLock()
	prev := d.cfg
	d.mu.RUnlock()
	if cfg.Daemon.Addr != prev.Daemon.Addr || cfg.Output.Directory != prev.Output.Directory {
		d.logger.Warn("HTTP address or output directory changed; restart the daemon to serve from the new location")
	}
	if cfg.Monitoring.Metrics.Enabled != prev.Monitoring.Metrics.Enabled {
		d.logger.Warn("Metrics toggle changed; restart the daemon for it to take effect")
	}

	if d.scheduler != nil {
		if err := d.reschedule(cfg); err != nil {
			_ = a.Close()
			return err
		}
	}

	d.runMu.Lock()
	d.mu.Lock()
	old := d.app
	d.app, d.cfg = a, cfg
	d.mu.Unlock()
	d.runMu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			d.logger.Warn("Failed to close previous generator", logfields.Error(err))
		}
	}
	return nil
}

// Config returns the active configuration.
func (d *Daemon) Config() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

func (d *Daemon) archive() *archive.Store {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.app == nil {
		return nil
	}
	return d.app.Archive
}

func errNoArchive() error {
	return errors.NotFoundError("archive is not configured").Build()
}

// List, Latest and Bundle expose the current App's archive to the HTTP
// server so it survives reloads.
func (d *Daemon) List(ctx context.Context, limit int) ([]archive.Run, error) {
	if s := d.archive(); s != nil {
		return s.List(ctx, limit)
	}
	return nil, errNoArchive()
}

func (d *Daemon) Latest(ctx context.Context) (archive.Run, error) {
	if s := d.archive(); s != nil {
		return s.Latest(ctx)
	}
	return archive.Run{}, errNoArchive()
}

func (d *Daemon) Bundle(ctx context.Context, runID string) (*site.Bundle, error) {
	if s := d.archive(); s != nil {
		return s.Bundle(ctx, runID)
	}
	return nil, errNoArchive()
}
