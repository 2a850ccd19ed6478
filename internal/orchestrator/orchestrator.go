// Package orchestrator runs one site generation end to end: input validation,
// planning, emission and delivery, with progress fanned out to an observer
// and to configured sinks.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/pillarsite/internal/archive"
	"git.home.luguber.info/inful/pillarsite/internal/emit"
	"git.home.luguber.info/inful/pillarsite/internal/export"
	"git.home.luguber.info/inful/pillarsite/internal/foundation"
	"git.home.luguber.info/inful/pillarsite/internal/foundation/errors"
	"git.home.luguber.info/inful/pillarsite/internal/linkverify"
	"git.home.luguber.info/inful/pillarsite/internal/logfields"
	"git.home.luguber.info/inful/pillarsite/internal/metrics"
	"git.home.luguber.info/inful/pillarsite/internal/output"
	"git.home.luguber.info/inful/pillarsite/internal/planner"
	"git.home.luguber.info/inful/pillarsite/internal/publish"
	"git.home.luguber.info/inful/pillarsite/internal/site"
)

// Request is the input of one run.
type Request struct {
	Keyword      string
	ArticleCount int
	Brand        site.BrandProfile
	BaseURL      string
}

// Validate reports missing or out-of-range fields as a validation error.
func (r Request) Validate() error {
	var p foundation.Problems
	p.Require("keyword", r.Keyword)
	p.Require("brand.name", r.Brand.Name)
	if r.ArticleCount < 1 {
		p.Add("article_count", "must be at least 1, got %d", r.ArticleCount)
	}
	return p.Err(errors.CategoryValidation, "invalid generation request")
}

// Result is a completed run.
type Result struct {
	RunID      string
	Content    *site.Content
	Bundle     *site.Bundle
	Allocation planner.Allocation
	Links      *linkverify.Report
	Written    int // files written to the output directory
	Published  *publish.Result
	Duration   time.Duration
}

// Planner produces content; *planner.Planner satisfies it.
type Planner interface {
	Plan(ctx context.Context, req planner.Request, observe planner.Observer) (*site.Content, error)
}

// Archiver stores completed bundles; *archive.Store satisfies it. Delete
// withdraws a run whose later delivery step failed.
type Archiver interface {
	Save(ctx context.Context, run archive.Run, b *site.Bundle) error
	Delete(ctx context.Context, runID string) error
}

// Publisher commits completed bundles; *publish.Repo satisfies it.
type Publisher interface {
	Publish(ctx context.Context, b *site.Bundle, message string) (publish.Result, error)
}

// Options wires optional delivery steps and sinks. Nil steps are skipped.
type Options struct {
	Provider          string
	Sinks             []Sink
	Recorder          metrics.Recorder
	Logger            *slog.Logger
	Exporter          *export.Exporter
	Writer            *output.Writer
	Archive           Archiver
	Publisher         Publisher
	FailOnBrokenLinks bool
	Now               func() time.Time
	NewRunID          func() string
}

// Orchestrator runs generation requests. Runs are independent; a single
// Orchestrator may be reused but each Run is strictly sequential inside.
type Orchestrator struct {
	planner Planner
	opts    Options
	log     *slog.Logger
	rec     metrics.Recorder
}

// New creates an Orchestrator around a planner.
func New(p Planner, opts Options) *Orchestrator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewRunID == nil {
		opts.NewRunID = uuid.NewString
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{planner: p, opts: opts, log: log, rec: metrics.OrNoop(opts.Recorder)}
}

// run holds the mutable state of one Run call.
type run struct {
	o          *Orchestrator
	id         string
	ctx        context.Context
	progress   *counter
	observe    Observer
	started    time.Time
	stageStart time.Time
}

// Run validates req, then plans, emits and delivers the site. Any failure
// aborts the run and returns a single classified error and no result.
func (o *Orchestrator) Run(ctx context.Context, req Request, observe Observer) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req.Keyword = strings.TrimSpace(req.Keyword)
	if observe == nil {
		observe = func(Progress) {}
	}

	alloc := planner.Allocate(req.ArticleCount)
	now := o.opts.Now()
	r := &run{
		o:          o,
		id:         o.opts.NewRunID(),
		ctx:        ctx,
		progress:   newCounter(alloc.TotalUnits),
		observe:    observe,
		started:    now,
		stageStart: now,
	}
	if alloc.Dropped > 0 {
		o.log.Info("Article count not divisible by pillar count, remainder dropped",
			logfields.RunID(r.id), logfields.Count(alloc.Dropped), slog.Int("planned", alloc.Planned))
	}

	r.emit(Event{Kind: EventStarted, Request: &req, Provider: o.opts.Provider, Progress: r.progress.p})
	observe(r.progress.p)

	res, err := r.execute(req, alloc)
	if err != nil {
		if ctx.Err() != nil && !errors.HasCategory(err, errors.CategoryCanceled) {
			err = errors.WrapError(err, errors.CategoryCanceled, "run canceled").Build()
		}
		r.emit(Event{Kind: EventFailed, Err: err, Progress: r.progress.p, Duration: o.opts.Now().Sub(r.started)})
		return nil, err
	}
	return res, nil
}

func (r *run) execute(req Request, alloc planner.Allocation) (*Result, error) {
	o := r.o
	content, err := o.planner.Plan(r.ctx, planner.Request{
		Keyword:      req.Keyword,
		ArticleCount: req.ArticleCount,
		Brand:        req.Brand,
	}, r.onStep)
	if err != nil {
		return nil, err
	}
	if err := r.ctx.Err(); err != nil {
		return nil, errors.WrapError(err, errors.CategoryCanceled, "run canceled").Build()
	}

	r.enterStage(StageAssembly)
	date := o.opts.Now()
	bundle, err := emit.Emit(content, req.Brand, emit.Options{BaseURL: req.BaseURL, Date: date})
	if err != nil {
		return nil, err
	}
	r.step(1)

	if o.opts.Exporter != nil {
		sources, err := o.opts.Exporter.Export(content)
		if err != nil {
			return nil, err
		}
		maps.Copy(bundle.Files, sources)
	}

	links, err := linkverify.Verify(bundle.Files, baseURLOrDefault(req.BaseURL))
	if err != nil {
		return nil, err
	}
	if !links.OK() {
		if o.opts.FailOnBrokenLinks {
			return nil, links.Err()
		}
		o.log.Warn("Generated site has broken internal links",
			logfields.RunID(r.id), logfields.Count(len(links.Broken)), logfields.Error(links.Err()))
	}
	r.step(1)

	res := &Result{RunID: r.id, Content: content, Bundle: bundle, Allocation: alloc, Links: links}
	if err := r.deliver(req, res); err != nil {
		return nil, err
	}

	res.Duration = o.opts.Now().Sub(r.started)
	r.leaveStage()
	final := r.progress.finish()
	r.observe(final)
	r.emit(Event{Kind: EventCompleted, Progress: final, Duration: res.Duration, Summary: &Summary{
		Files:        len(bundle.Files),
		Pillars:      len(content.Pillars),
		Articles:     len(content.Articles),
		Placeholders: content.PlaceholderCount(),
	}})
	return res, nil
}

// rollbackTimeout bounds the cleanup of a failed delivery.
const rollbackTimeout = 30 * time.Second

// deliver runs the optional write, archive and publish steps in that order.
// Publish goes last because a pushed commit cannot be withdrawn. When a step
// fails the steps before it are undone, so a failed run leaves neither files
// nor an archived run behind.
func (r *run) deliver(req Request, res *Result) (err error) {
	o := r.o
	if o.opts.Archive == nil && o.opts.Writer == nil && o.opts.Publisher == nil {
		return nil
	}
	r.enterStage(StageDelivery)

	var undo []func()
	defer func() {
		if err == nil {
			return
		}
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
	}()

	var written *output.Commit
	if o.opts.Writer != nil {
		c, err := o.opts.Writer.Write(res.Bundle)
		if err != nil {
			return err
		}
		written = c
		undo = append(undo, func() {
			if rerr := c.Rollback(); rerr != nil {
				o.log.Error("Failed to roll back written site", logfields.RunID(r.id), logfields.Error(rerr))
			}
		})
		res.Written = c.Files
	}
	if o.opts.Archive != nil {
		err := o.opts.Archive.Save(r.ctx, archive.Run{
			RunID:        r.id,
			Keyword:      req.Keyword,
			Brand:        req.Brand.Name,
			CreatedAt:    r.started,
			Pillars:      len(res.Content.Pillars),
			Articles:     len(res.Content.Articles),
			Placeholders: res.Content.PlaceholderCount(),
		}, res.Bundle)
		if err != nil {
			return err
		}
		undo = append(undo, func() {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(r.ctx), rollbackTimeout)
			defer cancel()
			if rerr := o.opts.Archive.Delete(ctx, r.id); rerr != nil {
				o.log.Error("Failed to withdraw archived run", logfields.RunID(r.id), logfields.Error(rerr))
			}
		})
	}
	if o.opts.Publisher != nil {
		msg := fmt.Sprintf("Generate %s site (%d articles)\n\nRun: %s", req.Keyword, len(res.Content.Articles), r.id)
		pub, err := o.opts.Publisher.Publish(r.ctx, res.Bundle, msg)
		if err != nil {
			return err
		}
		res.Published = &pub
	}
	written.Finalize()
	return nil
}

// onStep adapts planner steps into progress updates.
func (r *run) onStep(s planner.Step) {
	if s.Units == 0 {
		label, ok := stageDescriptions[s.Stage]
		if !ok {
			label = string(s.Stage)
		}
		r.enterStage(label)
		return
	}
	r.step(s.Units)
}

func (r *run) enterStage(label string) {
	r.leaveStage()
	p := r.progress.stage(label)
	r.observe(p)
	r.emit(Event{Kind: EventStage, Progress: p})
}

// leaveStage records the duration of the stage in progress.
func (r *run) leaveStage() {
	now := r.o.opts.Now()
	if r.progress.p.Stage != StagePreparing {
		r.o.rec.ObserveStageDuration(r.progress.p.Stage, now.Sub(r.stageStart))
	}
	r.stageStart = now
}

func (r *run) step(units int) {
	p := r.progress.advance(units)
	r.observe(p)
	r.emit(Event{Kind: EventProgress, Progress: p})
}

// emit fans ev out to every sink. Sinks run with a context that survives
// cancellation so a canceled run still records its failure.
func (r *run) emit(ev Event) {
	ev.RunID = r.id
	if ev.At.IsZero() {
		ev.At = r.o.opts.Now().UTC()
	}
	ctx := context.WithoutCancel(r.ctx)
	for _, s := range r.o.opts.Sinks {
		if err := s.Handle(ctx, ev); err != nil {
			r.o.rec.IncSinkFailure(s.Name())
			r.o.log.Warn("Progress sink failed",
				logfields.RunID(r.id), slog.String("sink", s.Name()), logfields.Error(err))
		}
	}
}

func baseURLOrDefault(u string) string {
	if strings.TrimSpace(u) == "" {
		return emit.DefaultBaseURL
	}
	return u
}
