package orchestrator

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/pillarsite/internal/eventstore"
	"git.home.luguber.info/inful/pillarsite/internal/foundation/errors"
	"git.home.luguber.info/inful/pillarsite/internal/logfields"
	"git.home.luguber.info/inful/pillarsite/internal/metrics"
	"git.home.luguber.info/inful/pillarsite/internal/notify"
)

// Sink receives every run event. Sink errors are logged and counted, never fatal.
type Sink interface {
	Name() string
	Handle(ctx context.Context, ev Event) error
}

// EventStoreSink appends run events to an event store and, when set, keeps
// a history projection current.
type EventStoreSink struct {
	Store      eventstore.Store
	Projection *eventstore.RunHistoryProjection
}

func (s *EventStoreSink) Name() string { return "eventstore" }

func (s *EventStoreSink) Handle(ctx context.Context, ev Event) error {
	var (
		stored eventstore.Event
		err    error
	)
	switch ev.Kind {
	case EventStarted:
		keyword, count := "", 0
		if ev.Request != nil {
			keyword, count = ev.Request.Keyword, ev.Request.ArticleCount
		}
		stored, err = eventstore.NewRunStarted(ev.RunID, keyword, count, ev.Provider, "")
	case EventStage:
		stored, err = eventstore.NewStageStarted(ev.RunID, ev.Progress.Stage)
	case EventProgress:
		stored, err = eventstore.NewProgressUpdated(ev.RunID, ev.Progress.Current, ev.Progress.Total, ev.Progress.Stage)
	case EventCompleted:
		sum := Summary{}
		if ev.Summary != nil {
			sum = *ev.Summary
		}
		stored, err = eventstore.NewRunCompleted(ev.RunID, sum.Files, sum.Pillars, sum.Articles, sum.Placeholders, ev.Duration)
	case EventFailed:
		stored, err = eventstore.NewRunFailed(ev.RunID, ev.Progress.Stage, ev.Err)
	default:
		return nil
	}
	if err != nil {
		return err
	}
	if err := eventstore.AppendEvent(ctx, s.Store, stored); err != nil {
		return err
	}
	if s.Projection != nil {
		s.Projection.Apply(stored)
	}
	return nil
}

// MessagePublisher is satisfied by *notify.Publisher.
type MessagePublisher interface {
	Publish(ctx context.Context, msg notify.Message) error
}

// NATSSink forwards run events as notify messages. Stage events are folded
// into progress messages.
type NATSSink struct {
	Publisher MessagePublisher
}

func (s *NATSSink) Name() string { return "nats" }

func (s *NATSSink) Handle(ctx context.Context, ev Event) error {
	msg := notify.Message{
		RunID:     ev.RunID,
		Stage:     ev.Progress.Stage,
		Current:   ev.Progress.Current,
		Total:     ev.Progress.Total,
		Timestamp: ev.At,
	}
	switch ev.Kind {
	case EventStarted:
		msg.Type = notify.TypeStarted
		if ev.Request != nil {
			msg.Keyword = ev.Request.Keyword
		}
	case EventStage, EventProgress:
		msg.Type = notify.TypeProgress
	case EventCompleted:
		msg.Type = notify.TypeCompleted
	case EventFailed:
		msg.Type = notify.TypeFailed
		if ev.Err != nil {
			msg.Error = ev.Err.Error()
		}
	default:
		return nil
	}
	return s.Publisher.Publish(ctx, msg)
}

// MetricsSink mirrors progress and run outcomes into a metrics.Recorder.
type MetricsSink struct {
	Recorder metrics.Recorder
}

func (s *MetricsSink) Name() string { return "metrics" }

func (s *MetricsSink) Handle(_ context.Context, ev Event) error {
	rec := metrics.OrNoop(s.Recorder)
	switch ev.Kind {
	case EventStarted, EventStage, EventProgress:
		rec.SetProgress(ev.Progress.Current, ev.Progress.Total)
	case EventCompleted:
		rec.SetProgress(ev.Progress.Current, ev.Progress.Total)
		rec.ObserveRunDuration(ev.Duration)
		rec.IncRunOutcome(metrics.ResultSuccess)
	case EventFailed:
		rec.ObserveRunDuration(ev.Duration)
		if errors.HasCategory(ev.Err, errors.CategoryCanceled) {
			rec.IncRunOutcome(metrics.ResultCanceled)
		} else {
			rec.IncRunOutcome(metrics.ResultFailed)
		}
	}
	return nil
}

// LogSink writes run events to a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Handle(ctx context.Context, ev Event) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{logfields.RunID(ev.RunID), logfields.Current(ev.Progress.Current), logfields.Total(ev.Progress.Total)}
	switch ev.Kind {
	case EventStarted:
		if ev.Request != nil {
			attrs = append(attrs, logfields.Keyword(ev.Request.Keyword), logfields.Count(ev.Request.ArticleCount))
		}
		logger.InfoContext(ctx, "Run started", attrs...)
	case EventStage:
		logger.InfoContext(ctx, ev.Progress.Stage, attrs...)
	case EventProgress:
		logger.DebugContext(ctx, "Progress", append(attrs, logfields.Stage(ev.Progress.Stage))...)
	case EventCompleted:
		attrs = append(attrs, logfields.DurationMS(float64(ev.Duration.Milliseconds())))
		if ev.Summary != nil {
			attrs = append(attrs, logfields.Count(ev.Summary.Files), slog.Int("placeholders", ev.Summary.Placeholders))
		}
		logger.InfoContext(ctx, "Run completed", attrs...)
	case EventFailed:
		logger.ErrorContext(ctx, "Run failed", append(attrs, logfields.Stage(ev.Progress.Stage), logfields.Error(ev.Err))...)
	}
	return nil
}
