package eventstore

import (
	"context"
	"encoding/json"
	"time"

	"git.home.luguber.info/inful/pillarsite/internal/foundation/errors"
)

// Event type names as stored in the events table.
const (
	TypeRunStarted      = "RunStarted"
	TypeStageStarted    = "StageStarted"
	TypeProgressUpdated = "ProgressUpdated"
	TypeRunCompleted    = "RunCompleted"
	TypeRunFailed       = "RunFailed"
)

// RunStarted is emitted once per run before the first request.
type RunStarted struct {
	BaseEvent
	Keyword      string `json:"keyword"`
	ArticleCount int    `json:"article_count"`
	Provider     string `json:"provider"`
	Model        string `json:"model,omitempty"`
}

// NewRunStarted creates a RunStarted event.
func NewRunStarted(runID, keyword string, articleCount int, provider, model string) (*RunStarted, error) {
	ev := &RunStarted{Keyword: keyword, ArticleCount: articleCount, Provider: provider, Model: model}
	return ev, ev.seal(runID, TypeRunStarted, map[string]any{
		"keyword":       keyword,
		"article_count": articleCount,
		"provider":      provider,
		"model":         model,
	})
}

// StageStarted marks a pipeline stage boundary.
type StageStarted struct {
	BaseEvent
	Stage string `json:"stage"`
}

func NewStageStarted(runID, stage string) (*StageStarted, error) {
	ev := &StageStarted{Stage: stage}
	return ev, ev.seal(runID, TypeStageStarted, map[string]any{"stage": stage})
}

// ProgressUpdated mirrors one progress notification.
type ProgressUpdated struct {
	BaseEvent
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Stage   string `json:"stage"`
}

func NewProgressUpdated(runID string, current, total int, stage string) (*ProgressUpdated, error) {
	ev := &ProgressUpdated{Current: current, Total: total, Stage: stage}
	return ev, ev.seal(runID, TypeProgressUpdated, map[string]any{
		"current": current,
		"total":   total,
		"stage":   stage,
	})
}

// RunCompleted is emitted after the bundle was produced.
type RunCompleted struct {
	BaseEvent
	Files        int           `json:"files"`
	Pillars      int           `json:"pillars"`
	Articles     int           `json:"articles"`
	Placeholders int           `json:"placeholders"`
	Duration     time.Duration `json:"duration_ms"`
}

func NewRunCompleted(runID string, files, pillars, articles, placeholders int, duration time.Duration) (*RunCompleted, error) {
	ev := &RunCompleted{Files: files, Pillars: pillars, Articles: articles, Placeholders: placeholders, Duration: duration}
	payload := map[string]any{
		"files":        files,
		"pillars":      pillars,
		"articles":     articles,
		"placeholders": placeholders,
		"duration_ms":  duration.Milliseconds(),
	}
	return ev, ev.seal(runID, TypeRunCompleted, payload)
}

// RunFailed is emitted when a run aborts. No output is kept for the run.
type RunFailed struct {
	BaseEvent
	Stage    string `json:"stage"`
	Category string `json:"category"`
	Error    string `json:"error"`
}

func NewRunFailed(runID, stage string, cause error) (*RunFailed, error) {
	ev := &RunFailed{Stage: stage, Category: string(errors.GetCategory(cause))}
	if cause != nil {
		ev.Error = cause.Error()
	}
	return ev, ev.seal(runID, TypeRunFailed, map[string]any{
		"stage":    stage,
		"category": ev.Category,
		"error":    ev.Error,
	})
}

func (e *BaseEvent) seal(runID, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.WrapError(err, errors.CategoryStore, "failed to marshal event payload").
			WithContext("run_id", runID).
			WithContext("event_type", eventType).
			Build()
	}
	e.EventRunID = runID
	e.EventType = eventType
	e.EventTimestamp = time.Now()
	e.EventPayload = data
	return nil
}

// AppendEvent stores a constructed event.
func AppendEvent(ctx context.Context, s Store, ev Event) error {
	return s.Append(ctx, ev.RunID(), ev.Type(), ev.Payload(), ev.Metadata())
}
