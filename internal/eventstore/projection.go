// Package eventstore records generation runs as an append-only event log.
package eventstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// Run statuses reported by RunSummary.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// RunSummary is a read model of one run, folded from its events.
type RunSummary struct {
	RunID        string        `json:"run_id"`
	Keyword      string        `json:"keyword,omitempty"`
	Provider     string        `json:"provider,omitempty"`
	Status       string        `json:"status"`
	Stage        string        `json:"stage,omitempty"`
	Current      int           `json:"current"`
	Total        int           `json:"total"`
	StartedAt    time.Time     `json:"started_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`
	Files        int           `json:"files,omitempty"`
	Placeholders int           `json:"placeholders,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

// RunHistoryProjection keeps an in-memory view of recent runs.
type RunHistoryProjection struct {
	mu       sync.RWMutex
	store    Store
	runs     map[string]*RunSummary
	maxSize  int
	lastSync time.Time
}

// NewRunHistoryProjection creates a projection backed by the given store.
func NewRunHistoryProjection(store Store, maxHistorySize int) *RunHistoryProjection {
	if maxHistorySize <= 0 {
		maxHistorySize = 100
	}
	return &RunHistoryProjection{
		store:   store,
		runs:    make(map[string]*RunSummary),
		maxSize: maxHistorySize,
	}
}

// Rebuild reconstructs the projection from every stored event.
func (p *RunHistoryProjection) Rebuild(ctx context.Context) error {
	events, err := p.store.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.runs = make(map[string]*RunSummary)
	for _, event := range events {
		p.applyLocked(event)
	}
	p.pruneLocked()
	p.lastSync = time.Now()
	return nil
}

// Apply folds a single live event into the projection.
func (p *RunHistoryProjection) Apply(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyLocked(event)
	p.pruneLocked()
}

func (p *RunHistoryProjection) applyLocked(event Event) {
	runID := event.RunID()
	if runID == "" {
		return
	}
	summary, ok := p.runs[runID]
	if !ok {
		summary = &RunSummary{RunID: runID, Status: RunStatusRunning, StartedAt: event.Timestamp()}
		p.runs[runID] = summary
	}

	switch event.Type() {
	case TypeRunStarted:
		var payload struct {
			Keyword  string `json:"keyword"`
			Provider string `json:"provider"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.Keyword = payload.Keyword
			summary.Provider = payload.Provider
		}
		summary.StartedAt = event.Timestamp()

	case TypeStageStarted:
		var payload struct {
			Stage string `json:"stage"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.Stage = payload.Stage
		}

	case TypeProgressUpdated:
		var payload struct {
			Current int    `json:"current"`
			Total   int    `json:"total"`
			Stage   string `json:"stage"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.Current = payload.Current
			summary.Total = payload.Total
			summary.Stage = payload.Stage
		}

	case TypeRunCompleted:
		finish(summary, event.Timestamp(), RunStatusCompleted)
		var payload struct {
			Files        int `json:"files"`
			Placeholders int `json:"placeholders"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.Files = payload.Files
			summary.Placeholders = payload.Placeholders
		}

	case TypeRunFailed:
		finish(summary, event.Timestamp(), RunStatusFailed)
		var payload struct {
			Stage string `json:"stage"`
			Error string `json:"error"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			if payload.Stage != "" {
				summary.Stage = payload.Stage
			}
			summary.ErrorMessage = payload.Error
		}
	}
}

func finish(s *RunSummary, at time.Time, status string) {
	s.CompletedAt = &at
	s.Duration = at.Sub(s.StartedAt)
	s.Status = status
}

// pruneLocked drops the oldest finished runs beyond maxSize. Running runs are kept.
func (p *RunHistoryProjection) pruneLocked() {
	finished := p.finishedLocked()
	for _, s := range finished[min(len(finished), p.maxSize):] {
		delete(p.runs, s.RunID)
	}
}

func (p *RunHistoryProjection) finishedLocked() []*RunSummary {
	out := make([]*RunSummary, 0, len(p.runs))
	for _, s := range p.runs {
		if s.Status != RunStatusRunning {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

// History returns finished runs, newest first.
func (p *RunHistoryProjection) History() []RunSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	finished := p.finishedLocked()
	out := make([]RunSummary, len(finished))
	for i, s := range finished {
		out[i] = *s
	}
	return out
}

// Run returns a copy of the summary for runID.
func (p *RunHistoryProjection) Run(runID string) (RunSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.runs[runID]
	if !ok {
		return RunSummary{}, false
	}
	return *s, true
}

// Active returns the run currently in progress, if any.
func (p *RunHistoryProjection) Active() (RunSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, s := range p.runs {
		if s.Status == RunStatusRunning {
			return *s, true
		}
	}
	return RunSummary{}, false
}

// LastSyncTime returns when the projection was last rebuilt.
func (p *RunHistoryProjection) LastSyncTime() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSync
}
