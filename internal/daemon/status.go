package daemon

import (
	"time"

	"git.home.luguber.info/inful/pillarsite/internal/eventstore"
	"git.home.luguber.info/inful/pillarsite/internal/orchestrator"
	"git.home.luguber.info/inful/pillarsite/internal/version"
)

// State is the daemon lifecycle state.
type State string

const (
	StateStopped State = "stopped"
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// recentRuns caps the history included in Status.
const recentRuns = 10

// RunRecord summarizes the most recent generation.
type RunRecord struct {
	RunID     string    `json:"run_id,omitempty"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
	Files     int       `json:"files,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Status is served on /api/status.
type Status struct {
	State      State                   `json:"state"`
	Version    string                  `json:"version"`
	StartTime  time.Time               `json:"start_time"`
	Uptime     string                  `json:"uptime"`
	ConfigFile string                  `json:"config_file,omitempty"`
	Keyword    string                  `json:"keyword"`
	Schedule   string                  `json:"schedule"`
	NextRun    *time.Time              `json:"next_run,omitempty"`
	Runs       int                     `json:"runs"`
	Failures   int                     `json:"failures"`
	Progress   *orchestrator.Progress  `json:"progress,omitempty"`
	LastRun    *RunRecord              `json:"last_run,omitempty"`
	History    []eventstore.RunSummary `json:"history,omitempty"`
}

// Status snapshots the daemon state.
func (d *Daemon) Status() Status {
	d.mu.RLock()
	st := Status{
		State:      d.state,
		Version:    version.Version,
		StartTime:  d.started,
		ConfigFile: d.opts.ConfigPath,
		Keyword:    d.cfg.Site.Keyword,
		Schedule:   d.schedule,
		Runs:       d.runs,
		Failures:   d.failures,
	}
	if !d.started.IsZero() {
		st.Uptime = time.Since(d.started).Round(time.Second).String()
	}
	if d.progress != nil {
		p := *d.progress
		st.Progress = &p
	}
	if d.lastRun != nil {
		r := *d.lastRun
		st.LastRun = &r
	}
	jobID := d.jobID
	var history *eventstore.RunHistoryProjection
	if d.app != nil {
		history = d.app.History
	}
	sched := d.scheduler
	d.mu.RUnlock()

	if sched != nil && jobID != "" {
		if next, ok := sched.NextRun(jobID); ok {
			st.NextRun = &next
		}
	}
	if history != nil {
		h := history.History()
		if len(h) > recentRuns {
			h = h[:recentRuns]
		}
		st.History = h
	}
	return st
}
