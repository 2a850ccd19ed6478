package orchestrator

import (
	"time"
)

// EventKind classifies run events delivered to sinks.
type EventKind string

const (
	EventStarted   EventKind = "started"
	EventStage     EventKind = "stage"
	EventProgress  EventKind = "progress"
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
)

// Event is one run notification. Request is set on EventStarted, Summary on
// EventCompleted and Err on EventFailed.
type Event struct {
	RunID    string
	Kind     EventKind
	Progress Progress
	Request  *Request
	Provider string
	Summary  *Summary
	Err      error
	Duration time.Duration
	At       time.Time
}

// Summary describes a finished run.
type Summary struct {
	Files        int
	Pillars      int
	Articles     int
	Placeholders int
}
