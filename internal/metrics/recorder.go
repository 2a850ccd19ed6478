package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFailed   ResultLabel = "failed"
	ResultCanceled ResultLabel = "canceled"
)

// Recorder defines observability hooks for runs, stages and generation requests.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveRunDuration(d time.Duration)
	IncRunOutcome(result ResultLabel)
	ObserveRequest(stage, provider string, d time.Duration, success bool)
	IncRequestRetry(stage string)
	ObserveBodyWords(kind string, words int)
	IncShortBody(kind string)
	IncPlaceholder()
	SetProgress(current, total int)
	IncSinkFailure(sink string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration)         {}
func (NoopRecorder) ObserveRunDuration(time.Duration)                   {}
func (NoopRecorder) IncRunOutcome(ResultLabel)                          {}
func (NoopRecorder) ObserveRequest(string, string, time.Duration, bool) {}
func (NoopRecorder) IncRequestRetry(string)                             {}
func (NoopRecorder) ObserveBodyWords(string, int)                       {}
func (NoopRecorder) IncShortBody(string)                                {}
func (NoopRecorder) IncPlaceholder()                                    {}
func (NoopRecorder) SetProgress(int, int)                               {}
func (NoopRecorder) IncSinkFailure(string)                              {}

// OrNoop returns r, or NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
