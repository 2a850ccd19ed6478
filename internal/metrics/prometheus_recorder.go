package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "pillarsite"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	stageDuration   *prom.HistogramVec
	runDuration     prom.Histogram
	runOutcomes     *prom.CounterVec
	requestDuration *prom.HistogramVec
	requests        *prom.CounterVec
	retries         *prom.CounterVec
	bodyWords       *prom.HistogramVec
	shortBodies     *prom.CounterVec
	placeholders    prom.Counter
	progressCurrent prom.Gauge
	progressTotal   prom.Gauge
	sinkFailures    *prom.CounterVec
}

// NewPrometheusRecorder constructs the metrics and registers them with reg
// (a fresh registry when nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual generation stages",
			Buckets:   prom.ExponentialBuckets(1, 2, 12),
		}, []string{"stage"}),
		runDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Total generation run duration",
			Buckets:   prom.ExponentialBuckets(10, 2, 10),
		}),
		runOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "run_outcomes_total",
			Help:      "Generation runs by final status",
		}, []string{"outcome"}),
		requestDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Duration of generative API requests",
			Buckets:   prom.ExponentialBuckets(0.5, 2, 10),
		}, []string{"stage", "provider"}),
		requests: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Generative API requests by result",
		}, []string{"stage", "provider", "result"}),
		retries: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "request_retries_total",
			Help:      "Retried generative API requests",
		}, []string{"stage"}),
		bodyWords: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "body_words",
			Help:      "Word count of generated bodies",
			Buckets:   []float64{250, 500, 1000, 2000, 3500, 5000, 8000},
		}, []string{"kind"}),
		shortBodies: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "short_bodies_total",
			Help:      "Generated bodies below their target word count",
		}, []string{"kind"}),
		placeholders: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "placeholder_articles_total",
			Help:      "Cluster articles emitted with placeholder bodies",
		}),
		progressCurrent: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "progress_current",
			Help:      "Completed units of the active run",
		}),
		progressTotal: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "progress_total",
			Help:      "Expected units of the active run",
		}),
		sinkFailures: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "sink_failures_total",
			Help:      "Progress sink delivery failures",
		}, []string{"sink"}),
	}
	reg.MustRegister(pr.stageDuration, pr.runDuration, pr.runOutcomes, pr.requestDuration, pr.requests,
		pr.retries, pr.bodyWords, pr.shortBodies, pr.placeholders, pr.progressCurrent, pr.progressTotal,
		pr.sinkFailures)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRunOutcome(result ResultLabel) {
	p.runOutcomes.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveRequest(stage, provider string, d time.Duration, success bool) {
	res := ResultFailed
	if success {
		res = ResultSuccess
	}
	p.requestDuration.WithLabelValues(stage, provider).Observe(d.Seconds())
	p.requests.WithLabelValues(stage, provider, string(res)).Inc()
}

func (p *PrometheusRecorder) IncRequestRetry(stage string) {
	p.retries.WithLabelValues(stage).Inc()
}

func (p *PrometheusRecorder) ObserveBodyWords(kind string, words int) {
	p.bodyWords.WithLabelValues(kind).Observe(float64(words))
}

func (p *PrometheusRecorder) IncShortBody(kind string) {
	p.shortBodies.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) IncPlaceholder() { p.placeholders.Inc() }

func (p *PrometheusRecorder) SetProgress(current, total int) {
	p.progressCurrent.Set(float64(current))
	p.progressTotal.Set(float64(total))
}

func (p *PrometheusRecorder) IncSinkFailure(sink string) {
	p.sinkFailures.WithLabelValues(sink).Inc()
}
