// Package metrics records generation run metrics.
//
// Components receive a Recorder and default to NoopRecorder, so metrics stay optional
// without nil checks. PrometheusRecorder is installed when monitoring.metrics.enabled is
// set, and HTTPHandler exposes its registry.
package metrics
