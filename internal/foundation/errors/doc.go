// Package errors provides the classified error primitives shared across pillarsite.
//
// Every failure that can end a generation run is expressed as a ClassifiedError so the
// CLI and HTTP layers can map it to an exit code or a status code without string
// matching. Errors are built with a fluent builder:
//
//	err := errors.GenerationError("completion request failed").
//		WithCause(apiErr).
//		WithContext("stage", "pillar_topics").
//		Build()
package errors
