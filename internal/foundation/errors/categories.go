package errors

import "maps"

// ErrorCategory classifies an error for routing and presentation.
type ErrorCategory string

const (
	// Input and configuration problems, reported before any work starts.
	CategoryValidation ErrorCategory = "validation"
	CategoryConfig     ErrorCategory = "config"
	CategoryNotFound   ErrorCategory = "not_found"

	// External systems.
	CategoryGeneration ErrorCategory = "generation"
	CategoryNetwork    ErrorCategory = "network"
	CategoryPublish    ErrorCategory = "publish"

	// Pipeline processing.
	CategoryParse      ErrorCategory = "parse"
	CategoryRender     ErrorCategory = "render"
	CategoryFileSystem ErrorCategory = "filesystem"
	CategoryStore      ErrorCategory = "store"

	CategoryCanceled ErrorCategory = "canceled"
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates the impact level of an error.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // aborts the run
	SeverityError   ErrorSeverity = "error"   // fails the current operation
	SeverityWarning ErrorSeverity = "warning" // degraded, run continues
	SeverityInfo    ErrorSeverity = "info"
)

// RetryStrategy tells callers whether repeating the operation can help.
type RetryStrategy string

const (
	RetryNever      RetryStrategy = "never"
	RetryBackoff    RetryStrategy = "backoff"
	RetryRateLimit  RetryStrategy = "rate_limit"
	RetryUserAction RetryStrategy = "user"
)

// ErrorContext carries structured key/value details about an error.
type ErrorContext map[string]any

// Set adds or updates a value, allocating the map when needed.
func (c ErrorContext) Set(key string, value any) ErrorContext {
	if c == nil {
		c = make(ErrorContext)
	}
	c[key] = value
	return c
}

// Get retrieves a value.
func (c ErrorContext) Get(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c[key]
	return v, ok
}

// GetString retrieves a string value.
func (c ErrorContext) GetString(key string) (string, bool) {
	if v, ok := c.Get(key); ok {
		if s, ok := v.(string); ok {
			return s, true
		}
	}
	return "", false
}

// Merge returns a new context holding both maps; other wins on conflicts.
func (c ErrorContext) Merge(other ErrorContext) ErrorContext {
	if c == nil {
		return other
	}
	if other == nil {
		return c
	}
	out := make(ErrorContext, len(c)+len(other))
	maps.Copy(out, c)
	maps.Copy(out, other)
	return out
}
