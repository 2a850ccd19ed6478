package errors

// ErrorBuilder assembles a ClassifiedError.
type ErrorBuilder struct {
	err ClassifiedError
}

// NewError starts a builder with error severity and no retry.
func NewError(category ErrorCategory, message string) *ErrorBuilder {
	return &ErrorBuilder{err: ClassifiedError{
		category: category,
		severity: SeverityError,
		retry:    RetryNever,
		message:  message,
		context:  make(ErrorContext),
	}}
}

// WrapError starts a builder around an existing error.
func WrapError(cause error, category ErrorCategory, message string) *ErrorBuilder {
	return NewError(category, message).WithCause(cause)
}

func (b *ErrorBuilder) WithCause(cause error) *ErrorBuilder {
	b.err.cause = cause
	return b
}

func (b *ErrorBuilder) WithSeverity(s ErrorSeverity) *ErrorBuilder {
	b.err.severity = s
	return b
}

func (b *ErrorBuilder) WithRetry(r RetryStrategy) *ErrorBuilder {
	b.err.retry = r
	return b
}

func (b *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	b.err.context = b.err.context.Set(key, value)
	return b
}

func (b *ErrorBuilder) Fatal() *ErrorBuilder     { return b.WithSeverity(SeverityFatal) }
func (b *ErrorBuilder) Warning() *ErrorBuilder   { return b.WithSeverity(SeverityWarning) }
func (b *ErrorBuilder) Retryable() *ErrorBuilder { return b.WithRetry(RetryBackoff) }
func (b *ErrorBuilder) RateLimit() *ErrorBuilder { return b.WithRetry(RetryRateLimit) }

// Build returns the finished error. The builder may keep being used afterwards.
func (b *ErrorBuilder) Build() *ClassifiedError {
	out := b.err
	out.context = ErrorContext{}.Merge(b.err.context)
	return &out
}

// ValidationError reports bad user input.
func ValidationError(message string) *ErrorBuilder {
	return NewError(CategoryValidation, message).Fatal().WithRetry(RetryUserAction)
}

// ConfigError reports an unusable configuration.
func ConfigError(message string) *ErrorBuilder {
	return NewError(CategoryConfig, message).Fatal().WithRetry(RetryUserAction)
}

// NotFoundError reports a missing run, file or record.
func NotFoundError(message string) *ErrorBuilder {
	return NewError(CategoryNotFound, message)
}

// GenerationError reports a failed call to the generative API.
func GenerationError(message string) *ErrorBuilder {
	return NewError(CategoryGeneration, message).Fatal()
}

// NetworkError reports a transport level failure.
func NetworkError(message string) *ErrorBuilder {
	return NewError(CategoryNetwork, message).Retryable()
}

// ParseError reports model output that could not be decoded.
func ParseError(message string) *ErrorBuilder {
	return NewError(CategoryParse, message).Fatal()
}

// RenderError reports a failure while emitting documents.
func RenderError(message string) *ErrorBuilder {
	return NewError(CategoryRender, message).Fatal()
}

// FileSystemError reports an I/O failure.
func FileSystemError(message string) *ErrorBuilder {
	return NewError(CategoryFileSystem, message)
}

// StoreError reports an event store or archive failure.
func StoreError(message string) *ErrorBuilder {
	return NewError(CategoryStore, message)
}

// PublishError reports a git publishing failure.
func PublishError(message string) *ErrorBuilder {
	return NewError(CategoryPublish, message)
}

// CanceledError reports a run stopped by its context.
func CanceledError(message string) *ErrorBuilder {
	return NewError(CategoryCanceled, message).Fatal()
}

// InternalError reports a programming error.
func InternalError(message string) *ErrorBuilder {
	return NewError(CategoryInternal, message).Fatal()
}
