package errors

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// Exit codes returned by the pillarsite binary.
const (
	ExitOK         = 0
	ExitGeneral    = 1
	ExitValidation = 2
	ExitNotFound   = 4
	ExitConfig     = 7
	ExitExternal   = 8
	ExitParse      = 9
	ExitInternal   = 10
	ExitBuild      = 11
	ExitCanceled   = 130
)

// CLIErrorAdapter turns errors into exit codes and user-facing messages.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
}

// NewCLIErrorAdapter creates a CLI adapter. A nil logger uses slog.Default().
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{verbose: verbose, logger: logger}
}

// ExitCodeFor maps an error to the process exit code.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}
	ce, ok := AsClassified(err)
	if !ok {
		return ExitGeneral
	}
	switch ce.Category() {
	case CategoryValidation:
		return ExitValidation
	case CategoryConfig:
		return ExitConfig
	case CategoryNotFound:
		return ExitNotFound
	case CategoryGeneration, CategoryNetwork, CategoryPublish:
		return ExitExternal
	case CategoryParse:
		return ExitParse
	case CategoryRender, CategoryFileSystem, CategoryStore:
		return ExitBuild
	case CategoryCanceled:
		return ExitCanceled
	case CategoryInternal:
		return ExitInternal
	default:
		return ExitGeneral
	}
}

// FormatError renders an error for stderr. Validation and config messages are shown
// as-is because they tell the user what to fix; everything else hides the cause chain
// unless verbose output was requested.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	ce, ok := AsClassified(err)
	if !ok {
		return fmt.Sprintf("Error: %v", err)
	}
	if a.verbose {
		return "Error: " + ce.Error()
	}
	switch ce.Category() {
	case CategoryValidation, CategoryConfig, CategoryNotFound:
		return "Error: " + ce.Message()
	default:
		return fmt.Sprintf("Error: %s (use -v for details)", ce.Message())
	}
}

// Report logs err and writes the user-facing message to w. It returns the exit code so
// main can decide when to exit.
func (a *CLIErrorAdapter) Report(w io.Writer, err error) int {
	if err == nil {
		return ExitOK
	}
	a.log(err)
	_, _ = fmt.Fprintln(w, a.FormatError(err))
	return a.ExitCodeFor(err)
}

func (a *CLIErrorAdapter) log(err error) {
	ce, ok := AsClassified(err)
	if !ok {
		a.logger.Error("Unclassified error", "error", err)
		return
	}
	attrs := []slog.Attr{slog.String("category", string(ce.Category()))}
	for k, v := range ce.Context() {
		attrs = append(attrs, slog.Any(k, v))
	}
	if ce.Cause() != nil {
		attrs = append(attrs, slog.String("cause", ce.Cause().Error()))
	}
	a.logger.LogAttrs(context.Background(), levelFor(ce.Severity()), ce.Message(), attrs...)
}

func levelFor(s ErrorSeverity) slog.Level {
	switch s {
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
