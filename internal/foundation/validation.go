// Package foundation holds small helpers shared by configuration and request validation.
package foundation

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/pillarsite/internal/foundation/errors"
)

// FieldError is a single validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (fe FieldError) Error() string {
	if fe.Field != "" {
		return fmt.Sprintf("%s: %s", fe.Field, fe.Message)
	}
	return fe.Message
}

// Problems collects field errors so every problem is reported at once.
type Problems struct {
	list []FieldError
}

// Add records a failure for field.
func (p *Problems) Add(field, format string, args ...any) {
	p.list = append(p.list, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Require records "is required" when value is blank.
func (p *Problems) Require(field, value string) {
	if strings.TrimSpace(value) == "" {
		p.Add(field, "is required")
	}
}

// Empty reports whether no failures were recorded.
func (p *Problems) Empty() bool { return len(p.list) == 0 }

// Fields returns a copy of the recorded failures.
func (p *Problems) Fields() []FieldError {
	return append([]FieldError(nil), p.list...)
}

// Err converts the recorded failures into one classified error of the given category,
// or nil when there are none.
func (p *Problems) Err(category errors.ErrorCategory, summary string) error {
	if p.Empty() {
		return nil
	}
	msgs := make([]string, 0, len(p.list))
	for _, fe := range p.list {
		msgs = append(msgs, fe.Error())
	}
	return errors.NewError(category, summary+": "+strings.Join(msgs, "; ")).
		WithContext("fields", p.Fields()).
		Build()
}
