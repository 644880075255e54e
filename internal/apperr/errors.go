// Package apperr holds the caller-facing error kinds shared by the service and
// HTTP layers.
package apperr

import (
	"fmt"
	"strings"
)

// ValidationError reports bad caller input or a generated item that failed
// schema checks. Details lists every violation found, not only the first.
type ValidationError struct {
	Message string
	Details []string
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Details, "; "))
}

func NewValidation(message string, details ...string) *ValidationError {
	return &ValidationError{Message: message, Details: details}
}

type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

func NotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}
