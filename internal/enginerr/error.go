// Package enginerr defines the tagged error type carried across the
// engine's component boundaries, per the error taxonomy in SPEC_FULL §7.
package enginerr

import (
	"errors"
	"fmt"

	"github.com/fede/whisperaloud/internal/domain"
)

// Error ties a stable domain.ErrorCode to a wrapped cause. All user-visible
// failures leaving a component are one of these.
type Error struct {
	Code domain.ErrorCode
	Err  error
}

// New builds an Error from a code and a cause.
func New(code domain.ErrorCode, err error) *Error {
	return &Error{Code: code, Err: err}
}

// Newf builds an Error from a code and a formatted message.
func Newf(code domain.ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf extracts the ErrorCode from err if it (or something it wraps) is
// an *Error. The second return is false when no code is present.
func CodeOf(err error) (domain.ErrorCode, bool) {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Code, true
	}
	return "", false
}
