package errorsx

import (
	"errors"
	"fmt"
)

// Error carries a ReasonCode alongside the underlying error. Logs report the
// code as reason_code so dashboards can group failures without parsing text.
type Error struct {
	Reason ReasonCode
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Reason)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func New(reason ReasonCode, format string, args ...any) error {
	return &Error{Reason: reason, Err: fmt.Errorf(format, args...)}
}

// Wrap tags err with reason unless some error in its chain is already tagged.
func Wrap(err error, reason ReasonCode) error {
	if err == nil {
		return nil
	}
	if _, ok := find(err); ok {
		return err
	}
	return &Error{Reason: reason, Err: err}
}

// Reason returns the innermost-tagged code, or ReasonUnknown.
func Reason(err error) ReasonCode {
	if e, ok := find(err); ok {
		return e.Reason
	}
	return ReasonUnknown
}

func HasReason(err error, reason ReasonCode) bool {
	return Reason(err) == reason
}

func find(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
