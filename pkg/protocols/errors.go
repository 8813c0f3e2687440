package protocols

import (
	"errors"

	"code.roadauth.org/golang/internal/utils"
)

// errorFlag is a private error type that allows declaring error constants.
type errorFlag string

const (
	// All package errors are wrapping Error
	Error = errorFlag("protocols: error")

	// OK signals protocol completion. StateFunc returns an error wrapping OK
	// to report success.
	OK = errorFlag("protocols: OK")

	// Pass signals that the StateFunc has nothing to read. The Run engine
	// forwards the returned message and reenters the state machine without
	// waiting for peer traffic. It allows a party to send consecutive
	// messages.
	Pass = errorFlag("protocols: pass")

	noError = errorFlag("")
)

// Error implements the error interface.
func (self errorFlag) Error() string {
	return string(self)
}

func (self errorFlag) Unwrap() error {
	if Error == self || noError == self {
		return nil
	} else {
		return Error
	}
}

// IsError tests if err reports a protocol failure.
// Completion (OK) and flow control (Pass) are not failures.
func IsError(err error) bool {
	return (nil != err) && !errors.Is(err, OK) && !errors.Is(err, Pass)
}

// newError returns a utils.RaisedErr{} that contains file & line of where it was called.
func newError(msg string, args ...any) error {
	return utils.NewError(1, Error, msg, args...)
}

// wrapError returns a utils.RaisedErr{} that contains file & line of where it was called.
func wrapError(cause error, msg string, args ...any) error {
	return utils.WrapError(cause, 1, Error, msg, args...)
}
