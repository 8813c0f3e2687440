package channel

import (
	"code.roadauth.org/golang/internal/utils"
)

// errorFlag is a private error type that allows declaring error constants.
type errorFlag string

const (
	// All package errors are wrapping Error
	Error = errorFlag("channel: error")

	// ErrClosed flags reads or writes on a closed Bus or Feed.
	ErrClosed = errorFlag("channel: closed")
)

// Error implements the error interface.
func (self errorFlag) Error() string {
	return string(self)
}

func (self errorFlag) Unwrap() error {
	if Error == self {
		return nil
	} else {
		return Error
	}
}

// newError returns a utils.RaisedErr{} that contains file & line of where it was called.
func newError(msg string, args ...any) error {
	return utils.NewError(1, Error, msg, args...)
}

// closedError returns an error carrying the ErrClosed flag.
func closedError(msg string, args ...any) error {
	return utils.NewError(1, ErrClosed, msg, args...)
}
