package suite

import (
	"code.roadauth.org/golang/internal/utils"
)

// errorFlag is a private error type that allows declaring error constants.
type errorFlag string

const (
	// All package errors are wrapping Error
	Error = errorFlag("suite: error")

	// ErrPrimitive flags malformed curve points or scalars. Such errors indicate a
	// violated precondition and not an adversarial scenario, callers shall treat
	// them as unrecoverable.
	ErrPrimitive = errorFlag("suite: invalid group element or scalar")

	// ErrDecrypt flags an authenticated decryption failure.
	ErrDecrypt = errorFlag("suite: decryption failure")

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

// newError returns a utils.RaisedErr{} that contains file & line of where it was called.
func newError(msg string, args ...any) error {
	return utils.NewError(1, Error, msg, args...)
}

// wrapError returns a utils.RaisedErr{} that contains file & line of where it was called.
func wrapError(cause error, msg string, args ...any) error {
	return utils.WrapError(cause, 1, Error, msg, args...)
}

// primitiveError wraps cause with the ErrPrimitive flag.
func primitiveError(cause error, msg string, args ...any) error {
	return utils.WrapError(cause, 1, ErrPrimitive, msg, args...)
}

// decryptError wraps cause with the ErrDecrypt flag.
func decryptError(cause error, msg string, args ...any) error {
	return utils.WrapError(cause, 1, ErrDecrypt, msg, args...)
}

// newDecryptError returns a causeless error carrying the ErrDecrypt flag.
func newDecryptError(msg string, args ...any) error {
	return utils.NewError(1, ErrDecrypt, msg, args...)
}
