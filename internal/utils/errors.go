package utils

import (
	"fmt"
	"path"
	"runtime"
)

// RaisedErr is an error that remembers where it was raised.
// Every error returned by roadauth code is a RaisedErr instance.
//
// Packages declare a private flag error type plus a set of error **constants** of
// that type. Assigning such flags to a RaisedErr lets callers categorize failures
// with errors.Is without depending on message contents.
type RaisedErr struct {
	// Flag groups related errors.
	Flag error

	// Cause is the inner error, if any.
	Cause error

	// Msg describes what happened.
	Msg string

	// Filename locates the source file that raised the error.
	Filename string

	// Line locates the raising statement inside Filename.
	Line int
}

// Error implements the error interface.
func (self RaisedErr) Error() string {
	return fmt.Sprintf("%s: %s\n  file: %s line: %d\n%v", path.Dir(self.Filename), self.Msg, self.Filename, self.Line, self.Cause)
}

// Unwrap returns the Flag and Cause of the RaisedErr.
func (self RaisedErr) Unwrap() []error {
	rv := make([]error, 0, 2)
	if nil != self.Flag {
		rv = append(rv, self.Flag)
	}
	if nil != self.Cause {
		rv = append(rv, self.Cause)
	}
	return rv
}

// NewError returns a RaisedErr{} carrying the file & line of its call site.
//
// skip controls Caller frame resolution, pass 0 when calling NewError directly,
// 1 when calling it from an intermediary per package newError helper...
func NewError(skip int, flag error, msg string, args ...any) error {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	err := RaisedErr{Flag: flag, Msg: msg}
	setLocation(skip, &err)
	return err
}

// WrapError returns a RaisedErr{} carrying the file & line of its call site.
// WrapError returns nil whenever cause is nil, which allows wrapping final
// operation results unconditionally.
//
// skip controls Caller frame resolution, pass 0 when calling WrapError directly,
// 1 when calling it from an intermediary per package wrapError helper...
func WrapError(cause error, skip int, flag error, msg string, args ...any) error {
	if nil == cause {
		return nil
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	err := RaisedErr{Flag: flag, Cause: cause, Msg: msg}
	setLocation(skip, &err)
	return err
}

func setLocation(skip int, err *RaisedErr) {
	_, filename, line, ok := runtime.Caller(2 + skip)
	if ok {
		dirname, basename := path.Split(filename)
		err.Filename = path.Join(path.Base(dirname), basename)
		err.Line = line
	}
}
