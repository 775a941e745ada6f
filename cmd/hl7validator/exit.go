package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/gofhir/hl7validator/pkg/message"
	"github.com/gofhir/hl7validator/pkg/registry"
)

// Exit codes, from sysexits.h.
const (
	exitOK         = 0
	exitAssertion  = 1
	exitUsage      = 64
	exitDataErr    = 65
	exitNoInput    = 66
	exitCantCreate = 73
	exitConfig     = 78
)

var errAssertionFailed = errors.New("assertion failed")

// exitError carries the process exit code of a failed run.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, format string, args ...any) error {
	return &exitError{code: code, err: fmt.Errorf(format, args...)}
}

// exitCode maps an error returned by the command to a process exit code.
// Errors without an explicit code are classified by their sentinel; the
// rest are command line usage errors.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	switch {
	case errors.Is(err, registry.ErrSchema):
		return exitConfig
	case errors.Is(err, message.ErrMalformedMessage):
		return exitDataErr
	case errors.Is(err, fs.ErrNotExist):
		return exitNoInput
	default:
		return exitUsage
	}
}
