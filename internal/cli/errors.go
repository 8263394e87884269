package cli

import (
	"errors"
	"fmt"

	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/registry"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/switcher"
)

// Process exit codes.
const (
	ExitOK            = 0
	ExitFailure       = 1
	ExitInvalidTarget = 2
)

// ExitError attaches a process exit code to an error.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// withCode wraps err with code; a nil err stays nil.
func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &ExitError{Code: code, Err: err}
}

// ExitCode maps an Execute error onto the process exit code. An explicit
// *ExitError wins; otherwise an invalid switch target is 2 and everything
// else, including unknown projects, is 1.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	if errors.Is(err, switcher.ErrInvalidTarget) {
		return ExitInvalidTarget
	}
	return ExitFailure
}

// remediation returns the follow-up hint carried by err, if any.
func remediation(err error) string {
	var refusal *switcher.RefusalError
	if errors.As(err, &refusal) {
		return refusal.Remediation()
	}
	var corrupt *registry.CorruptError
	if errors.As(err, &corrupt) {
		return corrupt.Remediation()
	}
	switch {
	case errors.Is(err, registry.ErrLocked):
		return "another orchestrator command is running; retry shortly"
	case errors.Is(err, switcher.ErrNoResume):
		return "switch to a project by name first"
	}
	return ""
}
