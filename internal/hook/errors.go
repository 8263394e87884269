package hook

import "errors"

// Sentinel errors for hook operations.
var (
	// ErrHookInvalidInput indicates stdin did not hold a hook JSON object.
	ErrHookInvalidInput = errors.New("hook: invalid input")

	// ErrHookTimeout indicates a handler did not finish within the dispatch timeout.
	ErrHookTimeout = errors.New("hook: execution timed out")
)
