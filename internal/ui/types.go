// Package ui renders orchestrator output: themed cards and tables,
// progress for repairs, interactive project selection and markdown.
// Every interactive component falls back to plain output when headless.
package ui

import "errors"

var (
	// ErrCancelled indicates the user aborted an interactive prompt.
	ErrCancelled = errors.New("ui: cancelled by user")

	// ErrHeadlessNoDefault indicates a choice was needed while headless.
	ErrHeadlessNoDefault = errors.New("ui: no default available in headless mode")

	// ErrNoOptions indicates a selection was requested with nothing to choose.
	ErrNoOptions = errors.New("ui: no options to choose from")
)

// Progress creates progress indicators for multi-step work.
type Progress interface {
	Start(title string, total int) ProgressBar
}

// ProgressBar follows a task of known length. Step reports that done steps
// have finished, the last being item.
type ProgressBar interface {
	Step(done int, item string)
	Done()
}

// SelectItem is one option of a selection.
type SelectItem struct {
	Label string
	Value string
	Desc  string
}

// Selector asks the user to pick one item.
type Selector interface {
	Select(title string, items []SelectItem) (string, error)
}

// Prompt asks yes/no questions.
type Prompt interface {
	Confirm(title string, defaultVal bool) (bool, error)
}
