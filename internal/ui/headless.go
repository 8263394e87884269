package ui

import (
	"os"

	"github.com/mattn/go-isatty"
)

// HeadlessManager decides whether prompts and animations may be shown.
type HeadlessManager struct {
	forced *bool
}

// NewHeadlessManager returns a manager that detects the mode from the
// terminal state of stdin and stdout.
func NewHeadlessManager() *HeadlessManager {
	return &HeadlessManager{}
}

// IsHeadless reports whether output must stay non-interactive. Piping
// either stdin or stdout, as the hook and --json callers do, is headless.
func (h *HeadlessManager) IsHeadless() bool {
	if h.forced != nil {
		return *h.forced
	}
	return !isTerminal(os.Stdin) || !isTerminal(os.Stdout)
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ForceHeadless overrides detection; false forces interactive mode.
func (h *HeadlessManager) ForceHeadless(force bool) {
	h.forced = &force
}
