package hook

import (
	"context"
	"fmt"

	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/registry"
)

// mismatchHandler warns when the session works inside a registered project
// that is not the active one.
type mismatchHandler struct {
	store *registry.Store
	event EventType
}

// NewMismatchHandler creates a handler for event that reports a context
// mismatch between cwd and the active project.
func NewMismatchHandler(store *registry.Store, event EventType) *mismatchHandler {
	return &mismatchHandler{store: store, event: event}
}

// EventType returns the event the handler was created for.
func (h *mismatchHandler) EventType() EventType {
	return h.event
}

// Handle returns the empty output unless cwd belongs to another project.
func (h *mismatchHandler) Handle(_ context.Context, input *HookInput) (*HookOutput, error) {
	if input.CWD == "" {
		return &HookOutput{}, nil
	}
	reg, err := h.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	msg := MismatchWarning(reg, input.CWD)
	return NewContextOutput(h.event, msg), nil
}

// MismatchWarning describes a mismatch between dir and the active project,
// or returns "" when dir belongs to no project or to the active one.
func MismatchWarning(reg *registry.Registry, dir string) string {
	owner, ok := reg.FindByPath(dir)
	if !ok || owner.Name == reg.ActiveProject {
		return ""
	}
	if reg.ActiveProject == "" {
		return fmt.Sprintf("Context mismatch: %s belongs to project %s but no project is active. Run: orchestrator switch %s",
			dir, owner.Name, owner.Name)
	}
	return fmt.Sprintf("Context mismatch: %s belongs to project %s but the active project is %s. Run: orchestrator switch %s",
		dir, owner.Name, reg.ActiveProject, owner.Name)
}
