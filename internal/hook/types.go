package hook

import (
	"context"
	"io"
	"slices"
	"time"
)

// DefaultHookTimeout bounds one dispatch. Claude Code waits on the hook
// before sending the prompt, so it is kept short.
const DefaultHookTimeout = 100 * time.Millisecond

// MaxInputBytes caps the stdin payload accepted from Claude Code.
const MaxInputBytes = 1 << 20

// EventType represents a Claude Code hook event type.
type EventType string

const (
	// EventUserPromptSubmit is triggered when a user submits a prompt.
	EventUserPromptSubmit EventType = "UserPromptSubmit"

	// EventSessionStart is triggered when a new Claude Code session begins.
	EventSessionStart EventType = "SessionStart"
)

// ValidEventTypes returns all event types the orchestrator handles.
func ValidEventTypes() []EventType {
	return []EventType{EventUserPromptSubmit, EventSessionStart}
}

// IsValidEventType checks if the given event type is handled.
func IsValidEventType(et EventType) bool {
	return slices.Contains(ValidEventTypes(), et)
}

// HookInput is the JSON payload received from Claude Code via stdin.
// Unknown fields are ignored.
type HookInput struct {
	SessionID      string `json:"session_id,omitempty"`
	TranscriptPath string `json:"transcript_path,omitempty"`
	CWD            string `json:"cwd,omitempty"`
	HookEventName  string `json:"hook_event_name,omitempty"`

	// UserPromptSubmit fields
	Prompt string `json:"prompt,omitempty"`

	// OpenFiles lists editor files relevant to the prompt, when the caller
	// supplies them.
	OpenFiles []string `json:"open_files,omitempty"`

	// SessionStart fields
	Source string `json:"source,omitempty"`
}

// HookSpecificOutput carries context injected into the conversation.
type HookSpecificOutput struct {
	HookEventName     string `json:"hookEventName,omitempty"`
	AdditionalContext string `json:"additionalContext,omitempty"`
}

// HookOutput is the JSON payload written to stdout for Claude Code. The
// zero value serializes to {}.
type HookOutput struct {
	SystemMessage  string `json:"systemMessage,omitempty"`
	SuppressOutput bool   `json:"suppressOutput,omitempty"`

	HookSpecificOutput *HookSpecificOutput `json:"hookSpecificOutput,omitempty"`
}

// NewContextOutput returns an output that adds context for event. An
// empty context yields the empty output.
func NewContextOutput(event EventType, context string) *HookOutput {
	if context == "" {
		return &HookOutput{}
	}
	return &HookOutput{
		HookSpecificOutput: &HookSpecificOutput{
			HookEventName:     string(event),
			AdditionalContext: context,
		},
	}
}

// AdditionalContext returns the injected context, or "".
func (o *HookOutput) AdditionalContext() string {
	if o == nil || o.HookSpecificOutput == nil {
		return ""
	}
	return o.HookSpecificOutput.AdditionalContext
}

// Handler processes a specific hook event type.
type Handler interface {
	// Handle processes the hook input and returns output.
	// ctx carries cancellation and timeout signals.
	Handle(ctx context.Context, input *HookInput) (*HookOutput, error)

	// EventType returns the event type this handler processes.
	EventType() EventType
}

// Registry manages handler registration and event dispatching.
type Registry interface {
	// Register adds a handler to the registry for its declared event type.
	Register(handler Handler)

	// Dispatch runs every handler registered for event and merges their
	// outputs. It never returns an error; failing handlers are skipped.
	Dispatch(ctx context.Context, event EventType, input *HookInput) *HookOutput

	// Handlers returns all handlers registered for the given event type.
	Handlers(event EventType) []Handler
}

// Protocol handles JSON communication with Claude Code via stdin/stdout.
type Protocol interface {
	// ReadInput reads and parses JSON from the given reader.
	ReadInput(r io.Reader) (*HookInput, error)

	// WriteOutput serializes the output as JSON to the given writer.
	WriteOutput(w io.Writer, output *HookOutput) error
}
