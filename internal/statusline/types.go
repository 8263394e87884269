// Package statusline renders the single line Claude Code shows under the
// prompt: the active project, its cached structure score and a warning when
// the session works inside a different registered project.
package statusline

import "github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/registry"

// Mode selects how much the statusline shows.
type Mode string

const (
	// ModeMinimal shows the active project only.
	ModeMinimal Mode = "minimal"
	// ModeDefault adds the model, score and directory.
	ModeDefault Mode = "default"
	// ModeVerbose adds the project state.
	ModeVerbose Mode = "verbose"
)

// StdinData is the JSON Claude Code writes to a statusLine command.
// Unknown fields are ignored.
type StdinData struct {
	CWD       string         `json:"cwd,omitempty"`
	Model     *ModelInfo     `json:"model,omitempty"`
	Workspace *WorkspaceInfo `json:"workspace,omitempty"`
	Version   string         `json:"version,omitempty"`
}

// ModelInfo names the model of the session.
type ModelInfo struct {
	ID          string `json:"id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// WorkspaceInfo carries the session directories.
type WorkspaceInfo struct {
	CurrentDir string `json:"current_dir,omitempty"`
	ProjectDir string `json:"project_dir,omitempty"`
}

// StatusData is everything the renderer draws.
type StatusData struct {
	Model     string
	Directory string

	// Project is the active project, empty when none is active.
	Project string
	Score   *int
	State   registry.ProjectState

	// Owner is the registered project containing the session directory
	// when it is not the active one.
	Owner string
}
