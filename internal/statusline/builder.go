package statusline

import (
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/registry"
)

// Options configures a Builder.
type Options struct {
	Store *registry.Store
	Mode  Mode
	// Threshold marks low scores; see NewRenderer.
	Threshold int
	NoColor   bool
	Logger    *slog.Logger
}

// Builder collects status data from the registry and renders it.
type Builder struct {
	store    *registry.Store
	renderer *Renderer
	mode     Mode
	logger   *slog.Logger
}

// New creates a Builder. An empty Mode means ModeDefault.
func New(opts Options) *Builder {
	mode := opts.Mode
	if mode == "" {
		mode = ModeDefault
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Builder{
		store:    opts.Store,
		renderer: NewRenderer(opts.Threshold, opts.NoColor),
		mode:     mode,
		logger:   logger,
	}
}

// Build reads the Claude Code payload from r and returns the statusline.
// Unreadable input or registry errors degrade to partial output.
func (b *Builder) Build(r io.Reader) string {
	return b.renderer.Render(b.collect(parseStdin(r, b.logger)), b.mode)
}

func (b *Builder) collect(input *StdinData) *StatusData {
	data := &StatusData{}
	dir := sessionDir(input)
	if dir != "" {
		data.Directory = filepath.Base(dir)
	}
	if input != nil && input.Model != nil {
		data.Model = input.Model.DisplayName
	}
	if b.store == nil {
		return data
	}

	reg, err := b.store.Load()
	if err != nil {
		b.logger.Debug("statusline registry load failed", "error", err)
		return data
	}
	if rec, ok := reg.Active(); ok {
		data.Project = rec.Name
		data.Score = rec.Score
		data.State = rec.State()
	}
	if dir != "" {
		if owner, ok := reg.FindByPath(dir); ok && owner.Name != data.Project {
			data.Owner = owner.Name
		}
	}
	return data
}

// parseStdin returns nil on empty or invalid input.
func parseStdin(r io.Reader, logger *slog.Logger) *StdinData {
	if r == nil {
		return nil
	}
	var input StdinData
	if err := json.NewDecoder(r).Decode(&input); err != nil {
		logger.Debug("statusline stdin parse failed", "error", err)
		return nil
	}
	return &input
}

// sessionDir picks workspace.current_dir, then workspace.project_dir, then
// the legacy cwd field.
func sessionDir(input *StdinData) string {
	if input == nil {
		return ""
	}
	if ws := input.Workspace; ws != nil {
		if ws.CurrentDir != "" {
			return ws.CurrentDir
		}
		if ws.ProjectDir != "" {
			return ws.ProjectDir
		}
	}
	return input.CWD
}
