package hook

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/registry"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/rules"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/structure"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/switcher"
)

// SuggestOptions wires the prompt suggestion handler.
type SuggestOptions struct {
	Store *registry.Store
	// StateDir holds throttle.json between hook processes.
	StateDir      string
	TopK          int
	DefaultWindow time.Duration
	Logger        *slog.Logger
	Now           func() time.Time
}

// suggestHandler ranks the active project's skills for each submitted prompt.
type suggestHandler struct {
	store         *registry.Store
	stateDir      string
	topK          int
	defaultWindow time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

// NewSuggestHandler creates a UserPromptSubmit handler that injects skill
// suggestions for the active project.
func NewSuggestHandler(opts SuggestOptions) *suggestHandler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &suggestHandler{
		store:         opts.Store,
		stateDir:      opts.StateDir,
		topK:          opts.TopK,
		defaultWindow: opts.DefaultWindow,
		logger:        logger,
		now:           now,
	}
}

// EventType returns EventUserPromptSubmit.
func (h *suggestHandler) EventType() EventType {
	return EventUserPromptSubmit
}

// Handle loads the active project's rules and throttle state, marks skills
// the prompt invokes as slash commands active, ranks skills for the prompt
// and persists the updated state. Active skills stay out of the suggestions
// until the project is switched away. With no active project it returns the
// empty output.
func (h *suggestHandler) Handle(ctx context.Context, input *HookInput) (*HookOutput, error) {
	reg, err := h.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	rec, ok := reg.Active()
	if !ok || rec.State() != registry.StateValid {
		return &HookOutput{}, nil
	}

	session := rules.NewSession(h.topK, h.logger)
	session.SetClock(h.now)
	if _, err := switcher.LoadProject(session, rec, h.defaultWindow); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	ts, err := switcher.ReadThrottle(h.stateDir)
	if err != nil {
		h.logger.Warn("ignoring unreadable throttle state", "error", err)
	} else {
		session.RestoreThrottle(ts)
	}

	invoked := rules.InvokedSkills(session.Rules(), input.Prompt)
	for _, id := range invoked {
		session.Activate(id)
	}

	suggestions := session.Suggest(BuildRequest(rec, input.Prompt, input.CWD, input.OpenFiles))
	if len(suggestions)+len(invoked) > 0 {
		if err := switcher.WriteThrottle(h.stateDir, session.ThrottleState()); err != nil {
			h.logger.Warn("failed to persist throttle state", "error", err)
		}
	}
	if len(suggestions) == 0 {
		return &HookOutput{}, nil
	}

	h.logger.Debug("skills suggested", "project", rec.Name, "count", len(suggestions))
	return NewContextOutput(EventUserPromptSubmit, FormatSuggestions(rec.Name, suggestions)), nil
}

// FormatSuggestions renders suggestions as the additional context block.
func FormatSuggestions(project string, suggestions []rules.Suggestion) string {
	if len(suggestions) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Suggested skills for project %s:\n", project)
	for _, s := range suggestions {
		fmt.Fprintf(&b, "- %s (score %d", s.SkillID, s.Score)
		if len(s.Reasons) > 0 {
			fmt.Fprintf(&b, "; %s", strings.Join(s.Reasons, ", "))
		}
		b.WriteString(")\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// BuildRequest assembles the matcher request for rec. Paths inside the
// project are made relative to its root; the project type comes from its
// metadata.
func BuildRequest(rec *registry.ProjectRecord, prompt, cwd string, openFiles []string) rules.Request {
	req := rules.Request{
		PromptText:       prompt,
		CurrentDirectory: relativeTo(rec.Path, cwd),
		ProjectType:      projectType(rec),
	}
	for _, f := range openFiles {
		req.OpenFilePaths = append(req.OpenFilePaths, relativeTo(rec.Path, f))
	}
	return req
}

// projectType reads project_type from metadata.json, falling back to the
// registry metadata.
func projectType(rec *registry.ProjectRecord) string {
	if md, err := structure.ReadMetadata(rec.Path); err == nil && md.ProjectType != "" {
		return md.ProjectType
	}
	if t, ok := rec.Metadata["project_type"].(string); ok {
		return t
	}
	return ""
}

// relativeTo expresses p relative to root when p lies inside it, so rule
// globs written against the project tree match absolute editor paths.
func relativeTo(root, p string) string {
	if p == "" || !filepath.IsAbs(p) {
		return p
	}
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return p
	}
	if rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}
