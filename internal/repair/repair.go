// Package repair installs missing project components from templates.
// Repair is additive only: existing files are never replaced.
package repair

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/registry"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/rules"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/structure"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/template"
)

// Failure records why one component could not be installed.
type Failure struct {
	ComponentID string `json:"component_id"`
	Reason      string `json:"reason"`
}

// Result reports every component the plan touched. A non-empty Failures
// list is a partial success, not an error.
type Result struct {
	Attempted []string  `json:"attempted"`
	Installed []string  `json:"installed"`
	Skipped   []string  `json:"skipped"`
	Failures  []Failure `json:"failures"`
}

// Complete reports whether no component failed.
func (r *Result) Complete() bool {
	return len(r.Failures) == 0
}

// ProgressFunc is called after each component with the running count.
type ProgressFunc func(done, total int, componentID string)

// Options configures an Engine.
type Options struct {
	// Templates defaults to the embedded component templates.
	Templates fs.FS
	// HookCommand is the executable rendered into hook scripts and the
	// status line. Empty keeps the template default.
	HookCommand string
	Logger      *slog.Logger
	Now         func() time.Time
}

// Engine executes repair plans.
type Engine struct {
	deployer    template.Deployer
	hookCommand string
	logger      *slog.Logger
	now         func() time.Time
}

// NewEngine returns an Engine.
func NewEngine(opts Options) (*Engine, error) {
	fsys := opts.Templates
	if fsys == nil {
		var err error
		if fsys, err = template.EmbeddedTemplates(); err != nil {
			return nil, fmt.Errorf("load embedded templates: %w", err)
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		deployer:    template.NewDeployer(fsys),
		hookCommand: opts.HookCommand,
		logger:      logger,
		now:         now,
	}, nil
}

// Repair installs each gap under root, CRITICAL before IMPORTANT. A failure
// is recorded and the plan continues. Template variables default to the
// project's metadata name (or its directory name), the current structure
// version and the current time; opts override them.
func (e *Engine) Repair(ctx context.Context, root string, gaps []structure.Gap, progress ProgressFunc, opts ...template.ContextOption) *Result {
	res := &Result{}
	plan := slices.Clone(gaps)
	order := catalogOrder()
	slices.SortStableFunc(plan, func(a, b structure.Gap) int {
		return cmp.Or(cmp.Compare(a.Tier, b.Tier), cmp.Compare(order[a.ID], order[b.ID]))
	})

	tmplCtx := template.NewTemplateContext(append([]template.ContextOption{
		template.WithProject(projectName(root), root),
		template.WithStructureVersion(structure.Version),
		template.WithHookCommand(e.hookCommand),
		template.WithCreatedAt(e.now()),
	}, opts...)...)

	for i, gap := range plan {
		res.Attempted = append(res.Attempted, gap.ID)

		if err := ctx.Err(); err != nil {
			res.Failures = append(res.Failures, Failure{ComponentID: gap.ID, Reason: err.Error()})
		} else {
			installed, err := e.install(root, gap.Component, tmplCtx)
			switch {
			case err != nil:
				e.logger.Warn("component repair failed", "component", gap.ID, "path", root, "error", err)
				res.Failures = append(res.Failures, Failure{ComponentID: gap.ID, Reason: err.Error()})
			case installed:
				e.logger.Info("component installed", "component", gap.ID, "path", root)
				res.Installed = append(res.Installed, gap.ID)
			default:
				res.Skipped = append(res.Skipped, gap.ID)
			}
		}

		if progress != nil {
			progress(i+1, len(plan), gap.ID)
		}
	}
	return res
}

// catalogOrder maps component ids to their catalog position. Parents come
// before the files inside them, so a component is never created as a side
// effect of installing an earlier one.
func catalogOrder() map[string]int {
	order := make(map[string]int)
	for i, c := range structure.Catalog() {
		order[c.ID] = i
	}
	return order
}

func (e *Engine) install(root string, c structure.Component, tmplCtx *template.TemplateContext) (bool, error) {
	dest := filepath.Join(root, filepath.FromSlash(c.Path))
	if c.Dir {
		return e.installDir(root, dest, c, tmplCtx)
	}
	if c.ID == skillRulesID {
		if err := checkExistingRules(root); err != nil {
			return false, err
		}
	}

	if c.Template == "" {
		return false, fmt.Errorf("no template for %s", c.Path)
	}
	written, err := e.deployer.DeployFile(root, c.Template, tmplCtx)
	if err != nil {
		return false, err
	}
	if written && c.Executable {
		if err := os.Chmod(dest, 0o755); err != nil {
			return true, fmt.Errorf("set execute bit on %s: %w", c.Path, err)
		}
	}
	return written, nil
}

func (e *Engine) installDir(root, dest string, c structure.Component, tmplCtx *template.TemplateContext) (bool, error) {
	info, err := os.Stat(dest)
	switch {
	case err == nil && !info.IsDir():
		return false, fmt.Errorf("%s exists and is not a directory", c.Path)
	case err == nil:
		return false, nil
	case !os.IsNotExist(err):
		return false, err
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return false, fmt.Errorf("create %s: %w", c.Path, err)
	}
	if c.Template != "" {
		if _, err := e.deployer.DeployFile(root, c.Template, tmplCtx); err != nil {
			return true, fmt.Errorf("placeholder for %s: %w", c.Path, err)
		}
	}
	return true, nil
}

const skillRulesID = "skill_rules"

// ErrNotRepairable marks a gap that repair leaves to the user because
// fixing it would replace or shadow their own file.
var ErrNotRepairable = errors.New("not auto-repairable")

// checkExistingRules fails when a rule file in either format exists but
// does not load. Locate prefers JSON, so a new skill-rules.json would hide
// a broken skill-rules.yaml.
func checkExistingRules(root string) error {
	p, err := rules.Locate(root)
	if errors.Is(err, rules.ErrNoRuleSet) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := rules.Load(root, 0); err != nil {
		rel, _ := filepath.Rel(root, p)
		return fmt.Errorf("%w: %s exists but is invalid, fix it by hand: %v", ErrNotRepairable, filepath.ToSlash(rel), err)
	}
	return nil
}

// projectName prefers the name recorded in metadata, then the directory name.
func projectName(root string) string {
	if md, err := structure.ReadMetadata(root); err == nil && md.Name != "" {
		return md.Name
	}
	if slug := registry.Slugify(filepath.Base(root)); slug != "" {
		return slug
	}
	return "project"
}
