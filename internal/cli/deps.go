// Package cli provides the Cobra command tree and dependency injection
// wiring for the orchestrator CLI. This file defines the Dependencies
// struct (Composition Root) that wires all domain modules together.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/config"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/defs"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/history"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/hook"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/project"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/registry"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/repair"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/rules"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/structure"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/switcher"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/template"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/ui"
)

// Dependencies holds all domain-level services used by CLI commands.
// This is the Composition Root: the only place where concrete types
// are instantiated and wired together.
type Dependencies struct {
	Settings  *config.Settings
	Logger    *slog.Logger
	Store     *registry.Store
	Validator *structure.Validator
	Repairer  *repair.Engine
	Deployer  template.Deployer
	Switcher  *switcher.Switcher
	Detector  *project.Detector

	// History is opened lazily by EnsureHistory.
	History *history.Store

	HookRegistry hook.Registry
	HookProtocol hook.Protocol

	Theme    *ui.Theme
	Headless *ui.HeadlessManager
	Progress ui.Progress
	Selector ui.Selector
	Prompt   ui.Prompt

	Now func() time.Time
}

// deps is the global dependencies instance, initialized by InitDependencies.
var deps *Dependencies

// @MX:ANCHOR: [AUTO] InitDependencies is the Composition Root that wires all domain modules
// @MX:REASON: [AUTO] every command reaches the registry, validator and switcher through it
// InitDependencies creates and wires all domain dependencies from settings.
// The history database is not opened here; see EnsureHistory.
func InitDependencies(settings *config.Settings, logger *slog.Logger, noColor bool) (*Dependencies, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	templates, err := template.EmbeddedTemplates()
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	engine, err := repair.NewEngine(repair.Options{
		Templates:   templates,
		HookCommand: settings.Hook.Command,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create repair engine: %w", err)
	}

	d := &Dependencies{
		Settings: settings,
		Logger:   logger,
		Store: registry.NewStore(registry.Options{
			Path:      settings.RegistryPath(),
			Backups:   settings.Registry.Backups,
			LockWait:  settings.Registry.LockWait,
			LockStale: settings.Registry.LockStale,
			Logger:    logger,
		}),
		Validator: structure.New(structure.Options{
			DefaultWindow: settings.Matcher.DefaultThrottle,
			Logger:        logger,
		}),
		Repairer:     engine,
		Detector:     project.NewDetector(logger),
		Deployer:     template.NewDeployer(templates),
		HookProtocol: hook.NewProtocol(),
		Theme:        ui.NewTheme(noColor),
		Headless:     ui.NewHeadlessManager(),
		Now:          time.Now,
	}
	d.Progress = ui.NewProgress(d.Theme, d.Headless)
	d.Selector = ui.NewSelector(d.Theme, d.Headless)
	d.Prompt = ui.NewPrompt(d.Theme, d.Headless)

	d.Switcher = switcher.New(switcher.Options{
		Store:         d.Store,
		Validator:     d.Validator,
		Repairer:      d.Repairer,
		Session:       rules.NewSession(settings.Matcher.TopK, logger),
		History:       lazyRecorder{d},
		StateDir:      settings.Home,
		DefaultWindow: settings.Matcher.DefaultThrottle,
		Logger:        logger,
	})

	reg := hook.NewRegistryWithTimeout(logger, settings.Hook.Timeout)
	reg.Register(hook.NewSuggestHandler(hook.SuggestOptions{
		Store:         d.Store,
		StateDir:      settings.Home,
		TopK:          settings.Matcher.TopK,
		DefaultWindow: settings.Matcher.DefaultThrottle,
		Logger:        logger,
	}))
	reg.Register(hook.NewMismatchHandler(d.Store, hook.EventUserPromptSubmit))
	reg.Register(hook.NewMismatchHandler(d.Store, hook.EventSessionStart))
	d.HookRegistry = reg

	return d, nil
}

// GetDeps returns the current Dependencies instance.
// Returns nil if InitDependencies has not been called.
func GetDeps() *Dependencies {
	return deps
}

// SetDeps replaces the global dependencies (used for testing).
func SetDeps(d *Dependencies) {
	deps = d
}

// EnsureHistory opens the switch history database on first use.
func (d *Dependencies) EnsureHistory() (*history.Store, error) {
	if d.History != nil {
		return d.History, nil
	}
	h, err := history.Open(d.Settings.Path(defs.HistoryDB))
	if err != nil {
		return nil, err
	}
	d.History = h
	return h, nil
}

// Close releases resources opened during the command.
func (d *Dependencies) Close() error {
	if d.History == nil {
		return nil
	}
	err := d.History.Close()
	d.History = nil
	return err
}

// lazyRecorder opens the history database only when a switch is recorded.
type lazyRecorder struct {
	d *Dependencies
}

func (r lazyRecorder) Record(ctx context.Context, e *history.Entry) error {
	h, err := r.d.EnsureHistory()
	if err != nil {
		return err
	}
	return h.Record(ctx, e)
}

// projectMetadata builds the registry metadata for a project at root. An
// explicit kind wins over the detected type; detected frameworks are always
// recorded.
func (d *Dependencies) projectMetadata(root, kind string) map[string]any {
	md := map[string]any{}
	det, err := d.Detector.Detect(root)
	if err != nil {
		d.Logger.Debug("project detection skipped", "root", root, "error", err)
	} else {
		if kind == "" {
			kind = string(det.Type)
		}
		if names := det.FrameworkNames(); len(names) > 0 {
			md["frameworks"] = names
		}
	}
	if kind != "" {
		md["project_type"] = kind
	}
	return md
}

// newLogger builds the CLI logger on w per the log settings.
func newLogger(w io.Writer, s config.LogSettings) *slog.Logger {
	opts := &slog.HandlerOptions{Level: s.SlogLevel()}
	if s.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// hookLogger discards everything unless debug logging is requested through
// the environment, since Claude Code surfaces hook stderr to the user.
func hookLogger(w io.Writer) *slog.Logger {
	if os.Getenv(defs.EnvLogLevel) == "debug" {
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
