// Package switcher activates exactly one registered project at a time.
// A switch validates the target, optionally repairs it, unloads the current
// rule set and loads the target's, and commits the registry atomically.
package switcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"path/filepath"
	"time"

	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/history"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/registry"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/repair"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/rules"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/structure"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/template"
)

// Repairer installs missing components.
type Repairer interface {
	Repair(ctx context.Context, root string, gaps []structure.Gap, progress repair.ProgressFunc, opts ...template.ContextOption) *repair.Result
}

// Recorder stores switch attempts.
type Recorder interface {
	Record(ctx context.Context, e *history.Entry) error
}

// Options wires a Switcher.
type Options struct {
	Store     *registry.Store
	Validator *structure.Validator
	Repairer  Repairer
	Session   *rules.Session
	// History is optional; recording is best-effort.
	History Recorder
	// StateDir holds resume.json and throttle.json.
	StateDir      string
	DefaultWindow time.Duration
	Logger        *slog.Logger
	Now           func() time.Time
}

// Switcher runs the switch state machine.
type Switcher struct {
	store         *registry.Store
	validator     *structure.Validator
	repairer      Repairer
	session       *rules.Session
	history       Recorder
	stateDir      string
	defaultWindow time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

// New returns a Switcher.
func New(opts Options) *Switcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	session := opts.Session
	if session == nil {
		session = rules.NewSession(0, logger)
	}
	return &Switcher{
		store:         opts.Store,
		validator:     opts.Validator,
		repairer:      opts.Repairer,
		session:       session,
		history:       opts.History,
		stateDir:      opts.StateDir,
		defaultWindow: opts.DefaultWindow,
		logger:        logger,
		now:           now,
	}
}

// Session returns the suggestion session the switcher loads into.
func (s *Switcher) Session() *rules.Session {
	return s.session
}

// Request describes one switch.
type Request struct {
	Target     string
	Threshold  int
	AutoRepair bool
	// Progress, when set, is driven by auto-repair.
	Progress repair.ProgressFunc
}

// Outcome reports what a switch did.
type Outcome struct {
	Project     string                      `json:"project"`
	Previous    string                      `json:"previous,omitempty"`
	State       State                       `json:"state"`
	Trail       []State                     `json:"trail"`
	Validation  *structure.ValidationResult `json:"validation,omitempty"`
	Repair      *repair.Result              `json:"repair,omitempty"`
	RulesLoaded int                         `json:"rules_loaded"`
	// Refreshed is set when the target was already active.
	Refreshed bool `json:"refreshed,omitempty"`
}

func (o *Outcome) enter(st State) {
	o.State = st
	o.Trail = append(o.Trail, st)
}

// Switch makes req.Target the active project. The registry is mutated only
// in the final step, so any failure leaves the previous project active.
func (s *Switcher) Switch(ctx context.Context, req Request) (*Outcome, error) {
	started := s.now()
	out := &Outcome{Project: req.Target}
	out.enter(Idle)

	var (
		snapshot rules.Snapshot
		unloaded bool
	)

	err := s.store.Update(ctx, func(reg *registry.Registry) error {
		out.Previous = reg.ActiveProject
		out.Refreshed = reg.ActiveProject == req.Target

		out.enter(ValidatingTarget)
		rec, err := reg.Get(req.Target)
		if err != nil {
			return err
		}
		res, rep, err := s.check(ctx, rec, req.Threshold, req.AutoRepair, req.Progress)
		out.Validation, out.Repair = res, rep
		if err != nil {
			return err
		}

		out.enter(UnloadingCurrent)
		snapshot = s.session.Snapshot()
		s.session.Unload()
		unloaded = true

		out.enter(LoadingTarget)
		n, err := LoadProject(s.session, rec, s.defaultWindow)
		if err != nil {
			return err
		}
		out.RulesLoaded = n

		if err := reg.SetActive(rec.Name); err != nil {
			return err
		}
		rec.Touch(s.now())
		rec.SetScore(res.RoundedScore())
		return nil
	})

	if err != nil {
		if unloaded {
			s.session.Restore(snapshot)
		}
		out.enter(Failed)
		s.logger.Warn("switch failed", "target", req.Target, "error", err)
		s.record(ctx, out, started, err)
		return out, err
	}

	s.afterUnload(out.Previous, out.Project)
	out.enter(Active)
	s.logger.Info("project activated", "project", out.Project, "previous", out.Previous, "rules", out.RulesLoaded)
	s.record(ctx, out, started, nil)
	return out, nil
}

// Back switches to the project that was active before the current one.
func (s *Switcher) Back(ctx context.Context, req Request) (*Outcome, error) {
	r, err := ReadResume(s.stateDir)
	if err != nil {
		return nil, err
	}
	req.Target = r.Project
	return s.Switch(ctx, req)
}

// check validates rec and, when allowed, repairs it once. It returns a
// *RefusalError when rec cannot be activated.
func (s *Switcher) check(ctx context.Context, rec *registry.ProjectRecord, threshold int, autoRepair bool, progress repair.ProgressFunc) (*structure.ValidationResult, *repair.Result, error) {
	switch rec.State() {
	case registry.StateMissing:
		return nil, nil, &RefusalError{Project: rec.Name, Path: rec.Path, Cause: "project path does not exist"}
	case registry.StateUninitialized:
		return nil, nil, &RefusalError{Project: rec.Name, Path: rec.Path, Cause: "project has no .claude directory"}
	}

	res, err := s.validator.Validate(rec.Path)
	if err != nil {
		return nil, nil, err
	}
	if res.Passes(threshold) {
		return res, nil, nil
	}
	if !autoRepair || s.repairer == nil {
		return res, nil, refusal(rec, res, threshold, nil)
	}

	s.logger.Info("auto-repairing project", "project", rec.Name, "score", res.Score, "gaps", len(res.Gaps))
	rep := s.repairer.Repair(ctx, rec.Path, res.Gaps, progress, template.WithProject(rec.Name, rec.Path))
	res, err = s.validator.Validate(rec.Path)
	if err != nil {
		return nil, rep, err
	}
	if !res.Passes(threshold) {
		return res, rep, refusal(rec, res, threshold, rep)
	}
	return res, rep, nil
}

func refusal(rec *registry.ProjectRecord, res *structure.ValidationResult, threshold int, rep *repair.Result) *RefusalError {
	return &RefusalError{
		Project:   rec.Name,
		Path:      rec.Path,
		Score:     res.Score,
		Threshold: threshold,
		Gaps:      res.Gaps,
		Repair:    rep,
	}
}

// afterUnload persists the unload step once the switch is committed: the
// throttle file of the old session is dropped and a resume snapshot kept.
func (s *Switcher) afterUnload(previous, current string) {
	if s.stateDir == "" {
		return
	}
	if err := clearThrottle(s.stateDir); err != nil {
		s.logger.Warn("failed to clear throttle state", "error", err)
	}
	if previous == "" || previous == current {
		return
	}
	if err := writeResume(s.stateDir, Resume{Project: previous, DeactivatedAt: s.now().UTC()}); err != nil {
		s.logger.Warn("failed to write resume snapshot", "project", previous, "error", err)
	}
}

func (s *Switcher) record(ctx context.Context, out *Outcome, started time.Time, cause error) {
	if s.history == nil {
		return
	}
	e := &history.Entry{
		From:      out.Previous,
		To:        out.Project,
		State:     out.State.String(),
		StartedAt: started,
		Duration:  s.now().Sub(started),
	}
	if out.Validation != nil {
		score := out.Validation.Score
		e.Score = &score
	}
	if cause != nil {
		e.Reason = cause.Error()
	}
	if err := s.history.Record(ctx, e); err != nil {
		s.logger.Warn("failed to record switch history", "error", err)
	}
}

// RegisterRequest describes a project to add to the registry.
type RegisterRequest struct {
	Name       string
	Path       string
	Threshold  int
	AutoRepair bool
	Metadata   map[string]any
	Progress   repair.ProgressFunc
}

// mergeMetadata overlays update on a copy of base.
func mergeMetadata(base, update map[string]any) map[string]any {
	if len(base) == 0 {
		return update
	}
	out := maps.Clone(base)
	maps.Copy(out, update)
	return out
}

// RegisterOutcome reports the validation behind a registration.
type RegisterOutcome struct {
	Record     *registry.ProjectRecord     `json:"record"`
	Validation *structure.ValidationResult `json:"validation"`
	Repair     *repair.Result              `json:"repair,omitempty"`
	Updated    bool                        `json:"updated,omitempty"`
}

// Register validates the project at req.Path, repairs it when allowed and
// adds it to the registry only if the final score reaches the threshold.
// Re-registering an existing name updates its path and score.
func (s *Switcher) Register(ctx context.Context, req RegisterRequest) (*RegisterOutcome, error) {
	if err := registry.ValidateName(req.Name); err != nil {
		return nil, err
	}
	path, err := filepath.Abs(req.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve project path %q: %w", req.Path, err)
	}

	rec := &registry.ProjectRecord{
		Name:      req.Name,
		Path:      path,
		CreatedAt: s.now().UTC(),
		Metadata:  req.Metadata,
	}
	if rec.State() == registry.StateMissing {
		return nil, &RefusalError{Project: rec.Name, Path: rec.Path, Cause: "project path does not exist"}
	}

	res, err := s.validator.Validate(rec.Path)
	if err != nil {
		return nil, err
	}
	out := &RegisterOutcome{Record: rec, Validation: res}

	if !res.Passes(req.Threshold) && req.AutoRepair && s.repairer != nil {
		out.Repair = s.repairer.Repair(ctx, rec.Path, res.Gaps, req.Progress, template.WithProject(rec.Name, rec.Path))
		if res, err = s.validator.Validate(rec.Path); err != nil {
			return out, err
		}
		out.Validation = res
	}
	if !res.Passes(req.Threshold) {
		return out, refusal(rec, res, req.Threshold, out.Repair)
	}
	rec.SetScore(res.RoundedScore())

	err = s.store.Update(ctx, func(reg *registry.Registry) error {
		if existing, ok := reg.Projects[rec.Name]; ok {
			out.Updated = true
			rec.CreatedAt = existing.CreatedAt
			rec.LastActiveAt = existing.LastActiveAt
			rec.Metadata = mergeMetadata(existing.Metadata, rec.Metadata)
		}
		if other, ok := reg.FindByPath(rec.Path); ok && other.Path == rec.Path && other.Name != rec.Name {
			return fmt.Errorf("%w: %s is registered as %q", ErrDuplicatePath, rec.Path, other.Name)
		}
		return reg.Upsert(rec)
	})
	if err != nil {
		return out, err
	}
	s.logger.Info("project registered", "project", rec.Name, "path", rec.Path, "score", res.Score)
	return out, nil
}

