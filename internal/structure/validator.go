package structure

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"
)

// ErrNotDirectory indicates the validated path is not an existing directory.
var ErrNotDirectory = errors.New("structure: project path is not a directory")

// scoreEpsilon absorbs float noise when comparing against a threshold.
const scoreEpsilon = 1e-9

// ComponentStatus is the outcome of checking one component.
type ComponentStatus struct {
	Component
	Present bool   `json:"present"`
	Reason  string `json:"reason,omitempty"`
}

// Gap is a missing or non-conforming component.
type Gap struct {
	Component
	Reason string `json:"reason"`
}

// ValidationResult is a single inspection of a project tree. It is
// computed fresh on every call.
type ValidationResult struct {
	Path             string             `json:"path"`
	StructureVersion string             `json:"structure_version"`
	Checks           map[string]bool    `json:"checks"`
	Components       []ComponentStatus  `json:"components"`
	Score            float64            `json:"score"`
	Gaps             []Gap              `json:"gaps"`
	Issues           []ConsistencyIssue `json:"issues"`
}

// Passes reports whether the score reaches threshold.
func (r *ValidationResult) Passes(threshold int) bool {
	return r.Score+scoreEpsilon >= float64(threshold)
}

// RoundedScore is the integer score cached in the registry.
func (r *ValidationResult) RoundedScore() int {
	return int(math.Round(r.Score))
}

// GapIDs lists the gap component ids in order.
func (r *ValidationResult) GapIDs() []string {
	ids := make([]string, len(r.Gaps))
	for i, g := range r.Gaps {
		ids[i] = g.ID
	}
	return ids
}

// Options configures a Validator.
type Options struct {
	// DefaultWindow is applied to rules that declare no throttle window.
	DefaultWindow time.Duration
	Logger        *slog.Logger
}

// Validator checks project trees. It never writes to the filesystem.
type Validator struct {
	defaultWindow time.Duration
	logger        *slog.Logger
}

// New returns a Validator.
func New(opts Options) *Validator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Validator{defaultWindow: opts.DefaultWindow, logger: logger}
}

// Validate checks every catalog component under root, computes the
// weighted score and lists gaps CRITICAL first. Consistency issues are
// attached but do not affect the score.
func (v *Validator) Validate(root string) (*ValidationResult, error) {
	root, err := checkRoot(root)
	if err != nil {
		return nil, err
	}

	c := &checker{root: root, defaultWindow: v.defaultWindow}
	res := &ValidationResult{
		Path:             root,
		StructureVersion: Version,
		Checks:           make(map[string]bool, len(catalog)),
		Components:       make([]ComponentStatus, 0, len(catalog)),
	}

	var present, total [2]int
	for _, comp := range catalog {
		err := comp.check(c, comp.abs(root))
		status := ComponentStatus{Component: comp, Present: err == nil}
		if err != nil {
			status.Reason = err.Error()
		}
		res.Components = append(res.Components, status)
		res.Checks[comp.ID] = status.Present

		total[comp.Tier]++
		if status.Present {
			present[comp.Tier]++
		}
	}

	// Gaps: CRITICAL first, catalog order within each tier.
	for _, tier := range []Tier{Critical, Important} {
		for _, st := range res.Components {
			if st.Tier == tier && !st.Present {
				res.Gaps = append(res.Gaps, Gap{Component: st.Component, Reason: st.Reason})
			}
		}
	}

	res.Score = score(present, total)
	res.Issues = v.checkConsistency(root)

	v.logger.Debug("structure validated", "path", root, "score", res.Score, "gaps", len(res.Gaps), "issues", len(res.Issues))
	return res, nil
}

// score computes (0.7*critical ratio + 0.3*important ratio) * 100, rounded
// to two decimals. An empty tier counts as complete.
func score(present, total [2]int) float64 {
	ratio := func(t Tier) float64 {
		if total[t] == 0 {
			return 1
		}
		return float64(present[t]) / float64(total[t])
	}
	s := (CriticalWeight*ratio(Critical) + ImportantWeight*ratio(Important)) * 100
	return math.Round(s*100) / 100
}

func checkRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve project path %q: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotDirectory, abs)
	}
	return abs, nil
}
