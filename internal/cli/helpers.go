package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/config"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/registry"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/structure"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/ui"
)

// gateFlags are shared by commands that validate before acting.
type gateFlags struct {
	threshold    int
	noAutoRepair bool
}

func (g *gateFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&g.threshold, "threshold", -1, "minimum structure score 0-100 (default from validation.threshold)")
	cmd.Flags().BoolVar(&g.noAutoRepair, "no-auto-repair", false, "never install missing components")
}

// resolve merges the flags with the configured defaults.
func (g *gateFlags) resolve() (threshold int, autoRepair bool, err error) {
	threshold = g.threshold
	if threshold < 0 {
		threshold = deps.Settings.Validation.Threshold
	}
	if threshold > 100 {
		return 0, false, fmt.Errorf("%w (got %d)", config.ErrInvalidThreshold, threshold)
	}
	return threshold, deps.Settings.Validation.AutoRepair && !g.noAutoRepair, nil
}

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// repairTracker returns a repair progress callback and the function that
// completes the bar. JSON output suppresses progress entirely.
func repairTracker(title string, quiet bool) (func(done, total int, id string), func()) {
	if quiet {
		return nil, func() {}
	}
	return ui.StepTracker(deps.Progress, title)
}

func scoreText(rec *registry.ProjectRecord) string {
	if rec.Score == nil {
		return "-"
	}
	return strconv.Itoa(*rec.Score)
}

func ago(t *time.Time, now time.Time) string {
	if t == nil {
		return "never"
	}
	d := now.Sub(*t).Round(time.Minute)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// validationLines summarizes a result for a card.
func validationLines(res *structure.ValidationResult) []string {
	t := deps.Theme
	lines := []string{fmt.Sprintf("score: %.2f", res.Score)}
	for _, g := range res.Gaps {
		sym := t.SymWarning()
		if g.Tier == structure.Critical {
			sym = t.SymError()
		}
		lines = append(lines, fmt.Sprintf("%s %s %s %s", sym, g.Tier, g.ID, t.Muted().Render(g.Reason)))
	}
	for _, is := range res.Issues {
		sym := t.SymWarning()
		if is.Severity == structure.SeverityError {
			sym = t.SymError()
		}
		line := fmt.Sprintf("%s %s", sym, is.Message)
		if is.Suggestion != "" {
			line += " " + t.Muted().Render("("+is.Suggestion+")")
		}
		lines = append(lines, line)
	}
	return lines
}

// workingDir returns the current directory, or "" when it cannot be read.
func workingDir() string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return wd
}
