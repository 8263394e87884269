package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/registry"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/switcher"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/ui"
)

// ErrNameRequired indicates a project name was needed but none was given
// and none could be chosen interactively.
var ErrNameRequired = errors.New("project name required")

func newSwitchCmd() *cobra.Command {
	var (
		gate   gateFlags
		back   bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "switch [name]",
		Short: "Validate a project and make it the active one",
		Long: `Switch validates the target project's .claude structure, repairs missing
components when auto-repair is enabled, unloads the current project's rules
and loads the target's. On any failure the previous project stays active.

Exit status is 1 when the project is unknown and 2 when it cannot be
activated.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			threshold, autoRepair, err := gate.resolve()
			if err != nil {
				return err
			}
			var name string
			if len(args) == 1 {
				name = args[0]
			}
			if back && name != "" {
				return fmt.Errorf("--back does not take a project name")
			}
			return runSwitch(cmd, name, back, threshold, autoRepair, asJSON)
		},
	}
	gate.register(cmd)
	cmd.Flags().BoolVar(&back, "back", false, "switch to the previously active project")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the switch outcome as JSON")
	return cmd
}

func runSwitch(cmd *cobra.Command, name string, back bool, threshold int, autoRepair, asJSON bool) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if !back && name == "" {
		chosen, err := pickProject("Switch to project")
		if err != nil {
			return err
		}
		name = chosen
	}

	step, finish := repairTracker("Repairing", asJSON)
	req := switcher.Request{Target: name, Threshold: threshold, AutoRepair: autoRepair, Progress: step}

	var (
		out *switcher.Outcome
		err error
	)
	if back {
		out, err = deps.Switcher.Back(ctx, req)
	} else {
		out, err = deps.Switcher.Switch(ctx, req)
		if alt, ok := disambiguate(err); ok {
			req.Target = alt
			out, err = deps.Switcher.Switch(ctx, req)
		}
	}
	finish()

	if asJSON && out != nil {
		if jerr := writeJSON(cmd.OutOrStdout(), out); jerr != nil {
			return jerr
		}
	}
	if err != nil {
		return err
	}
	if !asJSON {
		renderSwitch(cmd, out)
	}
	return nil
}

// pickProject asks the user to choose a registered project. Headless with
// no configured choice it returns ErrNameRequired.
func pickProject(title string) (string, error) {
	reg, err := deps.Store.Load()
	if err != nil {
		return "", err
	}
	var items []ui.SelectItem
	for _, rec := range reg.Records() {
		desc := rec.Path
		if rec.Name == reg.ActiveProject {
			desc += " (active)"
		} else if st := rec.State(); st.Stale() {
			desc += " (" + string(st) + ")"
		}
		items = append(items, ui.SelectItem{Label: rec.Name, Value: rec.Name, Desc: desc})
	}
	if len(items) == 0 {
		return "", fmt.Errorf("%w: no projects are registered", ErrNameRequired)
	}
	name, err := deps.Selector.Select(title, items)
	if errors.Is(err, ui.ErrHeadlessNoDefault) {
		return "", fmt.Errorf("%w: pass a name when not running in a terminal", ErrNameRequired)
	}
	return name, err
}

// disambiguate offers the fuzzy candidates of a not-found error on a
// terminal. It reports false when there is nothing to offer or the user
// declines.
func disambiguate(err error) (string, bool) {
	var nf *registry.NotFoundError
	if !errors.As(err, &nf) || len(nf.Suggestions) == 0 || deps.Headless.IsHeadless() {
		return "", false
	}
	items := make([]ui.SelectItem, len(nf.Suggestions))
	for i, s := range nf.Suggestions {
		items[i] = ui.SelectItem{Label: s, Value: s}
	}
	choice, serr := deps.Selector.Select(fmt.Sprintf("Project %q not found. Did you mean", nf.Name), items)
	if serr != nil {
		return "", false
	}
	return choice, true
}

func renderSwitch(cmd *cobra.Command, out *switcher.Outcome) {
	t := deps.Theme
	title := "Switched to " + out.Project
	if out.Refreshed {
		title = "Reloaded " + out.Project
	}

	pairs := [][2]string{}
	if out.Previous != "" && !out.Refreshed {
		pairs = append(pairs, [2]string{"previous", out.Previous})
	}
	pairs = append(pairs, [2]string{"rules", fmt.Sprintf("%d loaded", out.RulesLoaded)})
	if out.Repair != nil {
		pairs = append(pairs, [2]string{"repaired", joinOr(out.Repair.Installed, "nothing")})
	}
	lines := t.KeyValues(pairs...)
	if out.Validation != nil {
		lines = append(lines, validationLines(out.Validation)...)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), t.SuccessCard(title, lines...))
}
