package cli

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/project"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/registry"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/repair"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/structure"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/template"
)

// ErrBelowThreshold indicates a validated project scored under the
// configured threshold.
var ErrBelowThreshold = errors.New("structure score below threshold")

// validateOutput is the JSON shape of a validate run.
type validateOutput struct {
	Project    string                      `json:"project,omitempty"`
	Threshold  int                         `json:"threshold"`
	Passes     bool                        `json:"passes"`
	Validation *structure.ValidationResult `json:"validation"`
	Repair     *repair.Result              `json:"repair,omitempty"`
}

func newValidateCmd() *cobra.Command {
	var (
		path   string
		fix    bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "validate [name]",
		Short: "Score a project's .claude structure",
		Long: `Validate checks every component of the .claude structure and reports the
score, the gaps (CRITICAL first) and consistency issues. The target is the
named project, --path, the registered project containing the current
directory, or the current directory itself.

With --fix, missing components are installed from templates. Existing files
are never modified. Exit status is 1 when the score is below the threshold.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 && path != "" {
				return fmt.Errorf("pass either a project name or --path, not both")
			}
			rec, root, err := resolveTarget(args, path)
			if err != nil {
				return err
			}

			out := validateOutput{Threshold: deps.Settings.Validation.Threshold}
			if rec != nil {
				out.Project = rec.Name
			}
			res, err := deps.Validator.Validate(root)
			if err != nil {
				return err
			}

			if fix && len(res.Gaps) > 0 {
				name := out.Project
				if name == "" {
					name = registry.Slugify(filepath.Base(root))
				}
				step, finish := repairTracker("Repairing", asJSON)
				out.Repair = deps.Repairer.Repair(cmd.Context(), root, res.Gaps, step, template.WithProject(name, root))
				finish()
				if res, err = deps.Validator.Validate(root); err != nil {
					return err
				}
			}
			out.Validation = res
			out.Passes = res.Passes(out.Threshold)

			if rec != nil {
				if err := cacheScore(cmd, rec.Name, res.RoundedScore()); err != nil {
					deps.Logger.Warn("failed to cache score", "project", rec.Name, "error", err)
				}
			}

			if asJSON {
				if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
					return err
				}
			} else {
				renderValidate(cmd, root, out)
			}
			if !out.Passes {
				return fmt.Errorf("%w: %.2f < %d", ErrBelowThreshold, res.Score, out.Threshold)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "path", "p", "", "validate this directory instead of a registered project")
	cmd.Flags().BoolVar(&fix, "fix", false, "install missing components from templates")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the validation result as JSON")
	return cmd
}

// resolveTarget picks the record and directory a command operates on: the
// named project, an explicit path, the project containing the working
// directory, the nearest directory above it holding a .claude structure, or
// the working directory itself. rec is nil for unregistered directories.
func resolveTarget(args []string, path string) (*registry.ProjectRecord, string, error) {
	if len(args) == 1 {
		rec, err := deps.Store.Get(args[0])
		if err != nil {
			return nil, "", err
		}
		return rec, rec.Path, nil
	}
	explicit := path != ""
	if !explicit {
		path = workingDir()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", fmt.Errorf("resolve path %q: %w", path, err)
	}
	reg, err := deps.Store.Load()
	if err != nil {
		return nil, "", err
	}
	rec, ok := reg.FindByPath(abs)
	switch {
	case ok && (rec.Path == abs || !explicit):
		return rec, rec.Path, nil
	case explicit:
		return nil, abs, nil
	}
	if root, err := project.FindRoot(abs); err == nil {
		return nil, root, nil
	}
	return nil, abs, nil
}

// cacheScore stores score on the named record.
func cacheScore(cmd *cobra.Command, name string, score int) error {
	return deps.Store.Update(cmd.Context(), func(reg *registry.Registry) error {
		rec, err := reg.Get(name)
		if err != nil {
			return err
		}
		rec.SetScore(score)
		return nil
	})
}

func renderValidate(cmd *cobra.Command, root string, out validateOutput) {
	t := deps.Theme
	title := root
	if out.Project != "" {
		title = out.Project
	}
	pairs := [][2]string{{"path", root}, {"threshold", fmt.Sprint(out.Threshold)}}
	if out.Repair != nil {
		pairs = append(pairs, [2]string{"repaired", joinOr(out.Repair.Installed, "nothing")})
		for _, f := range out.Repair.Failures {
			pairs = append(pairs, [2]string{"failed", f.ComponentID + ": " + f.Reason})
		}
	}
	lines := append(t.KeyValues(pairs...), validationLines(out.Validation)...)
	if out.Passes {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), t.SuccessCard(title, lines...))
		return
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), t.ErrorCard(title, lines...))
	if out.Repair == nil && len(out.Validation.Gaps) > 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), t.Muted().Render("Run with --fix to install missing components."))
	}
}
