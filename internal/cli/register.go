package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/registry"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/switcher"
)

func newRegisterCmd() *cobra.Command {
	var (
		gate        gateFlags
		name        string
		projectType string
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "register [path]",
		Short: "Validate a project directory and add it to the registry",
		Long: `Register validates the .claude structure under path (default: the current
directory) and adds the project only when its score reaches the threshold.
Missing components are installed first unless --no-auto-repair is given.
Registering an existing name updates its path and score.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			threshold, autoRepair, err := gate.resolve()
			if err != nil {
				return err
			}
			path := "."
			if len(args) == 1 {
				path = args[0]
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("resolve path %q: %w", path, err)
			}
			if name == "" {
				name = registry.Slugify(filepath.Base(abs))
			}
			return runRegister(cmd, switcher.RegisterRequest{
				Name:       name,
				Path:       abs,
				Threshold:  threshold,
				AutoRepair: autoRepair,
				Metadata:   deps.projectMetadata(abs, projectType),
			}, asJSON)
		},
	}
	gate.register(cmd)
	cmd.Flags().StringVarP(&name, "name", "n", "", "project name (default: slug of the directory name)")
	cmd.Flags().StringVar(&projectType, "type", "", "project type recorded in the registry metadata (default: detected)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the registration outcome as JSON")
	return cmd
}

// runRegister registers req and renders the outcome. A refusal exits 1.
func runRegister(cmd *cobra.Command, req switcher.RegisterRequest, asJSON bool) error {
	step, finish := repairTracker("Repairing", asJSON)
	req.Progress = step
	out, err := deps.Switcher.Register(cmd.Context(), req)
	finish()

	if asJSON && out != nil {
		if jerr := writeJSON(cmd.OutOrStdout(), out); jerr != nil {
			return jerr
		}
	}
	if err != nil {
		return withCode(ExitFailure, err)
	}
	if asJSON {
		return nil
	}

	t := deps.Theme
	verb := "Registered"
	if out.Updated {
		verb = "Updated"
	}
	pairs := [][2]string{{"path", out.Record.Path}}
	if out.Repair != nil {
		pairs = append(pairs, [2]string{"repaired", joinOr(out.Repair.Installed, "nothing")})
	}
	lines := t.KeyValues(pairs...)
	lines = append(lines, validationLines(out.Validation)...)
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), t.SuccessCard(verb+" "+out.Record.Name, lines...))
	return nil
}
