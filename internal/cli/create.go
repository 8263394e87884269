package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/registry"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/structure"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/switcher"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/template"
)

func newCreateCmd() *cobra.Command {
	var (
		projectType string
		description string
		list        bool
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "create <name> [path]",
		Short: "Scaffold a .claude structure from templates and register it",
		Long: `Create writes the full component set into path (default: ./<name>),
keeping any file that already exists, and registers the result. With
--list-templates it prints the files a scaffold writes and exits.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if list {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.RangeArgs(1, 2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if list {
				return listTemplates(cmd, asJSON)
			}
			name := args[0]
			if err := registry.ValidateName(name); err != nil {
				return err
			}
			path := name
			if len(args) == 2 {
				path = args[1]
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("resolve path %q: %w", path, err)
			}
			if err := os.MkdirAll(abs, 0o755); err != nil {
				return fmt.Errorf("create project directory: %w", err)
			}
			md := deps.projectMetadata(abs, projectType)
			projectType, _ = md["project_type"].(string)

			tmplCtx := template.NewTemplateContext(
				template.WithProject(name, abs),
				template.WithProjectType(projectType),
				template.WithDescription(description),
				template.WithStructureVersion(structure.Version),
				template.WithHookCommand(deps.Settings.Hook.Command),
				template.WithCreatedAt(deps.Now()),
			)
			report, err := deps.Deployer.Deploy(cmd.Context(), abs, tmplCtx)
			if err != nil {
				return fmt.Errorf("scaffold %s: %w", abs, err)
			}
			deps.Logger.Debug("templates deployed", "project", name, "written", len(report.Written), "skipped", len(report.Skipped))
			if !asJSON && len(report.Skipped) > 0 {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%s kept %d existing file(s)\n", deps.Theme.SymWarning(), len(report.Skipped))
			}

			return runRegister(cmd, switcher.RegisterRequest{
				Name:      name,
				Path:      abs,
				Threshold: deps.Settings.Validation.Threshold,
				Metadata:  md,
			}, asJSON)
		},
	}
	cmd.Flags().StringVarP(&projectType, "type", "t", "", "project type, e.g. web-app or api (default: detected)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "one-line project description")
	cmd.Flags().BoolVar(&list, "list-templates", false, "print the files a scaffold writes and exit")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the registration outcome as JSON")
	return cmd
}

// listTemplates prints each scaffolded file with the catalog component it
// satisfies.
func listTemplates(cmd *cobra.Command, asJSON bool) error {
	paths := deps.Deployer.ListTemplates()
	if asJSON {
		return writeJSON(cmd.OutOrStdout(), paths)
	}
	owners := make(map[string]string)
	for _, c := range structure.Catalog() {
		if c.Template != "" {
			owners[template.TargetPath(c.Template)] = c.ID
		}
	}
	w := cmd.OutOrStdout()
	for _, p := range paths {
		line := p
		if id, ok := owners[p]; ok {
			line += " " + deps.Theme.Muted().Render("("+id+")")
		}
		_, _ = fmt.Fprintln(w, line)
	}
	return nil
}
