package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/registry"
)

func newPruneCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove registry entries whose project directory is gone",
		Long: `Prune removes every project whose path no longer exists or no longer
contains a .claude directory. Project files are never touched. Pruning the
active project leaves no project active.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			t := deps.Theme

			var removed []string
			if dryRun {
				reg, err := deps.Store.Load()
				if err != nil {
					return err
				}
				for _, rec := range reg.Stale() {
					_, _ = fmt.Fprintf(w, "%s would remove %s %s\n", t.SymWarning(), rec.Name, t.Muted().Render("("+string(rec.State())+": "+rec.Path+")"))
					removed = append(removed, rec.Name)
				}
			} else {
				err := deps.Store.Update(cmd.Context(), func(reg *registry.Registry) error {
					removed = reg.Prune()
					return nil
				})
				if err != nil {
					return err
				}
				for _, name := range removed {
					_, _ = fmt.Fprintf(w, "%s removed %s\n", t.SymSuccess(), name)
				}
				if len(removed) > 0 {
					deps.Logger.Info("stale projects pruned", "projects", removed)
				}
			}

			if len(removed) == 0 {
				_, _ = fmt.Fprintln(w, t.Muted().Render("No stale projects."))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list stale projects without removing them")
	return cmd
}
