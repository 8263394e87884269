package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/registry"
)

// ErrActiveProject indicates an attempt to remove the active project
// without --force.
var ErrActiveProject = errors.New("project is active")

func newRemoveCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Remove a project from the registry",
		Long: `Remove deletes the registry entry only; project files are never touched.
Removing the active project requires --force and leaves no project active.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			reg, err := deps.Store.Load()
			if err != nil {
				return err
			}
			if _, err := reg.Get(name); err != nil {
				return err
			}
			if reg.ActiveProject == name && !force {
				ok, perr := deps.Prompt.Confirm(fmt.Sprintf("%s is the active project. Remove it anyway?", name), false)
				if perr != nil {
					return perr
				}
				if !ok {
					return fmt.Errorf("%w: %s; pass --force to remove it", ErrActiveProject, name)
				}
			}

			wasActive := false
			err = deps.Store.Update(cmd.Context(), func(reg *registry.Registry) error {
				wasActive = reg.ActiveProject == name
				return reg.Remove(name)
			})
			if err != nil {
				return err
			}
			deps.Logger.Info("project removed", "project", name, "was_active", wasActive)

			msg := deps.Theme.SymSuccess() + " Removed " + name
			if wasActive {
				msg += deps.Theme.Muted().Render(" (no project is active now)")
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "remove even when the project is active")
	return cmd
}
