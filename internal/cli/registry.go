package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newRegistryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect and restore registry backups",
		Long: `Every registry write first copies the previous file into the backups
directory next to it. These commands list those copies and restore one.`,
	}
	cmd.AddCommand(newRegistryBackupsCmd(), newRegistryRestoreCmd())
	return cmd
}

func newRegistryBackupsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "backups",
		Short: "List registry backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			backups, err := deps.Store.Backups()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if asJSON {
				type backupJSON struct {
					Name    string    `json:"name"`
					Path    string    `json:"path"`
					TakenAt time.Time `json:"taken_at"`
					Size    int64     `json:"size"`
				}
				out := make([]backupJSON, len(backups))
				for i, b := range backups {
					out[i] = backupJSON(b)
				}
				return writeJSON(w, out)
			}

			t := deps.Theme
			if len(backups) == 0 {
				_, _ = fmt.Fprintln(w, t.Muted().Render("No registry backups in "+deps.Store.BackupDir()))
				return nil
			}
			rows := make([][]string, len(backups))
			for i, b := range backups {
				rows[i] = []string{b.Name, b.TakenAt.Local().Format(time.DateTime), fmt.Sprintf("%d B", b.Size)}
			}
			_, _ = fmt.Fprintln(w, t.Table([]string{"BACKUP", "TAKEN", "SIZE"}, rows, nil))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print backups as JSON")
	return cmd
}

func newRegistryRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <backup>",
		Short: "Replace the registry with a backup",
		Long: `Restore validates the named backup and atomically replaces the registry
with it. The current registry is backed up first, so a restore can itself
be undone.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := deps.Store.Restore(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s restored %s\n", deps.Theme.SymSuccess(), args[0])
			return nil
		},
	}
}
