package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/defs"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/hook"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/registry"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/ui"
)

// currentOutput is the JSON shape of the current command.
type currentOutput struct {
	Project      string                `json:"project"`
	Path         string                `json:"path,omitempty"`
	State        registry.ProjectState `json:"state,omitempty"`
	Score        *int                  `json:"score,omitempty"`
	LastActiveAt *time.Time            `json:"last_active_at,omitempty"`
	Mismatch     string                `json:"mismatch,omitempty"`
}

func newCurrentCmd() *cobra.Command {
	var (
		verbose bool
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "current",
		Short: "Show the active project",
		Long: `Current prints the active project and warns when the working directory
belongs to a different registered project. With --verbose the project's
context file is rendered as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := deps.Store.Load()
			if err != nil {
				return err
			}
			out := currentOutput{Mismatch: hook.MismatchWarning(reg, workingDir())}
			rec, ok := reg.Active()
			if ok {
				out.Project = rec.Name
				out.Path = rec.Path
				out.State = rec.State()
				out.Score = rec.Score
				out.LastActiveAt = rec.LastActiveAt
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), out)
			}

			w := cmd.OutOrStdout()
			t := deps.Theme
			if out.Mismatch != "" {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), t.SymWarning()+" "+out.Mismatch)
			}
			if !ok {
				_, _ = fmt.Fprintln(w, t.Muted().Render("No project is active. Run: orchestrator switch <name>"))
				return nil
			}

			pairs := [][2]string{
				{"path", rec.Path},
				{"score", scoreText(rec)},
				{"state", string(out.State)},
				{"last active", ago(rec.LastActiveAt, deps.Now())},
			}
			_, _ = fmt.Fprintln(w, t.Card(t.SymActive()+" "+rec.Name, t.KeyValues(pairs...)...))

			if verbose {
				doc, err := renderContextFile(t, rec.Path)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprint(w, doc)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "render the project's context file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the active project as JSON")
	return cmd
}

// renderContextFile renders the project's CLAUDE.md for the terminal.
func renderContextFile(t *ui.Theme, root string) (string, error) {
	p := filepath.Join(root, defs.ConfigDir, defs.ClaudeMD)
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return t.Muted().Render("(no "+filepath.Join(defs.ConfigDir, defs.ClaudeMD)+")") + "\n", nil
	}
	if err != nil {
		return "", fmt.Errorf("read context file: %w", err)
	}
	if deps.Headless.IsHeadless() {
		return string(data), nil
	}
	out, err := t.RenderMarkdown(string(data), ui.DefaultWrap)
	if err != nil {
		deps.Logger.Debug("markdown render failed", "error", err)
		return string(data), nil
	}
	return out, nil
}
