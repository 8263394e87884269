package cli

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/registry"
)

// listEntry is the JSON shape of one listed project.
type listEntry struct {
	Name         string                `json:"name"`
	Path         string                `json:"path"`
	Active       bool                  `json:"active"`
	State        registry.ProjectState `json:"state"`
	Score        *int                  `json:"score"`
	CreatedAt    time.Time             `json:"created_at"`
	LastActiveAt *time.Time            `json:"last_active_at"`
	Metadata     map[string]any        `json:"metadata,omitempty"`
}

type listOutput struct {
	ActiveProject string      `json:"active_project"`
	Projects      []listEntry `json:"projects"`
}

func newListCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List registered projects",
		Long: `List shows every registered project with its cached structure score and
when it was last active. Projects whose directory vanished or lost its
.claude root are flagged; remove them with "orchestrator prune".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := deps.Store.Load()
			if err != nil {
				return err
			}
			out := listOutput{ActiveProject: reg.ActiveProject, Projects: []listEntry{}}
			for _, rec := range reg.Records() {
				out.Projects = append(out.Projects, listEntry{
					Name:         rec.Name,
					Path:         rec.Path,
					Active:       rec.Name == reg.ActiveProject,
					State:        rec.State(),
					Score:        rec.Score,
					CreatedAt:    rec.CreatedAt,
					LastActiveAt: rec.LastActiveAt,
					Metadata:     rec.Metadata,
				})
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			renderList(cmd, out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print projects as JSON")
	return cmd
}

func renderList(cmd *cobra.Command, out listOutput) {
	w := cmd.OutOrStdout()
	t := deps.Theme
	if len(out.Projects) == 0 {
		_, _ = fmt.Fprintln(w, t.Muted().Render("No projects registered. Run: orchestrator register <path>"))
		return
	}

	now := deps.Now()
	rows := make([][]string, 0, len(out.Projects))
	stale := 0
	for _, p := range out.Projects {
		marker := " "
		if p.Active {
			marker = t.SymActive()
		}
		state := string(p.State)
		if p.State.Stale() {
			stale++
			state = t.SymWarning() + " " + state
		}
		score := "-"
		if p.Score != nil {
			score = fmt.Sprint(*p.Score)
		}
		rows = append(rows, []string{marker, p.Name, score, state, ago(p.LastActiveAt, now), p.Path})
	}

	_, _ = fmt.Fprintln(w, t.Table(
		[]string{"", "NAME", "SCORE", "STATE", "LAST ACTIVE", "PATH"},
		rows,
		func(row int) lipgloss.Style {
			if out.Projects[row].Active {
				return t.Primary()
			}
			return lipgloss.NewStyle()
		},
	))
	if stale > 0 {
		_, _ = fmt.Fprintln(w, t.Muted().Render(fmt.Sprintf("%d stale project(s). Run: orchestrator prune", stale)))
	}
}
