package cli

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/history"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/switcher"
)

func newHistoryCmd() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history [project]",
		Short: "Show recent context switches",
		Long: `History lists switch attempts newest first, including refused ones and
the reason they failed. Pass a project name to see only switches to it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var project string
			if len(args) == 1 {
				project = args[0]
			}
			h, err := deps.EnsureHistory()
			if err != nil {
				return err
			}
			entries, err := h.List(cmd.Context(), project, limit)
			if err != nil {
				return err
			}
			if entries == nil {
				entries = []history.Entry{}
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			renderHistory(cmd, entries)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", history.DefaultLimit, "maximum number of entries")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print entries as JSON")
	return cmd
}

func renderHistory(cmd *cobra.Command, entries []history.Entry) {
	w := cmd.OutOrStdout()
	t := deps.Theme
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(w, t.Muted().Render("No switches recorded yet."))
		return
	}

	rows := make([][]string, len(entries))
	for i, e := range entries {
		from := e.From
		if from == "" {
			from = "-"
		}
		score := "-"
		if e.Score != nil {
			score = fmt.Sprintf("%.2f", *e.Score)
		}
		rows[i] = []string{
			e.StartedAt.Local().Format(time.DateTime),
			from + " → " + e.To,
			e.State,
			score,
			e.Duration.Round(time.Millisecond).String(),
			e.Reason,
		}
	}
	_, _ = fmt.Fprintln(w, t.Table(
		[]string{"STARTED", "SWITCH", "STATE", "SCORE", "TOOK", "REASON"},
		rows,
		func(row int) lipgloss.Style {
			if entries[row].State == switcher.Failed.String() {
				return t.Error()
			}
			return lipgloss.NewStyle()
		},
	))
}
