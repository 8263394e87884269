package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/hook"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/registry"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/rules"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/switcher"
)

// ErrNoActiveProject indicates a command needs an active project.
var ErrNoActiveProject = errors.New("no project is active")

func newSuggestCmd() *cobra.Command {
	var (
		project     string
		files       []string
		dir         string
		projectType string
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "suggest <prompt...>",
		Short: "Rank the active project's skills for a prompt",
		Long: `Suggest runs the skill matcher the prompt hook uses, without throttling
and without touching the hook's throttle state. File, directory and project
type signals can be supplied explicitly.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := suggestTarget(project)
			if err != nil {
				return err
			}

			session := rules.NewSession(deps.Settings.Matcher.TopK, deps.Logger)
			session.SetClock(deps.Now)
			if _, err := switcher.LoadProject(session, rec, deps.Settings.Matcher.DefaultThrottle); err != nil {
				return err
			}

			if dir == "" {
				dir = workingDir()
			}
			abs := make([]string, len(files))
			for i, f := range files {
				if abs[i], err = filepath.Abs(f); err != nil {
					abs[i] = f
				}
			}
			req := hook.BuildRequest(rec, strings.Join(args, " "), dir, abs)
			if projectType != "" {
				req.ProjectType = projectType
			}

			suggestions := session.Suggest(req)
			if suggestions == nil {
				suggestions = []rules.Suggestion{}
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), suggestions)
			}

			w := cmd.OutOrStdout()
			if len(suggestions) == 0 {
				_, _ = fmt.Fprintln(w, deps.Theme.Muted().Render("No skills matched."))
				return nil
			}
			_, _ = fmt.Fprintln(w, hook.FormatSuggestions(rec.Name, suggestions))
			return nil
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "rank against this project instead of the active one")
	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "open file path (repeatable)")
	cmd.Flags().StringVar(&dir, "dir", "", "current directory signal (default: working directory)")
	cmd.Flags().StringVarP(&projectType, "type", "t", "", "project type signal (default: from metadata)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print suggestions as JSON")
	return cmd
}

// suggestTarget returns the named record, or the active one.
func suggestTarget(name string) (*registry.ProjectRecord, error) {
	if name != "" {
		return deps.Store.Get(name)
	}
	reg, err := deps.Store.Load()
	if err != nil {
		return nil, err
	}
	rec, ok := reg.Active()
	if !ok {
		return nil, fmt.Errorf("%w; pass --project or run: orchestrator switch <name>", ErrNoActiveProject)
	}
	return rec, nil
}
