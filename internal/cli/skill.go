package cli

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/registry"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/rules"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/switcher"
)

// ErrUnknownSkill indicates a skill id that is not in the active project's
// rule set.
var ErrUnknownSkill = errors.New("unknown skill")

func newSkillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skill",
		Short: "Manage the active project's active skills",
		Long: `Active skills are left out of prompt suggestions until the project is
switched away. The prompt hook activates a skill when a prompt invokes it as
a slash command; these commands do the same by hand.`,
	}
	cmd.AddCommand(newSkillListCmd(), newSkillActivateCmd(true), newSkillActivateCmd(false))
	return cmd
}

func newSkillListCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "active",
		Short: "List active skills",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, rec, err := loadSkillSession()
			if err != nil {
				return err
			}
			active := session.ActiveSkills()
			if asJSON {
				if active == nil {
					active = []string{}
				}
				return writeJSON(cmd.OutOrStdout(), active)
			}
			w := cmd.OutOrStdout()
			if len(active) == 0 {
				_, _ = fmt.Fprintln(w, deps.Theme.Muted().Render("No active skills in "+rec.Name+"."))
				return nil
			}
			for _, id := range active {
				_, _ = fmt.Fprintln(w, deps.Theme.SymActive()+" "+id)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print active skills as JSON")
	return cmd
}

func newSkillActivateCmd(activate bool) *cobra.Command {
	use, short, verb := "activate", "Mark a skill active", "activated"
	if !activate {
		use, short, verb = "deactivate", "Clear a skill's active mark", "deactivated"
	}
	return &cobra.Command{
		Use:   use + " <skill-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, rec, err := loadSkillSession()
			if err != nil {
				return err
			}
			id := strings.ToLower(args[0])
			known := session.Rules().SkillIDs()
			if !slices.Contains(known, id) {
				err := fmt.Errorf("%w %q in project %s", ErrUnknownSkill, id, rec.Name)
				if similar := registry.Suggest(id, known); len(similar) > 0 {
					err = fmt.Errorf("%w; did you mean: %s", err, strings.Join(similar, ", "))
				}
				return err
			}

			if activate {
				session.Activate(id)
			} else {
				session.Deactivate(id)
			}
			if err := switcher.WriteThrottle(deps.Settings.Home, session.ThrottleState()); err != nil {
				return fmt.Errorf("save skill state: %w", err)
			}
			deps.Logger.Info("skill "+verb, "project", rec.Name, "skill", id)
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), deps.Theme.SymSuccess()+" "+id+" "+verb)
			return nil
		},
	}
}

// loadSkillSession loads the active project's rules together with the
// state the prompt hook persisted for it.
func loadSkillSession() (*rules.Session, *registry.ProjectRecord, error) {
	rec, err := suggestTarget("")
	if err != nil {
		return nil, nil, err
	}
	session := rules.NewSession(deps.Settings.Matcher.TopK, deps.Logger)
	session.SetClock(deps.Now)
	if _, err := switcher.LoadProject(session, rec, deps.Settings.Matcher.DefaultThrottle); err != nil {
		return nil, nil, err
	}
	ts, err := switcher.ReadThrottle(deps.Settings.Home)
	if err != nil {
		deps.Logger.Warn("ignoring unreadable throttle state", "error", err)
		return session, rec, nil
	}
	session.RestoreThrottle(ts)
	return session, rec, nil
}
