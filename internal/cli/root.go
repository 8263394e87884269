package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/config"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/switcher"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/pkg/version"
)

// Persistent flag names.
const (
	flagHome      = "home"
	flagLogLevel  = "log-level"
	flagLogFormat = "log-format"
	flagNoColor   = "no-color"
)

// newRootCmd builds the command tree. Settings are resolved from flags,
// ORCHESTRATOR_* variables and $ORCHESTRATOR_HOME/config.yaml before any
// subcommand runs.
func newRootCmd() *cobra.Command {
	v := config.NewViper()
	var noColor bool

	rootCmd := &cobra.Command{
		Use:   "orchestrator",
		Short: "Switch Claude Code context between registered projects",
		Long: `orchestrator keeps a registry of Claude Code projects and activates
exactly one at a time. Before a project becomes active its .claude
structure is validated and, when allowed, repaired from templates. The
active project's skill rules drive suggestions injected by the
user-prompt-submit hook.`,
		Version:       version.GetVersion(),
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initDeps(cmd, v, noColor)
		},
	}
	rootCmd.SetVersionTemplate(fmt.Sprintf("orchestrator %s\n", version.GetFullVersion()))

	flags := rootCmd.PersistentFlags()
	flags.String(flagHome, "", "orchestrator home directory (default ~/.claude/orchestrator)")
	flags.String(flagLogLevel, "", "log level: debug, info, warn, error")
	flags.String(flagLogFormat, "", "log format: text or json")
	flags.BoolVar(&noColor, flagNoColor, false, "disable colored output")
	_ = v.BindPFlag(config.KeyHome, flags.Lookup(flagHome))
	_ = v.BindPFlag(config.KeyLogLevel, flags.Lookup(flagLogLevel))
	_ = v.BindPFlag(config.KeyLogFormat, flags.Lookup(flagLogFormat))

	rootCmd.AddCommand(
		newSwitchCmd(),
		newListCmd(),
		newRegisterCmd(),
		newCreateCmd(),
		newRemoveCmd(),
		newValidateCmd(),
		newCurrentCmd(),
		newPruneCmd(),
		newHistoryCmd(),
		newRegistryCmd(),
		newSuggestCmd(),
		newSkillCmd(),
		newHookCmd(v),
	)
	return rootCmd
}

// initDeps wires the global dependencies unless a test already set them.
func initDeps(cmd *cobra.Command, v *viper.Viper, noColor bool) error {
	if deps != nil {
		return nil
	}
	settings, err := config.Load(v)
	if err != nil {
		return err
	}
	d, err := InitDependencies(settings, newLogger(cmd.ErrOrStderr(), settings.Log), noColor)
	if err != nil {
		return err
	}
	deps = d
	return nil
}

// @MX:ANCHOR: [AUTO] Execute is the main entry point for the orchestrator CLI
// @MX:REASON: [AUTO] called from cmd/orchestrator/main.go; its error drives the exit code
// Execute builds the command tree, runs it and reports any error on stderr.
// Pass the result to ExitCode for the process status.
func Execute() error {
	return execute(newRootCmd())
}

func execute(cmd *cobra.Command) error {
	err := cmd.Execute()
	if deps != nil {
		if cerr := deps.Close(); cerr != nil && deps.Logger != nil {
			deps.Logger.Warn("failed to close history database", "error", cerr)
		}
	}
	if err != nil {
		printError(cmd.ErrOrStderr(), err)
	}
	return err
}

// printError writes err, any refusal gaps and the remediation hint.
func printError(w io.Writer, err error) {
	symErr, muted := "error:", func(s string) string { return s }
	if deps != nil && deps.Theme != nil {
		symErr = deps.Theme.SymError()
		muted = func(s string) string { return deps.Theme.Muted().Render(s) }
	}

	_, _ = fmt.Fprintf(w, "%s %s\n", symErr, err)

	var refusal *switcher.RefusalError
	if errors.As(err, &refusal) && len(refusal.Gaps) > 0 {
		for _, g := range refusal.Gaps {
			_, _ = fmt.Fprintf(w, "  - %-9s %-13s %s\n", g.Tier, g.ID, muted(g.Reason))
		}
		if refusal.Repair != nil {
			for _, f := range refusal.Repair.Failures {
				_, _ = fmt.Fprintf(w, "  repair failed for %s: %s\n", f.ComponentID, muted(f.Reason))
			}
		}
	}
	if hint := remediation(err); hint != "" {
		_, _ = fmt.Fprintf(w, "%s %s\n", muted("hint:"), hint)
	}
}

// joinOr returns the joined items, or fallback when there are none.
func joinOr(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	return strings.Join(items, ", ")
}
