package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/config"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/hook"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/statusline"
)

// newHookCmd builds the entry points invoked by Claude Code. They read the
// payload from stdin and always exit 0: event hooks degrade to {} and the
// statusline to a bare label on any failure.
func newHookCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:    "hook",
		Short:  "Claude Code hook entry points",
		Hidden: true,
		// Dependencies are wired per event so that failures stay silent.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	}
	cmd.AddCommand(
		newHookEventCmd(v, "user-prompt-submit", hook.EventUserPromptSubmit,
			"Inject skill suggestions for the submitted prompt"),
		newHookEventCmd(v, "session-start", hook.EventSessionStart,
			"Warn when the session starts outside the active project"),
		newStatuslineCmd(v),
	)
	return cmd
}

func newStatuslineCmd(v *viper.Viper) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "statusline",
		Short: "Print the Claude Code status line for the active project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			line := statusline.Fallback
			if d, err := hookDeps(v, cmd.ErrOrStderr()); err == nil {
				line = statusline.New(statusline.Options{
					Store:     d.Store,
					Mode:      statusline.Mode(mode),
					Threshold: d.Settings.Validation.Threshold,
					NoColor:   d.Theme.NoColor,
					Logger:    d.Logger,
				}).Build(cmd.InOrStdin())
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), line)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(statusline.ModeDefault), "minimal, default or verbose")
	return cmd
}

// hookDeps wires the dependencies for a hook process, logging only at
// debug level.
func hookDeps(v *viper.Viper, errOut io.Writer) (*Dependencies, error) {
	if deps != nil {
		return deps, nil
	}
	settings, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	d, err := InitDependencies(settings, hookLogger(errOut), false)
	if err != nil {
		return nil, err
	}
	deps = d
	return d, nil
}

func newHookEventCmd(v *viper.Viper, use string, event hook.EventType, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runHook(cmd.Context(), v, event, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
			return nil
		},
	}
}

// @MX:WARN: [AUTO] runHook must never return an error or exit non-zero
// @MX:REASON: [AUTO] Claude Code blocks the prompt when the hook fails
func runHook(ctx context.Context, v *viper.Viper, event hook.EventType, in io.Reader, out, errOut io.Writer) {
	protocol := hook.NewProtocol()
	defer func() {
		if r := recover(); r != nil {
			_ = protocol.WriteOutput(out, nil)
		}
	}()
	if ctx == nil {
		ctx = context.Background()
	}

	d, err := hookDeps(v, errOut)
	if err != nil {
		hookLogger(errOut).Debug("hook initialization failed", "error", err)
		_ = protocol.WriteOutput(out, nil)
		return
	}
	logger := d.Logger

	input, err := d.HookProtocol.ReadInput(in)
	if err != nil {
		logger.Debug("hook input rejected", "event", string(event), "error", err)
		_ = protocol.WriteOutput(out, nil)
		return
	}
	if input.HookEventName == "" {
		input.HookEventName = string(event)
	}

	output := d.HookRegistry.Dispatch(ctx, event, input)
	if err := d.HookProtocol.WriteOutput(out, output); err != nil {
		logger.Debug("hook output failed", "error", err)
	}
}
