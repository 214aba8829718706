package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crewkit/crewkit/internal/hooks"
	"github.com/crewkit/crewkit/internal/state"
	"github.com/crewkit/crewkit/internal/style"
)

var hookCmd = &cobra.Command{
	Use:     "hook",
	GroupID: GroupHooks,
	Short:   "Host-invoked event handlers",
	Long: `Hook subcommands are invoked by the host agent runtime, one per
event. Each reads a JSON event from stdin, persists what it can, and
exits 0 no matter what: a broken hook degrades a feature, never the
host session. Failures land in the error log ('ck hook errors').

These are not meant to be run by hand; 'ck install' wires them into the
host's settings.`,
	RunE: requireSubcommand,
}

// hookEvents pairs each wire event name with its handler. The CLI
// spelling is derived, e.g. PreToolUse -> pre-tool-use.
var hookEvents = []struct {
	Event   string
	Handler hooks.Handler
}{
	{"PreToolUse", hooks.PreToolUse},
	{"PostToolUse", hooks.PostToolUse},
	{"SessionStart", hooks.SessionStart},
	{"SessionEnd", hooks.SessionEnd},
	{"PreCompact", hooks.PreCompact},
}

var (
	hookErrorsLimit int
	hookErrorsClear bool
)

var hookErrorsCmd = &cobra.Command{
	Use:   "errors",
	Short: "Show recent hook failures",
	Args:  cobra.NoArgs,
	RunE:  runHookErrors,
}

func init() {
	for _, he := range hookEvents {
		hookCmd.AddCommand(hookEventCommand(he.Event, he.Handler))
	}

	hookErrorsCmd.Flags().IntVar(&hookErrorsLimit, "limit", 20, "maximum entries to show")
	hookErrorsCmd.Flags().BoolVar(&hookErrorsClear, "clear", false, "clear the error log instead of listing it")
	hookCmd.AddCommand(hookErrorsCmd)

	rootCmd.AddCommand(hookCmd)
}

func hookEventCommand(event string, fn hooks.Handler) *cobra.Command {
	return &cobra.Command{
		Use:   hooks.CLIName(event),
		Short: "Handle a " + event + " event from the host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if code := hooks.Run(event, fn, os.Stdin, os.Stdout); code != 0 {
				return NewSilentExit(code)
			}
			return nil
		},
	}
}

func runHookErrors(cmd *cobra.Command, args []string) error {
	elog := hooks.NewErrorLog(state.KitDir())

	if hookErrorsClear {
		if err := elog.ClearErrors(); err != nil {
			return fmt.Errorf("clearing error log: %w", err)
		}
		fmt.Printf("%s hook error log cleared\n", style.SuccessPrefix)
		return nil
	}

	errs, err := elog.GetRecentErrors(hookErrorsLimit)
	if err != nil {
		return fmt.Errorf("reading error log: %w", err)
	}
	if len(errs) == 0 {
		fmt.Printf("%s no recent hook errors\n", style.SuccessPrefix)
		return nil
	}

	fmt.Printf("%d recent hook error(s):\n\n", len(errs))
	for _, e := range errs {
		count := ""
		if e.Count > 1 {
			count = fmt.Sprintf(" (x%d)", e.Count)
		}
		fmt.Printf("  %s %s %s exit %d%s\n",
			style.ErrorPrefix,
			e.Timestamp.Local().Format("Jan 02 15:04"),
			style.Bold.Render(e.HookType),
			e.ExitCode, count)
		if e.Stderr != "" {
			fmt.Printf("      %s\n", style.Dim.Render(e.Stderr))
		}
	}
	fmt.Println()
	fmt.Printf("Clear with %s once the cause is fixed\n", style.Dim.Render("ck hook errors --clear"))
	return nil
}
