// Package cmd provides CLI commands for the ck tool.
package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crewkit/crewkit/internal/version"
)

var rootCmd = &cobra.Command{
	Use:     "ck",
	Short:   "crewkit - context capture and crew orchestration for coding agents",
	Version: version.Version,
	Long: `crewkit (ck) gives coding agents a memory and a crew.

The capture side persists tool activity, discoveries, and session
summaries into a shared record store via host hooks, then injects the
relevant slice back at session start. The crew side provisions one git
worktree per teammate and keeps merge, health, and cleanup under the
operator's control.`,
}

// Execute runs the root command and returns an exit code.
// The caller (main) should call os.Exit with this code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		// Scripting commands signal status through the exit code alone.
		if code, ok := IsSilentExit(err); ok {
			return code
		}
		// Other errors already printed by cobra.
		return 1
	}
	return 0
}

// Command group IDs - used by subcommands to organize help output.
const (
	GroupContext = "context"
	GroupCrew    = "crew"
	GroupHooks   = "hooks"
	GroupConfig  = "config"
	GroupDiag    = "diag"
)

func init() {
	// Enable prefix matching for subcommands (e.g., "ck cr st" -> "ck crew start").
	cobra.EnablePrefixMatching = true

	// Define command groups (order determines help output order).
	rootCmd.AddGroup(
		&cobra.Group{ID: GroupContext, Title: "Context:"},
		&cobra.Group{ID: GroupCrew, Title: "Crew:"},
		&cobra.Group{ID: GroupHooks, Title: "Hooks:"},
		&cobra.Group{ID: GroupConfig, Title: "Configuration:"},
		&cobra.Group{ID: GroupDiag, Title: "Diagnostics:"},
	)

	rootCmd.SetHelpCommandGroupID(GroupDiag)
	rootCmd.SetCompletionCommandGroupID(GroupConfig)
}

// SilentExitError carries an exit code through cobra without printing
// anything. Hook commands use it: their contract is stdout/stderr shapes
// plus an exit code, never cobra error text.
type SilentExitError struct {
	Code int
}

func (e *SilentExitError) Error() string {
	return fmt.Sprintf("silent exit %d", e.Code)
}

// NewSilentExit returns an error that makes Execute exit with code
// without printing. Cobra consults the silence flags only after RunE
// returns, so flipping them here is enough.
func NewSilentExit(code int) error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return &SilentExitError{Code: code}
}

// IsSilentExit reports whether err (anywhere in its chain) requests a
// silent exit, and with which code.
func IsSilentExit(err error) (int, bool) {
	var se *SilentExitError
	if errors.As(err, &se) {
		return se.Code, true
	}
	return 0, false
}

// buildCommandPath walks the command hierarchy to build the full command
// path, e.g. "ck crew start".
func buildCommandPath(cmd *cobra.Command) string {
	var parts []string
	for c := cmd; c != nil; c = c.Parent() {
		parts = append([]string{c.Name()}, parts...)
	}
	return strings.Join(parts, " ")
}

// requireSubcommand returns a RunE for parent commands that need a
// subcommand. Without it, cobra silently shows help and exits 0 for
// unknown subcommands like "ck crew foobar", masking errors.
func requireSubcommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("requires a subcommand\n\nRun '%s --help' for usage", buildCommandPath(cmd))
	}
	return fmt.Errorf("unknown command %q for %q\n\nRun '%s --help' for available commands",
		args[0], buildCommandPath(cmd), buildCommandPath(cmd))
}
