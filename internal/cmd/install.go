package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/crewkit/crewkit/internal/capsule"
	"github.com/crewkit/crewkit/internal/hooks"
	"github.com/crewkit/crewkit/internal/identity"
	"github.com/crewkit/crewkit/internal/state"
	"github.com/crewkit/crewkit/internal/style"
	"github.com/crewkit/crewkit/internal/version"
)

var installProject bool

var installCmd = &cobra.Command{
	Use:     "install",
	GroupID: GroupHooks,
	Short:   "Wire the kit's hooks into the host settings",
	Long: `Install the kit: wire the five hook commands into the host's
settings.json, create the record store, and enable capture.

Everything already in the settings file is preserved; uninstall removes
exactly what install added. --project writes to <cwd>/.claude/settings.json
instead of the global file.`,
	Args: cobra.NoArgs,
	RunE: runInstall,
}

var uninstallProject bool

var uninstallCmd = &cobra.Command{
	Use:     "uninstall",
	GroupID: GroupHooks,
	Short:   "Remove the kit's hooks from the host settings",
	Long: `Remove every kit-managed hook from the settings file and disable
capture. The record store is kept; captured context survives a
reinstall.`,
	Args: cobra.NoArgs,
	RunE: runUninstall,
}

func init() {
	installCmd.Flags().BoolVar(&installProject, "project", false, "install into the current project's .claude/settings.json")
	uninstallCmd.Flags().BoolVar(&uninstallProject, "project", false, "uninstall from the current project's .claude/settings.json")

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
}

// settingsTarget picks the settings file install and uninstall operate on.
func settingsTarget(project bool) (string, error) {
	if !project {
		return filepath.Join(state.ClaudeDir(), "settings.json"), nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, ".claude", "settings.json"), nil
}

// hookBinary resolves the command hooks should invoke. The absolute
// binary path keeps hooks working when ck is not on the host's PATH.
func hookBinary() string {
	exe, err := os.Executable()
	if err != nil {
		return "ck"
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		return resolved
	}
	return exe
}

func runInstall(cmd *cobra.Command, args []string) error {
	path, err := settingsTarget(installProject)
	if err != nil {
		return err
	}

	changed, err := hooks.Install(path, hookBinary())
	if err != nil {
		return fmt.Errorf("wiring hooks into %s: %w", path, err)
	}
	if changed {
		fmt.Printf("%s wired %d hooks into %s\n", style.SuccessPrefix, len(hooks.EventTypes), path)
	} else {
		fmt.Printf("%s hooks already wired in %s\n", style.SuccessPrefix, path)
	}

	ctx := context.Background()
	store, err := capsule.Open(ctx, identity.StorePath())
	if err != nil {
		return fmt.Errorf("creating record store: %w", err)
	}
	storePath := store.Path()
	store.Close()
	fmt.Printf("%s record store ready at %s\n", style.SuccessPrefix, storePath)

	if err := state.Enable(version.Version); err != nil {
		return fmt.Errorf("enabling kit: %w", err)
	}
	fmt.Printf("%s capture enabled\n", style.SuccessPrefix)

	fmt.Println()
	fmt.Printf("Run %s to verify the setup\n", style.Dim.Render("ck doctor"))
	return nil
}

func runUninstall(cmd *cobra.Command, args []string) error {
	path, err := settingsTarget(uninstallProject)
	if err != nil {
		return err
	}

	changed, err := hooks.Uninstall(path)
	if err != nil {
		return fmt.Errorf("removing hooks from %s: %w", path, err)
	}
	if changed {
		fmt.Printf("%s removed kit hooks from %s\n", style.SuccessPrefix, path)
	} else {
		fmt.Printf("%s no kit hooks in %s\n", style.SuccessPrefix, path)
	}

	if !uninstallProject {
		if err := state.Disable(); err != nil {
			return fmt.Errorf("disabling kit: %w", err)
		}
		fmt.Printf("%s capture disabled\n", style.SuccessPrefix)
	}

	fmt.Println()
	fmt.Printf("The record store at %s was kept; captured context survives a reinstall\n",
		style.Dim.Render(identity.StorePath()))
	return nil
}
