package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/crewkit/crewkit/internal/identity"
	"github.com/crewkit/crewkit/internal/state"
	"github.com/crewkit/crewkit/internal/style"
	"github.com/crewkit/crewkit/internal/version"
)

var enableProject bool

var enableCmd = &cobra.Command{
	Use:     "enable",
	GroupID: GroupConfig,
	Short:   "Enable context capture",
	Long: `Enable the kit globally.

When enabled, hooks capture tool activity into the record store and
inject prior context at session start.

--project re-enables just the current project by removing its
` + identity.DisableMarker + ` marker.

Environment overrides:
  CREWKIT_DISABLED=1  - disable for the current session only
  CREWKIT_ENABLED=1   - enable for the current session only`,
	Args: cobra.NoArgs,
	RunE: runEnable,
}

var disableProject bool

var disableCmd = &cobra.Command{
	Use:     "disable",
	GroupID: GroupConfig,
	Short:   "Disable context capture",
	Long: `Disable the kit globally; hooks become no-ops but stay wired.

--project disables just the current project by writing a
` + identity.DisableMarker + ` marker at its root. Hooks check for the
marker in every parent directory, so the whole subtree goes quiet.`,
	Args: cobra.NoArgs,
	RunE: runDisable,
}

func init() {
	enableCmd.Flags().BoolVar(&enableProject, "project", false, "re-enable the current project only")
	disableCmd.Flags().BoolVar(&disableProject, "project", false, "disable the current project only")

	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)
}

// markerPath is where the per-project disable marker lives: the project
// root when there is one, the working directory otherwise.
func markerPath() (string, error) {
	root, err := findProjectRoot()
	if err != nil {
		root, err = os.Getwd()
		if err != nil {
			return "", err
		}
	}
	return filepath.Join(root, identity.DisableMarker), nil
}

func runEnable(cmd *cobra.Command, args []string) error {
	if enableProject {
		marker, err := markerPath()
		if err != nil {
			return err
		}
		if err := os.Remove(marker); err != nil {
			if os.IsNotExist(err) {
				fmt.Printf("%s project not disabled (no %s)\n", style.SuccessPrefix, marker)
				return nil
			}
			return err
		}
		fmt.Printf("%s removed %s\n", style.SuccessPrefix, marker)
		return nil
	}

	if err := state.Enable(version.Version); err != nil {
		return fmt.Errorf("enabling kit: %w", err)
	}
	fmt.Printf("%s crewkit enabled\n", style.SuccessPrefix)
	fmt.Println()
	fmt.Println("Hooks will now:")
	fmt.Println("  • Persist tool activity into the record store")
	fmt.Println("  • Inject prior context at session start")
	fmt.Println("  • Write a handoff before context compaction")
	fmt.Println()
	fmt.Printf("Use %s to turn capture off again\n", style.Dim.Render("ck disable"))
	return nil
}

func runDisable(cmd *cobra.Command, args []string) error {
	if disableProject {
		marker, err := markerPath()
		if err != nil {
			return err
		}
		if err := os.WriteFile(marker, []byte{}, 0644); err != nil {
			return fmt.Errorf("writing marker: %w", err)
		}
		fmt.Printf("%s wrote %s\n", style.SuccessPrefix, marker)
		fmt.Println("Hooks stay quiet anywhere under this directory")
		return nil
	}

	if err := state.Disable(); err != nil {
		return fmt.Errorf("disabling kit: %w", err)
	}
	fmt.Printf("%s crewkit disabled\n", style.SuccessPrefix)
	fmt.Printf("Hooks stay wired but do nothing; %s turns capture back on\n",
		style.Dim.Render("ck enable"))
	return nil
}
