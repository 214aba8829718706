package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crewkit/crewkit/internal/version"
)

var versionJSON bool

var versionCmd = &cobra.Command{
	Use:     "version",
	GroupID: GroupDiag,
	Short:   "Print version information",
	Args:    cobra.NoArgs,
	RunE:    runVersion,
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "emit machine-readable JSON")
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) error {
	info := version.Get()
	if versionJSON {
		return printJSON(info)
	}

	commit := info.Commit
	if commit == "" {
		commit = "unknown"
	}
	fmt.Printf("ck %s (commit %s, %s)\n", info.Version, commit, info.Go)
	if info.Date != "" {
		fmt.Printf("built %s\n", info.Date)
	}
	return nil
}
