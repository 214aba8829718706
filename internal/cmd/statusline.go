package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/crewkit/crewkit/internal/capsule"
	"github.com/crewkit/crewkit/internal/git"
	"github.com/crewkit/crewkit/internal/identity"
	"github.com/crewkit/crewkit/internal/state"
)

var statuslineCmd = &cobra.Command{
	Use:     "statusline",
	GroupID: GroupDiag,
	Short:   "Print a one-line status for the host's status bar",
	Long: `Print a single line summarizing where the kit thinks it is: branch,
crew identity if any, and today's capture count. Meant to be wired into
the host's status bar; it never fails and never prints more than one
line.`,
	Args: cobra.NoArgs,
	RunE: runStatusline,
}

func init() {
	rootCmd.AddCommand(statuslineCmd)
}

func runStatusline(cmd *cobra.Command, args []string) error {
	if !state.IsEnabled() {
		fmt.Println("crewkit off")
		return nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Println("crewkit")
		return nil
	}
	res := identity.Resolve(cwd, "")

	var parts []string
	if branch, err := git.NewGit(cwd).CurrentBranch(); err == nil && branch != "" {
		parts = append(parts, branch)
	}
	if res.Crew != nil {
		parts = append(parts, res.Crew.TeammateName+"@"+res.Crew.TeamName)
	}
	if n, ok := recordsToday(res); ok {
		parts = append(parts, fmt.Sprintf("%d rec today", n))
	}

	if len(parts) == 0 {
		fmt.Println("crewkit")
		return nil
	}
	fmt.Println(strings.Join(parts, " | "))
	return nil
}

// recordsToday counts project records updated since local midnight.
// Best-effort: any store trouble just drops the segment.
func recordsToday(res *identity.Resolution) (int, bool) {
	ctx := context.Background()
	store, err := capsule.OpenExisting(ctx, res.StorePath)
	if err != nil {
		return 0, false
	}
	defer store.Close()

	recs, err := store.ListPrefix(ctx, identity.Prefix(res.ProjectHash), 0)
	if err != nil {
		return 0, false
	}
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	n := 0
	for _, r := range recs {
		if !r.UpdatedAt.Before(midnight) {
			n++
		}
	}
	return n, true
}
