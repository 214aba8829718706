package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/crewkit/crewkit/internal/crewcfg"
	"github.com/crewkit/crewkit/internal/health"
	"github.com/crewkit/crewkit/internal/identity"
	"github.com/crewkit/crewkit/internal/style"
	"github.com/crewkit/crewkit/internal/team"
	"github.com/crewkit/crewkit/internal/tui/watch"
)

var (
	statusWatch bool
	statusJSON  bool
)

var crewStatusCmd = &cobra.Command{
	Use:   "status [profile]",
	Short: "Show each teammate's liveness",
	Long: `Show the team's state: one row per teammate with liveness, branch,
last activity, and recent commit count.

Liveness comes from hook-reported activity against the staleness window:
active within one window, idle within two, then crashed or unresponsive
depending on whether the worktree shows commits. --watch keeps the view
open and refreshes it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCrewStatus,
}

var crewDoctorCmd = &cobra.Command{
	Use:   "doctor [profile]",
	Short: "Diagnose unhealthy teammates with recovery advice",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCrewDoctor,
}

func init() {
	crewStatusCmd.Flags().BoolVar(&statusWatch, "watch", false, "refresh continuously in a full-screen view")
	crewStatusCmd.Flags().BoolVar(&statusJSON, "json", false, "emit machine-readable JSON")

	crewCmd.AddCommand(crewStatusCmd)
	crewCmd.AddCommand(crewDoctorCmd)
}

// teamView bundles everything the read-side crew commands display.
type teamView struct {
	Profile   string          `json:"profile"`
	TeamName  string          `json:"team_name,omitempty"`
	Status    string          `json:"status"`
	StartedAt *time.Time      `json:"started_at,omitempty"`
	Reports   []health.Report `json:"teammates"`
}

// loadTeamView assembles the status rows for one profile. Read-only and
// best-effort: a missing config or state degrades the view, never errors.
func loadTeamView(root, profileArg string, staleFallbackHours int) (*teamView, error) {
	cfg, err := crewcfg.Load(root)
	if err != nil {
		return nil, fmt.Errorf("no crew config in %s; run 'ck crew init' first", root)
	}
	profile, tm, err := cfg.ResolveProfile(profileArg)
	if err != nil {
		return nil, err
	}

	st, err := team.Load(identity.ProjectHash(root), profile)
	if err != nil {
		return nil, err
	}

	view := &teamView{Profile: profile, TeamName: tm.Name, Status: "not started"}
	if st != nil {
		view.TeamName = st.TeamName
		view.Status = st.Status
		view.StartedAt = &st.StartedAt
	}

	mon := health.NewMonitor(cfg.StaleWindowFor(tm, staleFallbackHours))
	view.Reports = mon.Inspect(tm.Flatten(""), st)
	return view, nil
}

func runCrewStatus(cmd *cobra.Command, args []string) error {
	root, err := findProjectRoot()
	if err != nil {
		return err
	}
	profileArg := ""
	if len(args) > 0 {
		profileArg = args[0]
	}
	fallback := kitConfig().Crew.StaleAfterHours

	if statusWatch {
		if err := watch.Run(watch.NewProjectLoader(root, profileArg, fallback)); err != nil {
			style.PrintError("watch: %v", err)
		}
		return nil
	}

	view, err := loadTeamView(root, profileArg, fallback)
	if err != nil {
		// Read-only command: report and exit clean.
		style.PrintError("%v", err)
		return nil
	}

	if statusJSON {
		return printJSON(view)
	}

	fmt.Printf("%s  profile %s  %s\n\n",
		style.Bold.Render("team "+view.TeamName),
		view.Profile,
		teamStatusCell(view.Status))

	tbl := style.NewTable(
		style.Column{Name: "TEAMMATE", Width: 12},
		style.Column{Name: "STATUS", Width: 14},
		style.Column{Name: "BRANCH", Width: 22},
		style.Column{Name: "LAST ACTIVE", Width: 12},
		style.Column{Name: "COMMITS", Width: 7, Align: style.AlignRight},
	)
	for _, r := range view.Reports {
		tbl.AddRow(r.Teammate, healthCell(r.Status), r.Branch, lastActiveCell(r.LastActive), fmt.Sprintf("%d", r.RecentCommits))
	}
	fmt.Println(tbl.Render())
	return nil
}

func runCrewDoctor(cmd *cobra.Command, args []string) error {
	root, err := findProjectRoot()
	if err != nil {
		return err
	}
	profileArg := ""
	if len(args) > 0 {
		profileArg = args[0]
	}

	view, err := loadTeamView(root, profileArg, kitConfig().Crew.StaleAfterHours)
	if err != nil {
		style.PrintError("%v", err)
		return nil
	}

	healthy := 0
	for _, r := range view.Reports {
		if r.Healthy() {
			healthy++
		}
	}

	fmt.Printf("%s  profile %s  %d/%d healthy\n\n",
		style.Bold.Render("team "+view.TeamName), view.Profile, healthy, len(view.Reports))

	for _, r := range view.Reports {
		fmt.Printf("  %s %s", healthCell(r.Status), style.Bold.Render(r.Teammate))
		if r.Branch != "" {
			fmt.Printf("  %s", style.Dim.Render(r.Branch))
		}
		fmt.Println()
		if r.Worktree != "" {
			fmt.Printf("      worktree: %s\n", r.Worktree)
		}
		if r.LastActive != nil {
			fmt.Printf("      last active %s, %d recent commit(s)\n", lastActiveCell(r.LastActive), r.RecentCommits)
		}
		if r.Advice != "" && !r.Healthy() {
			fmt.Printf("      %s %s\n", style.ArrowPrefix, r.Advice)
		}
		fmt.Println()
	}

	if healthy == len(view.Reports) {
		fmt.Printf("%s every teammate is healthy\n", style.SuccessPrefix)
	}
	return nil
}

func teamStatusCell(status string) string {
	switch status {
	case team.StatusActive:
		return style.Success.Render(status)
	case team.StatusStopped:
		return style.Dim.Render(status)
	default:
		return status
	}
}

func healthCell(status string) string {
	switch status {
	case health.StatusActive:
		return style.Success.Render("● " + status)
	case health.StatusIdle:
		return style.Warning.Render("● " + status)
	case health.StatusCrashed, health.StatusUnresponsive:
		return style.Error.Render("✗ " + status)
	default:
		return style.Dim.Render("? " + status)
	}
}

func lastActiveCell(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return formatAge(time.Since(*t))
}

// formatAge renders a duration as a compact age like "5m ago".
func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
