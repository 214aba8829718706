package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/crewkit/crewkit/internal/crewcfg"
	"github.com/crewkit/crewkit/internal/git"
	"github.com/crewkit/crewkit/internal/identity"
	"github.com/crewkit/crewkit/internal/prompt"
	"github.com/crewkit/crewkit/internal/state"
	"github.com/crewkit/crewkit/internal/style"
	"github.com/crewkit/crewkit/internal/team"
	"github.com/crewkit/crewkit/internal/util"
	"github.com/crewkit/crewkit/internal/worktree"
)

var crewCmd = &cobra.Command{
	Use:     "crew",
	GroupID: GroupCrew,
	Short:   "Run a team of agents in parallel worktrees",
	Long: `Crew commands provision one git worktree per teammate, generate the
prompts that launch them, and track the team across sessions.

Typical flow:
  ck crew init          # write .crew-config.json, edit it
  ck crew start         # provision worktrees, print the lead prompt
  ck crew status        # check on the team
  ck crew merge-preview # see what landing every branch would do
  ck crew merge         # land the branches
  ck crew stop          # mark the team stopped
  ck crew gc            # sweep orphaned worktrees`,
	RunE: requireSubcommand,
}

var crewInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter crew config into the project root",
	Long: `Write a .crew-config.json template into the project root.

The main branch is auto-detected from origin's HEAD, falling back to
whichever of main or master exists locally. Edit the template's teammate
names and branches before running 'ck crew start'.`,
	Args: cobra.NoArgs,
	RunE: runCrewInit,
}

var (
	startFresh bool
)

var crewStartCmd = &cobra.Command{
	Use:   "start [profile]",
	Short: "Provision worktrees and print the lead prompt",
	Long: `Start (or resume) a team from .crew-config.json.

Provisions one worktree per teammate, writes each worktree's identity
file, records the team state, and prints the lead prompt that launches
the team. A previous session resumes when the config is unchanged and a
teammate was active within the staleness window; --fresh forces a new
session.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCrewStart,
}

var stopCleanup bool

var crewStopCmd = &cobra.Command{
	Use:   "stop [profile]",
	Short: "Mark the team stopped, optionally removing worktrees",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCrewStop,
}

var (
	gcDeleteBranches bool
	gcForce          bool
	gcDryRun         bool
)

var crewGCCmd = &cobra.Command{
	Use:   "gc",
	Short: "Remove orphaned crew worktrees",
	Long: `Sweep every project's worktree registry for orphans: directories
that vanished, teammates whose team stopped, and worktrees idle past the
orphan threshold. Found orphans are listed and removed after
confirmation (--force skips the prompt, --dry-run stops at the list).`,
	Args: cobra.NoArgs,
	RunE: runCrewGC,
}

func init() {
	crewStartCmd.Flags().BoolVar(&startFresh, "fresh", false, "ignore previous team state and start a new session")
	crewStopCmd.Flags().BoolVar(&stopCleanup, "cleanup", false, "also remove the team's worktrees")
	crewGCCmd.Flags().BoolVar(&gcDeleteBranches, "delete-branches", false, "also delete each orphan's branch")
	crewGCCmd.Flags().BoolVar(&gcForce, "force", false, "remove without confirmation")
	crewGCCmd.Flags().BoolVar(&gcDryRun, "dry-run", false, "list orphans without removing anything")

	crewCmd.AddCommand(crewInitCmd)
	crewCmd.AddCommand(crewStartCmd)
	crewCmd.AddCommand(crewStopCmd)
	crewCmd.AddCommand(crewGCCmd)
	rootCmd.AddCommand(crewCmd)
}

func runCrewInit(cmd *cobra.Command, args []string) error {
	root, err := findProjectRoot()
	if err != nil {
		return err
	}

	cfgPath := filepath.Join(root, crewcfg.ConfigFileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists; edit it or remove it before re-running init", cfgPath)
	}

	mainBranch := detectMainBranch(git.NewGit(root))
	data, err := json.MarshalIndent(crewcfg.TemplateConfig(mainBranch), "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if err := os.WriteFile(cfgPath, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("%s wrote %s (main branch: %s)\n", style.SuccessPrefix, cfgPath, mainBranch)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Edit the teammate names, branches, and focus text")
	fmt.Printf("  2. Run %s to provision worktrees\n", style.Dim.Render("ck crew start"))
	return nil
}

// detectMainBranch picks the integration branch for the template:
// origin's HEAD when it resolves to a local branch, else whichever of
// main/master the repository has.
func detectMainBranch(g *git.Git) string {
	if name := g.RemoteDefaultBranch(); name != "" {
		if ok, err := g.BranchExists(name); err == nil && ok {
			return name
		}
	}
	for _, name := range []string{"main", "master"} {
		if ok, err := g.BranchExists(name); err == nil && ok {
			return name
		}
	}
	return "main"
}

func runCrewStart(cmd *cobra.Command, args []string) error {
	root, err := findProjectRoot()
	if err != nil {
		return err
	}

	cfg, err := crewcfg.Load(root)
	if err != nil {
		return fmt.Errorf("no crew config: %w\n\nRun 'ck crew init' to create one", err)
	}
	if problems := cfg.Validate(); len(problems) > 0 {
		for _, p := range problems {
			style.PrintError("%s", p)
		}
		return fmt.Errorf("invalid crew config (%d problem(s))", len(problems))
	}

	profileArg := ""
	if len(args) > 0 {
		profileArg = args[0]
	}
	profile, tm, err := cfg.ResolveProfile(profileArg)
	if err != nil {
		return err
	}

	hash := identity.ProjectHash(root)
	prev, err := team.Load(hash, profile)
	if err != nil {
		return err
	}

	now := time.Now()
	configHash := cfg.Hash()
	staleWindow := cfg.StaleWindowFor(tm, kitConfig().Crew.StaleAfterHours)
	resume := !startFresh && team.ShouldResume(prev, configHash, staleWindow, now)

	mates := tm.Flatten("")
	mgr := worktree.NewManager(root, hash)
	worktrees := make(map[string]string, len(mates))
	for _, mate := range mates {
		if !mate.WantsWorktree() {
			continue
		}
		wtPath, err := mgr.Provision(profile, tm.Name, mate, cfg.MainBranch())
		if err != nil {
			return fmt.Errorf("provisioning %s: %w", mate.Name, err)
		}
		worktrees[mate.Name] = wtPath
		fmt.Printf("%s %s %s %s\n", style.SuccessPrefix, mate.Name,
			style.Dim.Render("→"), wtPath)
	}

	params := prompt.Params{
		TeamName:    tm.Name,
		ProfileName: profile,
		ProjectRoot: root,
		ConfigHash:  configHash,
		StaleWindow: staleWindow,
		Teammates:   mates,
		Worktrees:   worktrees,
		Prev:        prev,
		Resume:      resume,
		Now:         now,
	}
	lead := prompt.Lead(params)

	st := team.Build(tm.Name, profile, configHash, mates, worktrees, prev, resume, now)
	st.SpawnPrompts = prompt.SpawnAll(params)
	if err := team.Save(hash, st); err != nil {
		return fmt.Errorf("saving team state: %w", err)
	}

	promptPath := state.LeadPromptPath(hash, profile)
	if err := os.MkdirAll(filepath.Dir(promptPath), 0755); err == nil {
		if err := util.AtomicWriteFile(promptPath, []byte(lead), 0644); err != nil {
			style.PrintWarning("could not save lead prompt: %v", err)
		}
	}

	mode := "fresh session"
	if resume {
		mode = "resuming previous session"
	}
	fmt.Println()
	fmt.Printf("%s team %q started (profile %s, %s)\n", style.SuccessPrefix, tm.Name, profile, mode)
	fmt.Println()
	fmt.Println(lead)
	return nil
}

func runCrewStop(cmd *cobra.Command, args []string) error {
	root, err := findProjectRoot()
	if err != nil {
		return err
	}

	profileArg := ""
	if len(args) > 0 {
		profileArg = args[0]
	}
	profile := resolveProfileName(root, profileArg)

	hash := identity.ProjectHash(root)
	st, err := team.Load(hash, profile)
	if err != nil {
		return err
	}
	if st == nil {
		fmt.Printf("no team state for profile %q; nothing to stop\n", profile)
		return nil
	}

	st.Status = team.StatusStopped
	for _, ts := range st.Teammates {
		ts.Status = team.TeammateStopped
	}
	if err := team.Save(hash, st); err != nil {
		return fmt.Errorf("saving team state: %w", err)
	}

	if stopCleanup {
		mgr := worktree.NewManager(root, hash)
		for name, ts := range st.Teammates {
			if ts.WorktreePath == "" {
				continue
			}
			if err := mgr.Remove(ts.WorktreePath); err != nil {
				style.PrintWarning("removing %s worktree: %v", name, err)
				continue
			}
			fmt.Printf("%s removed %s\n", style.SuccessPrefix, ts.WorktreePath)
		}
	}

	fmt.Printf("%s team %q stopped\n", style.SuccessPrefix, st.TeamName)
	if !stopCleanup {
		fmt.Printf("Worktrees kept; %s removes them later\n", style.Dim.Render("ck crew gc"))
	}
	return nil
}

// resolveProfileName picks the profile for read-side commands: the
// explicit argument, then the config's resolution, then "default".
// Unlike start, a broken config must not stop a stop or status.
func resolveProfileName(root, arg string) string {
	if arg != "" {
		return arg
	}
	if cfg, err := crewcfg.Load(root); err == nil {
		if name, _, err := cfg.ResolveProfile(""); err == nil {
			return name
		}
	}
	return crewcfg.DefaultProfileName
}

func runCrewGC(cmd *cobra.Command, args []string) error {
	threshold := time.Duration(kitConfig().Crew.OrphanAfterHours) * time.Hour

	orphans, err := worktree.FindOrphans(threshold)
	if err != nil {
		return err
	}
	if len(orphans) == 0 {
		fmt.Printf("%s no orphaned worktrees\n", style.SuccessPrefix)
		return nil
	}

	fmt.Printf("Found %d orphaned worktree(s):\n\n", len(orphans))
	tbl := style.NewTable(
		style.Column{Name: "TEAMMATE", Width: 12},
		style.Column{Name: "BRANCH", Width: 20},
		style.Column{Name: "PATH", Width: 40},
		style.Column{Name: "SIZE", Width: 9, Align: style.AlignRight},
		style.Column{Name: "REASON", Width: 28},
	)
	for _, o := range orphans {
		tbl.AddRow(o.Entry.Name, o.Entry.Branch, o.Entry.Path, humanSize(o.SizeBytes), o.Reason)
	}
	fmt.Println(tbl.Render())

	if gcDryRun {
		fmt.Println(style.Dim.Render("dry run; nothing removed"))
		return nil
	}
	if !gcForce && !confirm(fmt.Sprintf("Remove %d worktree(s)?", len(orphans))) {
		fmt.Println("aborted")
		return nil
	}

	removed := 0
	for _, o := range orphans {
		if err := worktree.RemoveOrphan(o, gcDeleteBranches); err != nil {
			style.PrintWarning("removing %s: %v", o.Entry.Path, err)
			continue
		}
		removed++
		fmt.Printf("%s removed %s\n", style.SuccessPrefix, o.Entry.Path)
	}
	fmt.Printf("\n%s removed %d of %d orphan(s)\n", style.SuccessPrefix, removed, len(orphans))
	return nil
}

// confirm asks a yes/no question on the terminal. Anything but an
// explicit yes declines.
func confirm(question string) bool {
	fmt.Printf("%s [y/N] ", question)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// humanSize formats a byte count for table cells.
func humanSize(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
