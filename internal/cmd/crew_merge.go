package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crewkit/crewkit/internal/crewcfg"
	"github.com/crewkit/crewkit/internal/merge"
	"github.com/crewkit/crewkit/internal/style"
)

var mergePreviewJSON bool

var crewMergePreviewCmd = &cobra.Command{
	Use:   "merge-preview [profile]",
	Short: "Preview what merging every teammate branch would do",
	Long: `Dry-run the merge pilot: per branch, the files it would change and
whether it merges cleanly into the main branch, plus any files two
teammates both touched. Nothing is merged.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCrewMergePreview,
}

var (
	mergeTest string
	mergeJSON bool
)

// mergeTestFromConfig marks a bare --test with no command attached.
const mergeTestFromConfig = "\x00config"

var crewMergeCmd = &cobra.Command{
	Use:   "merge [profile]",
	Short: "Merge teammate branches into the main branch",
	Long: `Land every teammate branch on the main branch, clean merges first.

A backup tag is created before the first merge so the whole run can be
undone with one reset. --test runs a command after each merge and rolls
that merge back when it fails; without an argument the command comes
from the kit config's merge.test_command.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCrewMerge,
}

func init() {
	crewMergePreviewCmd.Flags().BoolVar(&mergePreviewJSON, "json", false, "emit machine-readable JSON")

	crewMergeCmd.Flags().StringVar(&mergeTest, "test", "", "run tests after each merge; empty value uses the configured command")
	crewMergeCmd.Flags().Lookup("test").NoOptDefVal = mergeTestFromConfig
	crewMergeCmd.Flags().BoolVar(&mergeJSON, "json", false, "emit machine-readable JSON")

	crewCmd.AddCommand(crewMergePreviewCmd)
	crewCmd.AddCommand(crewMergeCmd)
}

// mergeSetup resolves everything both merge commands need.
func mergeSetup(args []string) (*merge.Pilot, []crewcfg.Teammate, string, error) {
	root, err := findProjectRoot()
	if err != nil {
		return nil, nil, "", err
	}
	cfg, err := crewcfg.Load(root)
	if err != nil {
		return nil, nil, "", fmt.Errorf("no crew config in %s; run 'ck crew init' first", root)
	}
	profileArg := ""
	if len(args) > 0 {
		profileArg = args[0]
	}
	_, tm, err := cfg.ResolveProfile(profileArg)
	if err != nil {
		return nil, nil, "", err
	}
	return merge.NewPilot(root, cfg.MainBranch()), tm.Flatten(""), cfg.MainBranch(), nil
}

func runCrewMergePreview(cmd *cobra.Command, args []string) error {
	pilot, mates, mainBranch, err := mergeSetup(args)
	if err != nil {
		style.PrintError("%v", err)
		return nil
	}

	previews := pilot.Preview(mates)
	overlaps := merge.DetectOverlaps(previews)

	if mergePreviewJSON {
		return printJSON(struct {
			Main     string                `json:"main_branch"`
			Previews []merge.BranchPreview `json:"previews"`
			Overlaps []merge.Overlap       `json:"overlaps,omitempty"`
		}{mainBranch, previews, overlaps})
	}

	if len(previews) == 0 {
		fmt.Printf("%s no teammate branches differ from %s\n", style.SuccessPrefix, mainBranch)
		return nil
	}

	fmt.Printf("Merging into %s:\n\n", style.Bold.Render(mainBranch))
	tbl := style.NewTable(
		style.Column{Name: "TEAMMATE", Width: 12},
		style.Column{Name: "BRANCH", Width: 24},
		style.Column{Name: "STATUS", Width: 10},
		style.Column{Name: "FILES", Width: 5, Align: style.AlignRight},
		style.Column{Name: "NOTE", Width: 36},
	)
	for _, p := range previews {
		tbl.AddRow(p.Teammate, p.Branch, mergeStatusCell(p.Status),
			fmt.Sprintf("%d", len(p.ChangedFiles)), p.Message)
	}
	fmt.Println(tbl.Render())

	for _, p := range previews {
		if p.Status == merge.StatusConflict && len(p.ConflictFiles) > 0 {
			fmt.Printf("  %s %s conflicts in:\n", style.WarningPrefix, p.Branch)
			for _, f := range p.ConflictFiles {
				fmt.Printf("      %s\n", f)
			}
		}
	}

	if len(overlaps) > 0 {
		fmt.Println()
		fmt.Printf("%s overlapping edits:\n", style.WarningPrefix)
		for _, o := range overlaps {
			fmt.Printf("  %s and %s both touched %s\n",
				o.Teammates[0], o.Teammates[1], strings.Join(o.Files, ", "))
		}
	}
	return nil
}

func runCrewMerge(cmd *cobra.Command, args []string) error {
	pilot, mates, mainBranch, err := mergeSetup(args)
	if err != nil {
		return err
	}

	previews := pilot.Preview(mates)
	if len(previews) == 0 {
		fmt.Printf("%s no teammate branches differ from %s; nothing to merge\n", style.SuccessPrefix, mainBranch)
		return nil
	}

	opts := merge.DefaultOptions()
	switch mergeTest {
	case "":
	case mergeTestFromConfig:
		opts.TestCommand = kitConfig().Merge.TestCommand
		if opts.TestCommand == "" {
			style.PrintWarning("--test given but no merge.test_command configured; merging without tests")
		}
	default:
		opts.TestCommand = mergeTest
	}

	res, execErr := pilot.Execute(previews, opts)

	if mergeJSON {
		if err := printJSON(res); err != nil {
			return err
		}
		return execErr
	}

	if res.BackupTag != "" {
		fmt.Printf("%s tagged %s before merging\n\n", style.Dim.Render("→"), res.BackupTag)
	}
	for _, o := range res.Success {
		fmt.Printf("%s merged %s (%s)\n", style.SuccessPrefix, o.Branch, o.Teammate)
	}
	for _, o := range res.Failed {
		fmt.Printf("%s %s (%s): %s\n", style.ErrorPrefix, o.Branch, o.Teammate, o.Reason)
	}
	for _, o := range res.Skipped {
		fmt.Printf("%s skipped %s (%s): %s\n", style.WarningPrefix, o.Branch, o.Teammate, o.Reason)
	}

	fmt.Println()
	fmt.Printf("%d merged, %d failed, %d skipped\n", len(res.Success), len(res.Failed), len(res.Skipped))
	if res.BackupTag != "" && len(res.Success) > 0 {
		fmt.Printf("Undo everything with %s\n",
			style.Dim.Render("git reset --hard "+res.BackupTag))
	}
	return execErr
}

func mergeStatusCell(status string) string {
	switch status {
	case merge.StatusClean:
		return style.Success.Render(status)
	case merge.StatusConflict:
		return style.Warning.Render(status)
	default:
		return style.Error.Render(status)
	}
}
