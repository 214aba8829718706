package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/crewkit/crewkit/internal/crewcfg"
	"github.com/crewkit/crewkit/internal/identity"
	"github.com/crewkit/crewkit/internal/prompt"
	"github.com/crewkit/crewkit/internal/state"
	"github.com/crewkit/crewkit/internal/team"
)

var promptRender bool

var crewPromptCmd = &cobra.Command{
	Use:   "prompt [profile]",
	Short: "Reprint the team's lead prompt",
	Long: `Print the lead prompt saved by the last 'ck crew start'. When the
saved copy is gone the prompt is regenerated from the config and team
state. --render pretty-prints the markdown for reading instead of
pasting.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCrewPrompt,
}

func init() {
	crewPromptCmd.Flags().BoolVar(&promptRender, "render", false, "render the markdown for the terminal")
	crewCmd.AddCommand(crewPromptCmd)
}

func runCrewPrompt(cmd *cobra.Command, args []string) error {
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

	lead, err := loadOrRebuildLead(root, hash, profile)
	if err != nil {
		return err
	}

	if promptRender {
		fmt.Print(renderMarkdown(lead))
		return nil
	}
	fmt.Println(lead)
	return nil
}

// loadOrRebuildLead prefers the prompt saved at start time; a missing
// file falls back to regenerating from config plus team state.
func loadOrRebuildLead(root, hash, profile string) (string, error) {
	if data, err := os.ReadFile(state.LeadPromptPath(hash, profile)); err == nil {
		return string(data), nil
	}

	cfg, err := crewcfg.Load(root)
	if err != nil {
		return "", fmt.Errorf("no saved prompt and no crew config; run 'ck crew start' first")
	}
	name, tm, err := cfg.ResolveProfile(profile)
	if err != nil {
		return "", err
	}
	st, err := team.Load(hash, name)
	if err != nil {
		return "", err
	}
	if st == nil {
		return "", fmt.Errorf("no saved prompt and no team state for profile %q; run 'ck crew start' first", name)
	}

	worktrees := make(map[string]string, len(st.Teammates))
	for mate, ts := range st.Teammates {
		worktrees[mate] = ts.WorktreePath
	}
	return prompt.Lead(prompt.Params{
		TeamName:    st.TeamName,
		ProfileName: name,
		ProjectRoot: root,
		ConfigHash:  st.ConfigHash,
		StaleWindow: cfg.StaleWindowFor(tm, kitConfig().Crew.StaleAfterHours),
		Teammates:   tm.Flatten(""),
		Worktrees:   worktrees,
		Prev:        st,
		Resume:      st.Status == team.StatusActive,
		Now:         time.Now(),
	}), nil
}
