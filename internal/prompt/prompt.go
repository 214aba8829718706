// Package prompt renders the markdown handed to the host agent: the
// lead prompt that launches or resumes a team, and the per-teammate
// spawn prompts that confine each agent to its own worktree.
//
// Rendering is a pure function of its inputs. Nothing here reads config
// files or global state; the caller supplies the resolved profile,
// team state, and paths.
package prompt

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/crewkit/crewkit/internal/crewcfg"
	"github.com/crewkit/crewkit/internal/team"
)

// StaleMarker flags a teammate whose saved agent session is too old to
// resume.
const StaleMarker = "STALE (spawn fresh)"

// Params carries everything the generator needs.
type Params struct {
	TeamName    string
	ProfileName string
	ProjectRoot string
	ConfigHash  string
	StaleWindow time.Duration
	// Teammates is the resolved roster in config order, role presets
	// already applied.
	Teammates []crewcfg.Teammate
	// Worktrees maps teammate name to absolute worktree path.
	Worktrees map[string]string
	// Prev is the prior team state; nil on first launch.
	Prev   *team.State
	Resume bool
	Now    time.Time
}

// Lead renders the lead prompt for a launch. Resume shape when the
// previous session is being picked up, fresh shape otherwise.
func Lead(p Params) string {
	if p.Resume && p.Prev != nil {
		return resumeLead(p)
	}
	return freshLead(p)
}

// SpawnAll renders the spawn prompt for every teammate, keyed by name.
func SpawnAll(p Params) map[string]string {
	out := make(map[string]string, len(p.Teammates))
	for _, tm := range p.Teammates {
		out[tm.Name] = Spawn(tm, p.TeamName, p.ProjectRoot, p.Worktrees[tm.Name])
	}
	return out
}

func freshLead(p Params) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Launch team %q (profile: %s)\n\n", p.TeamName, p.ProfileName)
	fmt.Fprintf(&b, "Config hash: `%s`\n\n", p.ConfigHash)
	b.WriteString("Run the three steps below in order. Do not skip steps and do not reorder them.\n\n")

	b.WriteString("### Step 1: Create the team\n\n")
	fmt.Fprintf(&b, "Create a team container named `%s`.\n\n", p.TeamName)

	b.WriteString("### Step 2: Create one task per teammate\n\n")
	for _, tm := range p.Teammates {
		fmt.Fprintf(&b, "- Task `%s`: %s\n", taskName(tm.Name), taskSummary(tm))
	}
	b.WriteString("\n")

	b.WriteString("### Step 3: Spawn all teammates IN PARALLEL, then assign tasks\n\n")
	b.WriteString("Issue one spawn invocation per teammate, all in a single message, so they start concurrently. Parameter blocks:\n\n")
	for _, tm := range p.Teammates {
		b.WriteString(spawnBlock(tm, p))
	}
	b.WriteString("Once every teammate is up, assign each task by name:\n\n")
	for _, tm := range p.Teammates {
		fmt.Fprintf(&b, "- `%s` → %s\n", taskName(tm.Name), tm.Name)
	}
	b.WriteString("\nTeammates poll for their next task after completing one. You coordinate; you do not edit files in their worktrees.\n")

	return b.String()
}

func resumeLead(p Params) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Resume team %q (profile: %s)\n\n", p.TeamName, p.ProfileName)
	fmt.Fprintf(&b, "Last activity: %s. Config hash: `%s`.\n\n", lastActivityPhrase(p), p.ConfigHash)

	for _, tm := range p.Teammates {
		prev := p.Prev.Teammates[tm.Name]
		wt := p.Worktrees[tm.Name]

		fmt.Fprintf(&b, "## %s\n\n", displayName(tm.Name))
		fmt.Fprintf(&b, "- Branch: `%s`\n", tm.Branch)
		fmt.Fprintf(&b, "- Worktree: `%s`\n", wt)

		if resumable(prev, p.StaleWindow, p.Now) {
			fmt.Fprintf(&b, "- Agent: `%s`\n", prev.AgentID)
			fmt.Fprintf(&b, "- Action: resume agent `%s`; it keeps its existing context.\n\n", prev.AgentID)
			continue
		}

		fmt.Fprintf(&b, "- Agent: %s\n", StaleMarker)
		b.WriteString("- Action: spawn a fresh agent with the parameter block below.\n\n")
		b.WriteString(spawnBlock(tm, p))
	}

	return b.String()
}

// resumable reports whether a saved teammate session can be picked up
// as-is: it has an agent id and was active within the window.
func resumable(prev *team.TeammateState, window time.Duration, now time.Time) bool {
	if prev == nil || prev.AgentID == "" || prev.LastActive == nil {
		return false
	}
	if prev.Status == team.TeammateStopped {
		return false
	}
	return now.Sub(*prev.LastActive) <= window
}

// spawnBlock renders the structured parameter block for one spawn
// invocation, spawn prompt included.
func spawnBlock(tm crewcfg.Teammate, p Params) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n\n", tm.Name)
	b.WriteString("```\n")
	fmt.Fprintf(&b, "name:          %s\n", tm.Name)
	fmt.Fprintf(&b, "team:          %s\n", p.TeamName)
	fmt.Fprintf(&b, "subagent_type: %s\n", tm.SubagentType)
	fmt.Fprintf(&b, "mode:          %s\n", tm.Mode)
	fmt.Fprintf(&b, "model:         %s\n", tm.Model)
	b.WriteString("```\n\n")
	b.WriteString("Spawn prompt:\n\n")
	b.WriteString("````markdown\n")
	b.WriteString(Spawn(tm, p.TeamName, p.ProjectRoot, p.Worktrees[tm.Name]))
	b.WriteString("````\n\n")
	return b.String()
}

// Spawn renders the prompt a teammate agent is started with. It pins the
// agent to its worktree; every rule in the table exists because a
// teammate writing into the lead's checkout corrupts the whole run.
func Spawn(tm crewcfg.Teammate, teamName, projectRoot, wtPath string) string {
	focus := Substitute(tm.Focus, wtPath, projectRoot, tm.Name)
	if focus == "" {
		focus = "Work the tasks assigned to you."
	}

	return fmt.Sprintf(`You are %s, a teammate on team %q.

Your branch: %s
Your worktree (absolute path): %s

## Path rules

Every tool call MUST stay inside your worktree. The lead's project checkout at %s is OFF LIMITS.

| Tool | Rule |
|------|------|
| Read / Write / Edit | Path MUST start with %s |
| Bash | Run from %s; never cd into or touch %s |
| Glob / Grep | Search under %s only |

If a task appears to require a file outside your worktree, stop and report it on the task instead of reaching outside.

## Your focus

%s

## Workflow

1. Claim the task assigned to your name.
2. Work entirely inside your worktree, committing to your branch as you go.
3. Mark the task complete with a short summary of what changed.
4. Poll for the next task; if none remain, report that you are idle and wait.`,
		tm.Name, teamName,
		tm.Branch,
		wtPath,
		projectRoot,
		wtPath,
		wtPath, projectRoot,
		wtPath,
		focus)
}

// Substitute expands the placeholders supported in focus text.
func Substitute(text, wtPath, projectRoot, teammateName string) string {
	r := strings.NewReplacer(
		"{WORKTREE_PATH}", wtPath,
		"{PROJECT_ROOT}", projectRoot,
		"{TEAMMATE_NAME}", teammateName,
	)
	return r.Replace(text)
}

// displayName title-cases a teammate name for headings. Parameter
// blocks always carry the literal name; only prose gets the casing.
func displayName(name string) string {
	return cases.Title(language.English).String(name)
}

func taskName(teammate string) string {
	return teammate + "-work"
}

func taskSummary(tm crewcfg.Teammate) string {
	if tm.Focus != "" {
		return firstSentence(tm.Focus)
	}
	return fmt.Sprintf("work on branch %s", tm.Branch)
}

// firstSentence trims focus text to its first sentence for task titles.
func firstSentence(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, ".!?\n"); i > 0 {
		return strings.TrimSpace(s[:i+1])
	}
	return s
}

// lastActivityPhrase describes how long ago the previous session was
// active, from the newest teammate timestamp.
func lastActivityPhrase(p Params) string {
	var newest time.Time
	if p.Prev != nil {
		for _, tm := range p.Prev.Teammates {
			if tm.LastActive != nil && tm.LastActive.After(newest) {
				newest = *tm.LastActive
			}
		}
	}
	if newest.IsZero() {
		return "unknown"
	}
	hours := p.Now.Sub(newest).Hours()
	if hours < 1 {
		return fmt.Sprintf("%d minutes ago", int(p.Now.Sub(newest).Minutes()))
	}
	return fmt.Sprintf("%.1f hours ago", hours)
}
