package hooks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/crewkit/crewkit/internal/capsule"
	"github.com/crewkit/crewkit/internal/crewcfg"
	"github.com/crewkit/crewkit/internal/git"
	"github.com/crewkit/crewkit/internal/hooklog"
	"github.com/crewkit/crewkit/internal/identity"
	"github.com/crewkit/crewkit/internal/team"
)

// SessionStart assembles the context injected at the top of a session:
// the latest handoff (or the prior session summary), hot discoveries,
// recently touched files, and the crew board. Everything is
// best-effort; a section that cannot be built is simply left out.
func SessionStart(ctx context.Context, rc *RunContext) error {
	var sections []string

	if pruned := pruneOldRecords(ctx, rc); pruned > 0 {
		sections = append(sections, fmt.Sprintf(
			"(Pruned %d context records older than %d days.)",
			pruned, rc.Cfg.Store.RetentionDays))
	}

	branch := currentBranch(rc.Cwd)
	if s := handoffSection(ctx, rc); s != "" {
		sections = append(sections, s)
	} else if s := lastSessionSection(ctx, rc, branch); s != "" {
		sections = append(sections, s)
	}
	if s := discoveriesSection(ctx, rc); s != "" {
		sections = append(sections, s)
	}
	if s := recentFilesSection(ctx, rc); s != "" {
		sections = append(sections, s)
	}
	if s := teamActivitySection(ctx, rc); s != "" {
		sections = append(sections, s)
	}
	if s := crewStatusSection(rc); s != "" {
		sections = append(sections, s)
	}

	return WriteSessionStartOutput(rc.Stdout, strings.Join(sections, "\n\n"))
}

// pruneOldRecords enforces the retention window. Session start is the
// natural hook for this: it runs often and before anything reads.
func pruneOldRecords(ctx context.Context, rc *RunContext) int {
	days := rc.Cfg.Store.RetentionDays
	if days <= 0 {
		return 0
	}
	n, err := rc.Store.Prune(ctx, rc.Now.AddDate(0, 0, -days))
	if err != nil {
		hooklog.Debug("prune failed", "err", err)
		return 0
	}
	return n
}

func currentBranch(cwd string) string {
	branch, err := git.NewGit(cwd).CurrentBranch()
	if err != nil {
		return ""
	}
	return branch
}

// handoffSection returns the most recent pre-compaction handoff, which
// supersedes the last-session summary when present.
func handoffSection(ctx context.Context, rc *RunContext) string {
	recs, err := rc.Store.ListPrefix(ctx, rc.Res.SessionRootNS(), 200)
	if err != nil {
		return ""
	}
	for _, rec := range recs {
		if rec.HasTag("handoff") {
			return "## Session Handoff\n\n" + rec.Summary
		}
	}
	return ""
}

// lastSessionSection prefers the most recent session on the current
// branch; when the branch is unknown or unmatched it falls back to the
// most recent session anywhere.
func lastSessionSection(ctx context.Context, rc *RunContext, branch string) string {
	recs, err := rc.Store.List(ctx, rc.Res.SessionRootNS(), 20)
	if err != nil || len(recs) == 0 {
		return ""
	}
	if branch != "" {
		for _, rec := range recs {
			if rec.ContentString("branch") == branch {
				return fmt.Sprintf("## Branch Context (%s)\n\n%s", branch, rec.Summary)
			}
		}
	}
	return "## Last Session\n\n" + recs[0].Summary
}

// discoveriesSection lists the five most consulted discoveries across
// the project and crew-shared namespaces.
func discoveriesSection(ctx context.Context, rc *RunContext) string {
	var all []*capsule.Record
	for _, ns := range rc.Res.DiscoveryNamespaces() {
		recs, err := rc.Store.Query(ctx, ns, capsule.QueryOpts{OrderByHits: true, Limit: 5})
		if err != nil {
			continue
		}
		all = append(all, recs...)
	}
	if len(all) == 0 {
		return ""
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].HitCount > all[j].HitCount })
	if len(all) > 5 {
		all = all[:5]
	}

	var b strings.Builder
	b.WriteString("## Discoveries")
	for _, rec := range all {
		b.WriteString("\n- " + rec.Summary)
	}
	return b.String()
}

// recentFilesSection lists up to three files touched most recently in
// prior sessions for this scope.
func recentFilesSection(ctx context.Context, rc *RunContext) string {
	recs, err := rc.Store.ListPrefix(ctx, rc.Res.SessionRootNS(), 100)
	if err != nil {
		return ""
	}
	seen := map[string]bool{}
	var b strings.Builder
	n := 0
	for _, rec := range recs {
		if !rec.HasTag("file") {
			continue
		}
		path := rec.ContentString("filePath")
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true
		b.WriteString("\n- " + rec.Summary)
		if n++; n == 3 {
			break
		}
	}
	if n == 0 {
		return ""
	}
	return "## Recent Files" + b.String()
}

// teamActivitySection surfaces what other teammates finished recently.
func teamActivitySection(ctx context.Context, rc *RunContext) string {
	if rc.Res.Crew == nil {
		return ""
	}
	crewPrefix := strings.ToLower(rc.Res.ProjectNS("crew"))
	recs, err := rc.Store.ListPrefix(ctx, crewPrefix, 100)
	if err != nil {
		return ""
	}
	self := strings.ToLower(rc.Res.Crew.TeammateName)

	var b strings.Builder
	n := 0
	for _, rec := range recs {
		rest := strings.TrimPrefix(rec.Namespace, crewPrefix+"/")
		parts := strings.SplitN(rest, "/", 2)
		// Only session summaries from other teammates qualify.
		if len(parts) != 2 || parts[0] == self || parts[0] == identity.SharedScope {
			continue
		}
		if parts[1] != "session" {
			continue
		}
		fmt.Fprintf(&b, "\n- %s: %s", parts[0], rec.Summary)
		if n++; n == 3 {
			break
		}
	}
	if n == 0 {
		return ""
	}
	return "## Team Activity" + b.String()
}

// crewStatusSection renders a per-profile board of teammate status so a
// resuming lead sees the whole team at once.
func crewStatusSection(rc *RunContext) string {
	root := rc.Cwd
	if rc.Res.Crew != nil && rc.Res.Crew.ProjectRoot != "" {
		root = rc.Res.Crew.ProjectRoot
	}
	cfg, err := crewcfg.Load(root)
	if err != nil {
		return ""
	}

	var b strings.Builder
	for _, profile := range cfg.ProfileNames() {
		name, profileTeam, err := cfg.ResolveProfile(profile)
		if err != nil {
			continue
		}
		st, err := team.Load(rc.Res.ProjectHash, name)
		if err != nil || st == nil || len(st.Teammates) == 0 {
			continue
		}
		window := cfg.StaleWindowFor(profileTeam, rc.Cfg.Crew.StaleAfterHours)

		fmt.Fprintf(&b, "\n\n## Crew Status (%s: %s)\n", name, st.Status)
		b.WriteString("| Teammate | Status | Last Active | Branch | Worktree |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for _, mateName := range sortedTeammates(st) {
			ts := st.Teammates[mateName]
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
				mateName, teammateStatus(ts, window, rc.Now),
				lastActive(ts, rc.Now), ts.Branch, shortPath(ts.WorktreePath))
		}
	}
	return strings.TrimSpace(b.String())
}

func sortedTeammates(st *team.State) []string {
	names := make([]string, 0, len(st.Teammates))
	for name := range st.Teammates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func teammateStatus(ts *team.TeammateState, window time.Duration, now time.Time) string {
	if ts.LastActive != nil && now.Sub(*ts.LastActive) > window && ts.Status != team.TeammateStopped {
		return ts.Status + " (stale)"
	}
	return ts.Status
}

func lastActive(ts *team.TeammateState, now time.Time) string {
	if ts.LastActive == nil {
		return "never"
	}
	return fmt.Sprintf("%.1fh ago", now.Sub(*ts.LastActive).Hours())
}

func shortPath(path string) string {
	if path == "" {
		return "-"
	}
	parts := strings.Split(path, "/")
	if len(parts) <= 2 {
		return path
	}
	return ".../" + parts[len(parts)-1]
}
