package hooks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/crewkit/crewkit/internal/capsule"
	"github.com/crewkit/crewkit/internal/identity"
)

// Handoff produces the pre-compaction handoff document for a session:
// the files touched, the sub-agents that ran, and how long the session
// lasted. It works entirely from the record store so it still functions
// when the host's own context is about to vanish. Any internal failure
// degrades to a minimal one-liner.
func Handoff(ctx context.Context, store *capsule.Store, res *identity.Resolution, sid string) string {
	doc, err := buildHandoff(ctx, store, res, sid)
	if err != nil || doc == "" {
		return fallbackHandoff(res, sid)
	}
	return doc
}

func buildHandoff(ctx context.Context, store *capsule.Store, res *identity.Resolution, sid string) (string, error) {
	files, err := store.List(ctx, res.SessionNS(sid, "files"), 0)
	if err != nil {
		return "", err
	}
	agents, err := store.List(ctx, res.SessionNS(sid, "subagents"), 0)
	if err != nil {
		return "", err
	}

	var created, modified, reviewed []string
	for i := len(files) - 1; i >= 0; i-- { // oldest first reads naturally
		rec := files[i]
		path := rec.ContentString("filePath")
		if path == "" {
			continue
		}
		switch rec.ContentString("action") {
		case "write":
			created = appendOnce(created, path)
		case "edit":
			modified = appendOnce(modified, path)
		case "read":
			reviewed = appendOnce(reviewed, path)
		}
	}

	var b strings.Builder
	b.WriteString("# Session Handoff\n")
	if res.Crew != nil {
		fmt.Fprintf(&b, "\nTeammate: %s\n", res.Crew.TeammateName)
	}

	writeFileGroup(&b, "Created", created)
	writeFileGroup(&b, "Modified", modified)
	// A long review trail is context noise; only short ones carry over.
	if len(reviewed) > 0 && len(reviewed) <= 5 {
		writeFileGroup(&b, "Reviewed", reviewed)
	}

	if len(agents) > 0 {
		b.WriteString("\n## Sub-Agents Used\n")
		for i := len(agents) - 1; i >= 0; i-- {
			rec := agents[i]
			agentType := rec.ContentString("agentType")
			if agentType == "" {
				agentType = rec.Title
			}
			fmt.Fprintf(&b, "- %s: %s\n", agentType, truncate(rec.Summary, 180))
		}
	}

	b.WriteString("\n## Session Summary\n")
	line := fmt.Sprintf("%d file operations, %d sub-agents", len(files), len(agents))
	if d, ok := sessionDuration(files, agents); ok {
		line += ", " + formatDuration(d) + " elapsed"
	}
	b.WriteString(line + "\n")
	return b.String(), nil
}

func fallbackHandoff(res *identity.Resolution, sid string) string {
	who := ""
	if res.Crew != nil {
		who = " [" + res.Crew.TeammateName + "]"
	}
	return fmt.Sprintf("Session %s%s ended before a full handoff could be written.", sid, who)
}

func writeFileGroup(b *strings.Builder, heading string, paths []string) {
	if len(paths) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## %s\n", heading)
	for _, p := range paths {
		fmt.Fprintf(b, "- %s\n", p)
	}
}

func appendOnce(list []string, s string) []string {
	for _, have := range list {
		if have == s {
			return list
		}
	}
	return append(list, s)
}

// sessionDuration derives wall-clock time from the min/max record
// timestamps of the session.
func sessionDuration(groups ...[]*capsule.Record) (time.Duration, bool) {
	var min, max time.Time
	for _, recs := range groups {
		for _, rec := range recs {
			for _, t := range []time.Time{rec.CreatedAt, rec.UpdatedAt} {
				if t.IsZero() {
					continue
				}
				if min.IsZero() || t.Before(min) {
					min = t
				}
				if max.IsZero() || t.After(max) {
					max = t
				}
			}
		}
	}
	if min.IsZero() || !max.After(min) {
		return 0, false
	}
	return max.Sub(min), true
}

func formatDuration(d time.Duration) string {
	if d >= time.Hour {
		return fmt.Sprintf("%.1fh", d.Hours())
	}
	if d >= time.Minute {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%ds", int(d.Seconds()))
}
