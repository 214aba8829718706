package hooks

import (
	"context"
	"fmt"
	"time"

	"github.com/crewkit/crewkit/internal/capsule"
	"github.com/crewkit/crewkit/internal/hooklog"
	"github.com/crewkit/crewkit/internal/team"
)

// SessionEnd writes the session summary record that later sessions
// resume from and, in crew mode, marks the teammate idle.
func SessionEnd(ctx context.Context, rc *RunContext) error {
	sid := rc.Event.SessionID
	if sid == "" {
		return nil
	}

	files, err := rc.Store.List(ctx, rc.Res.SessionNS(sid, "files"), 0)
	if err != nil {
		files = nil
	}
	agents, err := rc.Store.List(ctx, rc.Res.SessionNS(sid, "subagents"), 0)
	if err != nil {
		agents = nil
	}
	branch := currentBranch(rc.Cwd)

	summary := fmt.Sprintf("%d files, %d sub-agents", len(files), len(agents))
	if mate := rc.Teammate(); mate != "" {
		summary += " [" + mate + "]"
	}
	summary += " at " + rc.Now.UTC().Format(time.RFC3339)

	content := map[string]interface{}{
		"files":     len(files),
		"subagents": len(agents),
		"ended_at":  rc.Now.UTC().Format(time.RFC3339),
	}
	if branch != "" {
		content["branch"] = branch
	}
	if mate := rc.Teammate(); mate != "" {
		content["teammate"] = mate
	}

	tags := []string{"session", sid}
	if branch != "" {
		tags = append(tags, "branch:"+branch)
	}

	rec := &capsule.Record{
		Namespace: rc.Res.SessionRootNS(),
		Title:     sid,
		Summary:   summary,
		Type:      capsule.TypeMeta,
		Content:   content,
		Tags:      tags,
	}
	if err := saveRecord(ctx, rc.Store, rec); err != nil {
		return err
	}

	if rc.Res.Crew != nil {
		err := team.TouchTeammate(rc.Res.ProjectHash, rc.Res.Crew.ProfileName,
			rc.Res.Crew.TeammateName, team.TeammateIdle)
		if err != nil {
			hooklog.Debug("team state touch failed", "err", err)
		}
	}
	return nil
}
