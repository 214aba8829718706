package hooks

import (
	"context"

	"github.com/crewkit/crewkit/internal/capsule"
)

// PreCompact writes the handoff record while the host still has full
// context. Compaction never waits on us: a failure degrades to no
// handoff, not a blocked host.
func PreCompact(ctx context.Context, rc *RunContext) error {
	sid := rc.Event.SessionID
	if sid == "" {
		return nil
	}

	doc := Handoff(ctx, rc.Store, rc.Res, sid)

	tags := []string{"handoff", "pre-compact", sid}
	if mate := rc.Teammate(); mate != "" {
		tags = append(tags, mate)
	}
	rec := &capsule.Record{
		Namespace: rc.Res.SessionNS(sid, "handoff"),
		Title:     "handoff-" + rc.Now.UTC().Format("20060102-150405"),
		Summary:   doc,
		Type:      capsule.TypeSummary,
		Tags:      tags,
	}
	return saveRecord(ctx, rc.Store, rec)
}
