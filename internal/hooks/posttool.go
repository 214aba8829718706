package hooks

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/crewkit/crewkit/internal/capsule"
	"github.com/crewkit/crewkit/internal/hooklog"
	"github.com/crewkit/crewkit/internal/util"
)

// fileTools maps capture-worthy tool names to the action stored on the
// record.
var fileTools = map[string]string{
	"Read":  "read",
	"Write": "write",
	"Edit":  "edit",
}

// skipSegments are path components that mark VCS metadata or
// dependency caches; activity there is noise, not context.
var skipSegments = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	".venv":        true,
	"__pycache__":  true,
}

// maxSurfacedDiscoveries bounds the related-discoveries fragment.
const maxSurfacedDiscoveries = 3

// PostToolUse is the primary capture path. File tools become file
// records and Task spawns become sub-agent records; Read results also
// surface related discoveries on the way out.
func PostToolUse(ctx context.Context, rc *RunContext) error {
	ev := rc.Event
	if ev.SessionID == "" || ev.ToolName == "" {
		return nil
	}

	if action, ok := fileTools[ev.ToolName]; ok {
		return captureFile(ctx, rc, action)
	}
	if ev.ToolName == "Task" {
		return captureTask(ctx, rc)
	}
	return nil
}

// captureFile persists one file touch. The title carries the action so
// a read and an edit of the same file stay distinct records, while
// repeats of the same action on the same file collapse into one.
func captureFile(ctx context.Context, rc *RunContext, action string) error {
	path := rc.Event.Path()
	if path == "" || skipPath(path) {
		return nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	tags := []string{"file", action, rc.Event.SessionID}
	if mate := rc.Teammate(); mate != "" {
		tags = append(tags, mate)
	}
	rec := &capsule.Record{
		Namespace: rc.Res.SessionNS(rc.Event.SessionID, "files"),
		Title:     filepath.Base(abs) + ":" + action,
		Summary:   action + ": " + abs,
		Type:      capsule.TypeMeta,
		Content: map[string]interface{}{
			"filePath":  abs,
			"action":    action,
			"timestamp": rc.Now.UTC().Format(time.RFC3339),
		},
		Tags: tags,
	}
	if err := saveRecord(ctx, rc.Store, rec); err != nil {
		return err
	}

	if action == "read" {
		surfaceDiscoveries(ctx, rc, abs)
	}
	return nil
}

// skipPath reports whether any component of path is VCS metadata or a
// dependency cache.
func skipPath(path string) bool {
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if skipSegments[seg] {
			return true
		}
	}
	return false
}

// surfaceDiscoveries prints a markdown fragment pointing at discoveries
// that mention the file just read. Best-effort: any failure means the
// host simply gets nothing extra.
func surfaceDiscoveries(ctx context.Context, rc *RunContext, abs string) {
	base := filepath.Base(abs)
	var matched []*capsule.Record
	for _, ns := range rc.Res.DiscoveryNamespaces() {
		recs, err := rc.Store.List(ctx, ns, 50)
		if err != nil {
			continue
		}
		for _, rec := range recs {
			if mentionsFile(rec, abs, base) {
				matched = append(matched, rec)
			}
		}
	}
	if len(matched) == 0 {
		return
	}
	if len(matched) > maxSurfacedDiscoveries {
		matched = matched[:maxSurfacedDiscoveries]
	}

	var b strings.Builder
	b.WriteString("## Related Discoveries\n")
	for _, rec := range matched {
		fmt.Fprintf(&b, "- %s\n", rec.Summary)
		// Surfacing counts as an access; it feeds hit-count ranking.
		if _, err := rc.Store.GetAndTouch(ctx, rec.Namespace, rec.Title); err != nil {
			hooklog.Debug("discovery touch failed", "err", err)
		}
	}
	fmt.Fprint(rc.Stdout, b.String())
}

func mentionsFile(rec *capsule.Record, abs, base string) bool {
	if strings.Contains(rec.Summary, abs) || strings.Contains(rec.Summary, base) {
		return true
	}
	if f := rec.ContentString("file"); f != "" {
		return f == abs || filepath.Base(f) == base
	}
	return false
}

// captureTask persists a sub-agent spawn and, in crew mode, shares any
// discovery its result contains.
func captureTask(ctx context.Context, rc *RunContext) error {
	in := rc.Event.ToolInput
	if in == nil || in.SubagentType == "" {
		return nil
	}

	tags := []string{"subagent", in.SubagentType, rc.Event.SessionID}
	if mate := rc.Teammate(); mate != "" {
		tags = append(tags, mate)
	}
	rec := &capsule.Record{
		Namespace: rc.Res.SessionNS(rc.Event.SessionID, "subagents"),
		Title:     in.SubagentType + " - " + rc.Now.UTC().Format(time.RFC3339),
		Summary:   strings.TrimSpace(in.Prompt),
		Type:      capsule.TypeSummary,
		Content: map[string]interface{}{
			"agentType": in.SubagentType,
			"prompt":    truncate(strings.TrimSpace(in.Prompt), 500),
		},
		Tags: tags,
	}
	if err := saveRecord(ctx, rc.Store, rec); err != nil {
		return err
	}

	captureDiscovery(ctx, rc)
	return nil
}

// discoveryCues mark a sub-agent result worth sharing with the crew.
var discoveryCues = []string{
	"found", "discovered", "identified",
	"pattern:", "issue:", "important:", "key finding:",
}

// captureDiscovery shares one finding from a specialist sub-agent
// result with the rest of the crew. At most one per invocation;
// general-purpose agents are too chatty to mine.
func captureDiscovery(ctx context.Context, rc *RunContext) {
	if rc.Res.Crew == nil {
		return
	}
	agent := rc.Event.ToolInput.SubagentType
	if agent == "" || agent == "general-purpose" {
		return
	}
	span := discoverySpan(rc.Event.ResultText())
	if span == "" {
		return
	}

	rec := &capsule.Record{
		Namespace: rc.Res.DiscoveryNS(),
		Title:     util.GenerateSlug(span),
		Summary:   span,
		Type:      capsule.TypeSummary,
		Content: map[string]interface{}{
			"agentType": agent,
			"sessionId": rc.Event.SessionID,
		},
		Tags: []string{"discovery", "crew-shared", agent, rc.Res.Crew.TeammateName},
	}
	if err := saveRecord(ctx, rc.Store, rec); err != nil {
		hooklog.Debug("discovery save failed", "err", err)
	}
}

// discoverySpan extracts the first 10-100 char span starting at a
// discovery cue, cut at the line end. Empty when nothing qualifies.
func discoverySpan(result string) string {
	if result == "" {
		return ""
	}
	lower := strings.ToLower(result)
	best := -1
	for _, cue := range discoveryCues {
		if i := strings.Index(lower, cue); i >= 0 && (best < 0 || i < best) {
			best = i
		}
	}
	if best < 0 {
		return ""
	}

	span := result[best:]
	if nl := strings.IndexByte(span, '\n'); nl >= 0 {
		span = span[:nl]
	}
	span = strings.TrimSpace(span)
	if len(span) > 100 {
		cut := 100
		for cut > 0 && !utf8.ValidString(span[:cut]) {
			cut--
		}
		span = strings.TrimSpace(span[:cut])
	}
	if len(span) < 10 {
		return ""
	}
	return span
}
