package hooks

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestComputeHash(t *testing.T) {
	a := computeHash("SessionStart", "ck hook session-start", "proj/1a2b3c4d5e6f/crew/alice")
	b := computeHash("SessionStart", "ck hook session-start", "proj/1a2b3c4d5e6f/crew/alice")
	if a != b {
		t.Errorf("hash not stable: %s vs %s", a, b)
	}
	if len(a) != 16 {
		t.Errorf("hash length = %d, want 16", len(a))
	}

	variants := []string{
		computeHash("PreCompact", "ck hook session-start", "proj/1a2b3c4d5e6f/crew/alice"),
		computeHash("SessionStart", "ck hook pre-compact", "proj/1a2b3c4d5e6f/crew/alice"),
		computeHash("SessionStart", "ck hook session-start", "proj/1a2b3c4d5e6f/crew/bob"),
	}
	for i, v := range variants {
		if v == a {
			t.Errorf("variant %d collided with base hash", i)
		}
	}
}

func TestErrorLogReportAndRead(t *testing.T) {
	log := NewErrorLog(t.TempDir())

	logged, err := log.ReportError("SessionStart", "ck hook session-start", 1, "database is locked", "proj/1a2b3c4d5e6f/crew/alice")
	if err != nil {
		t.Fatalf("ReportError: %v", err)
	}
	if !logged {
		t.Error("first failure should write a new entry")
	}

	entries, err := log.GetRecentErrors(10)
	if err != nil {
		t.Fatalf("GetRecentErrors: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}

	e := entries[0]
	if e.HookType != "SessionStart" || e.Command != "ck hook session-start" {
		t.Errorf("entry identity = %s/%s", e.HookType, e.Command)
	}
	if e.ExitCode != 1 {
		t.Errorf("exit code = %d, want 1", e.ExitCode)
	}
	if e.Stderr != "database is locked" {
		t.Errorf("stderr = %q", e.Stderr)
	}
	if e.Role != "proj/1a2b3c4d5e6f/crew/alice" {
		t.Errorf("role = %q", e.Role)
	}
	if e.Count != 1 {
		t.Errorf("count = %d, want 1", e.Count)
	}
}

func TestErrorLogDedupWithinWindow(t *testing.T) {
	log := NewErrorLog(t.TempDir())
	log.dedupWindow = 5 * time.Second

	first, _ := log.ReportError("PostToolUse", "ck hook post-tool", 1, "", "crew/alice")
	second, _ := log.ReportError("PostToolUse", "ck hook post-tool", 1, "", "crew/alice")
	if !first {
		t.Error("first failure should write a new entry")
	}
	if second {
		t.Error("repeat within the window should fold into the count")
	}

	entries, _ := log.GetRecentErrors(10)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Count != 2 {
		t.Errorf("count = %d, want 2", entries[0].Count)
	}
}

func TestErrorLogDistinctFailureClasses(t *testing.T) {
	log := NewErrorLog(t.TempDir())

	log.ReportError("SessionStart", "ck hook session-start", 1, "", "crew/alice")
	log.ReportError("SessionStart", "ck hook session-end", 1, "", "crew/alice")
	log.ReportError("PreCompact", "ck hook session-start", 1, "", "crew/alice")
	log.ReportError("SessionStart", "ck hook session-start", 1, "", "crew/bob")

	entries, _ := log.GetRecentErrors(10)
	if len(entries) != 4 {
		t.Errorf("entries = %d, want 4 distinct failure classes", len(entries))
	}
}

func TestErrorLogNewestFirst(t *testing.T) {
	log := NewErrorLog(t.TempDir())

	log.ReportError("SessionStart", "ck hook session-start", 1, "", "")
	log.ReportError("PreCompact", "ck hook pre-compact", 1, "", "")

	entries, _ := log.GetRecentErrors(1)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].HookType != "PreCompact" {
		t.Errorf("newest entry = %s, want PreCompact", entries[0].HookType)
	}
}

func TestErrorLogBoundsStderr(t *testing.T) {
	log := NewErrorLog(t.TempDir())

	log.ReportError("PostToolUse", "ck hook post-tool", 1, strings.Repeat("x", 2000), "")

	entries, _ := log.GetRecentErrors(1)
	got := entries[0].Stderr
	if len(got) > maxStderrLen+3 {
		t.Errorf("stderr length = %d, want <= %d plus ellipsis", len(got), maxStderrLen)
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("bounded stderr should end with an ellipsis")
	}
}

func TestErrorLogClear(t *testing.T) {
	log := NewErrorLog(t.TempDir())

	log.ReportError("SessionStart", "ck hook session-start", 1, "", "")
	if err := log.ClearErrors(); err != nil {
		t.Fatalf("ClearErrors: %v", err)
	}
	if entries, _ := log.GetRecentErrors(10); len(entries) != 0 {
		t.Errorf("entries after clear = %d, want 0", len(entries))
	}

	// Clearing an already-empty log is fine.
	if err := log.ClearErrors(); err != nil {
		t.Errorf("ClearErrors on empty log: %v", err)
	}
}

func TestErrorLogCapsLength(t *testing.T) {
	log := NewErrorLog(t.TempDir())

	for i := 0; i < MaxErrorsToKeep+25; i++ {
		log.ReportError("PostToolUse", fmt.Sprintf("ck hook post-tool --run %d", i), 1, "", "")
	}

	entries, _ := log.GetRecentErrors(0)
	if len(entries) != MaxErrorsToKeep {
		t.Errorf("entries = %d, want cap %d", len(entries), MaxErrorsToKeep)
	}
	// Oldest entries fall off; the newest survives.
	if want := fmt.Sprintf("ck hook post-tool --run %d", MaxErrorsToKeep+24); entries[0].Command != want {
		t.Errorf("newest = %q, want %q", entries[0].Command, want)
	}
}

func TestErrorLogGetErrorsSince(t *testing.T) {
	log := NewErrorLog(t.TempDir())
	log.ReportError("SessionStart", "ck hook session-start", 1, "", "")

	future, _ := log.GetErrorsSince(time.Now().Add(time.Minute))
	if len(future) != 0 {
		t.Errorf("entries since the future = %d, want 0", len(future))
	}

	past, _ := log.GetErrorsSince(time.Now().Add(-time.Hour))
	if len(past) != 1 {
		t.Errorf("entries since an hour ago = %d, want 1", len(past))
	}
}

func TestErrorLogSurvivesReload(t *testing.T) {
	dir := t.TempDir()

	NewErrorLog(dir).ReportError("SessionEnd", "ck hook session-end", 2, "store open failed", "")

	entries, _ := NewErrorLog(dir).GetRecentErrors(10)
	if len(entries) != 1 {
		t.Fatalf("entries after reload = %d, want 1", len(entries))
	}
	if entries[0].Command != "ck hook session-end" {
		t.Errorf("command = %q", entries[0].Command)
	}
}

func TestErrorLogSkipsCorruptLines(t *testing.T) {
	dir := t.TempDir()
	log := NewErrorLog(dir)
	log.ReportError("SessionStart", "ck hook session-start", 1, "", "")

	f, err := os.OpenFile(log.path(), os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	f.WriteString("{not json\n")
	f.Close()

	log.ReportError("PreCompact", "ck hook pre-compact", 1, "", "")

	entries, err := log.GetRecentErrors(10)
	if err != nil {
		t.Fatalf("GetRecentErrors: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("entries = %d, want 2 (corrupt line skipped)", len(entries))
	}
}

func TestErrorLogCreatesRuntimeDir(t *testing.T) {
	root := filepath.Join(t.TempDir(), "missing", "nested")
	log := NewErrorLog(root)

	if _, err := log.ReportError("SessionStart", "ck hook session-start", 1, "", ""); err != nil {
		t.Fatalf("ReportError: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, ".runtime")); err != nil {
		t.Errorf("runtime dir missing: %v", err)
	}
}
