package util

import (
	"strings"
	"testing"
)

func TestExecWithOutputTrims(t *testing.T) {
	out, err := ExecWithOutput(t.TempDir(), "echo", "feat/parser")
	if err != nil {
		t.Fatalf("ExecWithOutput: %v", err)
	}
	if out != "feat/parser" {
		t.Errorf("out = %q, want %q", out, "feat/parser")
	}
}

func TestExecWithOutputFoldsFailureOutput(t *testing.T) {
	_, err := ExecWithOutput(".", "sh", "-c", "echo 'fatal: not a git repository' >&2; exit 128")
	if err == nil {
		t.Fatal("expected error for exit 128")
	}
	if !strings.Contains(err.Error(), "not a git repository") {
		t.Errorf("error %q should carry the command's stderr", err.Error())
	}
}

func TestExecWithOutputRunsInWorkDir(t *testing.T) {
	dir := t.TempDir()
	out, err := ExecWithOutput(dir, "pwd")
	if err != nil {
		t.Fatalf("ExecWithOutput: %v", err)
	}
	// Either side may resolve symlinks (macOS /tmp vs /private/tmp).
	if !strings.Contains(out, dir) && !strings.Contains(dir, out) {
		t.Errorf("pwd = %q, want a path under %q", out, dir)
	}
}

func TestExecRun(t *testing.T) {
	if err := ExecRun(".", "true"); err != nil {
		t.Fatalf("ExecRun true: %v", err)
	}
	if err := ExecRun(".", "false"); err == nil {
		t.Error("ExecRun false should fail")
	}
}
