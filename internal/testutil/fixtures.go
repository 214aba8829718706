// Package testutil provides shared fixtures for integration-style
// tests: throwaway git repositories and a kit environment redirected
// into the test's temp area.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// RunGit runs git in dir, failing the test on error. Returns combined
// output for assertions that need it.
func RunGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
	return strings.TrimSpace(string(out))
}

// InitRepo creates a git repo named "repo" inside a fresh temp base
// with one commit on main. Sibling worktree paths land inside the same
// cleaned-up area.
func InitRepo(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	root := filepath.Join(base, "repo")
	if err := os.MkdirAll(root, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	RunGit(t, root, "init")
	RunGit(t, root, "config", "user.email", "test@test.com")
	RunGit(t, root, "config", "user.name", "Test User")
	CommitFile(t, root, "README.md", "# repo\n", "initial")
	RunGit(t, root, "branch", "-M", "main")
	return root
}

// CommitFile writes rel inside the repo and commits it.
func CommitFile(t *testing.T, repo, rel, content, msg string) {
	t.Helper()
	path := filepath.Join(repo, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	RunGit(t, repo, "add", rel)
	RunGit(t, repo, "commit", "-m", msg)
}

// KitEnv is a kit installation redirected into a test temp dir.
type KitEnv struct {
	Home      string
	KitDir    string
	StorePath string
}

// NewKitEnv points every kit path at the test's temp area and enables
// the kit. The store file itself is not created; tests that need one
// open it explicitly.
func NewKitEnv(t *testing.T) *KitEnv {
	t.Helper()
	home := t.TempDir()
	kitDir := filepath.Join(home, ".claude", "crewkit")
	store := filepath.Join(home, ".claude", "capsule.db")

	t.Setenv("HOME", home)
	t.Setenv("CREWKIT_HOME", kitDir)
	t.Setenv("CREWKIT_DB", store)
	t.Setenv("CREWKIT_ENABLED", "1")

	return &KitEnv{Home: home, KitDir: kitDir, StorePath: store}
}

// SettingsPath returns the host settings.json under this environment.
func (e *KitEnv) SettingsPath() string {
	return filepath.Join(e.Home, ".claude", "settings.json")
}
