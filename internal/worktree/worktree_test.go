package worktree

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/crewkit/crewkit/internal/crewcfg"
	"github.com/crewkit/crewkit/internal/identity"
	"github.com/crewkit/crewkit/internal/state"
	"github.com/crewkit/crewkit/internal/team"
)

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
}

// initProjectRepo creates a git repo named "repo" inside a fresh temp
// base so sibling worktree paths land inside the same cleaned-up area.
func initProjectRepo(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	root := filepath.Join(base, "repo")
	if err := os.MkdirAll(root, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	runGit(t, root, "init")
	runGit(t, root, "config", "user.email", "test@test.com")
	runGit(t, root, "config", "user.name", "Test User")
	if err := os.WriteFile(filepath.Join(root, "README.md"), []byte("# repo\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	runGit(t, root, "add", ".")
	runGit(t, root, "commit", "-m", "initial")
	runGit(t, root, "branch", "-M", "main")
	return root
}

func TestSanitizeBranch(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"main", "main"},
		{"dev/alice", "dev--alice"},
		{"feat/a", "feat--a"},
		{"release/v1.2", "release--v1.2"},
		{"fix me!", "fix_me_"},
		{"a/b/c", "a--b--c"},
	}
	for _, c := range cases {
		if got := SanitizeBranch(c.in); got != c.want {
			t.Errorf("SanitizeBranch(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestPathMapping(t *testing.T) {
	root := "/work/repo"

	if got := Path(root, "default", "dev/alice"); got != "/work/repo-dev--alice" {
		t.Errorf("default profile path = %q", got)
	}
	if got := Path(root, "", "dev/alice"); got != "/work/repo-dev--alice" {
		t.Errorf("empty profile path = %q", got)
	}
	if got := Path(root, "docs", "dev/alice"); got != "/work/repo-docs-dev--alice" {
		t.Errorf("named profile path = %q", got)
	}
	if got := Path(root+"/", "default", "feat/a"); got != "/work/repo-feat--a" {
		t.Errorf("trailing separator path = %q", got)
	}

	// Same inputs always map to the same path; distinct profiles never
	// collide for the same branch.
	a := Path(root, "docs", "dev/alice")
	b := Path(root, "docs", "dev/alice")
	if a != b {
		t.Errorf("path not deterministic: %q vs %q", a, b)
	}
	if Path(root, "default", "dev/alice") == Path(root, "docs", "dev/alice") {
		t.Error("default and named profile paths collide")
	}
}

func TestProvisionCreatesWorktree(t *testing.T) {
	t.Setenv(state.HomeEnv, t.TempDir())
	root := initProjectRepo(t)

	// Shared state in the source project, created after the initial
	// commit so the worktree checkout does not contain it.
	srcState := filepath.Join(root, StateDirName)
	if err := os.MkdirAll(filepath.Join(srcState, "agents"), 0755); err != nil {
		t.Fatalf("mkdir agents: %v", err)
	}
	if err := os.WriteFile(filepath.Join(srcState, "agents", "helper.md"), []byte("helper\n"), 0644); err != nil {
		t.Fatalf("write helper: %v", err)
	}
	if err := os.WriteFile(filepath.Join(srcState, "settings.json"), []byte("{}\n"), 0644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	m := NewManager(root, "abc123def456")
	tm := crewcfg.Teammate{Name: "alice", Branch: "dev/alice"}

	wtPath, err := m.Provision("default", "dev", tm, "main")
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if wtPath != root+"-dev--alice" {
		t.Errorf("worktree path = %q, want %q", wtPath, root+"-dev--alice")
	}
	if _, err := os.Stat(filepath.Join(wtPath, "README.md")); err != nil {
		t.Errorf("worktree missing checked-out file: %v", err)
	}

	// Identity file at the worktree root.
	id, err := identity.LoadIdentity(filepath.Join(wtPath, identity.IdentityFileName))
	if err != nil {
		t.Fatalf("LoadIdentity: %v", err)
	}
	if id.TeammateName != "alice" || id.Branch != "dev/alice" || id.TeamName != "dev" || id.ProfileName != "default" {
		t.Errorf("identity fields wrong: %+v", id)
	}
	if id.ProjectRoot != root {
		t.Errorf("identity project root = %q, want %q", id.ProjectRoot, root)
	}

	// Registry entry recorded.
	reg, err := state.LoadRegistry("abc123def456")
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	entry := reg.FindByPath(wtPath)
	if entry == nil {
		t.Fatal("worktree not registered")
	}
	if entry.Name != "alice" || entry.Branch != "dev/alice" {
		t.Errorf("registry entry = %+v", entry)
	}

	// Shared dirs/files are symlinks; missing sources are skipped.
	wtState := filepath.Join(wtPath, StateDirName)
	for _, name := range []string{"agents", "settings.json"} {
		fi, err := os.Lstat(filepath.Join(wtState, name))
		if err != nil {
			t.Fatalf("Lstat %s: %v", name, err)
		}
		if fi.Mode()&os.ModeSymlink == 0 {
			t.Errorf("%s is not a symlink", name)
		}
	}
	if _, err := os.Lstat(filepath.Join(wtState, "commands")); !os.IsNotExist(err) {
		t.Error("commands linked despite missing source")
	}
}

func TestProvisionIdempotent(t *testing.T) {
	t.Setenv(state.HomeEnv, t.TempDir())
	root := initProjectRepo(t)

	m := NewManager(root, "abc123def456")
	tm := crewcfg.Teammate{Name: "alice", Branch: "dev/alice"}

	first, err := m.Provision("default", "dev", tm, "main")
	if err != nil {
		t.Fatalf("first Provision: %v", err)
	}

	// A local (non-symlink) file inside the worktree state dir must
	// survive re-provisioning untouched.
	local := filepath.Join(first, StateDirName, "settings.json")
	if err := os.WriteFile(local, []byte(`{"local":true}`), 0644); err != nil {
		t.Fatalf("write local settings: %v", err)
	}
	// Give the source a settings.json that would otherwise be linked.
	srcState := filepath.Join(root, StateDirName)
	if err := os.MkdirAll(srcState, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(srcState, "settings.json"), []byte("{}"), 0644); err != nil {
		t.Fatalf("write source settings: %v", err)
	}

	second, err := m.Provision("default", "dev", tm, "main")
	if err != nil {
		t.Fatalf("second Provision: %v", err)
	}
	if second != first {
		t.Errorf("paths differ across provisions: %q vs %q", first, second)
	}

	fi, err := os.Lstat(local)
	if err != nil {
		t.Fatalf("Lstat local settings: %v", err)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		t.Error("local settings.json was shadowed by a symlink")
	}
	data, _ := os.ReadFile(local)
	if string(data) != `{"local":true}` {
		t.Errorf("local settings content changed: %s", data)
	}

	reg, err := state.LoadRegistry("abc123def456")
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if len(reg.Worktrees) != 1 {
		t.Errorf("expected one registry entry, got %d", len(reg.Worktrees))
	}
}

func TestProvisionUsesExistingBranch(t *testing.T) {
	t.Setenv(state.HomeEnv, t.TempDir())
	root := initProjectRepo(t)
	runGit(t, root, "branch", "dev/bob")

	m := NewManager(root, "abc123def456")
	wtPath, err := m.Provision("default", "dev", crewcfg.Teammate{Name: "bob", Branch: "dev/bob"}, "main")
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}

	out, err := exec.Command("git", "-C", wtPath, "rev-parse", "--abbrev-ref", "HEAD").Output()
	if err != nil {
		t.Fatalf("rev-parse: %v", err)
	}
	if got := strings.TrimSpace(string(out)); got != "dev/bob" {
		t.Errorf("worktree HEAD = %q, want dev/bob", got)
	}
}

func TestProvisionRejectsForeignDir(t *testing.T) {
	t.Setenv(state.HomeEnv, t.TempDir())
	root := initProjectRepo(t)

	tm := crewcfg.Teammate{Name: "carol", Branch: "dev/carol"}
	foreign := Path(root, "default", tm.Branch)
	if err := os.MkdirAll(foreign, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	m := NewManager(root, "abc123def456")
	if _, err := m.Provision("default", "dev", tm, "main"); err == nil {
		t.Fatal("expected error for non-worktree dir at target path")
	}
}

func TestRemovePreservesSharedSources(t *testing.T) {
	t.Setenv(state.HomeEnv, t.TempDir())
	root := initProjectRepo(t)

	srcAgents := filepath.Join(root, StateDirName, "agents")
	if err := os.MkdirAll(srcAgents, 0755); err != nil {
		t.Fatalf("mkdir agents: %v", err)
	}
	if err := os.WriteFile(filepath.Join(srcAgents, "helper.md"), []byte("helper\n"), 0644); err != nil {
		t.Fatalf("write helper: %v", err)
	}

	m := NewManager(root, "abc123def456")
	wtPath, err := m.Provision("default", "dev", crewcfg.Teammate{Name: "alice", Branch: "dev/alice"}, "main")
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}

	if err := m.Remove(wtPath); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	if _, err := os.Stat(wtPath); !os.IsNotExist(err) {
		t.Error("worktree dir still present after Remove")
	}
	// The shared source must survive: the symlink is unlinked before
	// any recursive deletion can follow it.
	if _, err := os.Stat(filepath.Join(srcAgents, "helper.md")); err != nil {
		t.Errorf("shared source lost after Remove: %v", err)
	}

	reg, err := state.LoadRegistry("abc123def456")
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if reg.FindByPath(wtPath) != nil {
		t.Error("registry entry survived Remove")
	}
}

func TestUnlinkSharedKeepsLocalFiles(t *testing.T) {
	base := t.TempDir()
	wt := filepath.Join(base, "wt")
	stateDir := filepath.Join(wt, StateDirName)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	src := filepath.Join(base, "shared-agents")
	if err := os.MkdirAll(src, 0755); err != nil {
		t.Fatalf("mkdir src: %v", err)
	}
	if err := os.Symlink(src, filepath.Join(stateDir, "agents")); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	local := filepath.Join(stateDir, "session.log")
	if err := os.WriteFile(local, []byte("log\n"), 0644); err != nil {
		t.Fatalf("write local: %v", err)
	}

	UnlinkShared(wt)

	if _, err := os.Lstat(filepath.Join(stateDir, "agents")); !os.IsNotExist(err) {
		t.Error("symlink not removed")
	}
	if _, err := os.Stat(local); err != nil {
		t.Errorf("local file removed: %v", err)
	}
	if _, err := os.Stat(src); err != nil {
		t.Errorf("symlink target removed: %v", err)
	}
}

func provisionForGC(t *testing.T, hash string) (*Manager, string, string) {
	t.Helper()
	root := initProjectRepo(t)
	m := NewManager(root, hash)
	wtPath, err := m.Provision("default", "dev", crewcfg.Teammate{Name: "alice", Branch: "dev/alice"}, "main")
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	return m, root, wtPath
}

func saveTeamState(t *testing.T, hash, wtPath, teamStatus, mateStatus string, lastActive *time.Time) {
	t.Helper()
	ts := &team.State{
		TeamName:    "dev",
		ProfileName: "default",
		ConfigHash:  hash,
		Status:      teamStatus,
		StartedAt:   time.Now(),
		Teammates: map[string]*team.TeammateState{
			"alice": {
				Branch:       "dev/alice",
				WorktreePath: wtPath,
				Status:       mateStatus,
				LastActive:   lastActive,
			},
		},
	}
	if err := team.Save(hash, ts); err != nil {
		t.Fatalf("Save team state: %v", err)
	}
}

func TestFindOrphansLiveTeam(t *testing.T) {
	t.Setenv(state.HomeEnv, t.TempDir())
	hash := "aaaa11112222"
	_, _, wtPath := provisionForGC(t, hash)

	recent := time.Now().Add(-10 * time.Minute)
	saveTeamState(t, hash, wtPath, team.StatusActive, team.TeammateActive, &recent)

	orphans, err := FindOrphans(4 * time.Hour)
	if err != nil {
		t.Fatalf("FindOrphans: %v", err)
	}
	if len(orphans) != 0 {
		t.Errorf("expected no orphans, got %+v", orphans)
	}
}

func TestFindOrphansDirMissing(t *testing.T) {
	t.Setenv(state.HomeEnv, t.TempDir())
	hash := "aaaa11112222"
	_, _, wtPath := provisionForGC(t, hash)

	recent := time.Now()
	saveTeamState(t, hash, wtPath, team.StatusActive, team.TeammateActive, &recent)
	if err := os.RemoveAll(wtPath); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}

	orphans, err := FindOrphans(4 * time.Hour)
	if err != nil {
		t.Fatalf("FindOrphans: %v", err)
	}
	if len(orphans) != 1 {
		t.Fatalf("expected one orphan, got %d", len(orphans))
	}
	if orphans[0].Reason != "directory missing" {
		t.Errorf("reason = %q", orphans[0].Reason)
	}
	if orphans[0].Entry.Path != wtPath {
		t.Errorf("orphan path = %q, want %q", orphans[0].Entry.Path, wtPath)
	}
}

func TestFindOrphansTeamStopped(t *testing.T) {
	t.Setenv(state.HomeEnv, t.TempDir())
	hash := "aaaa11112222"
	_, root, wtPath := provisionForGC(t, hash)

	saveTeamState(t, hash, wtPath, team.StatusStopped, team.TeammateStopped, nil)

	orphans, err := FindOrphans(4 * time.Hour)
	if err != nil {
		t.Fatalf("FindOrphans: %v", err)
	}
	if len(orphans) != 1 {
		t.Fatalf("expected one orphan, got %d", len(orphans))
	}
	o := orphans[0]
	if !strings.Contains(o.Reason, "stopped") {
		t.Errorf("reason = %q", o.Reason)
	}
	if o.ProjectRoot != root {
		t.Errorf("inferred project root = %q, want %q", o.ProjectRoot, root)
	}
	if o.SizeBytes <= 0 {
		t.Errorf("size = %d, want > 0", o.SizeBytes)
	}
}

func TestFindOrphansStaleTeammate(t *testing.T) {
	t.Setenv(state.HomeEnv, t.TempDir())
	hash := "aaaa11112222"
	_, _, wtPath := provisionForGC(t, hash)

	stale := time.Now().Add(-5 * time.Hour)
	saveTeamState(t, hash, wtPath, team.StatusActive, team.TeammateActive, &stale)

	orphans, err := FindOrphans(4 * time.Hour)
	if err != nil {
		t.Fatalf("FindOrphans: %v", err)
	}
	if len(orphans) != 1 {
		t.Fatalf("expected one orphan, got %d", len(orphans))
	}
	if !strings.Contains(orphans[0].Reason, "inactive") {
		t.Errorf("reason = %q", orphans[0].Reason)
	}
}

func TestFindOrphansEmptyAfterCleanup(t *testing.T) {
	t.Setenv(state.HomeEnv, t.TempDir())
	hash := "aaaa11112222"
	m, _, wtPath := provisionForGC(t, hash)

	saveTeamState(t, hash, wtPath, team.StatusStopped, team.TeammateStopped, nil)
	if err := m.Remove(wtPath); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	orphans, err := FindOrphans(4 * time.Hour)
	if err != nil {
		t.Fatalf("FindOrphans: %v", err)
	}
	if len(orphans) != 0 {
		t.Errorf("expected no orphans after cleanup, got %+v", orphans)
	}
}

func TestRemoveOrphan(t *testing.T) {
	t.Setenv(state.HomeEnv, t.TempDir())
	hash := "aaaa11112222"
	_, root, wtPath := provisionForGC(t, hash)

	saveTeamState(t, hash, wtPath, team.StatusStopped, team.TeammateStopped, nil)
	orphans, err := FindOrphans(4 * time.Hour)
	if err != nil {
		t.Fatalf("FindOrphans: %v", err)
	}
	if len(orphans) != 1 {
		t.Fatalf("expected one orphan, got %d", len(orphans))
	}

	if err := RemoveOrphan(orphans[0], true); err != nil {
		t.Fatalf("RemoveOrphan: %v", err)
	}
	if _, err := os.Stat(wtPath); !os.IsNotExist(err) {
		t.Error("worktree dir still present")
	}

	out, err := exec.Command("git", "-C", root, "branch", "--list", "dev/alice").Output()
	if err != nil {
		t.Fatalf("branch list: %v", err)
	}
	if strings.TrimSpace(string(out)) != "" {
		t.Error("branch survived RemoveOrphan with deleteBranch")
	}

	reg, err := state.LoadRegistry(hash)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if len(reg.Worktrees) != 0 {
		t.Errorf("registry not empty: %+v", reg.Worktrees)
	}
}

func TestRemoveOrphanWithoutProjectRoot(t *testing.T) {
	t.Setenv(state.HomeEnv, t.TempDir())
	hash := "bbbb33334444"

	dir := filepath.Join(t.TempDir(), "stray-wt")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	err := state.UpdateRegistry(hash, func(r *state.Registry) error {
		r.Add(state.WorktreeEntry{Name: "ghost", Branch: "dev/ghost", Path: dir, CreatedAt: time.Now().Add(-48 * time.Hour)})
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateRegistry: %v", err)
	}

	o := Orphan{ProjectHash: hash, Entry: state.WorktreeEntry{Name: "ghost", Branch: "dev/ghost", Path: dir}}
	if err := RemoveOrphan(o, false); err != nil {
		t.Fatalf("RemoveOrphan: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("stray dir still present")
	}
	reg, err := state.LoadRegistry(hash)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if len(reg.Worktrees) != 0 {
		t.Errorf("registry not empty: %+v", reg.Worktrees)
	}
}

func TestInferProjectRoot(t *testing.T) {
	root := initProjectRepo(t)

	if got := InferProjectRoot(root+"-dev--alice", "dev/alice"); got != root {
		t.Errorf("default profile inference = %q, want %q", got, root)
	}
	if got := InferProjectRoot(root+"-docs-dev--alice", "dev/alice"); got != root {
		t.Errorf("named profile inference = %q, want %q", got, root)
	}

	// Fallback walks upward to the nearest primary checkout.
	nested := filepath.Join(root, "tools", "wt")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if got := InferProjectRoot(nested, ""); got != root {
		t.Errorf("walk-up inference = %q, want %q", got, root)
	}

	if got := InferProjectRoot(filepath.Join(t.TempDir(), "nowhere"), "x"); got != "" {
		t.Errorf("expected empty inference, got %q", got)
	}
}
