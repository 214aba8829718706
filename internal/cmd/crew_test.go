package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/crewkit/crewkit/internal/crewcfg"
	"github.com/crewkit/crewkit/internal/git"
	"github.com/crewkit/crewkit/internal/identity"
	"github.com/crewkit/crewkit/internal/state"
	"github.com/crewkit/crewkit/internal/team"
	"github.com/crewkit/crewkit/internal/testutil"
)

// devConfig is a two-teammate profile used by most crew tests. The
// worktree paths it produces are <root>-dev-feat--a and
// <root>-dev-feat--b.
const devConfig = `{
  "profiles": {
    "dev": {
      "name": "feature-crew",
      "teammates": [
        {"name": "alice", "branch": "feat/a", "focus": "parser work"},
        {"name": "bob", "branch": "feat/b", "focus": "renderer work"}
      ]
    }
  },
  "default": "dev",
  "project": {"main_branch": "main"}
}
`

func writeCrewConfig(t *testing.T, root, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(root, crewcfg.ConfigFileName), []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// resetCrewFlags clears the package-level flag state that persists
// between direct runX calls.
func resetCrewFlags() {
	startFresh = false
	stopCleanup = false
	gcDeleteBranches = false
	gcForce = false
	gcDryRun = false
}

func TestCrewInitWritesTemplate(t *testing.T) {
	testutil.NewKitEnv(t)
	root := testutil.InitRepo(t)
	t.Chdir(root)
	resetCrewFlags()

	if err := runCrewInit(crewInitCmd, nil); err != nil {
		t.Fatalf("crew init: %v", err)
	}

	cfg, err := crewcfg.Load(root)
	if err != nil {
		t.Fatalf("loading written template: %v", err)
	}
	if problems := cfg.Validate(); len(problems) > 0 {
		t.Errorf("template does not validate: %v", problems)
	}
	if got := cfg.MainBranch(); got != "main" {
		t.Errorf("template main branch = %q, want main", got)
	}

	// Re-running init must refuse to clobber the existing config.
	err = runCrewInit(crewInitCmd, nil)
	if err == nil {
		t.Fatal("second crew init should fail while config exists")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("second init error = %q, want mention of existing config", err)
	}
}

func TestCrewInitOutsideRepo(t *testing.T) {
	testutil.NewKitEnv(t)
	t.Chdir(t.TempDir())
	resetCrewFlags()

	err := runCrewInit(crewInitCmd, nil)
	if err == nil {
		t.Fatal("crew init outside a repo should fail")
	}
	if !strings.Contains(err.Error(), "not inside a git repository") {
		t.Errorf("error = %q, want repo complaint", err)
	}
}

func TestDetectMainBranch(t *testing.T) {
	root := testutil.InitRepo(t)
	if got := detectMainBranch(git.NewGit(root)); got != "main" {
		t.Errorf("detectMainBranch = %q, want main", got)
	}

	testutil.RunGit(t, root, "branch", "-M", "master")
	if got := detectMainBranch(git.NewGit(root)); got != "master" {
		t.Errorf("detectMainBranch after rename = %q, want master", got)
	}
}

func TestCrewStartProvisionsTeam(t *testing.T) {
	testutil.NewKitEnv(t)
	root := testutil.InitRepo(t)
	writeCrewConfig(t, root, devConfig)
	t.Chdir(root)
	resetCrewFlags()

	if err := runCrewStart(crewStartCmd, []string{"dev"}); err != nil {
		t.Fatalf("crew start: %v", err)
	}

	wantPaths := map[string]string{
		"alice": root + "-dev-feat--a",
		"bob":   root + "-dev-feat--b",
	}
	for name, wt := range wantPaths {
		if fi, err := os.Stat(wt); err != nil || !fi.IsDir() {
			t.Fatalf("worktree for %s missing at %s: %v", name, wt, err)
		}
		id, err := identity.LoadIdentity(filepath.Join(wt, identity.IdentityFileName))
		if err != nil {
			t.Fatalf("identity for %s: %v", name, err)
		}
		if id.TeammateName != name {
			t.Errorf("identity teammate = %q, want %q", id.TeammateName, name)
		}
		if id.ProjectRoot != root {
			t.Errorf("identity project root = %q, want %q", id.ProjectRoot, root)
		}
		if id.ProfileName != "dev" {
			t.Errorf("identity profile = %q, want dev", id.ProfileName)
		}
	}

	hash := identity.ProjectHash(root)
	reg, err := state.LoadRegistry(hash)
	if err != nil {
		t.Fatalf("loading registry: %v", err)
	}
	if len(reg.Worktrees) != 2 {
		t.Fatalf("registry has %d entries, want 2", len(reg.Worktrees))
	}

	st, err := team.Load(hash, "dev")
	if err != nil || st == nil {
		t.Fatalf("loading team state: %v (st=%v)", err, st)
	}
	if st.Status != team.StatusActive {
		t.Errorf("team status = %q, want %q", st.Status, team.StatusActive)
	}
	if st.TeamName != "feature-crew" {
		t.Errorf("team name = %q, want feature-crew", st.TeamName)
	}
	cfg, err := crewcfg.Load(root)
	if err != nil {
		t.Fatalf("re-loading config: %v", err)
	}
	if st.ConfigHash != cfg.Hash() {
		t.Errorf("config hash = %q, want %q", st.ConfigHash, cfg.Hash())
	}
	for name, wt := range wantPaths {
		ts, ok := st.Teammates[name]
		if !ok {
			t.Fatalf("team state missing teammate %s", name)
		}
		if ts.Status != team.TeammatePending {
			t.Errorf("%s status = %q, want %q", name, ts.Status, team.TeammatePending)
		}
		if ts.WorktreePath != wt {
			t.Errorf("%s worktree = %q, want %q", name, ts.WorktreePath, wt)
		}
	}
	if len(st.SpawnPrompts) != 2 {
		t.Errorf("spawn prompts = %d, want 2", len(st.SpawnPrompts))
	}

	if _, err := os.Stat(state.LeadPromptPath(hash, "dev")); err != nil {
		t.Errorf("lead prompt not saved: %v", err)
	}

	// Starting again must be idempotent: worktrees kept, state rebuilt.
	if err := runCrewStart(crewStartCmd, []string{"dev"}); err != nil {
		t.Fatalf("second crew start: %v", err)
	}
	for _, wt := range wantPaths {
		if _, err := os.Stat(wt); err != nil {
			t.Errorf("worktree lost after restart: %v", err)
		}
	}
}

func TestCrewStartRejectsInvalidConfig(t *testing.T) {
	testutil.NewKitEnv(t)
	root := testutil.InitRepo(t)
	writeCrewConfig(t, root, `{"profiles": {"dev": {"name": "x", "teammates": [
		{"name": "a", "branch": "feat/a"},
		{"name": "a", "branch": "feat/b"}
	]}}}`)
	t.Chdir(root)
	resetCrewFlags()

	err := runCrewStart(crewStartCmd, nil)
	if err == nil {
		t.Fatal("start with duplicate teammate names should fail")
	}
	if !strings.Contains(err.Error(), "invalid crew config") {
		t.Errorf("error = %q, want invalid-config complaint", err)
	}
}

func TestCrewStartUnknownProfile(t *testing.T) {
	testutil.NewKitEnv(t)
	root := testutil.InitRepo(t)
	writeCrewConfig(t, root, devConfig)
	t.Chdir(root)
	resetCrewFlags()

	if err := runCrewStart(crewStartCmd, []string{"nope"}); err == nil {
		t.Fatal("start with unknown profile should fail")
	}
}

func TestCrewStartMissingConfig(t *testing.T) {
	testutil.NewKitEnv(t)
	root := testutil.InitRepo(t)
	t.Chdir(root)
	resetCrewFlags()

	err := runCrewStart(crewStartCmd, nil)
	if err == nil {
		t.Fatal("start without a config should fail")
	}
	if !strings.Contains(err.Error(), "ck crew init") {
		t.Errorf("error = %q, want pointer to crew init", err)
	}
}

func TestCrewStopMarksTeamStopped(t *testing.T) {
	testutil.NewKitEnv(t)
	root := testutil.InitRepo(t)
	writeCrewConfig(t, root, devConfig)
	t.Chdir(root)
	resetCrewFlags()

	if err := runCrewStart(crewStartCmd, nil); err != nil {
		t.Fatalf("crew start: %v", err)
	}
	if err := runCrewStop(crewStopCmd, nil); err != nil {
		t.Fatalf("crew stop: %v", err)
	}

	hash := identity.ProjectHash(root)
	st, err := team.Load(hash, "dev")
	if err != nil || st == nil {
		t.Fatalf("loading team state: %v", err)
	}
	if st.Status != team.StatusStopped {
		t.Errorf("team status = %q, want %q", st.Status, team.StatusStopped)
	}
	for name, ts := range st.Teammates {
		if ts.Status != team.TeammateStopped {
			t.Errorf("%s status = %q, want %q", name, ts.Status, team.TeammateStopped)
		}
	}

	// Worktrees survive a stop without --cleanup.
	if _, err := os.Stat(root + "-dev-feat--a"); err != nil {
		t.Errorf("worktree removed by plain stop: %v", err)
	}
}

func TestCrewStopWithoutState(t *testing.T) {
	testutil.NewKitEnv(t)
	root := testutil.InitRepo(t)
	t.Chdir(root)
	resetCrewFlags()

	// Nothing to stop is not an error; the command reports and exits 0.
	if err := runCrewStop(crewStopCmd, nil); err != nil {
		t.Fatalf("stop without state: %v", err)
	}
}

func TestCrewStopCleanupRemovesWorktrees(t *testing.T) {
	testutil.NewKitEnv(t)
	root := testutil.InitRepo(t)
	writeCrewConfig(t, root, devConfig)
	t.Chdir(root)
	resetCrewFlags()

	if err := runCrewStart(crewStartCmd, nil); err != nil {
		t.Fatalf("crew start: %v", err)
	}
	stopCleanup = true
	defer resetCrewFlags()
	if err := runCrewStop(crewStopCmd, nil); err != nil {
		t.Fatalf("crew stop --cleanup: %v", err)
	}

	for _, wt := range []string{root + "-dev-feat--a", root + "-dev-feat--b"} {
		if _, err := os.Stat(wt); !os.IsNotExist(err) {
			t.Errorf("worktree %s still present after cleanup", wt)
		}
	}
	reg, err := state.LoadRegistry(identity.ProjectHash(root))
	if err != nil {
		t.Fatalf("loading registry: %v", err)
	}
	if len(reg.Worktrees) != 0 {
		t.Errorf("registry still has %d entries after cleanup", len(reg.Worktrees))
	}
}

func TestCrewGCSweepsStoppedTeam(t *testing.T) {
	testutil.NewKitEnv(t)
	root := testutil.InitRepo(t)
	writeCrewConfig(t, root, devConfig)
	t.Chdir(root)
	resetCrewFlags()

	if err := runCrewStart(crewStartCmd, nil); err != nil {
		t.Fatalf("crew start: %v", err)
	}
	if err := runCrewStop(crewStopCmd, nil); err != nil {
		t.Fatalf("crew stop: %v", err)
	}

	// Dry run lists but removes nothing.
	gcDryRun = true
	if err := runCrewGC(crewGCCmd, nil); err != nil {
		t.Fatalf("crew gc --dry-run: %v", err)
	}
	if _, err := os.Stat(root + "-dev-feat--a"); err != nil {
		t.Fatalf("dry run removed a worktree: %v", err)
	}

	gcDryRun = false
	gcForce = true
	defer resetCrewFlags()
	if err := runCrewGC(crewGCCmd, nil); err != nil {
		t.Fatalf("crew gc --force: %v", err)
	}

	for _, wt := range []string{root + "-dev-feat--a", root + "-dev-feat--b"} {
		if _, err := os.Stat(wt); !os.IsNotExist(err) {
			t.Errorf("orphan %s survived gc", wt)
		}
	}
	reg, err := state.LoadRegistry(identity.ProjectHash(root))
	if err != nil {
		t.Fatalf("loading registry: %v", err)
	}
	if len(reg.Worktrees) != 0 {
		t.Errorf("registry still has %d entries after gc", len(reg.Worktrees))
	}
}

func TestCrewGCNothingToDo(t *testing.T) {
	testutil.NewKitEnv(t)
	t.Chdir(t.TempDir())
	resetCrewFlags()

	// No crew state anywhere: gc reports cleanly.
	if err := runCrewGC(crewGCCmd, nil); err != nil {
		t.Fatalf("gc with no state: %v", err)
	}
}

func TestResolveProfileName(t *testing.T) {
	testutil.NewKitEnv(t)
	root := testutil.InitRepo(t)

	if got := resolveProfileName(root, "other"); got != "other" {
		t.Errorf("explicit arg: got %q", got)
	}
	if got := resolveProfileName(root, ""); got != crewcfg.DefaultProfileName {
		t.Errorf("no config: got %q, want %q", got, crewcfg.DefaultProfileName)
	}

	writeCrewConfig(t, root, devConfig)
	if got := resolveProfileName(root, ""); got != "dev" {
		t.Errorf("config default: got %q, want dev", got)
	}
}
