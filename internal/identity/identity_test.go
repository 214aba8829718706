package identity

import (
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/crewkit/crewkit/internal/state"
)

var hexHash = regexp.MustCompile(`^[0-9a-f]{12}$`)

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
}

func TestProjectHashStable(t *testing.T) {
	dir := t.TempDir()

	h1 := ProjectHash(dir)
	h2 := ProjectHash(dir)
	if h1 != h2 {
		t.Errorf("hash not stable: %q vs %q", h1, h2)
	}
	if !hexHash.MatchString(h1) {
		t.Errorf("hash %q is not 12 hex chars", h1)
	}

	other := t.TempDir()
	if ProjectHash(other) == h1 {
		t.Error("different directories produced the same hash")
	}
}

func TestProjectHashUsesRemote(t *testing.T) {
	const remote = "https://example.com/org/repo.git"

	a := t.TempDir()
	runGit(t, a, "init")
	runGit(t, a, "remote", "add", "origin", remote)

	b := t.TempDir()
	runGit(t, b, "init")
	runGit(t, b, "remote", "add", "origin", remote)

	ha, hb := ProjectHash(a), ProjectHash(b)
	if ha != hb {
		t.Errorf("clones of the same remote hashed differently: %q vs %q", ha, hb)
	}

	c := t.TempDir()
	runGit(t, c, "init")
	if ProjectHash(c) == ha {
		t.Error("repo without origin should hash by path, not collide with remote hash")
	}
}

func TestStorePath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	claudeDir := filepath.Join(home, ".claude")
	if err := os.MkdirAll(claudeDir, 0755); err != nil {
		t.Fatal(err)
	}

	canonical := filepath.Join(claudeDir, "capsule.db")
	legacy := filepath.Join(claudeDir, "context.db")

	// Neither present: canonical.
	if got := StorePath(); got != canonical {
		t.Errorf("StorePath() = %q, want canonical %q", got, canonical)
	}

	// Only legacy present: legacy wins.
	if err := os.WriteFile(legacy, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if got := StorePath(); got != legacy {
		t.Errorf("StorePath() = %q, want legacy %q", got, legacy)
	}

	// Canonical present: canonical wins over legacy.
	if err := os.WriteFile(canonical, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if got := StorePath(); got != canonical {
		t.Errorf("StorePath() = %q, want canonical %q", got, canonical)
	}

	// Env override beats everything.
	t.Setenv(StoreEnv, "/elsewhere/test.db")
	if got := StorePath(); got != "/elsewhere/test.db" {
		t.Errorf("StorePath() = %q, want env override", got)
	}
}

func testIdentity(name string) *CrewIdentity {
	return &CrewIdentity{
		TeammateName: name,
		ProjectRoot:  "/work/repo",
		Branch:       "feat/" + name,
		TeamName:     "dev",
		ProfileName:  "dev",
		CreatedAt:    time.Now(),
	}
}

func TestIdentityFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := testIdentity("alice")

	if err := WriteIdentity(dir, want); err != nil {
		t.Fatalf("WriteIdentity: %v", err)
	}
	got, err := LoadIdentity(filepath.Join(dir, IdentityFileName))
	if err != nil {
		t.Fatalf("LoadIdentity: %v", err)
	}
	if got.TeammateName != "alice" || got.Branch != "feat/alice" || got.ProfileName != "dev" {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestResolveCrewFromCWD(t *testing.T) {
	t.Setenv(state.HomeEnv, t.TempDir())
	cwd := t.TempDir()
	if err := WriteIdentity(cwd, testIdentity("alice")); err != nil {
		t.Fatal(err)
	}

	id := ResolveCrew(cwd, "", "aaaabbbbcccc")
	if id == nil || id.TeammateName != "alice" {
		t.Errorf("expected alice from CWD identity file, got %+v", id)
	}
}

func TestResolveCrewFromStateDir(t *testing.T) {
	t.Setenv(state.HomeEnv, t.TempDir())
	cwd := t.TempDir()
	sub := filepath.Join(cwd, ".claude")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if err := WriteIdentity(sub, testIdentity("bob")); err != nil {
		t.Fatal(err)
	}

	id := ResolveCrew(cwd, "", "aaaabbbbcccc")
	if id == nil || id.TeammateName != "bob" {
		t.Errorf("expected bob from state-dir identity file, got %+v", id)
	}
}

func TestResolveCrewFromEnv(t *testing.T) {
	t.Setenv(state.HomeEnv, t.TempDir())
	wt := t.TempDir()
	if err := WriteIdentity(wt, testIdentity("carol")); err != nil {
		t.Fatal(err)
	}
	t.Setenv(WorktreeEnv, wt)

	id := ResolveCrew(t.TempDir(), "", "aaaabbbbcccc")
	if id == nil || id.TeammateName != "carol" {
		t.Errorf("expected carol from env hint, got %+v", id)
	}
}

func TestResolveCrewFromRegistry(t *testing.T) {
	t.Setenv(state.HomeEnv, t.TempDir())
	const hash = "aaaabbbbcccc"

	alice := t.TempDir()
	bob := t.TempDir()
	if err := WriteIdentity(alice, testIdentity("alice")); err != nil {
		t.Fatal(err)
	}
	if err := WriteIdentity(bob, testIdentity("bob")); err != nil {
		t.Fatal(err)
	}

	reg := &state.Registry{}
	reg.Add(state.WorktreeEntry{Name: "alice", Branch: "feat/alice", Path: alice})
	if err := state.SaveRegistry(hash, reg); err != nil {
		t.Fatal(err)
	}

	cwd := t.TempDir() // outside any worktree

	// Single registered worktree resolves without a hint.
	if id := ResolveCrew(cwd, "", hash); id == nil || id.TeammateName != "alice" {
		t.Errorf("expected alice from single-entry registry, got %+v", id)
	}

	reg.Add(state.WorktreeEntry{Name: "bob", Branch: "feat/bob", Path: bob})
	if err := state.SaveRegistry(hash, reg); err != nil {
		t.Fatal(err)
	}

	// Two worktrees and no hint is ambiguous.
	if id := ResolveCrew(cwd, "", hash); id != nil {
		t.Errorf("expected nil for ambiguous registry, got %+v", id)
	}

	// A filePath hint inside bob's worktree disambiguates.
	hint := filepath.Join(bob, "src", "main.go")
	if id := ResolveCrew(cwd, hint, hash); id == nil || id.TeammateName != "bob" {
		t.Errorf("expected bob via filePath hint, got %+v", id)
	}
}

func TestDisabled(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	if Disabled(nested) {
		t.Error("expected enabled with no marker")
	}

	if err := os.WriteFile(filepath.Join(root, DisableMarker), nil, 0644); err != nil {
		t.Fatal(err)
	}
	if !Disabled(nested) {
		t.Error("expected disabled via marker in ancestor")
	}

	t.Setenv("CREWKIT_DISABLED", "1")
	if !Disabled(t.TempDir()) {
		t.Error("expected disabled via env")
	}
}

func TestNamespaces(t *testing.T) {
	solo := &Resolution{ProjectHash: "abc123def456"}
	if got := solo.SessionNS("s1", "files"); got != "proj/abc123def456/session/s1/files" {
		t.Errorf("solo SessionNS = %q", got)
	}
	if got := solo.SessionRootNS(); got != "proj/abc123def456/session" {
		t.Errorf("solo SessionRootNS = %q", got)
	}
	if got := solo.DiscoveryNS(); got != "proj/abc123def456/discoveries" {
		t.Errorf("solo DiscoveryNS = %q", got)
	}
	if got := solo.DiscoveryNamespaces(); len(got) != 1 {
		t.Errorf("solo DiscoveryNamespaces = %v", got)
	}

	crew := &Resolution{ProjectHash: "abc123def456", Crew: testIdentity("alice")}
	if got := crew.SessionNS("s1", "files"); got != "proj/abc123def456/crew/alice/session/s1/files" {
		t.Errorf("crew SessionNS = %q", got)
	}
	if got := crew.DiscoveryNS(); got != "proj/abc123def456/crew/_shared/discoveries" {
		t.Errorf("crew DiscoveryNS = %q", got)
	}
	if got := crew.DiscoveryNamespaces(); len(got) != 2 {
		t.Errorf("crew DiscoveryNamespaces = %v", got)
	}
}
