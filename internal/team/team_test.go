package team

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/crewkit/crewkit/internal/crewcfg"
	"github.com/crewkit/crewkit/internal/state"
	"github.com/crewkit/crewkit/internal/util"
)

const testHash = "abc123def456"

func withKitDir(t *testing.T) {
	t.Helper()
	t.Setenv(state.HomeEnv, t.TempDir())
}

func TestLoadMissing(t *testing.T) {
	withKitDir(t)
	s, err := Load(testHash, "dev")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s != nil {
		t.Errorf("expected nil state, got %+v", s)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	withKitDir(t)
	now := time.Now()

	s := &State{
		TeamName:    "dev",
		ProfileName: "dev",
		ConfigHash:  "feedface0001",
		Status:      StatusActive,
		StartedAt:   now,
		Teammates: map[string]*TeammateState{
			"alice": {Branch: "feat/a", WorktreePath: "/tmp/repo-dev-feat--a", Status: TeammatePending},
		},
	}
	if err := Save(testHash, s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if s.UpdatedAt.IsZero() {
		t.Error("Save did not stamp updated_at")
	}

	got, err := Load(testHash, "dev")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil {
		t.Fatal("Load returned nil after Save")
	}
	if got.ConfigHash != "feedface0001" || got.Status != StatusActive {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.Teammates["alice"] == nil || got.Teammates["alice"].Branch != "feat/a" {
		t.Errorf("teammate lost in round trip: %+v", got.Teammates)
	}
}

func TestLegacyMigration(t *testing.T) {
	withKitDir(t)

	legacy := filepath.Join(state.CrewDir(testHash), "team-state.json")
	old := &State{TeamName: "dev", Status: StatusActive, Teammates: map[string]*TeammateState{
		"alice": {Branch: "feat/a", Status: TeammateActive},
	}}
	if err := util.EnsureDirAndWriteJSON(legacy, old); err != nil {
		t.Fatal(err)
	}

	got, err := Load(testHash, crewcfg.DefaultProfileName)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil {
		t.Fatal("expected migrated state")
	}
	if got.ProfileName != crewcfg.DefaultProfileName {
		t.Errorf("migrated profile = %q", got.ProfileName)
	}
	if got.Teammates["alice"] == nil {
		t.Error("teammates lost in migration")
	}

	if _, err := os.Stat(legacy); !os.IsNotExist(err) {
		t.Error("legacy file still present after migration")
	}
	if _, err := os.Stat(state.TeamStatePath(testHash, crewcfg.DefaultProfileName)); err != nil {
		t.Errorf("migrated file missing: %v", err)
	}
}

func TestShouldResume(t *testing.T) {
	now := time.Now()
	fresh := now.Add(-1 * time.Hour)
	stale := now.Add(-48 * time.Hour)
	window := 24 * time.Hour

	active := &State{ConfigHash: "h1", Teammates: map[string]*TeammateState{
		"alice": {LastActive: &fresh},
	}}

	if ShouldResume(nil, "h1", window, now) {
		t.Error("nil state should not resume")
	}
	if !ShouldResume(active, "h1", window, now) {
		t.Error("matching hash with recent activity should resume")
	}
	if ShouldResume(active, "h2", window, now) {
		t.Error("config hash change must force fresh")
	}

	staleState := &State{ConfigHash: "h1", Teammates: map[string]*TeammateState{
		"alice": {LastActive: &stale},
	}}
	if ShouldResume(staleState, "h1", window, now) {
		t.Error("stale activity should force fresh")
	}

	never := &State{ConfigHash: "h1", Teammates: map[string]*TeammateState{
		"alice": {},
	}}
	if ShouldResume(never, "h1", window, now) {
		t.Error("no last_active anywhere should force fresh")
	}
}

func TestBuildFresh(t *testing.T) {
	now := time.Now()
	mates := []crewcfg.Teammate{
		{Name: "alice", Branch: "feat/a"},
		{Name: "bob", Branch: "feat/b"},
	}
	paths := map[string]string{"alice": "/wt/a", "bob": "/wt/b"}

	s := Build("dev", "dev", "h1", mates, paths, nil, false, now)
	if s.Status != StatusActive || s.ConfigHash != "h1" {
		t.Errorf("state header: %+v", s)
	}
	for name, tm := range s.Teammates {
		if tm.Status != TeammatePending {
			t.Errorf("%s status = %q, want pending", name, tm.Status)
		}
		if tm.AgentID != "" || tm.LastActive != nil {
			t.Errorf("%s should start with no agent: %+v", name, tm)
		}
	}
	if s.Teammates["alice"].WorktreePath != "/wt/a" {
		t.Errorf("worktree path not attached: %+v", s.Teammates["alice"])
	}
}

func TestBuildResumeCarriesAgent(t *testing.T) {
	now := time.Now()
	was := now.Add(-time.Hour)
	prev := &State{
		ConfigHash: "h1",
		Teammates: map[string]*TeammateState{
			"alice": {Branch: "feat/a", Status: TeammateActive, AgentID: "agent-7", LastActive: &was},
			"gone":  {Branch: "feat/x", Status: TeammateActive, AgentID: "agent-9"},
		},
	}
	mates := []crewcfg.Teammate{
		{Name: "alice", Branch: "feat/a"},
		{Name: "newbie", Branch: "feat/n"},
	}

	s := Build("dev", "dev", "h1", mates, nil, prev, true, now)

	alice := s.Teammates["alice"]
	if alice.AgentID != "agent-7" {
		t.Errorf("agent_id not carried: %+v", alice)
	}
	if alice.LastActive == nil || !alice.LastActive.Equal(was) {
		t.Errorf("last_active not carried: %+v", alice)
	}
	if alice.Status != TeammateActive {
		t.Errorf("status not carried: %q", alice.Status)
	}

	newbie := s.Teammates["newbie"]
	if newbie.AgentID != "" || newbie.Status != TeammatePending {
		t.Errorf("new teammate should start pending: %+v", newbie)
	}

	if _, ok := s.Teammates["gone"]; ok {
		t.Error("teammate removed from config survived the rebuild")
	}
}

func TestTouchTeammate(t *testing.T) {
	withKitDir(t)

	s := &State{
		TeamName: "dev", ProfileName: "dev", ConfigHash: "h1", Status: StatusActive,
		Teammates: map[string]*TeammateState{"alice": {Branch: "feat/a", Status: TeammatePending}},
	}
	if err := Save(testHash, s); err != nil {
		t.Fatal(err)
	}

	if err := TouchTeammate(testHash, "dev", "alice", TeammateActive); err != nil {
		t.Fatalf("TouchTeammate: %v", err)
	}

	got, err := Load(testHash, "dev")
	if err != nil {
		t.Fatal(err)
	}
	alice := got.Teammates["alice"]
	if alice.Status != TeammateActive || alice.LastActive == nil {
		t.Errorf("touch did not stick: %+v", alice)
	}

	// Unknown teammate and missing state are silent no-ops.
	if err := TouchTeammate(testHash, "dev", "ghost", TeammateActive); err != nil {
		t.Errorf("unknown teammate errored: %v", err)
	}
	if err := TouchTeammate("0000deadbeef", "dev", "alice", TeammateActive); err != nil {
		t.Errorf("missing state errored: %v", err)
	}
}

func TestProfiles(t *testing.T) {
	withKitDir(t)

	if err := Save(testHash, &State{TeamName: "a", ProfileName: "dev", Status: StatusActive}); err != nil {
		t.Fatal(err)
	}
	if err := Save(testHash, &State{TeamName: "b", ProfileName: "docs", Status: StatusStopped}); err != nil {
		t.Fatal(err)
	}

	profiles, err := Profiles(testHash)
	if err != nil {
		t.Fatalf("Profiles: %v", err)
	}
	if len(profiles) != 2 {
		t.Errorf("Profiles = %v", profiles)
	}
}
