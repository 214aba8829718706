// Package team persists per-profile team state: who is on the team,
// which worktree each teammate owns, and enough liveness data to decide
// between resuming a previous session and starting fresh.
package team

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/crewkit/crewkit/internal/crewcfg"
	"github.com/crewkit/crewkit/internal/state"
	"github.com/crewkit/crewkit/internal/util"
)

// Team status values.
const (
	StatusActive  = "active"
	StatusStopped = "stopped"
)

// Teammate status values.
const (
	TeammatePending = "pending"
	TeammateActive  = "active"
	TeammateIdle    = "idle"
	TeammateStopped = "stopped"
)

// TeammateState tracks one teammate inside a team snapshot.
type TeammateState struct {
	Branch       string     `json:"branch"`
	WorktreePath string     `json:"worktree_path,omitempty"`
	Status       string     `json:"status"`
	AgentID      string     `json:"agent_id,omitempty"`
	LastActive   *time.Time `json:"last_active,omitempty"`
}

// State is the per-profile runtime snapshot. It is the single source of
// truth for resume decisions; config_hash gates resumption.
type State struct {
	TeamName     string                    `json:"team_name"`
	ProfileName  string                    `json:"profile_name"`
	ConfigHash   string                    `json:"config_hash"`
	Status       string                    `json:"status"`
	StartedAt    time.Time                 `json:"started_at"`
	UpdatedAt    time.Time                 `json:"updated_at"`
	Teammates    map[string]*TeammateState `json:"teammates"`
	SpawnPrompts map[string]string         `json:"spawn_prompts,omitempty"`
}

// Load reads the team state for a project profile. A missing state file
// returns (nil, nil). The legacy flat layout (team-state.json directly in
// the project's crew dir) migrates to default/team-state.json on first
// read.
func Load(projectHash, profile string) (*State, error) {
	path := state.TeamStatePath(projectHash, profile)

	if profile == crewcfg.DefaultProfileName {
		if err := migrateLegacy(projectHash); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading team state: %w", err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing team state %s: %w", path, err)
	}
	if s.Teammates == nil {
		s.Teammates = map[string]*TeammateState{}
	}
	return &s, nil
}

// migrateLegacy moves a flat team-state.json into the default profile
// directory. Earlier releases kept a single implicit profile.
func migrateLegacy(projectHash string) error {
	legacy := filepath.Join(state.CrewDir(projectHash), "team-state.json")
	if _, err := os.Stat(legacy); err != nil {
		return nil
	}
	target := state.TeamStatePath(projectHash, crewcfg.DefaultProfileName)
	if _, err := os.Stat(target); err == nil {
		// Both exist; the profile layout wins and the flat file is stale.
		return os.Remove(legacy)
	}

	data, err := os.ReadFile(legacy)
	if err != nil {
		return fmt.Errorf("reading legacy team state: %w", err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("parsing legacy team state: %w", err)
	}
	if s.ProfileName == "" {
		s.ProfileName = crewcfg.DefaultProfileName
	}
	if err := util.EnsureDirAndWriteJSON(target, &s); err != nil {
		return err
	}
	return os.Remove(legacy)
}

// Save persists the state atomically and stamps updated_at.
func Save(projectHash string, s *State) error {
	s.UpdatedAt = time.Now()
	path := state.TeamStatePath(projectHash, s.ProfileName)
	return util.EnsureDirAndWriteJSON(path, s)
}

// Delete removes a profile's team state. Used only when the user
// intentionally clears a profile.
func Delete(projectHash, profile string) error {
	err := os.Remove(state.TeamStatePath(projectHash, profile))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Profiles lists profiles that have team state for a project.
func Profiles(projectHash string) ([]string, error) {
	entries, err := os.ReadDir(state.CrewDir(projectHash))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(state.TeamStatePath(projectHash, e.Name())); err == nil {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

// ShouldResume decides between resuming prev and starting fresh. Fresh
// when there is no previous state, the config hash changed, or no
// teammate was active within the staleness window.
func ShouldResume(prev *State, configHash string, staleWindow time.Duration, now time.Time) bool {
	if prev == nil {
		return false
	}
	if prev.ConfigHash != configHash {
		return false
	}
	for _, tm := range prev.Teammates {
		if tm.LastActive != nil && now.Sub(*tm.LastActive) <= staleWindow {
			return true
		}
	}
	return false
}

// Build assembles the state written by a start: teammates come from the
// resolved config, worktree paths from provisioning. When resuming,
// teammates that existed before carry their agent_id and last_active
// forward; everyone else starts pending with no agent.
func Build(teamName, profile, configHash string, mates []crewcfg.Teammate, worktreePaths map[string]string, prev *State, resume bool, now time.Time) *State {
	s := &State{
		TeamName:    teamName,
		ProfileName: profile,
		ConfigHash:  configHash,
		Status:      StatusActive,
		StartedAt:   now,
		Teammates:   make(map[string]*TeammateState, len(mates)),
	}
	for _, tm := range mates {
		ts := &TeammateState{
			Branch:       tm.Branch,
			WorktreePath: worktreePaths[tm.Name],
			Status:       TeammatePending,
		}
		if resume && prev != nil {
			if old, ok := prev.Teammates[tm.Name]; ok {
				ts.AgentID = old.AgentID
				ts.LastActive = old.LastActive
				if old.Status != "" && old.Status != TeammateStopped {
					ts.Status = old.Status
				}
			}
		}
		s.Teammates[tm.Name] = ts
	}
	return s
}

// TouchTeammate stamps a teammate's liveness from a hook event. Missing
// state or teammate is not an error; hooks must stay silent.
func TouchTeammate(projectHash, profile, name, status string) error {
	s, err := Load(projectHash, profile)
	if err != nil || s == nil {
		return err
	}
	tm, ok := s.Teammates[name]
	if !ok {
		return nil
	}
	now := time.Now()
	tm.LastActive = &now
	if status != "" {
		tm.Status = status
	}
	return Save(projectHash, s)
}
