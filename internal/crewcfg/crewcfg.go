// Package crewcfg loads and validates the per-project crew configuration
// that drives worktree provisioning and prompt generation.
package crewcfg

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ConfigFileName is the crew config file at the project root.
const ConfigFileName = ".crew-config.json"

// DefaultStaleAfterHours bounds how old a teammate's last_active may be
// before start refuses to resume the team.
const DefaultStaleAfterHours = 4

// Teammate declares one crew member.
type Teammate struct {
	// Name identifies the teammate; unique within a profile.
	Name string `json:"name"`

	// Branch is the git branch the teammate works on.
	Branch string `json:"branch"`

	// Worktree controls whether a worktree is provisioned. Defaults to true.
	Worktree *bool `json:"worktree,omitempty"`

	// Role names a preset supplying model/mode/subagent/focus defaults.
	Role string `json:"role,omitempty"`

	// Model overrides the role's model.
	Model string `json:"model,omitempty"`

	// Mode overrides the role's permission mode.
	Mode string `json:"mode,omitempty"`

	// SubagentType overrides the role's sub-agent type.
	SubagentType string `json:"subagent_type,omitempty"`

	// Focus is appended to the role's focus prefix in spawn prompts.
	Focus string `json:"focus,omitempty"`

	// Crew is the crew grouping the teammate belongs to. Populated
	// during flattening; "default" when the team lists teammates flat.
	Crew string `json:"crew,omitempty"`
}

// WantsWorktree reports whether provisioning should create a worktree.
func (t *Teammate) WantsWorktree() bool {
	return t.Worktree == nil || *t.Worktree
}

// CrewGroup groups teammates under a named crew inside a team.
type CrewGroup struct {
	Name      string     `json:"name"`
	Teammates []Teammate `json:"teammates"`
}

// Team is one named set of teammates, listed flat or grouped into crews.
type Team struct {
	Name            string      `json:"name"`
	Teammates       []Teammate  `json:"teammates,omitempty"`
	Crews           []CrewGroup `json:"crews,omitempty"`
	StaleAfterHours int         `json:"stale_after_hours,omitempty"`
}

// Project carries project-wide settings.
type Project struct {
	// MainBranch is the integration branch worktrees fork from and
	// merge back into.
	MainBranch string `json:"main_branch,omitempty"`
}

// Config is the root of the crew config file. Exactly one of Team or
// Profiles must be set; Validate enforces this.
type Config struct {
	Team            *Team            `json:"team,omitempty"`
	Profiles        map[string]*Team `json:"profiles,omitempty"`
	Default         string           `json:"default,omitempty"`
	Project         Project          `json:"project,omitempty"`
	StaleAfterHours int              `json:"stale_after_hours,omitempty"`

	// profileOrder preserves the file's profile key order so "first
	// profile" selection follows the file, not map iteration.
	profileOrder []string
}

// StaleWindow returns the resume staleness threshold as a duration.
func (c *Config) StaleWindow() time.Duration {
	hours := c.StaleAfterHours
	if hours <= 0 {
		hours = DefaultStaleAfterHours
	}
	return time.Duration(hours) * time.Hour
}

// StaleWindowFor returns the staleness threshold for one profile:
// the profile's own setting, then the top-level one, then
// fallbackHours (the kit config), then the default.
func (c *Config) StaleWindowFor(t *Team, fallbackHours int) time.Duration {
	hours := 0
	if t != nil {
		hours = t.StaleAfterHours
	}
	if hours <= 0 {
		hours = c.StaleAfterHours
	}
	if hours <= 0 {
		hours = fallbackHours
	}
	if hours <= 0 {
		hours = DefaultStaleAfterHours
	}
	return time.Duration(hours) * time.Hour
}

// MainBranch returns the configured main branch or "main".
func (c *Config) MainBranch() string {
	if c.Project.MainBranch != "" {
		return c.Project.MainBranch
	}
	return "main"
}

// Load reads the crew config from the project root.
func Load(projectRoot string) (*Config, error) {
	return LoadFile(filepath.Join(projectRoot, ConfigFileName))
}

// LoadFile reads and parses a crew config. Unknown keys are ignored so
// configs written by newer releases still load.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read crew config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse crew config %s: %w", path, err)
	}
	cfg.profileOrder = profileKeyOrder(data)
	return &cfg, nil
}

// profileKeyOrder extracts the order of keys in the top-level "profiles"
// object. encoding/json maps drop ordering, and profile selection falls
// back to the first profile in the file.
func profileKeyOrder(data []byte) []string {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	profiles, ok := raw["profiles"]
	if !ok {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(profiles))
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return nil
	}

	var order []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return order
		}
		key, ok := keyTok.(string)
		if !ok {
			return order
		}
		order = append(order, key)
		// Consume the profile body.
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return order
		}
	}
	return order
}
