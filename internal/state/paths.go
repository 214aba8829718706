// Package state manages the kit's per-machine state: the directory
// layout under the host agent's config area, the global enable/disable
// toggle, and the per-project worktree registry.
package state

import (
	"os"
	"path/filepath"
)

// HomeEnv overrides the kit directory, mainly for tests.
const HomeEnv = "CREWKIT_HOME"

// ClaudeDir returns the host agent's config directory.
func ClaudeDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".claude")
}

// KitDir returns the kit's state directory, ~/.claude/crewkit by default.
func KitDir() string {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir
	}
	return filepath.Join(ClaudeDir(), "crewkit")
}

// StatePath returns the global state file path.
func StatePath() string {
	return filepath.Join(KitDir(), "state.json")
}

// ConfigPath returns the kit-level config file path.
func ConfigPath() string {
	return filepath.Join(KitDir(), "config.toml")
}

// CrewDir returns the per-project crew state directory.
func CrewDir(projectHash string) string {
	return filepath.Join(KitDir(), "crew", projectHash)
}

// RegistryPath returns the per-project worktree registry path.
func RegistryPath(projectHash string) string {
	return filepath.Join(CrewDir(projectHash), "worktrees.json")
}

// ProfileDir returns the per-profile state directory for a project.
func ProfileDir(projectHash, profile string) string {
	return filepath.Join(CrewDir(projectHash), profile)
}

// TeamStatePath returns the team state file for a project profile.
func TeamStatePath(projectHash, profile string) string {
	return filepath.Join(ProfileDir(projectHash, profile), "team-state.json")
}

// LeadPromptPath returns where the generated lead prompt is written.
func LeadPromptPath(projectHash, profile string) string {
	return filepath.Join(ProfileDir(projectHash, profile), "lead-prompt.md")
}
