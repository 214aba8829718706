// Package config loads the kit-level configuration that tunes retention,
// staleness, and merge behavior across every project on the machine.
// The file is optional; every field has a working default.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/crewkit/crewkit/internal/state"
)

// Defaults applied when the config file is absent or a field is unset.
const (
	DefaultRetentionDays    = 30
	DefaultStaleAfterHours  = 4
	DefaultOrphanAfterHours = 4
)

// Config is the kit-level configuration at ~/.claude/crewkit/config.toml.
type Config struct {
	Store struct {
		// RetentionDays prunes records older than this many days at
		// session start and via the prune command.
		RetentionDays int `toml:"retention_days"`
	} `toml:"store"`

	Crew struct {
		// StaleAfterHours is the resume staleness window used when a
		// project's crew config does not set its own.
		StaleAfterHours int `toml:"stale_after_hours"`

		// OrphanAfterHours marks worktrees whose teammates have been
		// inactive this long as GC candidates.
		OrphanAfterHours int `toml:"orphan_after_hours"`
	} `toml:"crew"`

	Merge struct {
		// TestCommand runs after each staged merge; a non-zero exit
		// rolls the merge back.
		TestCommand string `toml:"test_command"`
	} `toml:"merge"`
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	cfg.Store.RetentionDays = DefaultRetentionDays
	cfg.Crew.StaleAfterHours = DefaultStaleAfterHours
	cfg.Crew.OrphanAfterHours = DefaultOrphanAfterHours
	return &cfg
}

// Load reads the kit config from its well-known path. A missing file
// yields the defaults, not an error.
func Load() (*Config, error) {
	return LoadFile(state.ConfigPath())
}

// LoadFile reads a kit config from path, layered over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading kit config: %w", err)
	}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing kit config %s: %w", path, err)
	}
	cfg.normalize()
	return cfg, nil
}

// normalize snaps out-of-range values back to their defaults.
func (c *Config) normalize() {
	if c.Store.RetentionDays <= 0 {
		c.Store.RetentionDays = DefaultRetentionDays
	}
	if c.Crew.StaleAfterHours <= 0 {
		c.Crew.StaleAfterHours = DefaultStaleAfterHours
	}
	if c.Crew.OrphanAfterHours <= 0 {
		c.Crew.OrphanAfterHours = DefaultOrphanAfterHours
	}
}
