package hooks

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/crewkit/crewkit/internal/util"
)

// commandMarker identifies hook commands the kit manages inside a
// settings file it shares with the user and other tools.
const commandMarker = "ck hook "

// Hook is an individual hook command.
type Hook struct {
	Type    string `json:"type"` // "command"
	Command string `json:"command"`
}

// HookEntry is a matcher with its hooks.
type HookEntry struct {
	Matcher string `json:"matcher"`
	Hooks   []Hook `json:"hooks"`
}

// HooksConfig is the hooks section of the host settings file.
type HooksConfig struct {
	PreToolUse   []HookEntry `json:"PreToolUse,omitempty"`
	PostToolUse  []HookEntry `json:"PostToolUse,omitempty"`
	SessionStart []HookEntry `json:"SessionStart,omitempty"`
	PreCompact   []HookEntry `json:"PreCompact,omitempty"`
	SessionEnd   []HookEntry `json:"SessionEnd,omitempty"`
}

// EventTypes lists the hook events the kit wires, in display order.
var EventTypes = []string{
	EventPreToolUse,
	EventPostToolUse,
	EventSessionStart,
	EventPreCompact,
	EventSessionEnd,
}

// GetEntries returns the entries for an event type.
func (c *HooksConfig) GetEntries(eventType string) []HookEntry {
	switch eventType {
	case EventPreToolUse:
		return c.PreToolUse
	case EventPostToolUse:
		return c.PostToolUse
	case EventSessionStart:
		return c.SessionStart
	case EventPreCompact:
		return c.PreCompact
	case EventSessionEnd:
		return c.SessionEnd
	default:
		return nil
	}
}

// SetEntries replaces the entries for an event type.
func (c *HooksConfig) SetEntries(eventType string, entries []HookEntry) {
	switch eventType {
	case EventPreToolUse:
		c.PreToolUse = entries
	case EventPostToolUse:
		c.PostToolUse = entries
	case EventSessionStart:
		c.SessionStart = entries
	case EventPreCompact:
		c.PreCompact = entries
	case EventSessionEnd:
		c.SessionEnd = entries
	}
}

// Settings is the host settings.json. Only the hooks section is
// interpreted; every other key rides along byte-for-byte in Extra.
type Settings struct {
	Hooks HooksConfig
	Extra map[string]json.RawMessage
}

// LoadSettings reads a settings file, preserving unknown fields. A
// missing file yields empty settings.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Settings{Extra: map[string]json.RawMessage{}}, nil
		}
		return nil, err
	}
	return UnmarshalSettings(data)
}

// UnmarshalSettings parses settings JSON, preserving unknown fields.
func UnmarshalSettings(data []byte) (*Settings, error) {
	s := &Settings{Extra: map[string]json.RawMessage{}}
	if err := json.Unmarshal(data, &s.Extra); err != nil {
		return nil, fmt.Errorf("hooks: parse settings: %w", err)
	}
	if raw, ok := s.Extra["hooks"]; ok {
		if err := json.Unmarshal(raw, &s.Hooks); err != nil {
			return nil, fmt.Errorf("hooks: parse hooks section: %w", err)
		}
	}
	return s, nil
}

// MarshalSettings serializes settings, writing the hooks section back
// into the raw map so unknown keys survive untouched.
func MarshalSettings(s *Settings) ([]byte, error) {
	if s.Extra == nil {
		s.Extra = map[string]json.RawMessage{}
	}
	raw, err := json.Marshal(s.Hooks)
	if err != nil {
		return nil, err
	}
	s.Extra["hooks"] = raw
	return json.MarshalIndent(s.Extra, "", "  ")
}

// SaveSettings writes a settings file with a trailing newline for
// human editing.
func SaveSettings(path string, s *Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := MarshalSettings(s)
	if err != nil {
		return err
	}
	return util.AtomicWriteFile(path, append(data, '\n'), 0644)
}

// matchers restricts each event to the tools its handler consumes, so
// the host skips the kit entirely for everything else.
var matchers = map[string]string{
	EventPreToolUse:   "Read|Grep|Glob",
	EventPostToolUse:  "Read|Write|Edit|Task",
	EventSessionStart: "",
	EventPreCompact:   "",
	EventSessionEnd:   "",
}

// hookCommand renders the shell command for one event.
func hookCommand(bin, eventType string) string {
	if bin == "" {
		bin = "ck"
	}
	return bin + " hook " + CLIName(eventType)
}

// Install wires the five kit hooks into the settings file at path,
// preserving everything already there. Returns whether the file
// changed.
func Install(path, bin string) (bool, error) {
	s, err := LoadSettings(path)
	if err != nil {
		return false, err
	}

	changed := false
	for _, eventType := range EventTypes {
		command := hookCommand(bin, eventType)
		matcher := matchers[eventType]
		entries := s.Hooks.GetEntries(eventType)

		if containsCommand(entries, command) {
			continue
		}

		placed := false
		for i := range entries {
			if entries[i].Matcher == matcher {
				entries[i].Hooks = append(entries[i].Hooks, Hook{Type: "command", Command: command})
				placed = true
				break
			}
		}
		if !placed {
			entries = append(entries, HookEntry{
				Matcher: matcher,
				Hooks:   []Hook{{Type: "command", Command: command}},
			})
		}
		s.Hooks.SetEntries(eventType, entries)
		changed = true
	}

	if !changed {
		return false, nil
	}
	return true, SaveSettings(path, s)
}

// Uninstall removes every kit-managed hook from the settings file,
// leaving user hooks and unknown settings intact.
func Uninstall(path string) (bool, error) {
	s, err := LoadSettings(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	changed := false
	for _, eventType := range EventTypes {
		entries := s.Hooks.GetEntries(eventType)
		var kept []HookEntry
		for _, entry := range entries {
			var hooks []Hook
			for _, h := range entry.Hooks {
				if strings.Contains(h.Command, commandMarker) {
					changed = true
					continue
				}
				hooks = append(hooks, h)
			}
			if len(hooks) > 0 {
				entry.Hooks = hooks
				kept = append(kept, entry)
			} else if len(entry.Hooks) == 0 {
				// Entry was already empty; not ours to drop.
				kept = append(kept, entry)
			} else {
				changed = true
			}
		}
		s.Hooks.SetEntries(eventType, kept)
	}

	if !changed {
		return false, nil
	}
	return true, SaveSettings(path, s)
}

// MissingEvents reports which kit hooks are not wired in the settings
// file. Doctor uses this to diagnose and fix partial installs.
func MissingEvents(path string) ([]string, error) {
	s, err := LoadSettings(path)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, eventType := range EventTypes {
		wired := false
		for _, entry := range s.Hooks.GetEntries(eventType) {
			for _, h := range entry.Hooks {
				if strings.Contains(h.Command, commandMarker) {
					wired = true
				}
			}
		}
		if !wired {
			missing = append(missing, eventType)
		}
	}
	return missing, nil
}

func containsCommand(entries []HookEntry, command string) bool {
	for _, entry := range entries {
		for _, h := range entry.Hooks {
			if h.Command == command {
				return true
			}
		}
	}
	return false
}
