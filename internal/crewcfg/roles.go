package crewcfg

import "sort"

// RolePreset supplies defaults for a teammate role. Explicit teammate
// fields always override the preset; focus text concatenates.
type RolePreset struct {
	Model        string
	Mode         string
	SubagentType string
	FocusPrefix  string
}

// Presets is the closed dictionary of known roles.
var Presets = map[string]RolePreset{
	"developer": {
		Model:        "sonnet",
		Mode:         "bypassPermissions",
		SubagentType: "general-purpose",
		FocusPrefix:  "Implement features and fix bugs in your worktree.",
	},
	"reviewer": {
		Model:        "sonnet",
		Mode:         "default",
		SubagentType: "general-purpose",
		FocusPrefix:  "Review code for bugs and security issues. Read-only: do not modify files.",
	},
	"tester": {
		Model:        "haiku",
		Mode:         "bypassPermissions",
		SubagentType: "general-purpose",
		FocusPrefix:  "Write and run tests. Ensure coverage for new features.",
	},
	"architect": {
		Model:        "opus",
		Mode:         "default",
		SubagentType: "general-purpose",
		FocusPrefix:  "Review the architecture and suggest improvements. Read-only.",
	},
}

// KnownRole reports whether name is a preset role.
func KnownRole(name string) bool {
	_, ok := Presets[name]
	return ok
}

// RoleNames returns the preset names in sorted order.
func RoleNames() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyRole fills a teammate's unset fields from its role preset and
// prepends the role's focus prefix. Teammates without a role are left
// untouched apart from the fallback sub-agent type.
func ApplyRole(tm *Teammate) {
	preset, ok := Presets[tm.Role]
	if !ok {
		if tm.SubagentType == "" {
			tm.SubagentType = "general-purpose"
		}
		return
	}
	if tm.Model == "" {
		tm.Model = preset.Model
	}
	if tm.Mode == "" {
		tm.Mode = preset.Mode
	}
	if tm.SubagentType == "" {
		tm.SubagentType = preset.SubagentType
	}
	if preset.FocusPrefix != "" {
		if tm.Focus != "" {
			tm.Focus = preset.FocusPrefix + " " + tm.Focus
		} else {
			tm.Focus = preset.FocusPrefix
		}
	}
}
