package doctor

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/crewkit/crewkit/internal/hooks"
	"github.com/crewkit/crewkit/internal/state"
)

// HookWiringCheck verifies every hook event has a ck command registered
// in the host settings file. The fix re-runs the installer, which only
// appends what is missing.
type HookWiringCheck struct {
	FixableCheck
}

// NewHookWiringCheck creates a new hook wiring check.
func NewHookWiringCheck() *HookWiringCheck {
	return &HookWiringCheck{
		FixableCheck: FixableCheck{
			BaseCheck: BaseCheck{
				CheckName:        "hook-wiring",
				CheckDescription: "Verify all hook events are registered in settings.json",
				CheckCategory:    CategoryHooks,
			},
		},
	}
}

func settingsPath() string {
	return filepath.Join(state.ClaudeDir(), "settings.json")
}

// Run reports which hook events are missing from settings.json.
func (c *HookWiringCheck) Run(ctx *CheckContext) *CheckResult {
	path := settingsPath()
	missing, err := hooks.MissingEvents(path)
	if err != nil {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusError,
			Message: fmt.Sprintf("cannot read %s: %v", path, err),
		}
	}

	if len(missing) == 0 {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusOK,
			Message: "all hook events registered",
		}
	}

	return &CheckResult{
		Name:    c.Name(),
		Status:  StatusWarning,
		Message: fmt.Sprintf("%d hook event(s) not wired", len(missing)),
		Details: []string{"missing: " + strings.Join(missing, ", ")},
		FixHint: "Run 'ck install' (or 'ck doctor --fix') to register them",
	}
}

// Fix registers the missing hook commands.
func (c *HookWiringCheck) Fix(ctx *CheckContext) error {
	_, err := hooks.Install(settingsPath(), "")
	return err
}
