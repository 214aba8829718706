package doctor

import (
	"os"

	"github.com/crewkit/crewkit/internal/state"
	"github.com/crewkit/crewkit/internal/version"
)

// KitDirCheck verifies the kit state directory and state file exist.
type KitDirCheck struct {
	FixableCheck
}

// NewKitDirCheck creates a new kit directory check.
func NewKitDirCheck() *KitDirCheck {
	return &KitDirCheck{
		FixableCheck: FixableCheck{
			BaseCheck: BaseCheck{
				CheckName:        "kit-state",
				CheckDescription: "Verify the kit state directory is initialized",
				CheckCategory:    CategoryCore,
			},
		},
	}
}

// Run checks for the state file under the kit directory.
func (c *KitDirCheck) Run(ctx *CheckContext) *CheckResult {
	if _, err := os.Stat(state.StatePath()); err != nil {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusWarning,
			Message: "kit state not initialized",
			Details: []string{state.KitDir()},
			FixHint: "Run 'ck install' (or 'ck doctor --fix') to initialize it",
		}
	}

	st, err := state.Load()
	if err != nil {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusError,
			Message: "state file is unreadable: " + err.Error(),
			Details: []string{state.StatePath()},
		}
	}
	if !st.Enabled {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusWarning,
			Message: "crewkit is disabled",
			FixHint: "Run 'ck enable' to turn hooks back on",
		}
	}

	return &CheckResult{
		Name:    c.Name(),
		Status:  StatusOK,
		Message: state.KitDir(),
	}
}

// Fix initializes the kit directory and state file. An existing state
// file is left alone so a deliberate disable survives doctor --fix.
func (c *KitDirCheck) Fix(ctx *CheckContext) error {
	if _, err := os.Stat(state.StatePath()); err == nil {
		return nil
	}
	return state.Enable(version.Version)
}
