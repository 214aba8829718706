package doctor

import (
	"fmt"
	"os"

	"github.com/crewkit/crewkit/internal/state"
)

// RegistryCheck detects worktree registry entries whose directories no
// longer exist. Dangling entries confuse identity resolution and hold
// up garbage collection.
type RegistryCheck struct {
	FixableCheck
	dangling []string
}

// NewRegistryCheck creates a new worktree registry check.
func NewRegistryCheck() *RegistryCheck {
	return &RegistryCheck{
		FixableCheck: FixableCheck{
			BaseCheck: BaseCheck{
				CheckName:        "worktree-registry",
				CheckDescription: "Detect registry entries pointing at missing worktrees",
				CheckCategory:    CategoryCrew,
			},
		},
	}
}

// Run scans the current project's registry for dangling entries.
func (c *RegistryCheck) Run(ctx *CheckContext) *CheckResult {
	c.dangling = nil

	if ctx.ProjectHash == "" {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusOK,
			Message: "not inside a project; skipped",
		}
	}

	reg, err := state.LoadRegistry(ctx.ProjectHash)
	if err != nil {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusError,
			Message: "registry unreadable: " + err.Error(),
		}
	}
	if len(reg.Worktrees) == 0 {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusOK,
			Message: "no registered worktrees",
		}
	}

	var details []string
	for _, e := range reg.Worktrees {
		if dirExists(e.Path) {
			continue
		}
		c.dangling = append(c.dangling, e.Path)
		details = append(details, fmt.Sprintf("%s: %s is gone", e.Name, e.Path))
	}

	if len(c.dangling) == 0 {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusOK,
			Message: fmt.Sprintf("%d worktree(s) registered, all present", len(reg.Worktrees)),
		}
	}

	return &CheckResult{
		Name:    c.Name(),
		Status:  StatusWarning,
		Message: fmt.Sprintf("%d dangling registry entr(ies)", len(c.dangling)),
		Details: details,
		FixHint: "Run 'ck crew gc' or 'ck doctor --fix' to drop them",
	}
}

// Fix removes the dangling entries found by the last Run.
func (c *RegistryCheck) Fix(ctx *CheckContext) error {
	if ctx.ProjectHash == "" || len(c.dangling) == 0 {
		return nil
	}
	return state.UpdateRegistry(ctx.ProjectHash, func(r *state.Registry) error {
		for _, path := range c.dangling {
			r.Remove(path)
		}
		return nil
	})
}

// dirExists checks if a directory exists.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
