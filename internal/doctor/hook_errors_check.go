package doctor

import (
	"fmt"

	"github.com/crewkit/crewkit/internal/hooks"
	"github.com/crewkit/crewkit/internal/state"
)

// HookErrorsCheck surfaces recent hook failures from the error log.
// Hooks always exit 0 toward the host, so this log is the only place
// their failures show up.
type HookErrorsCheck struct {
	FixableCheck
	errorCount int
}

// NewHookErrorsCheck creates a new hook errors check.
func NewHookErrorsCheck() *HookErrorsCheck {
	return &HookErrorsCheck{
		FixableCheck: FixableCheck{
			BaseCheck: BaseCheck{
				CheckName:        "hook-errors",
				CheckDescription: "Check for recent hook execution errors",
				CheckCategory:    CategoryHooks,
			},
		},
	}
}

// Run checks the hook error log for recent failures.
func (c *HookErrorsCheck) Run(ctx *CheckContext) *CheckResult {
	c.errorCount = 0

	errorLog := hooks.NewErrorLog(state.KitDir())
	recent, err := errorLog.GetRecentErrors(10)
	if err != nil {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusOK,
			Message: "No hook error log found",
		}
	}
	if len(recent) == 0 {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusOK,
			Message: "No recent hook errors",
		}
	}

	c.errorCount = len(recent)

	var details []string
	for _, e := range recent {
		countStr := ""
		if e.Count > 1 {
			countStr = fmt.Sprintf(" (x%d)", e.Count)
		}
		details = append(details, fmt.Sprintf("%s [%s] exit %d%s - %s",
			e.HookType, truncateStr(e.Command, 30), e.ExitCode, countStr, e.Role))
	}

	return &CheckResult{
		Name:    c.Name(),
		Status:  StatusWarning,
		Message: fmt.Sprintf("Found %d recent hook error(s)", len(recent)),
		Details: details,
		FixHint: "Run 'ck doctor --fix' to clear the log after resolving the cause",
	}
}

// Fix clears the hook error log.
func (c *HookErrorsCheck) Fix(ctx *CheckContext) error {
	if c.errorCount == 0 {
		return nil
	}
	return hooks.NewErrorLog(state.KitDir()).ClearErrors()
}

// truncateStr shortens s to max characters with an ellipsis.
func truncateStr(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
