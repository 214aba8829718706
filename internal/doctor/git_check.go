package doctor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/crewkit/crewkit/internal/git"
)

// GitVersionCheck verifies git is installed and new enough for worktree
// provisioning (2.5) and warns when merge previews must fall back to the
// legacy merge-tree form (pre 2.38).
type GitVersionCheck struct {
	BaseCheck
}

// NewGitVersionCheck creates a new git version check.
func NewGitVersionCheck() *GitVersionCheck {
	return &GitVersionCheck{
		BaseCheck: BaseCheck{
			CheckName:        "git-version",
			CheckDescription: "Verify git is installed and supports worktrees",
			CheckCategory:    CategoryCore,
		},
	}
}

// Run checks the installed git version.
func (c *GitVersionCheck) Run(ctx *CheckContext) *CheckResult {
	v, err := git.Version()
	if err != nil {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusError,
			Message: "git not found on PATH",
			FixHint: "Install git 2.5 or newer",
		}
	}

	major, minor, ok := parseGitVersion(v)
	if !ok {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusWarning,
			Message: fmt.Sprintf("could not parse git version %q", v),
		}
	}

	if major < 2 || (major == 2 && minor < 5) {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusError,
			Message: fmt.Sprintf("git %s is too old for worktrees", v),
			FixHint: "Upgrade to git 2.5 or newer",
		}
	}
	if major == 2 && minor < 38 {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusWarning,
			Message: fmt.Sprintf("git %s found", v),
			Details: []string{"merge previews fall back to the legacy merge-tree form (2.38+ has --write-tree)"},
		}
	}

	return &CheckResult{
		Name:    c.Name(),
		Status:  StatusOK,
		Message: "git " + v,
	}
}

// parseGitVersion extracts major.minor from strings like "2.43.0" or
// "2.39.3 (Apple Git-146)".
func parseGitVersion(v string) (major, minor int, ok bool) {
	fields := strings.Fields(v)
	if len(fields) == 0 {
		return 0, 0, false
	}
	parts := strings.Split(fields[0], ".")
	if len(parts) < 2 {
		return 0, 0, false
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	return major, minor, true
}
