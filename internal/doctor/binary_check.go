package doctor

import (
	"fmt"

	"github.com/crewkit/crewkit/internal/version"
)

// StaleBinaryCheck warns when the running ck binary was built from an
// older commit than the source tree it sits in. Only meaningful inside
// the crewkit repo itself.
type StaleBinaryCheck struct {
	BaseCheck
}

// NewStaleBinaryCheck creates a new stale binary check.
func NewStaleBinaryCheck() *StaleBinaryCheck {
	return &StaleBinaryCheck{
		BaseCheck: BaseCheck{
			CheckName:        "stale-binary",
			CheckDescription: "Check whether the ck binary matches the source tree",
			CheckCategory:    CategoryCore,
		},
	}
}

// Run compares the binary's commit stamp against the source tree HEAD.
func (c *StaleBinaryCheck) Run(ctx *CheckContext) *CheckResult {
	if ctx.ProjectRoot == "" || !version.HasKitSource(ctx.ProjectRoot) {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusOK,
			Message: "not in the crewkit source tree; skipped",
		}
	}

	info := version.CheckStaleBinary(ctx.ProjectRoot)
	if info.Error != nil {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusWarning,
			Message: "cannot compare binary to source: " + info.Error.Error(),
		}
	}
	if info.IsStale {
		msg := "binary is stale"
		if info.CommitsBehind > 0 {
			msg = fmt.Sprintf("binary is %d commit(s) behind the source tree", info.CommitsBehind)
		}
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusWarning,
			Message: msg,
			Details: []string{
				"binary: " + version.ShortCommit(info.BinaryCommit),
				"source: " + version.ShortCommit(info.RepoCommit),
			},
			FixHint: "Rebuild with 'go install ./cmd/ck'",
		}
	}

	return &CheckResult{
		Name:    c.Name(),
		Status:  StatusOK,
		Message: "binary matches source at " + version.ShortCommit(info.RepoCommit),
	}
}
