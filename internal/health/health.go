// Package health classifies teammate liveness from team state and
// worktree activity. The monitor only reads; recovery is the
// operator's call, guided by the advice strings.
package health

import (
	"os"
	"time"

	"github.com/crewkit/crewkit/internal/crewcfg"
	"github.com/crewkit/crewkit/internal/git"
	"github.com/crewkit/crewkit/internal/team"
)

// Liveness classifications, healthiest first.
const (
	StatusActive       = "active"
	StatusIdle         = "idle"
	StatusCrashed      = "crashed"
	StatusUnresponsive = "unresponsive"
	StatusUnknown      = "unknown"
)

// Report is one teammate's health row.
type Report struct {
	Teammate      string     `json:"teammate"`
	Branch        string     `json:"branch,omitempty"`
	Status        string     `json:"status"`
	LastActive    *time.Time `json:"last_active,omitempty"`
	RecentCommits int        `json:"recent_commits"`
	Worktree      string     `json:"worktree,omitempty"`
	Advice        string     `json:"advice,omitempty"`
}

// Healthy reports whether the row needs no attention.
func (r Report) Healthy() bool {
	return r.Status == StatusActive || r.Status == StatusIdle
}

// Monitor classifies teammates against a staleness window. CommitWindow
// bounds the "recent commits" probe and defaults to the staleness
// window; Now is fixed at construction so one inspection is coherent.
type Monitor struct {
	Window       time.Duration
	CommitWindow time.Duration
	Now          time.Time
}

// NewMonitor returns a monitor for the given staleness window.
func NewMonitor(window time.Duration) *Monitor {
	return &Monitor{Window: window, CommitWindow: window, Now: time.Now()}
}

// Inspect classifies every configured teammate against the team state.
// Rows keep config order. A nil state means nobody has records, so
// every row comes back unknown.
func (m *Monitor) Inspect(mates []crewcfg.Teammate, st *team.State) []Report {
	var out []Report
	for _, tm := range mates {
		var ts *team.TeammateState
		if st != nil {
			ts = st.Teammates[tm.Name]
		}
		r := m.Classify(tm.Name, ts)
		if r.Branch == "" {
			r.Branch = tm.Branch
		}
		out = append(out, r)
	}
	return out
}

// Classify derives one teammate's liveness:
//
//	active       last_active within the window
//	idle         between one and two windows
//	crashed      beyond two windows, worktree present, no recent commits
//	unresponsive beyond the window and none of the above
//	unknown      no teammate record at all
func (m *Monitor) Classify(name string, ts *team.TeammateState) Report {
	if ts == nil {
		return Report{
			Teammate: name,
			Status:   StatusUnknown,
			Advice:   "no state recorded; start the team to provision this teammate",
		}
	}

	r := Report{
		Teammate:   name,
		Branch:     ts.Branch,
		LastActive: ts.LastActive,
		Worktree:   ts.WorktreePath,
	}

	worktreeExists := false
	if ts.WorktreePath != "" {
		if _, err := os.Stat(ts.WorktreePath); err == nil {
			worktreeExists = true
			// A worktree that is not even a repository counts as zero.
			n, err := git.NewGit(ts.WorktreePath).RecentCommitCount(m.CommitWindow)
			if err == nil {
				r.RecentCommits = n
			}
		}
	}

	if ts.LastActive == nil {
		r.Status = StatusUnresponsive
		r.Advice = "never reported activity; check the agent session"
		return r
	}

	age := m.Now.Sub(*ts.LastActive)
	switch {
	case age <= m.Window:
		r.Status = StatusActive
	case age <= 2*m.Window:
		r.Status = StatusIdle
	case worktreeExists && r.RecentCommits == 0:
		r.Status = StatusCrashed
		r.Advice = "worktree has no recent commits; restart the teammate or run gc"
	default:
		r.Status = StatusUnresponsive
		r.Advice = "stale liveness signal; check the agent session or restart"
	}
	return r
}
