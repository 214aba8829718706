package worktree

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/crewkit/crewkit/internal/state"
	"github.com/crewkit/crewkit/internal/team"
)

// Orphan is a registered worktree that no live teammate owns.
type Orphan struct {
	ProjectHash string
	Entry       state.WorktreeEntry
	Reason      string
	SizeBytes   int64
	// ProjectRoot is the inferred source checkout; empty when inference
	// failed and git-level removal is impossible.
	ProjectRoot string
}

// FindOrphans scans every project registry under the kit's crew state
// area. threshold bounds teammate inactivity; entries are orphans when
// their directory is gone, their team or teammate is stopped, or their
// last activity is older than the threshold.
func FindOrphans(threshold time.Duration) ([]Orphan, error) {
	crewRoot := filepath.Join(state.KitDir(), "crew")
	entries, err := os.ReadDir(crewRoot)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning crew state: %w", err)
	}

	var orphans []Orphan
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		hash := e.Name()
		found, err := findProjectOrphans(hash, threshold)
		if err != nil {
			continue // one broken project must not stop the sweep
		}
		orphans = append(orphans, found...)
	}
	return orphans, nil
}

func findProjectOrphans(projectHash string, threshold time.Duration) ([]Orphan, error) {
	reg, err := state.LoadRegistry(projectHash)
	if err != nil {
		return nil, err
	}

	states := loadTeamStates(projectHash)
	now := time.Now()

	var orphans []Orphan
	for _, entry := range reg.Worktrees {
		reason := orphanReason(entry, states, threshold, now)
		if reason == "" {
			continue
		}
		o := Orphan{
			ProjectHash: projectHash,
			Entry:       entry,
			Reason:      reason,
			SizeBytes:   dirSize(entry.Path),
			ProjectRoot: InferProjectRoot(entry.Path, entry.Branch),
		}
		orphans = append(orphans, o)
	}
	return orphans, nil
}

// orphanReason returns why an entry is an orphan, or "" when it is live.
// Team-state claims are matched by worktree path so entries shared by
// name across profiles resolve to the right owner.
func orphanReason(entry state.WorktreeEntry, states map[string]*team.State, threshold time.Duration, now time.Time) string {
	if _, err := os.Stat(entry.Path); os.IsNotExist(err) {
		return "directory missing"
	}

	for profile, ts := range states {
		tm, ok := ts.Teammates[entry.Name]
		if !ok || tm.WorktreePath != entry.Path {
			continue
		}
		if ts.Status == team.StatusStopped {
			return fmt.Sprintf("team %s stopped", profile)
		}
		if tm.Status == team.TeammateStopped {
			return "teammate stopped"
		}
		if tm.LastActive != nil && now.Sub(*tm.LastActive) > threshold {
			return fmt.Sprintf("inactive for %s", now.Sub(*tm.LastActive).Round(time.Minute))
		}
		return ""
	}
	// No team state claims this entry; age the registry entry itself.
	if !entry.CreatedAt.IsZero() && now.Sub(entry.CreatedAt) > threshold {
		return fmt.Sprintf("unclaimed for %s", now.Sub(entry.CreatedAt).Round(time.Minute))
	}
	return ""
}

func loadTeamStates(projectHash string) map[string]*team.State {
	out := map[string]*team.State{}
	profiles, err := team.Profiles(projectHash)
	if err != nil {
		return out
	}
	for _, p := range profiles {
		if ts, err := team.Load(projectHash, p); err == nil && ts != nil {
			out[p] = ts
		}
	}
	return out
}

// RemoveOrphan tears the orphan down. With a known project root the git
// worktree machinery does the removal; otherwise the directory is
// deleted directly. deleteBranch additionally drops the branch.
func RemoveOrphan(o Orphan, deleteBranch bool) error {
	if o.ProjectRoot != "" {
		m := NewManager(o.ProjectRoot, o.ProjectHash)
		if err := m.Remove(o.Entry.Path); err != nil {
			return err
		}
		if deleteBranch && o.Entry.Branch != "" {
			_ = m.git.DeleteBranch(o.Entry.Branch, true)
		}
		return nil
	}

	UnlinkShared(o.Entry.Path)
	if err := os.RemoveAll(o.Entry.Path); err != nil {
		return fmt.Errorf("removing orphan dir: %w", err)
	}
	return state.UpdateRegistry(o.ProjectHash, func(r *state.Registry) error {
		r.Remove(o.Entry.Path)
		return nil
	})
}

// InferProjectRoot recovers the source checkout from a worktree path by
// stripping the deterministic suffix; failing that, it walks upward
// looking for a primary (non-worktree) git directory.
func InferProjectRoot(wtPath, branch string) string {
	if branch != "" {
		suffix := "-" + SanitizeBranch(branch)
		if strings.HasSuffix(wtPath, suffix) {
			base := strings.TrimSuffix(wtPath, suffix)
			if isPrimaryRepo(base) {
				return base
			}
			// Named profiles add one more segment: <root>-<profile>.
			if i := strings.LastIndex(base, "-"); i > 0 && isPrimaryRepo(base[:i]) {
				return base[:i]
			}
		}
	}

	dir := filepath.Dir(wtPath)
	for {
		if isPrimaryRepo(dir) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// isPrimaryRepo reports whether dir is a main repository checkout. A
// worktree keeps .git as a file, so only a .git directory qualifies.
func isPrimaryRepo(dir string) bool {
	fi, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil && fi.IsDir()
}

// dirSize sums file sizes under path, best effort.
func dirSize(path string) int64 {
	var size int64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				size += info.Size()
			}
		}
		return nil
	})
	return size
}
