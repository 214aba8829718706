// Package worktree provisions and tears down per-teammate git worktrees
// with a hybrid state layout: shared tooling is symlinked from the
// source project while session-local state stays inside the worktree.
package worktree

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/crewkit/crewkit/internal/crewcfg"
	"github.com/crewkit/crewkit/internal/git"
	"github.com/crewkit/crewkit/internal/identity"
	"github.com/crewkit/crewkit/internal/state"
	"github.com/crewkit/crewkit/internal/style"
)

// StateDirName is the per-project state directory replicated into each
// worktree.
const StateDirName = ".claude"

// SharedDirs are the state-dir subdirectories symlinked from the source
// project into each worktree. Everything else stays local so session
// logs and per-session state never leak across worktrees.
var SharedDirs = []string{"agents", "commands", "skills"}

// SharedFiles are the state-dir files symlinked from the source project.
var SharedFiles = []string{"settings.json"}

// behindWarnThreshold is how far behind main an existing branch may be
// before provisioning warns.
const behindWarnThreshold = 100

var branchUnsafe = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SanitizeBranch maps a branch name to its path-safe form: "/" becomes
// "--" and any other unsafe character becomes "_".
func SanitizeBranch(branch string) string {
	s := strings.ReplaceAll(branch, "/", "--")
	return branchUnsafe.ReplaceAllString(s, "_")
}

// Path returns the deterministic worktree path for a teammate branch.
// The default profile maps to <root>-<branch'>, named profiles to
// <root>-<profile>-<branch'>.
func Path(projectRoot, profile, branch string) string {
	root := strings.TrimRight(projectRoot, string(filepath.Separator))
	if profile == "" || profile == crewcfg.DefaultProfileName {
		return root + "-" + SanitizeBranch(branch)
	}
	return root + "-" + SanitizeBranch(profile) + "-" + SanitizeBranch(branch)
}

// Manager provisions worktrees for one project checkout.
type Manager struct {
	projectRoot string
	projectHash string
	git         *git.Git
}

// NewManager returns a manager rooted at the project checkout.
func NewManager(projectRoot, projectHash string) *Manager {
	return &Manager{
		projectRoot: projectRoot,
		projectHash: projectHash,
		git:         git.NewGit(projectRoot),
	}
}

// ProjectRoot returns the source checkout the manager provisions from.
func (m *Manager) ProjectRoot() string {
	return m.projectRoot
}

// Provision creates (or repairs) the worktree for a teammate and returns
// its path. Provisioning is idempotent: an existing registered worktree
// is kept and just re-stamped (identity file, registry entry, runtime dir).
func (m *Manager) Provision(profile, teamName string, tm crewcfg.Teammate, mainBranch string) (string, error) {
	wtPath := Path(m.projectRoot, profile, tm.Branch)

	if _, err := os.Stat(wtPath); err == nil {
		registered, err := m.git.IsWorktree(wtPath)
		if err != nil {
			return "", fmt.Errorf("checking worktree registration for %s: %w", wtPath, err)
		}
		if !registered {
			return "", fmt.Errorf("%s exists but is not a worktree of this repository; move it aside or pick another branch", wtPath)
		}
	} else {
		if err := m.addWorktree(wtPath, tm.Branch, mainBranch); err != nil {
			return "", err
		}
	}

	if err := m.setupStateDir(wtPath); err != nil {
		return "", err
	}

	id := &identity.CrewIdentity{
		TeammateName: tm.Name,
		ProjectRoot:  m.projectRoot,
		Branch:       tm.Branch,
		TeamName:     teamName,
		ProfileName:  profile,
		CreatedAt:    time.Now(),
	}
	if err := identity.WriteIdentity(wtPath, id); err != nil {
		return "", fmt.Errorf("writing crew identity: %w", err)
	}

	err := state.UpdateRegistry(m.projectHash, func(r *state.Registry) error {
		r.Add(state.WorktreeEntry{
			Name:      tm.Name,
			Branch:    tm.Branch,
			Path:      wtPath,
			CreatedAt: time.Now(),
		})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("updating worktree registry: %w", err)
	}
	return wtPath, nil
}

// addWorktree picks the branch strategy: reuse a local branch, track a
// remote one, or fork a new branch from main.
func (m *Manager) addWorktree(wtPath, branch, mainBranch string) error {
	local, err := m.git.BranchExists(branch)
	if err != nil {
		return fmt.Errorf("checking branch %s: %w", branch, err)
	}
	if local {
		if behind, err := m.git.CommitsBehind(mainBranch, branch); err == nil && behind > behindWarnThreshold {
			style.PrintWarning("branch %s is %d commits behind %s; consider rebasing", branch, behind, mainBranch)
		}
		if err := m.git.WorktreeAddExisting(wtPath, branch); err != nil {
			return fmt.Errorf("adding worktree for %s: %w", branch, err)
		}
		return nil
	}

	remote, err := m.git.RemoteBranchExists("origin", branch)
	if err == nil && remote {
		if err := m.git.WorktreeAddTracking(wtPath, branch, "origin/"+branch); err != nil {
			return fmt.Errorf("adding tracking worktree for %s: %w", branch, err)
		}
		return nil
	}

	if err := m.git.WorktreeAdd(wtPath, branch, mainBranch); err != nil {
		return fmt.Errorf("creating branch %s from %s: %w", branch, mainBranch, err)
	}
	return nil
}

// setupStateDir builds the hybrid state directory: a real directory with
// selective symlinks into the source project's shared tooling. Existing
// local files are never shadowed.
func (m *Manager) setupStateDir(wtPath string) error {
	srcDir := filepath.Join(m.projectRoot, StateDirName)
	dstDir := filepath.Join(wtPath, StateDirName)
	if err := os.MkdirAll(dstDir, 0755); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}

	link := func(name string) error {
		src := filepath.Join(srcDir, name)
		if _, err := os.Stat(src); err != nil {
			return nil // nothing to share
		}
		dst := filepath.Join(dstDir, name)
		if fi, err := os.Lstat(dst); err == nil {
			if fi.Mode()&os.ModeSymlink == 0 {
				return nil // local file or dir wins
			}
			if err := os.Remove(dst); err != nil {
				return err
			}
		}
		return os.Symlink(src, dst)
	}

	for _, dir := range SharedDirs {
		if err := link(dir); err != nil {
			return fmt.Errorf("linking shared %s: %w", dir, err)
		}
	}
	for _, file := range SharedFiles {
		if err := link(file); err != nil {
			return fmt.Errorf("linking shared %s: %w", file, err)
		}
	}
	return nil
}

// Remove tears down a worktree. Symlinks inside the state directory are
// unlinked before anything is deleted so removal can never traverse into
// the source project's shared state.
func (m *Manager) Remove(wtPath string) error {
	UnlinkShared(wtPath)

	if err := m.git.WorktreeRemove(wtPath, true); err != nil {
		if rmErr := os.RemoveAll(wtPath); rmErr != nil {
			return fmt.Errorf("removing worktree dir: %w", rmErr)
		}
		_ = m.git.WorktreePrune()
	}

	return state.UpdateRegistry(m.projectHash, func(r *state.Registry) error {
		r.Remove(wtPath)
		return nil
	})
}

// UnlinkShared removes every symlink inside a worktree's state directory.
// Plain files and directories are left alone.
func UnlinkShared(wtPath string) {
	dir := filepath.Join(wtPath, StateDirName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		fi, err := os.Lstat(p)
		if err != nil {
			continue
		}
		if fi.Mode()&os.ModeSymlink != 0 {
			_ = os.Remove(p)
		}
	}
}
