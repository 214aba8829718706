// Package git provides a wrapper for git operations via subprocess.
package git

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// GitError contains raw output from a failed git command.
// The error string is human-readable; callers that need to branch on
// the failure inspect Stdout/Stderr directly.
type GitError struct {
	Command string // the git subcommand that failed (e.g., "merge", "worktree")
	Args    []string
	Stdout  string
	Stderr  string
	Err     error // underlying error (e.g., exit code)
}

func (e *GitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("git %s: %s", e.Command, e.Stderr)
	}
	return fmt.Sprintf("git %s: %v", e.Command, e.Err)
}

func (e *GitError) Unwrap() error {
	return e.Err
}

// Git wraps git operations for a working directory.
type Git struct {
	workDir string
}

// NewGit creates a new Git wrapper for the given directory.
func NewGit(workDir string) *Git {
	return &Git{workDir: workDir}
}

// WorkDir returns the working directory for this Git instance.
func (g *Git) WorkDir() string {
	return g.workDir
}

// IsRepo returns true if the workDir is inside a git repository.
func (g *Git) IsRepo() bool {
	_, err := g.run("rev-parse", "--git-dir")
	return err == nil
}

// Version returns the installed git version string (e.g., "2.43.0").
func Version() (string, error) {
	out, err := exec.Command("git", "--version").Output()
	if err != nil {
		return "", fmt.Errorf("running git --version: %w", err)
	}
	v := strings.TrimSpace(string(out))
	v = strings.TrimPrefix(v, "git version ")
	return v, nil
}

// run executes a git command and returns stdout.
func (g *Git) run(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	if g.workDir != "" {
		cmd.Dir = g.workDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		return "", g.wrapError(err, stdout.String(), stderr.String(), args)
	}

	return strings.TrimSpace(stdout.String()), nil
}

// wrapError wraps git failures with the raw output preserved.
func (g *Git) wrapError(err error, stdout, stderr string, args []string) error {
	stdout = strings.TrimSpace(stdout)
	stderr = strings.TrimSpace(stderr)

	// Command name is the first non-flag arg
	command := ""
	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") {
			command = arg
			break
		}
	}
	if command == "" && len(args) > 0 {
		command = args[0]
	}

	return &GitError{
		Command: command,
		Args:    args,
		Stdout:  stdout,
		Stderr:  stderr,
		Err:     err,
	}
}

// isExitStatus reports whether err wraps a git exit with the given code.
func isExitStatus(err error, code int) bool {
	return err != nil && strings.Contains(err.Error(), "exit status "+strconv.Itoa(code))
}

// RemoteURL returns the URL for the given remote.
func (g *Git) RemoteURL(remote string) (string, error) {
	return g.run("remote", "get-url", remote)
}

// CurrentBranch returns the current branch name.
func (g *Git) CurrentBranch() (string, error) {
	return g.run("rev-parse", "--abbrev-ref", "HEAD")
}

// DefaultBranch returns the default branch name (what HEAD points to).
// Returns "main" as fallback if detection fails.
func (g *Git) DefaultBranch() string {
	branch, err := g.run("symbolic-ref", "--short", "HEAD")
	if err == nil && branch != "" {
		return branch
	}
	return "main"
}

// RemoteDefaultBranch returns the default branch from the origin remote.
// Checks origin/HEAD first, then falls back to probing main and master.
// Returns "main" as final fallback.
func (g *Git) RemoteDefaultBranch() string {
	out, err := g.run("symbolic-ref", "refs/remotes/origin/HEAD")
	if err == nil && out != "" {
		// refs/remotes/origin/main -> main
		parts := strings.Split(out, "/")
		if len(parts) > 0 {
			return parts[len(parts)-1]
		}
	}

	if _, err := g.run("rev-parse", "--verify", "origin/main"); err == nil {
		return "main"
	}
	if _, err := g.run("rev-parse", "--verify", "origin/master"); err == nil {
		return "master"
	}

	return "main"
}

// Rev returns the commit hash for the given ref.
func (g *Git) Rev(ref string) (string, error) {
	return g.run("rev-parse", ref)
}

// Checkout checks out the given ref.
func (g *Git) Checkout(ref string) error {
	_, err := g.run("checkout", ref)
	return err
}

// Fetch fetches from the given remote.
func (g *Git) Fetch(remote string) error {
	_, err := g.run("fetch", remote)
	return err
}

// BranchExists checks if a branch exists locally.
func (g *Git) BranchExists(name string) (bool, error) {
	_, err := g.run("show-ref", "--verify", "--quiet", "refs/heads/"+name)
	if err != nil {
		// Exit code 1 means the branch doesn't exist
		if isExitStatus(err, 1) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RemoteBranchExists checks if a branch exists on the remote.
func (g *Git) RemoteBranchExists(remote, branch string) (bool, error) {
	out, err := g.run("ls-remote", "--heads", remote, branch)
	if err != nil {
		return false, err
	}
	return out != "", nil
}

// CreateBranch creates a new branch at the current HEAD.
func (g *Git) CreateBranch(name string) error {
	_, err := g.run("branch", name)
	return err
}

// CreateBranchFrom creates a new branch from a specific ref.
func (g *Git) CreateBranchFrom(name, ref string) error {
	_, err := g.run("branch", name, ref)
	return err
}

// Add stages the given paths.
func (g *Git) Add(paths ...string) error {
	args := append([]string{"add"}, paths...)
	_, err := g.run(args...)
	return err
}

// Commit creates a commit with the given message.
func (g *Git) Commit(message string) error {
	_, err := g.run("commit", "-m", message)
	return err
}

// DeleteBranch deletes a local branch.
func (g *Git) DeleteBranch(name string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	_, err := g.run("branch", flag, name)
	return err
}

// GitStatus describes working tree state from `git status --porcelain`.
type GitStatus struct {
	Clean     bool
	Modified  []string
	Added     []string
	Deleted   []string
	Untracked []string
}

// Status returns the working tree status.
func (g *Git) Status() (*GitStatus, error) {
	out, err := g.run("status", "--porcelain")
	if err != nil {
		return nil, err
	}

	status := &GitStatus{Clean: true}
	if out == "" {
		return status, nil
	}

	status.Clean = false
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 3 {
			continue
		}
		code := line[:2]
		file := line[3:]

		switch {
		case strings.Contains(code, "M"):
			status.Modified = append(status.Modified, file)
		case strings.Contains(code, "A"):
			status.Added = append(status.Added, file)
		case strings.Contains(code, "D"):
			status.Deleted = append(status.Deleted, file)
		case strings.Contains(code, "?"):
			status.Untracked = append(status.Untracked, file)
		}
	}

	return status, nil
}

// HasUncommittedChanges returns true if there are uncommitted changes.
func (g *Git) HasUncommittedChanges() (bool, error) {
	status, err := g.Status()
	if err != nil {
		return false, err
	}
	return !status.Clean, nil
}

// CommitsAhead returns the number of commits on branch that are not on base.
func (g *Git) CommitsAhead(base, branch string) (int, error) {
	out, err := g.run("rev-list", "--count", base+".."+branch)
	if err != nil {
		return 0, err
	}

	var count int
	if _, err := fmt.Sscanf(out, "%d", &count); err != nil {
		return 0, fmt.Errorf("parsing commit count: %w", err)
	}
	return count, nil
}

// CommitsBehind returns the number of commits on base that are not on branch.
func (g *Git) CommitsBehind(base, branch string) (int, error) {
	out, err := g.run("rev-list", "--count", branch+".."+base)
	if err != nil {
		return 0, err
	}

	var count int
	if _, err := fmt.Sscanf(out, "%d", &count); err != nil {
		return 0, fmt.Errorf("parsing commit count: %w", err)
	}
	return count, nil
}

// RecentCommitCount returns the number of commits reachable from HEAD
// committed within the given window.
func (g *Git) RecentCommitCount(window time.Duration) (int, error) {
	since := time.Now().Add(-window).Format(time.RFC3339)
	out, err := g.run("rev-list", "--count", "--since="+since, "HEAD")
	if err != nil {
		return 0, err
	}

	var count int
	if _, err := fmt.Sscanf(out, "%d", &count); err != nil {
		return 0, fmt.Errorf("parsing commit count: %w", err)
	}
	return count, nil
}

// LastCommitTime returns the committer time of HEAD.
func (g *Git) LastCommitTime() (time.Time, error) {
	out, err := g.run("log", "-1", "--format=%ct")
	if err != nil {
		return time.Time{}, err
	}
	sec, err := strconv.ParseInt(out, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing commit time: %w", err)
	}
	return time.Unix(sec, 0), nil
}

// Merge merges the given branch into the current branch without opening
// an editor for the merge commit message.
func (g *Git) Merge(branch string) error {
	_, err := g.run("merge", "--no-edit", branch)
	return err
}

// AbortMerge aborts a merge in progress.
func (g *Git) AbortMerge() error {
	_, err := g.run("merge", "--abort")
	return err
}

// ResetHard resets the current working tree and index to the given ref.
func (g *Git) ResetHard(ref string) error {
	_, err := g.run("reset", "--hard", ref)
	return err
}

// Tag creates a lightweight tag at the current HEAD.
func (g *Git) Tag(name string) error {
	_, err := g.run("tag", name)
	return err
}

// ChangedFiles returns the files changed on branch relative to the merge
// base with base (three-dot range).
func (g *Git) ChangedFiles(base, branch string) ([]string, error) {
	out, err := g.run("diff", "--name-only", base+"..."+branch)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}

	var files []string
	for _, f := range strings.Split(out, "\n") {
		if f != "" {
			files = append(files, f)
		}
	}
	return files, nil
}

// GetConflictingFiles returns the list of files with merge conflicts
// in the working tree (`diff --diff-filter=U`).
func (g *Git) GetConflictingFiles() ([]string, error) {
	out, err := g.run("diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}

	var files []string
	for _, f := range strings.Split(out, "\n") {
		if f != "" {
			files = append(files, f)
		}
	}
	return files, nil
}

// MergeCheck reports whether a branch merges cleanly into a base without
// touching the working tree.
type MergeCheck struct {
	Clean         bool
	ConflictFiles []string
	// Inconclusive is set when conflicts were detected but the conflicting
	// paths could not be parsed from the output.
	Inconclusive bool
}

// MergeTreeCheck runs an in-memory test merge of branch into base using
// `merge-tree --write-tree` (git >= 2.38). Exit code 1 signals conflicts.
// Older gits without --write-tree fall back to the ancestor-based form.
// The working tree is never modified.
func (g *Git) MergeTreeCheck(base, branch string) (*MergeCheck, error) {
	_, err := g.run("merge-tree", "--write-tree", "--name-only", base, branch)
	if err == nil {
		return &MergeCheck{Clean: true}, nil
	}

	var gitErr *GitError
	if isExitStatus(err, 1) {
		// Conflicted. Output: tree OID, then conflicted paths, then an
		// informational section after a blank line.
		files := []string{}
		if errors.As(err, &gitErr) {
			for i, line := range strings.Split(gitErr.Stdout, "\n") {
				if i == 0 {
					continue // tree OID
				}
				line = strings.TrimSpace(line)
				if line == "" {
					break
				}
				files = append(files, line)
			}
		}
		return &MergeCheck{
			Clean:         false,
			ConflictFiles: files,
			Inconclusive:  len(files) == 0,
		}, nil
	}

	// --write-tree unavailable on old git; fall back to the ancestor form.
	if errors.As(err, &gitErr) && looksLikeUsageError(gitErr) {
		return g.mergeTreeCheckLegacy(base, branch)
	}

	return nil, err
}

// mergeTreeCheckLegacy uses the pre-2.38 three-argument merge-tree form:
// merge-tree <merge-base> <base> <branch>. Conflicts surface as
// "changed in both" stanzas in the output.
func (g *Git) mergeTreeCheckLegacy(base, branch string) (*MergeCheck, error) {
	mergeBase, err := g.run("merge-base", base, branch)
	if err != nil {
		return nil, fmt.Errorf("finding merge base: %w", err)
	}

	out, err := g.run("merge-tree", mergeBase, base, branch)
	if err != nil {
		return nil, err
	}

	if !strings.Contains(out, "changed in both") && !strings.Contains(out, "<<<<<<<") {
		return &MergeCheck{Clean: true}, nil
	}

	// Parse filenames from "changed in both" stanzas:
	//   changed in both
	//     base   100644 <oid> <path>
	var files []string
	seen := map[string]bool{}
	lines := strings.Split(out, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) != "changed in both" {
			continue
		}
		for j := i + 1; j < len(lines) && j <= i+3; j++ {
			fields := strings.Fields(lines[j])
			if len(fields) == 4 && (fields[0] == "base" || fields[0] == "our" || fields[0] == "their") {
				if !seen[fields[3]] {
					seen[fields[3]] = true
					files = append(files, fields[3])
				}
				break
			}
		}
	}

	return &MergeCheck{
		Clean:         false,
		ConflictFiles: files,
		Inconclusive:  len(files) == 0,
	}, nil
}

func looksLikeUsageError(e *GitError) bool {
	s := e.Stderr
	return strings.Contains(s, "unknown option") ||
		strings.Contains(s, "usage: git merge-tree")
}

// Worktree represents a git worktree.
type Worktree struct {
	Path   string
	Branch string
	Commit string
}

// WorktreeAdd creates a new worktree at the given path with a new branch
// created from startPoint.
func (g *Git) WorktreeAdd(path, branch, startPoint string) error {
	_, err := g.run("worktree", "add", "-b", branch, path, startPoint)
	return err
}

// WorktreeAddExisting creates a new worktree at the given path for an
// existing local branch.
func (g *Git) WorktreeAddExisting(path, branch string) error {
	_, err := g.run("worktree", "add", path, branch)
	return err
}

// WorktreeAddTracking creates a new worktree with a local branch tracking
// a remote branch (e.g., origin/feat-x).
func (g *Git) WorktreeAddTracking(path, branch, remoteBranch string) error {
	_, err := g.run("worktree", "add", "--track", "-b", branch, path, remoteBranch)
	return err
}

// WorktreeRemove removes a worktree.
func (g *Git) WorktreeRemove(path string, force bool) error {
	args := []string{"worktree", "remove", path}
	if force {
		args = append(args, "--force")
	}
	_, err := g.run(args...)
	return err
}

// WorktreePrune removes worktree entries for deleted paths.
func (g *Git) WorktreePrune() error {
	_, err := g.run("worktree", "prune")
	return err
}

// WorktreeList returns all worktrees for this repository.
func (g *Git) WorktreeList() ([]Worktree, error) {
	out, err := g.run("worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}

	var worktrees []Worktree
	var current Worktree

	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			if current.Path != "" {
				worktrees = append(worktrees, current)
				current = Worktree{}
			}
			continue
		}

		switch {
		case strings.HasPrefix(line, "worktree "):
			current.Path = strings.TrimPrefix(line, "worktree ")
		case strings.HasPrefix(line, "HEAD "):
			current.Commit = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			current.Branch = strings.TrimPrefix(line, "branch refs/heads/")
		}
	}

	if current.Path != "" {
		worktrees = append(worktrees, current)
	}

	return worktrees, nil
}

// IsWorktree reports whether path is a registered worktree of this repo.
func (g *Git) IsWorktree(path string) (bool, error) {
	worktrees, err := g.WorktreeList()
	if err != nil {
		return false, err
	}
	for _, wt := range worktrees {
		if wt.Path == path {
			return true, nil
		}
	}
	return false, nil
}
