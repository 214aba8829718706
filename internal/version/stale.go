package version

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/crewkit/crewkit/internal/git"
)

// StaleBinaryInfo reports whether the running binary was built from an
// older commit than the source tree it is serving.
type StaleBinaryInfo struct {
	IsStale       bool
	BinaryCommit  string
	RepoCommit    string
	CommitsBehind int
	Error         error
}

// CheckStaleBinary compares the binary's build commit against HEAD of
// the source checkout at sourceDir. Errors are carried in the result;
// callers running inside a doctor check want a row, not a panic.
func CheckStaleBinary(sourceDir string) *StaleBinaryInfo {
	info := &StaleBinaryInfo{BinaryCommit: resolveCommitHash()}
	if info.BinaryCommit == "" {
		info.Error = errors.New("binary has no commit stamp; built without ldflags or module info")
		return info
	}
	if !isGitRepo(sourceDir) {
		info.Error = fmt.Errorf("%s is not a git repository", sourceDir)
		return info
	}

	g := git.NewGit(sourceDir)
	head, err := g.Rev("HEAD")
	if err != nil {
		info.Error = fmt.Errorf("resolving HEAD: %w", err)
		return info
	}
	info.RepoCommit = head

	if commitsMatch(info.BinaryCommit, head) {
		return info
	}

	info.IsStale = true
	// Best effort: the binary commit may not exist in this clone.
	if n, err := g.CommitsAhead(info.BinaryCommit, "HEAD"); err == nil {
		info.CommitsBehind = n
	}
	return info
}

// HasKitSource reports whether dir looks like a crewkit source checkout.
// The stale-binary doctor check only fires inside one.
func HasKitSource(dir string) bool {
	return hasKitSource(dir)
}

func hasKitSource(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, "cmd", "ck", "main.go"))
	return err == nil
}

func isGitRepo(dir string) bool {
	return git.NewGit(dir).IsRepo()
}
