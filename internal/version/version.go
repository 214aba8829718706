// Package version records the build identity of the running binary and
// detects when that binary trails the source checkout it was built from.
package version

import (
	"runtime"
	"runtime/debug"
)

// Build identity, injected via ldflags:
//
//	-X github.com/crewkit/crewkit/internal/version.Version=...
//	-X github.com/crewkit/crewkit/internal/version.Commit=...
//	-X github.com/crewkit/crewkit/internal/version.Date=...
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// Info is the shape printed by `ck version --json`.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date,omitempty"`
	Go      string `json:"go"`
}

// Get assembles the binary's build info, falling back to the module
// build metadata when ldflags were not stamped.
func Get() Info {
	return Info{
		Version: Version,
		Commit:  ShortCommit(resolveCommitHash()),
		Date:    Date,
		Go:      runtime.Version(),
	}
}

// SetCommit overrides the build commit. Tests and the self-update path
// use it; normal builds stamp Commit at link time.
func SetCommit(hash string) {
	Commit = hash
}

// ShortCommit truncates a commit hash to at most 12 characters.
func ShortCommit(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

// resolveCommitHash returns the binary's commit: the ldflags value when
// stamped, else the vcs.revision baked in by the Go toolchain.
func resolveCommitHash() string {
	if Commit != "" {
		return Commit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return ""
}

// commitsMatch reports whether two hashes identify the same commit.
// One may be an abbreviation of the other, but anything shorter than
// seven characters is too ambiguous to trust.
func commitsMatch(a, b string) bool {
	if len(a) < 7 || len(b) < 7 {
		return false
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	return b[:len(a)] == a
}
