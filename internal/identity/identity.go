// Package identity resolves who and where a process is running: the
// project hash that tenants the global record store, the store path
// itself, and the crew identity of the current worktree when there is
// one. Hooks call Resolve once per event and derive every namespace
// from the result.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/crewkit/crewkit/internal/git"
	"github.com/crewkit/crewkit/internal/state"
	"github.com/crewkit/crewkit/internal/util"
)

const (
	// WorktreeEnv points hooks at their worktree when the host runs
	// them from a different working directory.
	WorktreeEnv = "CREWKIT_WORKTREE"
	// StoreEnv overrides the record-store path.
	StoreEnv = "CREWKIT_DB"
	// DisableMarker switches hooks off for a directory subtree.
	DisableMarker = ".crewkit-disable"
	// IdentityFileName is written at each crew worktree root.
	IdentityFileName = "crew-identity.json"
)

const (
	storeCanonical = "capsule.db"
	storeLegacy    = "context.db"
)

// CrewIdentity ties a worktree to the teammate working in it. Written
// during provisioning, always local to the worktree, never symlinked.
type CrewIdentity struct {
	TeammateName string    `json:"teammate_name"`
	ProjectRoot  string    `json:"project_root"`
	Branch       string    `json:"branch"`
	TeamName     string    `json:"team_name"`
	ProfileName  string    `json:"profile_name"`
	CreatedAt    time.Time `json:"created_at"`
}

// Resolution bundles everything a hook or CLI command needs to address
// the store for the current process.
type Resolution struct {
	StorePath   string
	ProjectHash string
	Crew        *CrewIdentity
}

// Resolve computes the full resolution for cwd. filePath, when known,
// disambiguates registry lookups for teammates operating on absolute
// paths from outside their worktree.
func Resolve(cwd, filePath string) *Resolution {
	hash := ProjectHash(cwd)
	return &Resolution{
		StorePath:   StorePath(),
		ProjectHash: hash,
		Crew:        ResolveCrew(cwd, filePath, hash),
	}
}

// StorePath returns the global record-store path. The canonical name is
// preferred; the legacy name from earlier releases is honored when it is
// the only one present.
func StorePath() string {
	if p := os.Getenv(StoreEnv); p != "" {
		return p
	}
	dir := state.ClaudeDir()
	canonical := filepath.Join(dir, storeCanonical)
	if _, err := os.Stat(canonical); err == nil {
		return canonical
	}
	legacy := filepath.Join(dir, storeLegacy)
	if _, err := os.Stat(legacy); err == nil {
		return legacy
	}
	return canonical
}

// ProjectHash derives the stable 12-hex tenant hash for the project at
// dir: the origin remote URL when one exists, else the absolute path.
// Every clone of the same remote shares a hash.
func ProjectHash(dir string) string {
	seed := ""
	if url, err := git.NewGit(dir).RemoteURL("origin"); err == nil {
		seed = strings.TrimSpace(url)
	}
	if seed == "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			abs = dir
		}
		seed = abs
	}
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])[:12]
}

// ResolveCrew tries the identity strategies in order; first hit wins.
// nil means not in crew mode.
func ResolveCrew(cwd, filePath, projectHash string) *CrewIdentity {
	if id := fromIdentityFile(cwd); id != nil {
		return id
	}
	if id := fromEnvHint(); id != nil {
		return id
	}
	return fromRegistry(projectHash, filePath)
}

// fromIdentityFile checks the CWD and its state dir for an identity file.
func fromIdentityFile(cwd string) *CrewIdentity {
	for _, p := range []string{
		filepath.Join(cwd, IdentityFileName),
		filepath.Join(cwd, ".claude", IdentityFileName),
	} {
		if id, err := LoadIdentity(p); err == nil {
			return id
		}
	}
	return nil
}

func fromEnvHint() *CrewIdentity {
	wt := os.Getenv(WorktreeEnv)
	if wt == "" {
		return nil
	}
	id, err := LoadIdentity(filepath.Join(wt, IdentityFileName))
	if err != nil {
		return nil
	}
	return id
}

// fromRegistry consults the worktree registry. With a filePath hint the
// owning worktree is picked by path prefix; without one, a single
// registered worktree is unambiguous and anything more returns nil.
func fromRegistry(projectHash, filePath string) *CrewIdentity {
	reg, err := state.LoadRegistry(projectHash)
	if err != nil || len(reg.Worktrees) == 0 {
		return nil
	}

	var entry *state.WorktreeEntry
	if filePath != "" {
		entry = reg.FindByPrefix(filePath)
	} else if len(reg.Worktrees) == 1 {
		entry = &reg.Worktrees[0]
	}
	if entry == nil {
		return nil
	}

	id, err := LoadIdentity(filepath.Join(entry.Path, IdentityFileName))
	if err != nil {
		return nil
	}
	return id
}

// LoadIdentity reads a crew identity file.
func LoadIdentity(path string) (*CrewIdentity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var id CrewIdentity
	if err := json.Unmarshal(data, &id); err != nil {
		return nil, err
	}
	return &id, nil
}

// WriteIdentity writes the identity file at a worktree root.
func WriteIdentity(worktree string, id *CrewIdentity) error {
	return util.AtomicWriteJSON(filepath.Join(worktree, IdentityFileName), id)
}

// Disabled reports whether hook side effects are switched off for cwd,
// by environment or by a marker file in cwd or any parent directory.
func Disabled(cwd string) bool {
	if os.Getenv("CREWKIT_DISABLED") == "1" {
		return true
	}
	dir, err := filepath.Abs(cwd)
	if err != nil {
		return false
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, DisableMarker)); err == nil {
			return true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return false
		}
		dir = parent
	}
}
