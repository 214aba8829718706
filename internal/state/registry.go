package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/crewkit/crewkit/internal/util"
)

// WorktreeEntry records one provisioned crew worktree.
type WorktreeEntry struct {
	Name      string    `json:"name"`
	Branch    string    `json:"branch"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// Registry is the authoritative list of active worktrees for a project.
// It disambiguates crew identity and feeds garbage collection.
type Registry struct {
	Worktrees []WorktreeEntry `json:"worktrees"`
}

// LoadRegistry reads the registry for a project. A missing file yields an
// empty registry, not an error.
func LoadRegistry(projectHash string) (*Registry, error) {
	data, err := os.ReadFile(RegistryPath(projectHash))
	if os.IsNotExist(err) {
		return &Registry{}, nil
	}
	if err != nil {
		return nil, err
	}
	var r Registry
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// SaveRegistry writes the registry atomically.
func SaveRegistry(projectHash string, r *Registry) error {
	return util.EnsureDirAndWriteJSON(RegistryPath(projectHash), r)
}

// UpdateRegistry applies fn to the registry under an exclusive file lock,
// then persists the result. Concurrent provisioning from multiple
// processes serializes here.
func UpdateRegistry(projectHash string, fn func(*Registry) error) error {
	lock := util.NewFileLock(RegistryPath(projectHash) + ".lock")
	return lock.WithLock(func() error {
		r, err := LoadRegistry(projectHash)
		if err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return err
		}
		return SaveRegistry(projectHash, r)
	})
}

// Add inserts an entry, replacing any existing entry with the same path.
func (r *Registry) Add(e WorktreeEntry) {
	for i := range r.Worktrees {
		if r.Worktrees[i].Path == e.Path {
			r.Worktrees[i] = e
			return
		}
	}
	r.Worktrees = append(r.Worktrees, e)
}

// Remove drops the entry at path. Returns whether anything was removed.
func (r *Registry) Remove(path string) bool {
	for i := range r.Worktrees {
		if r.Worktrees[i].Path == path {
			r.Worktrees = append(r.Worktrees[:i], r.Worktrees[i+1:]...)
			return true
		}
	}
	return false
}

// FindByName returns the entry with the given teammate name, or nil.
func (r *Registry) FindByName(name string) *WorktreeEntry {
	for i := range r.Worktrees {
		if r.Worktrees[i].Name == name {
			return &r.Worktrees[i]
		}
	}
	return nil
}

// FindByPath returns the entry whose path equals path, or nil.
func (r *Registry) FindByPath(path string) *WorktreeEntry {
	clean := filepath.Clean(path)
	for i := range r.Worktrees {
		if filepath.Clean(r.Worktrees[i].Path) == clean {
			return &r.Worktrees[i]
		}
	}
	return nil
}

// FindByPrefix returns the entry whose path contains filePath, preferring
// the most specific match. Matching respects path boundaries, so
// /repo-dev-a never claims files under /repo-dev-ab.
func (r *Registry) FindByPrefix(filePath string) *WorktreeEntry {
	clean := filepath.Clean(filePath)
	var best *WorktreeEntry
	bestLen := -1
	for i := range r.Worktrees {
		wp := filepath.Clean(r.Worktrees[i].Path)
		if clean != wp && !strings.HasPrefix(clean, wp+string(filepath.Separator)) {
			continue
		}
		if len(wp) > bestLen {
			best = &r.Worktrees[i]
			bestLen = len(wp)
		}
	}
	return best
}
