package hooks

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/crewkit/crewkit/internal/util"
)

// Hook failures never reach the host, so they get recorded here
// instead: a capped JSONL log under the kit state directory that
// doctor and `ck hook errors` read back.

const (
	// MaxErrorsToKeep caps the error log length.
	MaxErrorsToKeep = 100

	// maxStderrLen bounds stored stderr excerpts.
	maxStderrLen = 500

	// defaultDedupWindow collapses repeats of the same failure into a
	// count instead of a new entry.
	defaultDedupWindow = time.Hour

	runtimeDirName = ".runtime"
	errorLogName   = "hook-errors.jsonl"
)

// HookError is one recorded hook failure.
type HookError struct {
	Timestamp time.Time `json:"timestamp"`
	HookType  string    `json:"hook_type"`
	Command   string    `json:"command"`
	ExitCode  int       `json:"exit_code"`
	Stderr    string    `json:"stderr,omitempty"`
	Role      string    `json:"role,omitempty"`
	Hash      string    `json:"hash"`
	Count     int       `json:"count"`
}

// ErrorLog records hook failures under dir/.runtime.
type ErrorLog struct {
	dir         string
	dedupWindow time.Duration
}

// NewErrorLog returns an error log rooted at dir.
func NewErrorLog(dir string) *ErrorLog {
	return &ErrorLog{dir: dir, dedupWindow: defaultDedupWindow}
}

func (l *ErrorLog) path() string {
	return filepath.Join(l.dir, runtimeDirName, errorLogName)
}

// computeHash identifies a failure class for deduplication.
func computeHash(hookType, command, role string) string {
	sum := sha256.Sum256([]byte(hookType + "\x00" + command + "\x00" + role))
	return hex.EncodeToString(sum[:])[:16]
}

// ReportError records a hook failure. A repeat of the same failure
// class within the dedup window increments the stored count instead of
// appending. Returns whether a new entry was written.
func (l *ErrorLog) ReportError(hookType, command string, exitCode int, stderr, role string) (bool, error) {
	if err := os.MkdirAll(filepath.Join(l.dir, runtimeDirName), 0755); err != nil {
		return false, err
	}

	if len(stderr) > maxStderrLen {
		stderr = truncate(stderr, maxStderrLen)
	}

	entries, err := l.readAll()
	if err != nil {
		entries = nil
	}

	hash := computeHash(hookType, command, role)
	now := time.Now()

	for i := len(entries) - 1; i >= 0; i-- {
		e := &entries[i]
		if e.Hash == hash && now.Sub(e.Timestamp) < l.dedupWindow {
			e.Count++
			return false, l.writeAll(entries)
		}
	}

	entries = append(entries, HookError{
		Timestamp: now,
		HookType:  hookType,
		Command:   command,
		ExitCode:  exitCode,
		Stderr:    stderr,
		Role:      role,
		Hash:      hash,
		Count:     1,
	})
	if len(entries) > MaxErrorsToKeep {
		entries = entries[len(entries)-MaxErrorsToKeep:]
	}
	return true, l.writeAll(entries)
}

// GetRecentErrors returns the most recent entries, newest first.
// limit <= 0 means all.
func (l *ErrorLog) GetRecentErrors(limit int) ([]HookError, error) {
	entries, err := l.readAll()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	// Stored oldest-first; reverse for presentation.
	out := make([]HookError, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// GetErrorsSince returns entries recorded after t, newest first.
func (l *ErrorLog) GetErrorsSince(t time.Time) ([]HookError, error) {
	all, err := l.GetRecentErrors(0)
	if err != nil {
		return nil, err
	}
	var out []HookError
	for _, e := range all {
		if e.Timestamp.After(t) {
			out = append(out, e)
		}
	}
	return out, nil
}

// ClearErrors empties the log.
func (l *ErrorLog) ClearErrors() error {
	err := os.Remove(l.path())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (l *ErrorLog) readAll() ([]HookError, error) {
	f, err := os.Open(l.path())
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []HookError
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var e HookError
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue // skip corrupt lines rather than losing the log
		}
		entries = append(entries, e)
	}
	return entries, sc.Err()
}

func (l *ErrorLog) writeAll(entries []HookError) error {
	var buf []byte
	for _, e := range entries {
		line, err := json.Marshal(e)
		if err != nil {
			continue
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}
	return util.AtomicWriteFile(l.path(), buf, 0644)
}
