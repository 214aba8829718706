package hooks

import (
	"context"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/crewkit/crewkit/internal/capsule"
	"github.com/crewkit/crewkit/internal/config"
	"github.com/crewkit/crewkit/internal/hooklog"
	"github.com/crewkit/crewkit/internal/identity"
	"github.com/crewkit/crewkit/internal/state"
	"github.com/crewkit/crewkit/internal/util"
)

// RunContext is handed to each handler after the shared plumbing has
// parsed the event and opened the store under a resolved identity.
type RunContext struct {
	Event  *Event
	Res    *identity.Resolution
	Store  *capsule.Store
	Cfg    *config.Config
	Cwd    string
	Stdout io.Writer
	Now    time.Time
}

// Handler is one hook entrypoint.
type Handler func(ctx context.Context, rc *RunContext) error

// Run executes a hook handler with the plumbing every hook shares.
// The contract with the host is absolute: exit 0, whatever happens.
// A failure here means a degraded feature, not a broken agent, so
// errors go to the error log and stderr instead of the exit code.
func Run(name string, fn Handler, stdin io.Reader, stdout io.Writer) (code int) {
	defer func() {
		if r := recover(); r != nil {
			hooklog.Error("hook panicked", "hook", name, "panic", r)
		}
		code = 0
	}()

	if !state.IsEnabled() {
		return 0
	}

	ev, err := ParseEvent(stdin)
	if err != nil {
		hooklog.Debug("unreadable hook event", "hook", name, "err", err)
		return 0
	}

	cwd, err := os.Getwd()
	if err != nil {
		return 0
	}
	if identity.Disabled(cwd) {
		return 0
	}

	res := identity.Resolve(cwd, ev.Path())

	ctx := context.Background()
	store, err := capsule.OpenExisting(ctx, res.StorePath)
	if err != nil {
		// No store means the kit was never installed for this host.
		hooklog.Debug("store unavailable", "hook", name, "err", err)
		return 0
	}
	defer store.Close()

	cfg, err := config.Load()
	if err != nil {
		cfg = config.Default()
	}

	rc := &RunContext{
		Event:  ev,
		Res:    res,
		Store:  store,
		Cfg:    cfg,
		Cwd:    cwd,
		Stdout: stdout,
		Now:    time.Now(),
	}
	if err := fn(ctx, rc); err != nil {
		reportFailure(name, res, err)
	}
	return 0
}

// reportFailure records a hook failure for doctor to find later.
func reportFailure(name string, res *identity.Resolution, err error) {
	hooklog.Error("hook failed", "hook", name, "err", err)
	elog := NewErrorLog(state.KitDir())
	if _, lerr := elog.ReportError(name, "ck hook "+CLIName(name), 1, err.Error(), res.ScopeNS()); lerr != nil {
		hooklog.Debug("error log write failed", "err", lerr)
	}
}

// CLIName maps a wire event name to its ck subcommand, e.g.
// PreToolUse -> pre-tool-use.
func CLIName(event string) string {
	var b strings.Builder
	for i, r := range event {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Teammate returns the crew teammate name, or "" outside crew mode.
func (rc *RunContext) Teammate() string {
	if rc.Res.Crew == nil {
		return ""
	}
	return rc.Res.Crew.TeammateName
}

// saveRecord writes through the short lock-contention bursts that
// parallel hook processes produce.
func saveRecord(ctx context.Context, store *capsule.Store, rec *capsule.Record) error {
	_, err := util.RetryWithContext(ctx, func() (struct{}, error) {
		return struct{}{}, store.Save(ctx, rec)
	})
	return err
}

// truncate bounds s to max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.ValidString(s[:max]) {
		max--
	}
	return s[:max] + "..."
}
