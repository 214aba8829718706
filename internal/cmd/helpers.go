package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"

	"github.com/crewkit/crewkit/internal/capsule"
	"github.com/crewkit/crewkit/internal/config"
	"github.com/crewkit/crewkit/internal/identity"
)

// findProjectRoot walks upward from cwd to the nearest directory holding
// a .git entry. Worktrees keep .git as a file, so both forms count.
func findProjectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}
	dir, err := filepath.Abs(cwd)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not inside a git repository (looked upward from %s)", cwd)
		}
		dir = parent
	}
}

// openStore opens the shared record store, which must already exist.
func openStore(ctx context.Context) (*capsule.Store, error) {
	store, err := capsule.OpenExisting(ctx, identity.StorePath())
	if err != nil {
		return nil, fmt.Errorf("no record store at %s; run 'ck install' first", identity.StorePath())
	}
	return store, nil
}

// kitConfig loads the kit config, falling back to defaults so commands
// never fail on a missing or broken config file.
func kitConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		return config.Default()
	}
	return cfg
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderMarkdown renders markdown for the terminal. On any renderer
// error the raw markdown comes back, so --render can never lose content.
func renderMarkdown(md string) string {
	width := 100
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 20 {
		width = w
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}
