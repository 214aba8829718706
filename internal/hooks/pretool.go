package hooks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// largeFileThreshold is where a whole-file read stops being useful and
// the bundled AST chunker does better.
const largeFileThreshold = 256 * 1024

// PreToolUse may add an advisory when the host is about to read a file
// too large to digest whole. It only suggests; it never rejects or
// rewrites the tool call.
func PreToolUse(ctx context.Context, rc *RunContext) error {
	switch rc.Event.ToolName {
	case "Read", "Grep", "Glob":
	default:
		return nil
	}

	path := rc.Event.Path()
	if path == "" || skipPath(path) {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil
	}
	if info.Size() < largeFileThreshold {
		return nil
	}

	fmt.Fprintf(rc.Stdout,
		"Note: %s is %s. Consider the AST chunker or a targeted search instead of reading it whole.\n",
		filepath.Base(path), formatSize(info.Size()))
	return nil
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.0f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
