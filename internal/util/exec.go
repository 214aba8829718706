// exec.go provides small helpers for running external commands.

package util

import (
	"fmt"
	"os/exec"
	"strings"
)

// ExecWithOutput runs a command in the given working directory and returns
// its combined output with surrounding whitespace trimmed.
// On failure the combined output (including stderr) is folded into the error.
func ExecWithOutput(workDir string, name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = workDir
	out, err := cmd.CombinedOutput()
	output := strings.TrimSpace(string(out))
	if err != nil {
		if output != "" {
			return output, fmt.Errorf("%s: %s: %w", name, output, err)
		}
		return output, fmt.Errorf("%s: %w", name, err)
	}
	return output, nil
}

// ExecRun runs a command in the given working directory, discarding output.
func ExecRun(workDir string, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Dir = workDir
	return cmd.Run()
}
