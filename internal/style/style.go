// Package style provides shared terminal styling for crewkit CLI output.
package style

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Core text styles used across all commands.
var (
	Bold    = lipgloss.NewStyle().Bold(true)
	Dim     = lipgloss.NewStyle().Faint(true)
	Success = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	Warning = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	Error   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	Info    = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)

// Bare color styles for callers that compose their own text.
var (
	Green  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	Yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	Red    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	Cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)

// Pre-rendered prefixes for status lines, built in init once the color
// profile is pinned.
var (
	SuccessPrefix string
	WarningPrefix string
	ErrorPrefix   string
	ArrowPrefix   string
)

// AgentModeEnv forces agent mode explicitly; the CLAUDECODE variable
// the host exports is auto-detected.
const AgentModeEnv = "CREWKIT_AGENT_MODE"

// IsAgentMode reports whether output goes to a coding agent rather
// than a person. Agent transcripts must stay free of ANSI sequences.
func IsAgentMode() bool {
	if os.Getenv(AgentModeEnv) == "1" {
		return true
	}
	return os.Getenv("CLAUDECODE") != ""
}

func init() {
	// Honor NO_COLOR, CLICOLOR, and CLICOLOR_FORCE, and drop to plain
	// text when stdout is not a terminal or belongs to an agent.
	if IsAgentMode() {
		lipgloss.SetColorProfile(termenv.Ascii)
	} else {
		lipgloss.SetColorProfile(termenv.EnvColorProfile())
	}

	SuccessPrefix = Success.Render("✓")
	WarningPrefix = Warning.Render("!")
	ErrorPrefix = Error.Render("✗")
	ArrowPrefix = Dim.Render("→")
}

// PrintWarning prints a formatted warning line to stderr.
func PrintWarning(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s %s\n", WarningPrefix, fmt.Sprintf(format, args...))
}

// PrintError prints a formatted error line to stderr.
func PrintError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s %s\n", ErrorPrefix, fmt.Sprintf(format, args...))
}
