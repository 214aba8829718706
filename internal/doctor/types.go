// Package doctor provides a framework for running health checks on a
// crewkit installation and the current project.
package doctor

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/crewkit/crewkit/internal/style"
)

// Category constants for grouping checks.
const (
	CategoryCore  = "Core"
	CategoryStore = "Record Store"
	CategoryHooks = "Hooks"
	CategoryCrew  = "Crew"
)

// CategoryOrder defines the display order for categories.
var CategoryOrder = []string{
	CategoryCore,
	CategoryStore,
	CategoryHooks,
	CategoryCrew,
}

// CheckStatus represents the result status of a health check.
type CheckStatus int

const (
	// StatusOK indicates the check passed.
	StatusOK CheckStatus = iota
	// StatusWarning indicates a non-critical issue.
	StatusWarning
	// StatusError indicates a critical problem.
	StatusError
)

// String returns a human-readable status.
func (s CheckStatus) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusWarning:
		return "Warning"
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// CheckContext provides context for running checks.
type CheckContext struct {
	ProjectRoot string // Current project root (empty outside a repo)
	ProjectHash string // Tenant hash for ProjectRoot
	Verbose     bool   // Enable verbose output
}

// CheckResult represents the outcome of a health check.
type CheckResult struct {
	Name     string        // Check name
	Status   CheckStatus   // Result status
	Message  string        // Primary result message
	Details  []string      // Additional information
	FixHint  string        // Suggestion if not auto-fixable
	Category string        // Category for grouping (e.g., CategoryCore)
	Elapsed  time.Duration // How long the check (and any fix) took
	Fixed    bool          // Whether an auto-fix was applied and verified
}

// Check defines the interface for a health check.
type Check interface {
	// Name returns the check identifier.
	Name() string

	// Description returns a human-readable description.
	Description() string

	// Run executes the check and returns a result.
	Run(ctx *CheckContext) *CheckResult

	// Fix attempts to automatically fix the issue.
	// Should only be called if CanFix() returns true.
	Fix(ctx *CheckContext) error

	// CanFix returns true if this check can automatically fix issues.
	CanFix() bool

	// Category returns the check's category for grouping in output.
	Category() string
}

// ReportSummary summarizes the results of all checks.
type ReportSummary struct {
	Total    int
	OK       int
	Warnings int
	Errors   int
	Slow     int
}

// Report contains all check results and a summary.
type Report struct {
	Timestamp time.Time
	Checks    []*CheckResult
	Summary   ReportSummary
}

// NewReport creates an empty report with the current timestamp.
func NewReport() *Report {
	return &Report{
		Timestamp: time.Now(),
		Checks:    make([]*CheckResult, 0),
	}
}

// Add adds a check result to the report and updates the summary.
func (r *Report) Add(result *CheckResult) {
	r.Checks = append(r.Checks, result)
	r.Summary.Total++

	switch result.Status {
	case StatusOK:
		r.Summary.OK++
	case StatusWarning:
		r.Summary.Warnings++
	case StatusError:
		r.Summary.Errors++
	}
}

// HasErrors returns true if any check reported an error.
func (r *Report) HasErrors() bool {
	return r.Summary.Errors > 0
}

// HasWarnings returns true if any check reported a warning.
func (r *Report) HasWarnings() bool {
	return r.Summary.Warnings > 0
}

// IsHealthy returns true if all checks passed without errors or warnings.
func (r *Report) IsHealthy() bool {
	return r.Summary.Errors == 0 && r.Summary.Warnings == 0
}

// Print outputs the report grouped by category, with a summary line and
// a numbered problems section at the bottom.
func (r *Report) Print(w io.Writer, verbose bool) {
	_, _ = fmt.Fprintln(w)

	byCategory := make(map[string][]*CheckResult)
	for _, check := range r.Checks {
		cat := check.Category
		if cat == "" {
			cat = "Other"
		}
		byCategory[cat] = append(byCategory[cat], check)
	}

	var problems []*CheckResult
	printGroup := func(category string) {
		checks := byCategory[category]
		if len(checks) == 0 {
			return
		}
		_, _ = fmt.Fprintln(w, style.Bold.Render(category))
		for _, check := range checks {
			r.printCheck(w, check, verbose)
			if check.Status != StatusOK {
				problems = append(problems, check)
			}
		}
		_, _ = fmt.Fprintln(w)
	}

	for _, category := range CategoryOrder {
		printGroup(category)
	}
	printGroup("Other")

	r.printSummary(w)
	r.printProblems(w, problems)
}

func (r *Report) printCheck(w io.Writer, check *CheckResult, verbose bool) {
	var icon string
	switch {
	case check.Fixed:
		icon = style.Success.Render("⟳")
	case check.Status == StatusOK:
		icon = style.SuccessPrefix
	case check.Status == StatusWarning:
		icon = style.WarningPrefix
	default:
		icon = style.ErrorPrefix
	}

	_, _ = fmt.Fprintf(w, "  %s  %s", icon, check.Name)
	if check.Message != "" {
		_, _ = fmt.Fprintf(w, "%s", style.Dim.Render(" "+check.Message))
	}
	_, _ = fmt.Fprintln(w)

	if len(check.Details) > 0 && (verbose || check.Status != StatusOK) {
		for _, detail := range check.Details {
			_, _ = fmt.Fprintf(w, "     %s\n", style.Dim.Render("└ "+detail))
		}
	}
}

func (r *Report) printSummary(w io.Writer) {
	_, _ = fmt.Fprintf(w, "%s %d passed  %s %d warnings  %s %d failed\n",
		style.SuccessPrefix, r.Summary.OK,
		style.WarningPrefix, r.Summary.Warnings,
		style.ErrorPrefix, r.Summary.Errors,
	)
}

func (r *Report) printProblems(w io.Writer, problems []*CheckResult) {
	if len(problems) == 0 {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, style.Success.Render("✓ All checks passed"))
		return
	}

	// Errors first, then warnings.
	slices.SortStableFunc(problems, func(a, b *CheckResult) int {
		if a.Status == StatusError && b.Status != StatusError {
			return -1
		}
		if a.Status != StatusError && b.Status == StatusError {
			return 1
		}
		return 0
	})

	_, _ = fmt.Fprintln(w)
	for i, check := range problems {
		line := fmt.Sprintf("%d. %s: %s", i+1, check.Name, check.Message)
		if check.Status == StatusError {
			_, _ = fmt.Fprintf(w, "  %s %s\n", style.ErrorPrefix, style.Error.Render(line))
		} else {
			_, _ = fmt.Fprintf(w, "  %s %s\n", style.WarningPrefix, line)
		}
		if check.FixHint != "" {
			_, _ = fmt.Fprintf(w, "       %s\n", style.Dim.Render("└ "+check.FixHint))
		}
	}
}
