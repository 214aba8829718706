package doctor

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/crewkit/crewkit/internal/style"
)

// ErrCannotFix is returned by Fix on checks without auto-fix support.
var ErrCannotFix = errors.New("check cannot be fixed automatically")

// Doctor manages and executes health checks.
type Doctor struct {
	checks []Check
}

// NewDoctor creates a new Doctor with no registered checks.
func NewDoctor() *Doctor {
	return &Doctor{checks: make([]Check, 0)}
}

// Register adds a check to the doctor's check list.
func (d *Doctor) Register(check Check) {
	d.checks = append(d.checks, check)
}

// RegisterAll adds multiple checks to the doctor's check list.
func (d *Doctor) RegisterAll(checks ...Check) {
	d.checks = append(d.checks, checks...)
}

// Checks returns the list of registered checks.
func (d *Doctor) Checks() []Check {
	return d.checks
}

// Run executes all registered checks and returns a report.
func (d *Doctor) Run(ctx *CheckContext) *Report {
	return d.RunStreaming(ctx, nil, 0)
}

// RunStreaming executes all registered checks with optional line-by-line
// output. If w is non-nil, each result prints as it completes, with a
// slow marker past slowThreshold.
func (d *Doctor) RunStreaming(ctx *CheckContext, w io.Writer, slowThreshold time.Duration) *Report {
	report := NewReport()
	for _, check := range d.checks {
		result := d.runOne(check, ctx, nil)
		d.stream(w, report, result, slowThreshold)
		report.Add(result)
	}
	return report
}

// Fix runs all checks with auto-fix enabled where possible. A failing
// fixable check is fixed and then re-run to verify.
func (d *Doctor) Fix(ctx *CheckContext) *Report {
	return d.FixStreaming(ctx, nil, 0)
}

// FixStreaming is Fix with optional line-by-line output.
func (d *Doctor) FixStreaming(ctx *CheckContext, w io.Writer, slowThreshold time.Duration) *Report {
	report := NewReport()
	for _, check := range d.checks {
		result := d.runOne(check, ctx, func(res *CheckResult) *CheckResult {
			if res.Status == StatusOK || !check.CanFix() {
				return res
			}
			if err := check.Fix(ctx); err != nil {
				res.Details = append(res.Details, "Fix failed: "+err.Error())
				return res
			}
			// Re-run to verify the fix took.
			verified := check.Run(ctx)
			if verified.Status == StatusOK {
				verified.Message += " (fixed)"
				verified.Fixed = true
			}
			return verified
		})
		d.stream(w, report, result, slowThreshold)
		report.Add(result)
	}
	return report
}

// runOne executes a single check, applies an optional fix stage, and
// backfills name/category so checks can return bare results.
func (d *Doctor) runOne(check Check, ctx *CheckContext, fix func(*CheckResult) *CheckResult) *CheckResult {
	start := time.Now()
	result := check.Run(ctx)
	if fix != nil {
		result = fix(result)
	}
	if result.Name == "" {
		result.Name = check.Name()
	}
	if result.Category == "" {
		result.Category = check.Category()
	}
	result.Elapsed = time.Since(start)
	return result
}

func (d *Doctor) stream(w io.Writer, report *Report, result *CheckResult, slowThreshold time.Duration) {
	if w == nil {
		return
	}
	isSlow := slowThreshold > 0 && result.Elapsed >= slowThreshold
	if isSlow {
		report.Summary.Slow++
	}

	var prefix string
	switch {
	case result.Fixed:
		prefix = style.Success.Render("FIXED")
	case result.Status == StatusOK:
		prefix = style.Success.Render("PASS ")
	case result.Status == StatusWarning:
		prefix = style.Warning.Render("WARN ")
	default:
		prefix = style.Error.Render("FAIL ")
	}

	fmt.Fprintf(w, "%s %s", prefix, result.Name)
	if result.Message != "" {
		fmt.Fprintf(w, "  %s", style.Dim.Render(result.Message))
	}
	if isSlow {
		fmt.Fprintf(w, "  %s", style.Dim.Render("("+formatDuration(result.Elapsed)+")"))
	}
	fmt.Fprintln(w)
}

func formatDuration(d time.Duration) string {
	if d >= time.Second {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dms", d.Milliseconds())
}

// BaseCheck provides a base implementation for checks that don't support
// auto-fix. Embed this in custom checks to get default CanFix() and
// Fix() implementations.
type BaseCheck struct {
	CheckName        string
	CheckDescription string
	CheckCategory    string
}

// Name returns the check name.
func (b *BaseCheck) Name() string {
	return b.CheckName
}

// Description returns the check description.
func (b *BaseCheck) Description() string {
	return b.CheckDescription
}

// Category returns the check's category for grouping in output.
func (b *BaseCheck) Category() string {
	return b.CheckCategory
}

// CanFix returns false by default.
func (b *BaseCheck) CanFix() bool {
	return false
}

// Fix returns an error indicating this check cannot be auto-fixed.
func (b *BaseCheck) Fix(ctx *CheckContext) error {
	return ErrCannotFix
}

// FixableCheck provides a base implementation for checks that support
// auto-fix. Embed this and implement Fix().
type FixableCheck struct {
	BaseCheck
}

// CanFix returns true for fixable checks.
func (f *FixableCheck) CanFix() bool {
	return true
}
