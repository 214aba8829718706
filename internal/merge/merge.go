// Package merge implements the crew merge pilot: previewing what each
// teammate branch would do to the main branch, surfacing file overlap
// between teammates, and landing the branches clean-first with a backup
// tag and test-gated rollback.
package merge

import (
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/crewkit/crewkit/internal/crewcfg"
	"github.com/crewkit/crewkit/internal/git"
)

// Preview row statuses.
const (
	StatusClean    = "clean"
	StatusConflict = "conflict"
	StatusError    = "error"
)

// BranchPreview is one row of the merge preview: what merging a
// teammate's branch into main would change and whether it conflicts.
type BranchPreview struct {
	Teammate      string   `json:"teammate"`
	Branch        string   `json:"branch"`
	Status        string   `json:"status"`
	ChangedFiles  []string `json:"changed_files,omitempty"`
	ConflictFiles []string `json:"conflict_files,omitempty"`
	Message       string   `json:"message,omitempty"`
}

// Overlap reports files that two teammates both changed. Overlapping
// branches merge in whatever order the preview lists them, so the
// second one is the likely conflict site.
type Overlap struct {
	Teammates [2]string `json:"teammates"`
	Files     []string  `json:"files"`
}

// Outcome records one branch's fate during Execute.
type Outcome struct {
	Teammate string `json:"teammate"`
	Branch   string `json:"branch"`
	Reason   string `json:"reason,omitempty"`
}

// Result is the structured outcome of Execute.
type Result struct {
	Success   []Outcome `json:"success"`
	Failed    []Outcome `json:"failed"`
	Skipped   []Outcome `json:"skipped"`
	BackupTag string    `json:"backup_tag,omitempty"`
}

// Options control Execute.
type Options struct {
	// CreateBackup tags main before the first merge so the whole run
	// can be undone with a single reset.
	CreateBackup bool
	// TestCommand, when set, runs via `sh -c` in the project root after
	// each successful merge. A non-zero exit rolls that merge back.
	TestCommand string
}

// DefaultOptions returns the Execute defaults: backup on, no tests.
func DefaultOptions() Options {
	return Options{CreateBackup: true}
}

// Pilot previews and executes teammate branch merges. It operates on
// the project root checkout, never on teammate worktrees.
type Pilot struct {
	git  *git.Git
	root string
	main string
}

// NewPilot creates a pilot for the repository at projectRoot merging
// into mainBranch.
func NewPilot(projectRoot, mainBranch string) *Pilot {
	return &Pilot{
		git:  git.NewGit(projectRoot),
		root: projectRoot,
		main: mainBranch,
	}
}

// Preview builds one row per teammate whose branch differs from main.
// Rows come back in teammate order; nothing is merged.
func (p *Pilot) Preview(mates []crewcfg.Teammate) []BranchPreview {
	var rows []BranchPreview
	for _, tm := range mates {
		if tm.Branch == "" || tm.Branch == p.main {
			continue
		}
		rows = append(rows, p.previewBranch(tm.Name, tm.Branch))
	}
	return rows
}

func (p *Pilot) previewBranch(teammate, branch string) BranchPreview {
	row := BranchPreview{Teammate: teammate, Branch: branch}

	exists, err := p.git.BranchExists(branch)
	if err != nil {
		row.Status = StatusError
		row.Message = fmt.Sprintf("checking branch: %v", err)
		return row
	}
	if !exists {
		row.Status = StatusError
		row.Message = fmt.Sprintf("branch %s does not exist", branch)
		return row
	}

	row.ChangedFiles, err = p.git.ChangedFiles(p.main, branch)
	if err != nil {
		row.Status = StatusError
		row.Message = fmt.Sprintf("diffing against %s: %v", p.main, err)
		return row
	}

	check, err := p.git.MergeTreeCheck(p.main, branch)
	if err != nil {
		row.Status = StatusError
		row.Message = fmt.Sprintf("merge check: %v", err)
		return row
	}
	if check.Clean {
		row.Status = StatusClean
		return row
	}

	row.Status = StatusConflict
	row.ConflictFiles = check.ConflictFiles
	if check.Inconclusive {
		// Conflicts detected but the paths could not be parsed; the
		// whole changed set is the conservative answer.
		row.ConflictFiles = row.ChangedFiles
	}
	row.Message = fmt.Sprintf("%d conflicting files", len(row.ConflictFiles))
	return row
}

// DetectOverlaps returns, for every unordered teammate pair, the files
// both touched. Pairs keep preview order; files keep the first
// teammate's order.
func DetectOverlaps(previews []BranchPreview) []Overlap {
	var out []Overlap
	for i := 0; i < len(previews); i++ {
		for j := i + 1; j < len(previews); j++ {
			shared := intersect(previews[i].ChangedFiles, previews[j].ChangedFiles)
			if len(shared) == 0 {
				continue
			}
			out = append(out, Overlap{
				Teammates: [2]string{previews[i].Teammate, previews[j].Teammate},
				Files:     shared,
			})
		}
	}
	return out
}

func intersect(a, b []string) []string {
	inB := make(map[string]bool, len(b))
	for _, f := range b {
		inB[f] = true
	}
	var out []string
	for _, f := range a {
		if inB[f] {
			out = append(out, f)
		}
	}
	return out
}

// Execute merges the previewed branches into main, clean branches
// first. Error rows are skipped with their preview message as the
// reason. Conflicting branches are still attempted last; a failed
// merge is aborted and recorded, never left half-done. A partial
// Result comes back alongside any fatal error so callers can report
// what already landed.
func (p *Pilot) Execute(previews []BranchPreview, opts Options) (*Result, error) {
	res := &Result{}

	dirty, err := p.git.HasUncommittedChanges()
	if err != nil {
		return res, fmt.Errorf("checking working tree: %w", err)
	}
	if dirty {
		return res, fmt.Errorf("uncommitted changes in %s; commit or stash before merging", p.root)
	}

	if err := p.git.Checkout(p.main); err != nil {
		return res, fmt.Errorf("checking out %s: %w", p.main, err)
	}

	if opts.CreateBackup {
		res.BackupTag = backupTagName(time.Now())
		if err := p.git.Tag(res.BackupTag); err != nil {
			return res, fmt.Errorf("creating backup tag: %w", err)
		}
	}

	ordered := make([]BranchPreview, len(previews))
	copy(ordered, previews)
	sort.SliceStable(ordered, func(i, j int) bool {
		return statusRank(ordered[i].Status) < statusRank(ordered[j].Status)
	})

	for _, row := range ordered {
		if row.Status == StatusError {
			res.Skipped = append(res.Skipped, Outcome{
				Teammate: row.Teammate, Branch: row.Branch, Reason: row.Message,
			})
			continue
		}

		if err := p.git.Checkout(p.main); err != nil {
			return res, fmt.Errorf("checking out %s: %w", p.main, err)
		}
		prior, err := p.git.Rev("HEAD")
		if err != nil {
			return res, fmt.Errorf("resolving %s: %w", p.main, err)
		}

		if err := p.git.Merge(row.Branch); err != nil {
			// Abort is best-effort; the merge may have died before
			// writing MERGE_HEAD.
			_ = p.git.AbortMerge()
			res.Failed = append(res.Failed, Outcome{
				Teammate: row.Teammate, Branch: row.Branch,
				Reason: fmt.Sprintf("merge failed: %v", err),
			})
			continue
		}

		if opts.TestCommand != "" {
			if err := p.runTests(opts.TestCommand); err != nil {
				if resetErr := p.git.ResetHard(prior); resetErr != nil {
					return res, fmt.Errorf("rolling back %s after failed tests: %w", row.Branch, resetErr)
				}
				res.Failed = append(res.Failed, Outcome{
					Teammate: row.Teammate, Branch: row.Branch,
					Reason: fmt.Sprintf("tests failed, merge rolled back: %v", err),
				})
				continue
			}
		}

		res.Success = append(res.Success, Outcome{Teammate: row.Teammate, Branch: row.Branch})
	}

	return res, nil
}

func statusRank(status string) int {
	switch status {
	case StatusClean:
		return 0
	case StatusConflict:
		return 1
	default:
		return 2
	}
}

func (p *Pilot) runTests(command string) error {
	cmd := exec.Command("sh", "-c", command)
	cmd.Dir = p.root
	out, err := cmd.CombinedOutput()
	if err != nil {
		if line := lastLine(string(out)); line != "" {
			return fmt.Errorf("%w: %s", err, line)
		}
		return err
	}
	return nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}

// backupTagName formats the pre-merge tag. Git refuses colons in
// refnames, so the timestamp swaps them for dashes.
func backupTagName(now time.Time) string {
	return "crew-backup-" + now.UTC().Format("2006-01-02T15-04-05Z")
}
