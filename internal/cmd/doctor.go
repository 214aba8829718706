package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/crewkit/crewkit/internal/doctor"
	"github.com/crewkit/crewkit/internal/identity"
	"github.com/crewkit/crewkit/internal/state"
	"github.com/crewkit/crewkit/internal/style"
)

var (
	doctorFix     bool
	doctorVerbose bool
)

var doctorCmd = &cobra.Command{
	Use:     "doctor",
	GroupID: GroupDiag,
	Short:   "Check the kit's environment and state",
	Long: `Run the kit's health checks: git version, state directory, record
store, hook wiring, recent hook failures, and the worktree registry.

--fix applies the automatic repairs and re-verifies each one. A check
that stays unhealthy after its fix is reported, not hidden.

This is the kit-level doctor; 'ck crew doctor' diagnoses a running team.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

// slowCheckThreshold flags checks worth a progress note while streaming.
const slowCheckThreshold = 500 * time.Millisecond

func init() {
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "apply automatic fixes and re-verify")
	doctorCmd.Flags().BoolVarP(&doctorVerbose, "verbose", "v", false, "show details for passing checks too")
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := &doctor.CheckContext{Verbose: doctorVerbose}
	if root, err := findProjectRoot(); err == nil {
		ctx.ProjectRoot = root
		ctx.ProjectHash = identity.ProjectHash(root)
	}

	d := doctor.NewDoctor()
	d.RegisterAll(doctor.KitChecks()...)

	var report *doctor.Report
	if doctorFix {
		report = d.FixStreaming(ctx, os.Stdout, slowCheckThreshold)
	} else {
		report = d.RunStreaming(ctx, os.Stdout, slowCheckThreshold)
	}

	fmt.Println()
	report.Print(os.Stdout, doctorVerbose)

	if err := state.RecordDoctorRun(); err != nil {
		style.PrintWarning("could not record doctor run: %v", err)
	}

	if report.HasErrors() {
		return NewSilentExit(1)
	}
	return nil
}
