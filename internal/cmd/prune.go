package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/crewkit/crewkit/internal/style"
)

var pruneDryRun bool

var pruneCmd = &cobra.Command{
	Use:     "prune [days]",
	GroupID: GroupContext,
	Short:   "Delete records older than the retention window",
	Long: `Delete every record not updated within the last N days. The default
window comes from the kit config's store.retention_days. Records a
session still touches are refreshed on access, so active context
survives any reasonable window.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPrune,
}

func init() {
	pruneCmd.Flags().BoolVar(&pruneDryRun, "dry-run", false, "report what would be deleted without deleting")
	rootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, args []string) error {
	days := kitConfig().Store.RetentionDays
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("days must be a positive integer, got %q", args[0])
		}
		days = n
	}
	cutoff := time.Now().AddDate(0, 0, -days)

	ctx := context.Background()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if pruneDryRun {
		n, err := store.CountOlderThan(ctx, cutoff)
		if err != nil {
			return err
		}
		fmt.Printf("%s would delete %d record(s) older than %d days\n",
			style.Dim.Render("dry run:"), n, days)
		return nil
	}

	n, err := store.Prune(ctx, cutoff)
	if err != nil {
		return err
	}
	fmt.Printf("%s pruned %d record(s) older than %d days\n", style.SuccessPrefix, n, days)
	return nil
}
