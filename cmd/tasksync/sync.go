// Sync command runs one reconciliation pass.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tasksync/internal/paths"
	"github.com/mesh-intelligence/tasksync/internal/runlock"
)

var flagDryRun bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one reconciliation pass between Supernote and Apple Reminders",
	Long: `Sync loads both stores, matches tasks across them, detects changes
since the last run and applies the minimal set of operations so both sides
converge. With --dry-run every planned operation is printed and nothing is
modified.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "plan and report without touching either store")
}

func runSync(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	lock, err := runlock.Acquire(paths.LockPath(rt.dataDir))
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	eng, err := newEngine(rt)
	if err != nil {
		return err
	}

	report, err := eng.Run(flagDryRun)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	if flagJSON {
		return printJSON(report)
	}

	if flagDryRun {
		fmt.Println("Dry run; no changes applied.")
		for _, res := range report.Results {
			fmt.Printf("  would apply: %s\n", res.Op)
		}
	} else {
		for _, res := range report.Results {
			fmt.Printf("  %s: %s\n", res.Outcome, res.Op)
		}
	}
	fmt.Println(report.Summary())
	if report.Failed() {
		return fmt.Errorf("%d operation(s) failed", len(report.Errors))
	}
	return nil
}
