// Status command summarizes the persisted sync state.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var flagStatusLogs int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync state counts and recent activity",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&flagStatusLogs, "logs", 10, "number of recent log entries to show")
}

func runStatus(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	stats, err := rt.store.Stats()
	if err != nil {
		return fmt.Errorf("read sync state: %w", err)
	}
	logs, err := rt.store.RecentLogs(flagStatusLogs)
	if err != nil {
		return fmt.Errorf("read sync log: %w", err)
	}

	if flagJSON {
		return printJSON(map[string]any{
			"data_dir": rt.dataDir,
			"stats":    stats,
			"logs":     logs,
		})
	}

	fmt.Printf("Data directory: %s\n", rt.dataDir)
	fmt.Printf("Records: %d total, %d paired, %d supernote-only, %d apple-only, %d tombstoned\n",
		stats.Total, stats.Paired, stats.SupernoteOnly, stats.AppleOnly, stats.Tombstoned)
	if len(logs) == 0 {
		fmt.Println("No sync activity recorded yet.")
		return nil
	}
	fmt.Println("Recent activity:")
	for _, entry := range logs {
		fmt.Printf("  %s  %s", entry.Timestamp.Format("2006-01-02 15:04:05"), entry.Action)
		if entry.Details != "" {
			fmt.Printf("  %s", entry.Details)
		}
		if entry.RecordID != "" {
			if r, err := rt.store.GetRecord(entry.RecordID); err == nil {
				fmt.Printf("  [sn:%s ap:%s]", orDash(r.SupernoteID), orDash(r.AppleID))
			}
		}
		fmt.Println()
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
