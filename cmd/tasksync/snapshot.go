// Snapshot commands capture and inspect Apple Reminders backups.
package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage Apple Reminders snapshots",
}

var snapshotCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Capture a snapshot of Apple Reminders",
	Args:  cobra.NoArgs,
	RunE:  runSnapshotCreate,
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored snapshots, newest first",
	Args:  cobra.NoArgs,
	RunE:  runSnapshotList,
}

var snapshotInfoCmd = &cobra.Command{
	Use:   "info <file>",
	Short: "Show what a snapshot contains",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotInfo,
}

func init() {
	snapshotCmd.AddCommand(snapshotCreateCmd)
	snapshotCmd.AddCommand(snapshotListCmd)
	snapshotCmd.AddCommand(snapshotInfoCmd)
}

func runSnapshotCreate(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	path, err := rt.snaps.Capture(rt.reminders)
	if err != nil {
		return fmt.Errorf("capture snapshot: %w", err)
	}
	if flagJSON {
		return printJSON(map[string]string{"path": path})
	}
	fmt.Printf("Snapshot written to %s\n", path)
	return nil
}

func runSnapshotList(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	snapshots, err := rt.snaps.List()
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}
	if flagJSON {
		return printJSON(snapshots)
	}
	if len(snapshots) == 0 {
		fmt.Println("No snapshots yet.")
		return nil
	}
	for _, path := range snapshots {
		fmt.Println(path)
	}
	return nil
}

func runSnapshotInfo(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	artifact, err := rt.snaps.Load(resolveSnapshotPath(rt, args[0]))
	if err != nil {
		return err
	}
	if flagJSON {
		return printJSON(artifact)
	}
	fmt.Printf("Created:    %s\n", artifact.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Tasks:      %d (%d completed, %d open)\n",
		artifact.Meta.TotalTasks, artifact.Meta.CompletedCount, artifact.Meta.IncompleteCount)
	fmt.Printf("Categories: %d\n", artifact.Meta.TotalCategories)
	for _, c := range artifact.Categories {
		fmt.Printf("  %s\n", c.Title)
	}
	return nil
}

// resolveSnapshotPath accepts either a bare file name or a full path.
func resolveSnapshotPath(rt *runtime, arg string) string {
	if filepath.IsAbs(arg) || filepath.Dir(arg) != "." {
		return arg
	}
	return filepath.Join(rt.snaps.Dir(), arg)
}
