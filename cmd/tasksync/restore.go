// Restore command rewinds Apple Reminders to a snapshot.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tasksync/internal/snapshot"
)

var (
	flagRestoreExecute bool
	flagRestoreYes     bool
)

var restoreCmd = &cobra.Command{
	Use:   "restore <file>",
	Short: "Rewind Apple Reminders to a snapshot",
	Long: `Restore deletes every current reminder and recreates the state the
snapshot recorded. Without --execute it only reports what would happen.
A destructive restore asks for confirmation unless --yes is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runRestore,
}

func init() {
	restoreCmd.Flags().BoolVar(&flagRestoreExecute, "execute", false, "actually apply the restore")
	restoreCmd.Flags().BoolVar(&flagRestoreYes, "yes", false, "skip the confirmation prompt")
}

func runRestore(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	path := resolveSnapshotPath(rt, args[0])
	opts := snapshot.RestoreOptions{
		DryRun:  !flagRestoreExecute,
		Confirm: confirmRestore,
	}
	if flagRestoreYes {
		opts.Confirm = func(*snapshot.Artifact) bool { return true }
	}

	result, err := rt.snaps.Restore(path, rt.reminders, opts)
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(result)
	}
	if !flagRestoreExecute {
		fmt.Println("Dry run; rerun with --execute to apply.")
	}
	fmt.Printf("Tasks: %d deleted, %d created\n", result.TasksDeleted, result.TasksCreated)
	fmt.Printf("Categories: %d created, %d deleted\n", result.CategoriesCreated, result.CategoriesDeleted)
	for _, e := range result.Errors {
		fmt.Printf("  error: %s\n", e)
	}
	return nil
}

// confirmRestore shows what the snapshot holds and asks for an explicit yes.
func confirmRestore(artifact *snapshot.Artifact) bool {
	fmt.Printf("Restoring snapshot from %s: %d tasks in %d categories.\n",
		artifact.CreatedAt.Format("2006-01-02 15:04:05"),
		artifact.Meta.TotalTasks, artifact.Meta.TotalCategories)
	fmt.Print("This deletes every current reminder first. Type 'yes' to continue: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(line) == "yes"
}
