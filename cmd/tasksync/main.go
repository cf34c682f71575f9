// Package main provides the tasksync CLI, the command-line surface over
// the Supernote / Apple Reminders reconciliation engine.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
