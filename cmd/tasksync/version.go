// Version command for the tasksync CLI.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tasksync/pkg/tasksync"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the tasksync version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("tasksync", tasksync.Version)
	},
}
