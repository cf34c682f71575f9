// Root command for the tasksync CLI.
package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/tasksync/internal/paths"
	"github.com/mesh-intelligence/tasksync/pkg/tasksync"
)

// Global flag values.
var (
	flagConfigDir string
	flagDataDir   string
	flagJSON      bool
)

// loadedConfig holds the viper instance built by PersistentPreRunE so all
// subcommands can read it.
var loadedConfig *viper.Viper

var rootCmd = &cobra.Command{
	Use:     "tasksync",
	Short:   "Bidirectional sync between a Supernote tablet and Apple Reminders",
	Version: tasksync.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configDir, err := resolveConfigDir()
		if err != nil {
			return err
		}
		loadedConfig, err = loadConfig(configDir)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "", "configuration directory (default: ~/.tasksync)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory (default: $(CWD)/.tasksync-db)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output as JSON")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(categoriesCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(restoreCmd)
}

// resolveDataDir returns the data directory path with precedence:
// --data-dir flag > config.yaml data_dir > TASKSYNC_DATA_DIR env >
// default $(CWD)/.tasksync-db.
func resolveDataDir() (string, error) {
	configValue := ""
	if loadedConfig != nil {
		configValue = loadedConfig.GetString(cfgKeyDataDir)
	}
	return paths.ResolveDataDir(flagDataDir, configValue)
}

// resolveConfigDir returns the configuration directory with precedence:
// --config-dir flag > TASKSYNC_CONFIG_DIR env > platform default.
func resolveConfigDir() (string, error) {
	return paths.ResolveConfigDir(flagConfigDir)
}
