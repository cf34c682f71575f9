// Package paths resolves configuration and data directory locations.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// CWD-relative directory names used when no override is active.
const (
	DefaultConfigDirName = ".tasksync"
	DefaultDataDirName   = ".tasksync-db"
)

// Well-known file and directory names inside the data directory.
const (
	StateDBName      = "sync_state.db"
	SnapshotsDirName = "snapshots"
	LockFileName     = "sync.lock"
)

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "TASKSYNC_CONFIG_DIR"
	EnvDataDir   = "TASKSYNC_DATA_DIR"
)

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform-specific default configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/tasksync (fallback ~/.config/tasksync)
// macOS:   ~/Library/Application Support/tasksync
// Windows: %APPDATA%/tasksync
func DefaultConfigDir() (string, error) {
	switch runtime.GOOS {
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "tasksync"), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", "tasksync"), nil
	default:
		// macOS and Windows use os.UserConfigDir which returns
		// ~/Library/Application Support on macOS and %APPDATA% on Windows.
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, "tasksync"), nil
	}
}

// DefaultDataDir returns the platform-specific default data directory.
//
// Linux:   $XDG_DATA_HOME/tasksync (fallback ~/.local/share/tasksync)
// macOS:   ~/Library/Application Support/tasksync
// Windows: %APPDATA%/tasksync
func DefaultDataDir() (string, error) {
	switch runtime.GOOS {
	case "linux":
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "tasksync"), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share", "tasksync"), nil
	default:
		// macOS and Windows: same as config dir.
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, "tasksync"), nil
	}
}

// ResolveConfigDir returns the configuration directory following the precedence
// chain: flag > TASKSYNC_CONFIG_DIR env > DefaultConfigDir().
//
// If flag is non-empty it wins. Otherwise the TASKSYNC_CONFIG_DIR environment
// variable is checked. If neither is set, the platform default is returned.
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveDataDir returns the data directory following the precedence chain:
// flag > configYAMLValue > TASKSYNC_DATA_DIR env > DefaultDataDir().
//
// The data directory holds the sync state database, the run lock, and the
// snapshots directory. When no override is active it defaults to
// $(CWD)/.tasksync-db.
func ResolveDataDir(flag, configYAMLValue string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if configYAMLValue != "" {
		return filepath.Abs(configYAMLValue)
	}
	if env := os.Getenv(EnvDataDir); env != "" {
		return filepath.Abs(env)
	}
	// CWD-relative default preserves current behavior.
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DefaultDataDirName), nil
}

// StateDBPath returns the sync state database path inside dataDir.
func StateDBPath(dataDir string) string {
	return filepath.Join(dataDir, StateDBName)
}

// SnapshotsDir returns the snapshot artifact directory inside dataDir.
func SnapshotsDir(dataDir string) string {
	return filepath.Join(dataDir, SnapshotsDirName)
}

// LockPath returns the run lock file path inside dataDir.
func LockPath(dataDir string) string {
	return filepath.Join(dataDir, LockFileName)
}
