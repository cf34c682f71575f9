// Shared wiring helpers for tasksync CLI commands.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/mesh-intelligence/tasksync/internal/adapters/reminders"
	"github.com/mesh-intelligence/tasksync/internal/adapters/supernote"
	"github.com/mesh-intelligence/tasksync/internal/engine"
	"github.com/mesh-intelligence/tasksync/internal/paths"
	"github.com/mesh-intelligence/tasksync/internal/snapshot"
	"github.com/mesh-intelligence/tasksync/internal/state"
)

// runtime bundles everything a command needs once wiring is done. Close
// must be called when the command finishes.
type runtime struct {
	dataDir   string
	store     *state.Store
	snaps     *snapshot.Manager
	supernote *supernote.Adapter
	reminders *reminders.Adapter
	log       *slog.Logger
}

func (rt *runtime) Close() {
	if rt.store != nil {
		_ = rt.store.Close()
	}
}

// newRuntime resolves directories, opens the sync state store and builds
// both adapters from the loaded configuration.
func newRuntime() (*runtime, error) {
	dataDir, err := resolveDataDir()
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}

	store, err := state.Open(paths.StateDBPath(dataDir))
	if err != nil {
		return nil, fmt.Errorf("open sync state: %w", err)
	}

	log := newLogger()
	return &runtime{
		dataDir:   dataDir,
		store:     store,
		snaps:     snapshot.NewManager(paths.SnapshotsDir(dataDir)),
		supernote: supernote.New(supernoteOptions(loadedConfig), log),
		reminders: reminders.New(remindersOptions(loadedConfig), log),
		log:       log,
	}, nil
}

// newEngine builds the reconciliation engine on top of an existing runtime.
func newEngine(rt *runtime) (*engine.Engine, error) {
	cfg, err := engineConfig(loadedConfig)
	if err != nil {
		return nil, err
	}
	return engine.New(rt.supernote, rt.reminders, rt.store, rt.snaps, cfg, rt.log)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("TASKSYNC_DEBUG") != "" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// printJSON renders v as indented JSON on stdout.
func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
