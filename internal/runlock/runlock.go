// Package runlock serializes sync runs through a pid lock file. Two
// concurrent runs against the same state database would interleave their
// operation batches, so a run refuses to start while another holds the lock.
package runlock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mesh-intelligence/tasksync/pkg/types"
)

// staleAfter is how old a lock file may be before a dead owner is assumed
// even when the pid cannot be probed.
const staleAfter = time.Hour

// lockInfo is the lock file payload.
type lockInfo struct {
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
	Hostname   string    `json:"hostname"`
}

// Lock is a held run lock. Release it when the run finishes.
type Lock struct {
	path string
}

// Acquire takes the run lock at path, creating parent directories as
// needed. A live lock from a running process yields ErrLockHeld with the
// owner's pid; a lock left behind by a dead process is broken and retaken.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			host, _ := os.Hostname()
			info := lockInfo{PID: os.Getpid(), AcquiredAt: time.Now().UTC(), Hostname: host}
			enc := json.NewEncoder(f)
			if werr := enc.Encode(info); werr != nil {
				f.Close()
				os.Remove(path)
				return nil, fmt.Errorf("writing lock file: %w", werr)
			}
			if cerr := f.Close(); cerr != nil {
				os.Remove(path)
				return nil, fmt.Errorf("writing lock file: %w", cerr)
			}
			return &Lock{path: path}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("creating lock file: %w", err)
		}

		info, readErr := readInfo(path)
		if readErr == nil && !stale(info) {
			return nil, fmt.Errorf("%w: pid %d since %s",
				types.ErrLockHeld, info.PID, info.AcquiredAt.Format(time.RFC3339))
		}
		// Unreadable or stale: break it and retry once.
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			return nil, fmt.Errorf("breaking stale lock: %w", rmErr)
		}
	}
	return nil, types.ErrLockHeld
}

// Release removes the lock file. Safe to call once per acquired lock.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("releasing run lock: %w", err)
	}
	return nil
}

func readInfo(path string) (lockInfo, error) {
	var info lockInfo
	data, err := os.ReadFile(path)
	if err != nil {
		return info, err
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return info, err
	}
	return info, nil
}

// stale reports whether the lock's owner is gone. A pid that no longer
// accepts signal 0 is dead; an owner on another host cannot be probed, so
// only the age cutoff applies there.
func stale(info lockInfo) bool {
	host, _ := os.Hostname()
	if info.Hostname == host && info.PID > 0 {
		proc, err := os.FindProcess(info.PID)
		if err != nil {
			return true
		}
		if err := proc.Signal(syscall.Signal(0)); err != nil {
			return true
		}
		return false
	}
	return time.Since(info.AcquiredAt) > staleAfter
}
