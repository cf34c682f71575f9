package types

import "errors"

// Adapter is the capability contract one store implements. Whether a store
// is reached through direct native calls, an out-of-process binary, or a
// remote service is invisible to the engine. Each operation is individually
// atomic; the engine never assumes cross-operation transactions.
type Adapter interface {
	// Side identifies which store this adapter serves.
	Side() Side

	// ListCategories returns every category currently visible in the store.
	ListCategories() ([]Category, error)

	// ListTasks returns every task currently visible in the store,
	// completed tasks included.
	ListTasks() ([]Task, error)

	// CreateTask creates a task and returns its native id.
	CreateTask(t Task) (string, error)

	// UpdateTask overwrites the task with the given native id.
	// Returns ErrNotFound if the task vanished since load.
	UpdateTask(nativeID string, t Task) error

	// DeleteTask removes the task with the given native id.
	// Returns ErrNotFound if the task vanished since load.
	DeleteTask(nativeID string) error

	// CreateCategory creates a category and returns its native id.
	CreateCategory(title string) (string, error)

	// RenameCategory changes a category title in place. The native id is
	// unchanged; no tasks move.
	RenameCategory(nativeID, newTitle string) error

	// DeleteCategory removes the category with the given native id.
	DeleteCategory(nativeID string) error
}

// Adapter and engine errors.
var (
	// ErrNotFound means a referenced task or category vanished between
	// load and apply. The single operation fails; the batch continues.
	ErrNotFound = errors.New("record not found")

	// ErrAdapterUnavailable means a store could not be reached at all.
	// The run aborts before any mutation.
	ErrAdapterUnavailable = errors.New("adapter unavailable")

	// ErrStateCorrupted means the persisted sync state violates its
	// invariants. Fatal; the engine never self-heals mapping corruption.
	ErrStateCorrupted = errors.New("sync state corrupted")

	// ErrStoreClosed means an operation was attempted on a closed store.
	ErrStoreClosed = errors.New("sync state store is closed")

	// ErrLockHeld means another run holds (or stale-holds) the run lock.
	ErrLockHeld = errors.New("run lock is held")

	// ErrSnapshotNotFound means the requested snapshot artifact is missing.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrRestoreNotConfirmed means a restore was requested without the
	// required explicit confirmation.
	ErrRestoreNotConfirmed = errors.New("restore not confirmed")
)
