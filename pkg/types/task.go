package types

import (
	"strings"
	"time"
)

// Side identifies one of the two stores participating in a sync.
type Side string

const (
	SideSupernote Side = "supernote"
	SideApple     Side = "apple"
)

// Other returns the opposite side.
func (s Side) Other() Side {
	if s == SideSupernote {
		return SideApple
	}
	return SideSupernote
}

// Valid reports whether s is a recognized side.
func (s Side) Valid() bool {
	return s == SideSupernote || s == SideApple
}

// Task status values. Both stores report one of these after normalization.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// Task is the store-independent representation of a single task.
// Adapters translate their native schema into this form; the engine never
// sees store-specific fields.
type Task struct {
	Title    string
	Notes    string
	Status   string // StatusPending or StatusCompleted
	Priority int    // normalized: 0=none, 1=low, 5=medium, 9=high

	Due        *time.Time // optional, second precision
	HasDueTime bool       // false when the due date carries no time of day

	CategoryID  string // native category id on this task's side
	CategoryKey string // canonical category key, assigned during load

	CompletedAt *time.Time
	DocLink     *DocumentLink

	NativeID   string
	ModifiedAt time.Time
	Side       Side
}

// Completed reports whether the task is in the completed status.
func (t *Task) Completed() bool {
	return t.Status == StatusCompleted
}

// NormalizedTitle returns the title trimmed and lowercased, the form used
// for fallback matching.
func (t *Task) NormalizedTitle() string {
	return strings.ToLower(strings.TrimSpace(t.Title))
}

// ApplePriority maps the normalized priority to the Apple Reminders scale,
// where 1-4 is high, 5 is medium and 6-9 is low.
func (t *Task) ApplePriority() int {
	switch {
	case t.Priority == 0:
		return 0
	case t.Priority <= 3:
		return 9
	case t.Priority <= 6:
		return 5
	default:
		return 1
	}
}

// PriorityFromApple maps an Apple Reminders priority to the normalized scale.
func PriorityFromApple(p int) int {
	switch {
	case p == 0:
		return 0
	case p >= 6:
		return 1
	case p == 5:
		return 5
	default:
		return 9
	}
}
