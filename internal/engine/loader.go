package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/mesh-intelligence/tasksync/pkg/types"
)

// storeSnapshot is the immutable view of one store as of load time.
type storeSnapshot struct {
	side       types.Side
	tasks      []*types.Task
	tasksByID  map[string]*types.Task
	categories []types.Category
	catsByID   map[string]*types.Category
}

// load pulls the full current state from one adapter and normalizes it.
// Any adapter failure aborts the run; partial snapshots are never used.
func load(a types.Adapter, records *recordIndex, cfg types.Config, now time.Time) (*storeSnapshot, error) {
	side := a.Side()

	cats, err := a.ListCategories()
	if err != nil {
		return nil, fmt.Errorf("%w: listing %s categories: %v", types.ErrAdapterUnavailable, side, err)
	}
	tasks, err := a.ListTasks()
	if err != nil {
		return nil, fmt.Errorf("%w: listing %s tasks: %v", types.ErrAdapterUnavailable, side, err)
	}

	snap := &storeSnapshot{
		side:       side,
		categories: cats,
		tasksByID:  make(map[string]*types.Task),
		catsByID:   make(map[string]*types.Category),
	}
	for i := range snap.categories {
		c := &snap.categories[i]
		if !c.Deleted {
			snap.catsByID[c.NativeID] = c
		}
	}

	filtered := make([]*types.Task, 0, len(tasks))
	for i := range tasks {
		t := &tasks[i]
		t.Side = side
		if t.NativeID == "" {
			continue
		}
		if skipCompleted(t, records, cfg, now) {
			continue
		}
		filtered = append(filtered, t)
	}

	if side == types.SideApple && cfg.DedupeRepeating {
		filtered = dedupeByTitle(filtered)
	}

	snap.tasks = filtered
	for _, t := range snap.tasks {
		snap.tasksByID[t.NativeID] = t
	}
	return snap, nil
}

// skipCompleted applies the completed-task participation rules. Tasks
// already linked by a sync record always participate so completion status
// still propagates; unlinked completed tasks are dropped when completed
// sync is off. The age cutoff applies to the Apple side only, where
// Reminders accumulates years of completed entries the tablet never saw.
func skipCompleted(t *types.Task, records *recordIndex, cfg types.Config, now time.Time) bool {
	if !t.Completed() {
		return false
	}
	if records.lookup(t.Side, t.NativeID) != nil {
		return false
	}
	if !cfg.SyncCompleted {
		return true
	}
	if t.Side != types.SideApple {
		return false
	}
	if cfg.CompletedMaxAgeDays > 0 && t.CompletedAt != nil {
		cutoff := now.AddDate(0, 0, -cfg.CompletedMaxAgeDays)
		if t.CompletedAt.Before(cutoff) {
			return true
		}
	}
	return false
}

// dedupeByTitle collapses repeating reminders sharing a title down to the
// most relevant instance: incomplete beats completed, then the latest
// due/modified date wins. Prevents a repeating "Bread" reminder from
// syncing nine copies to the other store.
func dedupeByTitle(tasks []*types.Task) []*types.Task {
	byTitle := make(map[string][]*types.Task)
	var order []string
	for _, t := range tasks {
		key := t.NormalizedTitle()
		if _, ok := byTitle[key]; !ok {
			order = append(order, key)
		}
		byTitle[key] = append(byTitle[key], t)
	}

	out := make([]*types.Task, 0, len(order))
	for _, key := range order {
		group := byTitle[key]
		if len(group) > 1 {
			sort.SliceStable(group, func(i, j int) bool {
				return dedupeLess(group[i], group[j])
			})
		}
		out = append(out, group[0])
	}
	return out
}

// dedupeLess orders a title group best-first.
func dedupeLess(a, b *types.Task) bool {
	if a.Completed() != b.Completed() {
		return !a.Completed()
	}
	return dedupeDate(a).After(dedupeDate(b))
}

func dedupeDate(t *types.Task) time.Time {
	if t.Due != nil {
		return *t.Due
	}
	return t.ModifiedAt
}
