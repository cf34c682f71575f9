package engine

import (
	"fmt"
	"sync"

	"github.com/mesh-intelligence/tasksync/pkg/types"
)

// memAdapter is a deterministic in-memory store used by the engine tests.
// Listing order is insertion order so runs are reproducible.
type memAdapter struct {
	mu   sync.Mutex
	side types.Side
	next int

	tasks     map[string]types.Task
	taskOrder []string
	cats      map[string]types.Category
	catOrder  []string

	failList bool
	// vanished ids exist at list time but return ErrNotFound on
	// update/delete, simulating a row removed between load and apply.
	vanished map[string]bool
	calls    []string
}

func newMemAdapter(side types.Side) *memAdapter {
	return &memAdapter{
		side:     side,
		tasks:    make(map[string]types.Task),
		cats:     make(map[string]types.Category),
		vanished: make(map[string]bool),
	}
}

func (m *memAdapter) record(format string, args ...any) {
	m.calls = append(m.calls, fmt.Sprintf(format, args...))
}

// seedTask inserts a task with a fixed native id, bypassing the adapter
// contract. Test setup only.
func (m *memAdapter) seedTask(id string, t types.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.NativeID = id
	t.Side = m.side
	if t.Status == "" {
		t.Status = types.StatusPending
	}
	m.tasks[id] = t
	m.taskOrder = append(m.taskOrder, id)
}

// seedCategory inserts a category with a fixed native id. Test setup only.
func (m *memAdapter) seedCategory(id, title string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cats[id] = types.Category{NativeID: id, Title: title, Side: m.side}
	m.catOrder = append(m.catOrder, id)
}

// mutate edits a task in place, simulating a user edit in the store.
func (m *memAdapter) mutate(id string, fn func(*types.Task)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.tasks[id]
	fn(&t)
	m.tasks[id] = t
}

// remove drops a task, simulating a user deletion in the store.
func (m *memAdapter) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, id)
}

// removeCategory drops a category, simulating a user deletion in the store.
func (m *memAdapter) removeCategory(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cats, id)
}

// retitle changes a category title, simulating a user rename.
func (m *memAdapter) retitle(id, title string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.cats[id]
	c.Title = title
	m.cats[id] = c
}

func (m *memAdapter) task(id string) (types.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	return t, ok
}

func (m *memAdapter) taskByTitle(title string) (types.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.taskOrder {
		if t, ok := m.tasks[id]; ok && t.Title == title {
			return t, true
		}
	}
	return types.Task{}, false
}

func (m *memAdapter) Side() types.Side { return m.side }

func (m *memAdapter) ListCategories() ([]types.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failList {
		return nil, fmt.Errorf("%s store unreachable", m.side)
	}
	out := make([]types.Category, 0, len(m.cats))
	for _, id := range m.catOrder {
		if c, ok := m.cats[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memAdapter) ListTasks() ([]types.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failList {
		return nil, fmt.Errorf("%s store unreachable", m.side)
	}
	out := make([]types.Task, 0, len(m.tasks))
	for _, id := range m.taskOrder {
		if t, ok := m.tasks[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memAdapter) CreateTask(t types.Task) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	id := fmt.Sprintf("%s-t%d", m.side, m.next)
	t.NativeID = id
	t.Side = m.side
	m.tasks[id] = t
	m.taskOrder = append(m.taskOrder, id)
	m.record("create-task %s %q", id, t.Title)
	return id, nil
}

func (m *memAdapter) UpdateTask(id string, t types.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok || m.vanished[id] {
		return types.ErrNotFound
	}
	t.NativeID = id
	t.Side = m.side
	m.tasks[id] = t
	m.record("update-task %s %q", id, t.Title)
	return nil
}

func (m *memAdapter) DeleteTask(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return types.ErrNotFound
	}
	delete(m.tasks, id)
	m.record("delete-task %s", id)
	return nil
}

func (m *memAdapter) CreateCategory(title string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	id := fmt.Sprintf("%s-c%d", m.side, m.next)
	m.cats[id] = types.Category{NativeID: id, Title: title, Side: m.side}
	m.catOrder = append(m.catOrder, id)
	m.record("create-category %s %q", id, title)
	return id, nil
}

func (m *memAdapter) RenameCategory(id, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cats[id]
	if !ok {
		return types.ErrNotFound
	}
	c.Title = title
	m.cats[id] = c
	m.record("rename-category %s %q", id, title)
	return nil
}

func (m *memAdapter) DeleteCategory(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cats[id]; !ok {
		return types.ErrNotFound
	}
	delete(m.cats, id)
	m.record("delete-category %s", id)
	return nil
}
