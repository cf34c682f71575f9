// Package snapshot captures full backups of the reminders-side store
// before destructive sync batches and can drive the store back to a
// captured state.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mesh-intelligence/tasksync/pkg/types"
)

// artifactVersion is written into every snapshot file.
const artifactVersion = "1.0"

const filePrefix = "apple_reminders_"

// Artifact is the on-disk snapshot document: a capture timestamp plus the
// full category and task lists as seen through the adapter at capture time.
type Artifact struct {
	CreatedAt  time.Time        `json:"created_at"`
	Version    string           `json:"version"`
	Categories []types.Category `json:"categories"`
	Tasks      []taskRecord     `json:"tasks"`
	Meta       Meta             `json:"metadata"`
}

// Meta carries summary counts for listings.
type Meta struct {
	TotalTasks      int `json:"total_tasks"`
	TotalCategories int `json:"total_categories"`
	CompletedCount  int `json:"completed_count"`
	IncompleteCount int `json:"incomplete_count"`
}

// taskRecord is the serialized form of a canonical task. The document
// link travels as its raw payload so malformed links survive the round
// trip byte for byte.
type taskRecord struct {
	Title       string     `json:"title"`
	Notes       string     `json:"notes,omitempty"`
	Status      string     `json:"status"`
	Priority    int        `json:"priority"`
	Due         *time.Time `json:"due,omitempty"`
	HasDueTime  bool       `json:"has_due_time,omitempty"`
	CategoryID  string     `json:"category_id,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DocPayload  []byte     `json:"doc_payload,omitempty"`
	NativeID    string     `json:"native_id"`
	ModifiedAt  time.Time  `json:"modified_at"`
}

func toRecord(t types.Task) taskRecord {
	r := taskRecord{
		Title:       t.Title,
		Notes:       t.Notes,
		Status:      t.Status,
		Priority:    t.Priority,
		Due:         t.Due,
		HasDueTime:  t.HasDueTime,
		CategoryID:  t.CategoryID,
		CompletedAt: t.CompletedAt,
		NativeID:    t.NativeID,
		ModifiedAt:  t.ModifiedAt,
	}
	if t.DocLink != nil {
		r.DocPayload = t.DocLink.Payload()
	}
	return r
}

func (r taskRecord) toTask(side types.Side) types.Task {
	return types.Task{
		Title:       r.Title,
		Notes:       r.Notes,
		Status:      r.Status,
		Priority:    r.Priority,
		Due:         r.Due,
		HasDueTime:  r.HasDueTime,
		CategoryID:  r.CategoryID,
		CompletedAt: r.CompletedAt,
		DocLink:     types.DecodeDocumentLink(r.DocPayload),
		NativeID:    r.NativeID,
		ModifiedAt:  r.ModifiedAt,
		Side:        side,
	}
}

// Manager creates, lists and restores snapshot artifacts in one directory.
type Manager struct {
	dir string
}

// NewManager returns a Manager rooted at dir. The directory is created on
// first capture.
func NewManager(dir string) *Manager {
	return &Manager{dir: dir}
}

// Dir returns the snapshot directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Capture serializes the adapter's full current state to a timestamped
// artifact and returns its path.
func (m *Manager) Capture(a types.Adapter) (string, error) {
	cats, err := a.ListCategories()
	if err != nil {
		return "", fmt.Errorf("listing categories for snapshot: %w", err)
	}
	tasks, err := a.ListTasks()
	if err != nil {
		return "", fmt.Errorf("listing tasks for snapshot: %w", err)
	}

	art := Artifact{
		CreatedAt:  time.Now().UTC(),
		Version:    artifactVersion,
		Categories: cats,
	}
	for _, t := range tasks {
		art.Tasks = append(art.Tasks, toRecord(t))
		if t.Completed() {
			art.Meta.CompletedCount++
		} else {
			art.Meta.IncompleteCount++
		}
	}
	art.Meta.TotalTasks = len(tasks)
	art.Meta.TotalCategories = len(cats)

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating snapshot dir: %w", err)
	}
	name := filePrefix + art.CreatedAt.Format("20060102_150405") + ".json"
	path := filepath.Join(m.dir, name)

	data, err := json.MarshalIndent(art, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing snapshot: %w", err)
	}
	return path, nil
}

// List returns the available snapshot paths, newest first.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), filePrefix) || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		paths = append(paths, filepath.Join(m.dir, e.Name()))
	}
	// Timestamped names sort chronologically.
	sort.Sort(sort.Reverse(sort.StringSlice(paths)))
	return paths, nil
}

// Load reads and decodes one snapshot artifact.
func (m *Manager) Load(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, types.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", path, err)
	}
	var art Artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("decoding snapshot %s: %w", path, err)
	}
	return &art, nil
}

// RestoreOptions controls a restore. Confirm is mandatory for a live
// restore: it receives the decoded artifact and must return true for the
// restore to proceed. Restores are never silent.
type RestoreOptions struct {
	DryRun  bool
	Confirm func(*Artifact) bool
}

// RestoreResult summarizes what a restore did (or would do, in dry-run).
type RestoreResult struct {
	TasksDeleted      int
	TasksCreated      int
	CategoriesCreated int
	CategoriesDeleted int
	Errors            []string
}

// Restore drives the adapter's store back to the artifact's content:
// every current task is deleted, missing categories are created, extra
// categories are removed, and the artifact's tasks are recreated.
func (m *Manager) Restore(path string, a types.Adapter, opts RestoreOptions) (*RestoreResult, error) {
	art, err := m.Load(path)
	if err != nil {
		return nil, err
	}

	currentCats, err := a.ListCategories()
	if err != nil {
		return nil, fmt.Errorf("listing current categories: %w", err)
	}
	currentTasks, err := a.ListTasks()
	if err != nil {
		return nil, fmt.Errorf("listing current tasks: %w", err)
	}

	wantTitles := make(map[string]bool)
	for _, c := range art.Categories {
		wantTitles[strings.ToLower(strings.TrimSpace(c.Title))] = true
	}
	haveByTitle := make(map[string]types.Category)
	for _, c := range currentCats {
		haveByTitle[strings.ToLower(strings.TrimSpace(c.Title))] = c
	}

	res := &RestoreResult{}
	if opts.DryRun {
		res.TasksDeleted = len(currentTasks)
		res.TasksCreated = len(art.Tasks)
		for title := range wantTitles {
			if _, ok := haveByTitle[title]; !ok {
				res.CategoriesCreated++
			}
		}
		for title := range haveByTitle {
			if !wantTitles[title] {
				res.CategoriesDeleted++
			}
		}
		return res, nil
	}

	if opts.Confirm == nil || !opts.Confirm(art) {
		return nil, types.ErrRestoreNotConfirmed
	}

	for _, t := range currentTasks {
		if err := a.DeleteTask(t.NativeID); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("delete %q: %v", t.Title, err))
			continue
		}
		res.TasksDeleted++
	}

	// Category native ids are not portable across restores; rebuild the
	// id mapping by title.
	idByOldID := make(map[string]string)
	titleByOldID := make(map[string]string)
	for _, c := range art.Categories {
		titleByOldID[c.NativeID] = c.Title
		key := strings.ToLower(strings.TrimSpace(c.Title))
		if have, ok := haveByTitle[key]; ok {
			idByOldID[c.NativeID] = have.NativeID
			continue
		}
		newID, err := a.CreateCategory(c.Title)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("create category %q: %v", c.Title, err))
			continue
		}
		idByOldID[c.NativeID] = newID
		res.CategoriesCreated++
	}

	for title, c := range haveByTitle {
		if wantTitles[title] {
			continue
		}
		if err := a.DeleteCategory(c.NativeID); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("delete category %q: %v", c.Title, err))
			continue
		}
		res.CategoriesDeleted++
	}

	for _, rec := range art.Tasks {
		task := rec.toTask(a.Side())
		task.NativeID = ""
		if mapped, ok := idByOldID[rec.CategoryID]; ok {
			task.CategoryID = mapped
		}
		if _, err := a.CreateTask(task); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("create %q: %v", task.Title, err))
			continue
		}
		res.TasksCreated++
	}

	return res, nil
}
