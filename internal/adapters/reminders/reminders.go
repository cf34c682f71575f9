// Package reminders drives Apple Reminders through two external binaries:
// reminders-cli for reads and most writes, and a small EventKit helper for
// the operations reminders-cli lacks (due dates, priorities, moving between
// lists, list renames). reminders-cli addresses lists by name; the helper
// exposes the stable EventKit calendar identifier for each list, which is
// what this adapter reports as the category native id.
package reminders

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/mesh-intelligence/tasksync/pkg/types"
)

// Helper subcommands:
//
//	lists                                  JSON [{identifier, title}]
//	set-due-date <list> <id> <iso8601|null>
//	set-priority <list> <id> <0-9>
//	move <fromList> <id> <toList>
//	rename-list <identifier> <newTitle>
//	delete-list <identifier>

const appleIDPrefix = "x-apple-reminder://"

// Options configures the binary paths. DefaultList receives tasks that
// carry no category; it reads back as uncategorized, never as a category
// of its own.
type Options struct {
	CLIPath     string
	HelperPath  string
	DefaultList string
}

// Adapter implements types.Adapter for the Apple Reminders side.
type Adapter struct {
	opts Options
	log  *slog.Logger

	// runner executes one binary and returns stdout. Swapped out in tests.
	runner func(bin string, args ...string) ([]byte, error)

	// List catalog from the last helper `lists` call. Identifiers are
	// stable across renames; names are what reminders-cli wants.
	titleByID map[string]string
	idByTitle map[string]string
}

// New returns an Apple Reminders adapter. A nil logger falls back to
// slog.Default.
func New(opts Options, log *slog.Logger) *Adapter {
	if opts.DefaultList == "" {
		opts.DefaultList = "Inbox"
	}
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{opts: opts, log: log, runner: runBinary}
}

func runBinary(bin string, args ...string) ([]byte, error) {
	cmd := exec.Command(bin, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("%s: %w", bin, err)
		}
		return nil, fmt.Errorf("%s: %s", bin, msg)
	}
	return out, nil
}

func (a *Adapter) cli(args ...string) ([]byte, error) {
	return a.runner(a.opts.CLIPath, args...)
}

func (a *Adapter) helper(args ...string) ([]byte, error) {
	return a.runner(a.opts.HelperPath, args...)
}

func (a *Adapter) Side() types.Side { return types.SideApple }

type listEntry struct {
	Identifier string `json:"identifier"`
	Title      string `json:"title"`
}

func (a *Adapter) refreshLists() ([]listEntry, error) {
	out, err := a.helper("lists")
	if err != nil {
		return nil, fmt.Errorf("listing reminder lists: %w", err)
	}
	var entries []listEntry
	if err := json.Unmarshal(out, &entries); err != nil {
		return nil, fmt.Errorf("parsing reminder lists: %w", err)
	}
	a.titleByID = make(map[string]string, len(entries))
	a.idByTitle = make(map[string]string, len(entries))
	for _, e := range entries {
		a.titleByID[e.Identifier] = e.Title
		a.idByTitle[e.Title] = e.Identifier
	}
	return entries, nil
}

func (a *Adapter) ListCategories() ([]types.Category, error) {
	entries, err := a.refreshLists()
	if err != nil {
		return nil, err
	}
	cats := make([]types.Category, 0, len(entries))
	for _, e := range entries {
		// The default list holds uncategorized tasks, not a category.
		if e.Title == a.opts.DefaultList {
			continue
		}
		cats = append(cats, types.Category{
			NativeID: e.Identifier,
			Title:    e.Title,
			Side:     types.SideApple,
		})
	}
	return cats, nil
}

// appleReminder is the reminders-cli JSON shape.
type appleReminder struct {
	ExternalID     string `json:"externalId"`
	Title          string `json:"title"`
	Notes          string `json:"notes"`
	List           string `json:"list"`
	IsCompleted    bool   `json:"isCompleted"`
	Priority       int    `json:"priority"`
	DueDate        string `json:"dueDate"`
	CompletionDate string `json:"completionDate"`
	CreationDate   string `json:"creationDate"`
	LastModified   string `json:"lastModified"`
}

func (a *Adapter) showAll() ([]appleReminder, error) {
	out, err := a.cli("show-all", "--format", "json", "--include-completed")
	if err != nil {
		return nil, fmt.Errorf("listing reminders: %w", err)
	}
	var rems []appleReminder
	if err := json.Unmarshal(out, &rems); err != nil {
		return nil, fmt.Errorf("parsing reminders: %w", err)
	}
	return rems, nil
}

func (a *Adapter) ListTasks() ([]types.Task, error) {
	if a.idByTitle == nil {
		if _, err := a.refreshLists(); err != nil {
			return nil, err
		}
	}
	rems, err := a.showAll()
	if err != nil {
		return nil, err
	}
	tasks := make([]types.Task, 0, len(rems))
	for _, r := range rems {
		tasks = append(tasks, a.reminderToTask(r))
	}
	return tasks, nil
}

func (a *Adapter) reminderToTask(r appleReminder) types.Task {
	t := types.Task{
		NativeID:   normalizeID(r.ExternalID),
		Title:      r.Title,
		Notes:      stripDocLine(r.Notes),
		Priority:   types.PriorityFromApple(r.Priority),
		CategoryID: a.listCategoryID(r.List),
		Side:       types.SideApple,
	}
	if r.IsCompleted {
		t.Status = types.StatusCompleted
	} else {
		t.Status = types.StatusPending
	}
	if ts := parseISO(r.DueDate); ts != nil {
		t.Due = ts
		t.HasDueTime = hasClock(*ts)
	}
	t.CompletedAt = parseISO(r.CompletionDate)
	if ts := parseISO(r.LastModified); ts != nil {
		t.ModifiedAt = *ts
	}
	return t
}

// listCategoryID maps a list name to its category id. The default list
// reads back as no category, keeping uncategorized tasks uncategorized
// across a round trip.
func (a *Adapter) listCategoryID(list string) string {
	if list == a.opts.DefaultList {
		return ""
	}
	return a.idByTitle[list]
}

func (a *Adapter) CreateTask(t types.Task) (string, error) {
	listName, err := a.targetList(t.CategoryID)
	if err != nil {
		return "", err
	}

	args := []string{"add", listName, t.Title, "--format", "json"}
	if notes := appleNotes(t); notes != "" {
		args = append(args, "--notes", notes)
	}
	if t.Due != nil {
		args = append(args, "--due-date", t.Due.Format("2006-01-02 15:04"))
	}
	if flag := priorityFlag(t.ApplePriority()); flag != "" {
		args = append(args, "--priority", flag)
	}

	out, err := a.cli(args...)
	if err != nil {
		return "", fmt.Errorf("creating reminder: %w", err)
	}
	var created appleReminder
	if err := json.Unmarshal(out, &created); err != nil {
		return "", fmt.Errorf("parsing created reminder: %w", err)
	}
	id := normalizeID(created.ExternalID)

	if t.Completed() && id != "" {
		if _, err := a.cli("complete", listName, id); err != nil {
			return "", fmt.Errorf("completing new reminder: %w", err)
		}
	}
	a.log.Debug("created reminder", "id", id, "list", listName, "title", t.Title)
	return id, nil
}

func (a *Adapter) UpdateTask(nativeID string, t types.Task) error {
	current, err := a.findReminder(nativeID)
	if err != nil {
		return err
	}
	listName := current.List
	id := normalizeID(nativeID)

	if t.Completed() != current.IsCompleted {
		verb := "uncomplete"
		if t.Completed() {
			verb = "complete"
		}
		if _, err := a.cli(verb, listName, id); err != nil {
			return fmt.Errorf("%s reminder %s: %w", verb, id, err)
		}
	}

	notes := appleNotes(t)
	titleChanged := t.Title != current.Title
	notesChanged := notes != current.Notes
	if titleChanged || notesChanged {
		args := []string{"edit", listName, id}
		if titleChanged {
			args = append(args, t.Title)
		}
		if notesChanged {
			args = append(args, "--notes", notes)
		}
		if _, err := a.cli(args...); err != nil {
			return fmt.Errorf("editing reminder %s: %w", id, err)
		}
	}

	if dueISO(t.Due) != currentDueISO(current) {
		if _, err := a.helper("set-due-date", listName, id, dueISO(t.Due)); err != nil {
			return fmt.Errorf("setting due date on reminder %s: %w", id, err)
		}
	}

	if t.ApplePriority() != current.Priority {
		if _, err := a.helper("set-priority", listName, id,
			strconv.Itoa(t.ApplePriority())); err != nil {
			return fmt.Errorf("setting priority on reminder %s: %w", id, err)
		}
	}

	target, err := a.targetList(t.CategoryID)
	if err != nil {
		return err
	}
	if target != listName {
		if _, err := a.helper("move", listName, id, target); err != nil {
			return fmt.Errorf("moving reminder %s to %s: %w", id, target, err)
		}
	}
	return nil
}

func (a *Adapter) DeleteTask(nativeID string) error {
	current, err := a.findReminder(nativeID)
	if err != nil {
		return err
	}
	id := normalizeID(nativeID)
	if _, err := a.cli("delete", current.List, id); err != nil {
		return fmt.Errorf("deleting reminder %s: %w", id, err)
	}
	return nil
}

func (a *Adapter) CreateCategory(title string) (string, error) {
	if _, err := a.cli("new-list", title); err != nil {
		return "", fmt.Errorf("creating reminder list %q: %w", title, err)
	}
	if _, err := a.refreshLists(); err != nil {
		return "", err
	}
	id, ok := a.idByTitle[title]
	if !ok {
		return "", fmt.Errorf("reminder list %q missing after create", title)
	}
	return id, nil
}

func (a *Adapter) RenameCategory(nativeID, newTitle string) error {
	name, err := a.listName(nativeID)
	if err != nil {
		return err
	}
	if _, err := a.helper("rename-list", nativeID, newTitle); err != nil {
		return fmt.Errorf("renaming reminder list %q: %w", name, err)
	}
	delete(a.idByTitle, name)
	a.titleByID[nativeID] = newTitle
	a.idByTitle[newTitle] = nativeID
	return nil
}

func (a *Adapter) DeleteCategory(nativeID string) error {
	name, err := a.listName(nativeID)
	if err != nil {
		return err
	}
	if _, err := a.helper("delete-list", nativeID); err != nil {
		return fmt.Errorf("deleting reminder list %q: %w", name, err)
	}
	delete(a.idByTitle, name)
	delete(a.titleByID, nativeID)
	return nil
}

// findReminder locates a reminder, refreshing the full listing each time.
// Reminder ids are UUIDs but reminders-cli addresses every mutation by
// list name, which only the listing reveals.
func (a *Adapter) findReminder(nativeID string) (*appleReminder, error) {
	id := normalizeID(nativeID)
	rems, err := a.showAll()
	if err != nil {
		return nil, err
	}
	for i := range rems {
		if normalizeID(rems[i].ExternalID) == id {
			return &rems[i], nil
		}
	}
	return nil, fmt.Errorf("%w: reminder %s", types.ErrNotFound, id)
}

// listName resolves a list identifier to its current name.
func (a *Adapter) listName(nativeID string) (string, error) {
	if name, ok := a.titleByID[nativeID]; ok {
		return name, nil
	}
	if _, err := a.refreshLists(); err != nil {
		return "", err
	}
	if name, ok := a.titleByID[nativeID]; ok {
		return name, nil
	}
	return "", fmt.Errorf("%w: reminder list %s", types.ErrNotFound, nativeID)
}

// targetList resolves a category id to the list name a task should land
// in. Tasks without a category go to the default list, created on demand.
func (a *Adapter) targetList(categoryID string) (string, error) {
	if categoryID != "" {
		return a.listName(categoryID)
	}
	if a.idByTitle == nil {
		if _, err := a.refreshLists(); err != nil {
			return "", err
		}
	}
	if _, ok := a.idByTitle[a.opts.DefaultList]; !ok {
		if _, err := a.cli("new-list", a.opts.DefaultList); err != nil {
			return "", fmt.Errorf("creating default list: %w", err)
		}
		if _, err := a.refreshLists(); err != nil {
			return "", err
		}
	}
	return a.opts.DefaultList, nil
}

func normalizeID(id string) string {
	return strings.TrimPrefix(id, appleIDPrefix)
}

func priorityFlag(applePriority int) string {
	switch {
	case applePriority == 0:
		return ""
	case applePriority <= 4:
		return "high"
	case applePriority == 5:
		return "medium"
	default:
		return "low"
	}
}

func parseISO(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

func dueISO(t *time.Time) string {
	if t == nil {
		return "null"
	}
	return t.Format(time.RFC3339)
}

func currentDueISO(r *appleReminder) string {
	if ts := parseISO(r.DueDate); ts != nil {
		return ts.Format(time.RFC3339)
	}
	return "null"
}

func hasClock(t time.Time) bool {
	h, m, s := t.Clock()
	return h != 0 || m != 0 || s != 0
}
