// Package supernote reads and writes the Supernote task database. The
// tablet's companion service keeps its tasks in MariaDB; this adapter
// drives the mysql client through process exec, either inside the
// service's Docker container or against a reachable host.
package supernote

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/tasksync/pkg/types"
)

// Wire status values used by the t_schedule_task table.
const (
	wireStatusPending   = "needsAction"
	wireStatusCompleted = "completed"
)

// Options configures the database connection. When Container is set the
// mysql client runs via docker exec inside it; otherwise a local mysql
// client connects to Host:Port directly.
type Options struct {
	Container string
	Host      string
	Port      int
	Database  string
	User      string
	Password  string
}

// Adapter implements types.Adapter for the Supernote side.
type Adapter struct {
	opts Options
	log  *slog.Logger

	// runner executes one command line and returns stdout. Swapped out in
	// tests.
	runner func(args []string) ([]byte, error)

	userID string
}

// New returns a Supernote adapter. A nil logger falls back to slog.Default.
func New(opts Options, log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{opts: opts, log: log, runner: runCommand}
}

func runCommand(args []string) ([]byte, error) {
	cmd := exec.Command(args[0], args[1:]...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %s", args[0], msg)
	}
	return out, nil
}

func (a *Adapter) command(sql string) []string {
	mysql := []string{
		"mysql", "-u", a.opts.User, "-p" + a.opts.Password,
		a.opts.Database, "-e", sql, "--batch", "--raw",
	}
	if a.opts.Container != "" {
		return append([]string{"docker", "exec", a.opts.Container}, mysql...)
	}
	direct := []string{"mysql", "-h", a.opts.Host}
	if a.opts.Port != 0 {
		direct = append(direct, "-P", strconv.Itoa(a.opts.Port))
	}
	return append(direct, mysql[1:]...)
}

func (a *Adapter) query(sql string) ([]map[string]string, error) {
	out, err := a.runner(a.command(sql))
	if err != nil {
		return nil, err
	}
	return parseBatch(string(out)), nil
}

func (a *Adapter) exec(sql string) error {
	_, err := a.runner(a.command(sql))
	return err
}

func (a *Adapter) Side() types.Side { return types.SideSupernote }

func (a *Adapter) ListCategories() ([]types.Category, error) {
	rows, err := a.query(
		"SELECT task_list_id, title FROM t_schedule_task_group WHERE is_deleted='N';")
	if err != nil {
		return nil, fmt.Errorf("listing supernote categories: %w", err)
	}
	cats := make([]types.Category, 0, len(rows))
	for _, row := range rows {
		cats = append(cats, types.Category{
			NativeID: row["task_list_id"],
			Title:    decodeEmoji(row["title"]),
			Side:     types.SideSupernote,
		})
	}
	return cats, nil
}

// listTasksSQL flattens newlines and tabs inside text columns; the batch
// output format cannot represent them inside a cell.
const listTasksSQL = `SELECT
  t.task_id,
  t.task_list_id,
  REPLACE(REPLACE(t.title, '\n', ' '), '\t', ' ') AS title,
  REPLACE(REPLACE(t.detail, '\n', ' '), '\t', ' ') AS detail,
  t.status,
  t.importance,
  t.due_time,
  t.completed_time,
  t.last_modified,
  REPLACE(REPLACE(t.links, '\n', ' '), '\t', ' ') AS links
FROM t_schedule_task t
WHERE t.is_deleted='N'
ORDER BY t.last_modified DESC;`

func (a *Adapter) ListTasks() ([]types.Task, error) {
	rows, err := a.query(listTasksSQL)
	if err != nil {
		return nil, fmt.Errorf("listing supernote tasks: %w", err)
	}
	tasks := make([]types.Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, rowToTask(row))
	}
	return tasks, nil
}

func rowToTask(row map[string]string) types.Task {
	t := types.Task{
		NativeID:   row["task_id"],
		CategoryID: row["task_list_id"],
		Title:      decodeEmoji(row["title"]),
		Notes:      decodeEmoji(row["detail"]),
		Status:     statusFromWire(row["status"]),
		Priority:   parseImportance(row["importance"]),
		Side:       types.SideSupernote,
	}
	if ts := parseMillis(row["due_time"]); ts != nil {
		t.Due = ts
		t.HasDueTime = hasClock(*ts)
	}
	t.CompletedAt = parseMillis(row["completed_time"])
	if ts := parseMillis(row["last_modified"]); ts != nil {
		t.ModifiedAt = *ts
	}
	if enc := row["links"]; enc != "" {
		if raw, err := base64.StdEncoding.DecodeString(enc); err == nil {
			t.DocLink = types.DecodeDocumentLink(raw)
		}
	}
	return t
}

func (a *Adapter) CreateTask(t types.Task) (string, error) {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	userID, err := a.ensureUserID()
	if err != nil {
		return "", err
	}
	listID, err := a.categoryRef(t.CategoryID)
	if err != nil {
		return "", err
	}

	nowMS := time.Now().UnixMilli()
	sql := fmt.Sprintf(`INSERT INTO t_schedule_task (
  task_id, task_list_id, user_id, title, detail,
  last_modified, is_reminder_on, status, importance,
  due_time, completed_time, links, is_deleted,
  sort, sort_completed, planer_sort, all_sort,
  all_sort_completed, sort_time, planer_sort_time, all_sort_time
) VALUES (
  '%s', %s, %s, '%s', '%s',
  %d, 'N', '%s', NULL,
  %d, %d, %s, 'N',
  NULL, NULL, NULL, NULL, NULL, %d, %d, %d
);`,
		id, listID, userID,
		escapeSQL(encodeEmoji(t.Title)),
		escapeSQL(truncateRunes(encodeEmoji(t.Notes), 255)),
		nowMS, statusToWire(t.Status),
		millisOf(t.Due), millisOf(t.CompletedAt), linksRef(t.DocLink),
		nowMS, nowMS, nowMS)

	if err := a.exec(sql); err != nil {
		return "", fmt.Errorf("creating supernote task: %w", err)
	}
	a.log.Debug("created supernote task", "id", id, "title", t.Title)
	return id, nil
}

func (a *Adapter) UpdateTask(nativeID string, t types.Task) error {
	id, err := validateID(nativeID)
	if err != nil {
		return err
	}
	if err := a.taskExists(id); err != nil {
		return err
	}
	listID, err := a.categoryRef(t.CategoryID)
	if err != nil {
		return err
	}

	sets := []string{
		fmt.Sprintf("task_list_id = %s", listID),
		fmt.Sprintf("title = '%s'", escapeSQL(encodeEmoji(t.Title))),
		fmt.Sprintf("detail = '%s'", escapeSQL(truncateRunes(encodeEmoji(t.Notes), 255))),
		fmt.Sprintf("status = '%s'", statusToWire(t.Status)),
		fmt.Sprintf("due_time = %d", millisOf(t.Due)),
		fmt.Sprintf("completed_time = %d", millisOf(t.CompletedAt)),
		fmt.Sprintf("last_modified = %d", time.Now().UnixMilli()),
	}
	// The links column is only touched when a link is being written; a
	// nil link leaves whatever the row already holds.
	if t.DocLink != nil {
		sets = append(sets, fmt.Sprintf("links = %s", linksRef(t.DocLink)))
	}

	sql := fmt.Sprintf("UPDATE t_schedule_task SET %s WHERE task_id = '%s';",
		strings.Join(sets, ", "), id)
	if err := a.exec(sql); err != nil {
		return fmt.Errorf("updating supernote task %s: %w", id, err)
	}
	return nil
}

// DeleteTask soft-deletes: the row stays with is_deleted='Y', matching how
// the tablet itself deletes tasks.
func (a *Adapter) DeleteTask(nativeID string) error {
	id, err := validateID(nativeID)
	if err != nil {
		return err
	}
	if err := a.taskExists(id); err != nil {
		return err
	}
	sql := fmt.Sprintf(
		"UPDATE t_schedule_task SET is_deleted = 'Y', last_modified = %d WHERE task_id = '%s';",
		time.Now().UnixMilli(), id)
	if err := a.exec(sql); err != nil {
		return fmt.Errorf("deleting supernote task %s: %w", id, err)
	}
	return nil
}

func (a *Adapter) CreateCategory(title string) (string, error) {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	userID, err := a.ensureUserID()
	if err != nil {
		return "", err
	}
	nowMS := time.Now().UnixMilli()
	sql := fmt.Sprintf(`INSERT INTO t_schedule_task_group (
  task_list_id, user_id, title, last_modified, is_deleted, create_time
) VALUES ('%s', %s, '%s', %d, 'N', %d);`,
		id, userID, escapeSQL(encodeEmoji(title)), nowMS, nowMS)
	if err := a.exec(sql); err != nil {
		return "", fmt.Errorf("creating supernote category: %w", err)
	}
	return id, nil
}

func (a *Adapter) RenameCategory(nativeID, newTitle string) error {
	id, err := validateID(nativeID)
	if err != nil {
		return err
	}
	if err := a.categoryExists(id); err != nil {
		return err
	}
	sql := fmt.Sprintf(
		"UPDATE t_schedule_task_group SET title = '%s', last_modified = %d WHERE task_list_id = '%s';",
		escapeSQL(encodeEmoji(newTitle)), time.Now().UnixMilli(), id)
	if err := a.exec(sql); err != nil {
		return fmt.Errorf("renaming supernote category %s: %w", id, err)
	}
	return nil
}

func (a *Adapter) DeleteCategory(nativeID string) error {
	id, err := validateID(nativeID)
	if err != nil {
		return err
	}
	if err := a.categoryExists(id); err != nil {
		return err
	}
	sql := fmt.Sprintf(
		"UPDATE t_schedule_task_group SET is_deleted = 'Y', last_modified = %d WHERE task_list_id = '%s';",
		time.Now().UnixMilli(), id)
	if err := a.exec(sql); err != nil {
		return fmt.Errorf("deleting supernote category %s: %w", id, err)
	}
	return nil
}

func (a *Adapter) taskExists(id string) error {
	rows, err := a.query(fmt.Sprintf(
		"SELECT task_id FROM t_schedule_task WHERE task_id='%s' AND is_deleted='N';", id))
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: supernote task %s", types.ErrNotFound, id)
	}
	return nil
}

func (a *Adapter) categoryExists(id string) error {
	rows, err := a.query(fmt.Sprintf(
		"SELECT task_list_id FROM t_schedule_task_group WHERE task_list_id='%s' AND is_deleted='N';", id))
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: supernote category %s", types.ErrNotFound, id)
	}
	return nil
}

// ensureUserID resolves the single tablet user, preferring whoever owns
// existing tasks and falling back to the first account row.
func (a *Adapter) ensureUserID() (string, error) {
	if a.userID != "" {
		return a.userID, nil
	}
	rows, err := a.query("SELECT DISTINCT user_id FROM t_schedule_task LIMIT 1;")
	if err != nil {
		return "", fmt.Errorf("resolving supernote user: %w", err)
	}
	if len(rows) > 0 && rows[0]["user_id"] != "" {
		a.userID = rows[0]["user_id"]
		return a.userID, nil
	}
	rows, err = a.query("SELECT id FROM u_user LIMIT 1;")
	if err != nil {
		return "", fmt.Errorf("resolving supernote user: %w", err)
	}
	if len(rows) > 0 && rows[0]["id"] != "" {
		a.userID = rows[0]["id"]
		return a.userID, nil
	}
	a.userID = "1"
	return a.userID, nil
}

// categoryRef renders the task_list_id value for SQL: NULL for the inbox,
// a validated quoted id otherwise.
func (a *Adapter) categoryRef(categoryID string) (string, error) {
	if categoryID == "" {
		return "NULL", nil
	}
	id, err := validateID(categoryID)
	if err != nil {
		return "", err
	}
	return "'" + id + "'", nil
}

func linksRef(link *types.DocumentLink) string {
	if link == nil {
		return "NULL"
	}
	payload := link.Payload()
	if len(payload) == 0 {
		return "NULL"
	}
	return "'" + base64.StdEncoding.EncodeToString(payload) + "'"
}

func statusFromWire(s string) string {
	if s == wireStatusCompleted {
		return types.StatusCompleted
	}
	return types.StatusPending
}

func statusToWire(s string) string {
	if s == types.StatusCompleted {
		return wireStatusCompleted
	}
	return wireStatusPending
}

func parseImportance(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func parseMillis(s string) *time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms <= 0 {
		return nil
	}
	t := time.UnixMilli(ms)
	return &t
}

func millisOf(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.UnixMilli()
}

func hasClock(t time.Time) bool {
	h, m, s := t.Clock()
	return h != 0 || m != 0 || s != 0
}
