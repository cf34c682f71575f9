// Package integration exercises the full reconciliation stack: both
// exec-based adapters against fake store binaries on PATH, the real
// SQLite sync state store, and the engine on top.
package integration

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mesh-intelligence/tasksync/internal/adapters/reminders"
	"github.com/mesh-intelligence/tasksync/internal/adapters/supernote"
	"github.com/mesh-intelligence/tasksync/internal/engine"
	"github.com/mesh-intelligence/tasksync/internal/snapshot"
	"github.com/mesh-intelligence/tasksync/internal/state"
	"github.com/mesh-intelligence/tasksync/pkg/types"
)

// fixture is one wired test environment. The fake binaries serve canned
// data from dir and append every invocation to the command log.
type fixture struct {
	dir    string
	store  *state.Store
	engine *engine.Engine
}

// dockerScript emulates the mysql client behind docker exec. Reads come
// from canned TSV files; writes only land in the log.
const dockerScript = `#!/bin/sh
echo "docker $*" >> "$FAKE_LOG"
case "$*" in
  *"FROM t_schedule_task t"*) cat "$FAKE_DIR/sn_tasks.tsv" ;;
  *"SELECT"*"t_schedule_task_group"*) cat "$FAKE_DIR/sn_cats.tsv" ;;
  *"DISTINCT user_id"*) printf 'user_id\n7\n' ;;
  *) : ;;
esac
`

// remindersScript emulates reminders-cli. Creating a list swaps in the
// post-create catalog so the follow-up lists call sees it.
const remindersScript = `#!/bin/sh
echo "reminders $*" >> "$FAKE_LOG"
case "$1" in
  show-all) cat "$FAKE_DIR/ap_tasks.json" ;;
  add) cat "$FAKE_DIR/ap_created.json" ;;
  new-list) cp "$FAKE_DIR/ap_lists_after.json" "$FAKE_DIR/ap_lists.json" 2>/dev/null ;;
  *) : ;;
esac
`

const helperScript = `#!/bin/sh
echo "reminder-helper $*" >> "$FAKE_LOG"
case "$1" in
  lists) cat "$FAKE_DIR/ap_lists.json" ;;
  *) : ;;
esac
`

func setup(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	binDir := filepath.Join(dir, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin: %v", err)
	}
	writeScript(t, binDir, "docker", dockerScript)
	writeScript(t, binDir, "reminders", remindersScript)
	writeScript(t, binDir, "reminder-helper", helperScript)

	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	t.Setenv("FAKE_DIR", dir)
	t.Setenv("FAKE_LOG", filepath.Join(dir, "commands.log"))

	store, err := state.Open(filepath.Join(dir, "sync_state.db"))
	if err != nil {
		t.Fatalf("open state store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sn := supernote.New(supernote.Options{
		Container: "supernote-mysql",
		Database:  "supernote",
		User:      "root",
		Password:  "pw",
	}, log)
	ap := reminders.New(reminders.Options{
		CLIPath:    filepath.Join(binDir, "reminders"),
		HelperPath: filepath.Join(binDir, "reminder-helper"),
	}, log)
	snaps := snapshot.NewManager(filepath.Join(dir, "snapshots"))

	eng, err := engine.New(sn, ap, store, snaps, types.DefaultConfig(), log)
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	return &fixture{dir: dir, store: store, engine: eng}
}

func writeScript(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o755); err != nil {
		t.Fatalf("write fake %s: %v", name, err)
	}
}

// seed writes one canned data file into the fixture directory.
func (f *fixture) seed(t *testing.T, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(f.dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("seed %s: %v", name, err)
	}
}

// commandLog returns everything the fake binaries were asked to do.
func (f *fixture) commandLog(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.dir, "commands.log"))
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatalf("read command log: %v", err)
	}
	return string(data)
}

func (f *fixture) clearLog(t *testing.T) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(f.dir, "commands.log"), nil, 0o644); err != nil {
		t.Fatalf("clear command log: %v", err)
	}
}

// tsv joins cells with tabs and rows with newlines, the mysql batch format.
func tsv(rows ...[]string) string {
	var b strings.Builder
	for _, row := range rows {
		b.WriteString(strings.Join(row, "\t"))
		b.WriteString("\n")
	}
	return b.String()
}

var taskHeader = []string{
	"task_id", "task_list_id", "title", "detail", "status",
	"importance", "due_time", "completed_time", "last_modified", "links",
}

func taskRow(id, listID, title, detail, status, modifiedMS string) []string {
	return []string{id, listID, title, detail, status, "NULL", "0", "0", modifiedMS, "NULL"}
}

func mustContain(t *testing.T, haystack, needle, what string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("%s: expected to find %q in:\n%s", what, needle, haystack)
	}
}

func mustNotContain(t *testing.T, haystack, needle, what string) {
	t.Helper()
	if strings.Contains(haystack, needle) {
		t.Fatalf("%s: did not expect %q in:\n%s", what, needle, haystack)
	}
}

func reportSummary(r *types.Report) string {
	return fmt.Sprintf("results=%d toApple=%d/%d/%d toSupernote=%d/%d/%d unchanged=%d errors=%v",
		len(r.Results),
		r.ToAppleCreated, r.ToAppleUpdated, r.ToAppleDeleted,
		r.ToSupernoteCreated, r.ToSupernoteUpdated, r.ToSupernoteDeleted,
		r.Unchanged, r.Errors)
}
