package engine

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tasksync/internal/snapshot"
	"github.com/mesh-intelligence/tasksync/internal/state"
	"github.com/mesh-intelligence/tasksync/pkg/types"
)

type harness struct {
	sn    *memAdapter
	ap    *memAdapter
	store *state.Store
	snaps *snapshot.Manager
	cfg   types.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := state.Open(filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return &harness{
		sn:    newMemAdapter(types.SideSupernote),
		ap:    newMemAdapter(types.SideApple),
		store: store,
		cfg:   types.DefaultConfig(),
	}
}

func (h *harness) engine(t *testing.T) *Engine {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng, err := New(h.sn, h.ap, h.store, h.snaps, h.cfg, log)
	require.NoError(t, err)
	return eng
}

func (h *harness) run(t *testing.T) *types.Report {
	t.Helper()
	rep, err := h.engine(t).Run(false)
	require.NoError(t, err)
	return rep
}

func modAt(day int) time.Time {
	return time.Date(2026, 2, day, 12, 0, 0, 0, time.UTC)
}

func TestRunCreatesMissingCounterparts(t *testing.T) {
	h := newHarness(t)
	h.sn.seedTask("s1", types.Task{Title: "write essay", ModifiedAt: modAt(1)})
	h.ap.seedTask("a1", types.Task{Title: "buy milk", ModifiedAt: modAt(1)})

	rep := h.run(t)
	assert.Equal(t, 1, rep.ToAppleCreated)
	assert.Equal(t, 1, rep.ToSupernoteCreated)
	assert.False(t, rep.Failed())

	_, ok := h.ap.taskByTitle("write essay")
	assert.True(t, ok)
	_, ok = h.sn.taskByTitle("buy milk")
	assert.True(t, ok)

	records, err := h.store.AllRecords()
	require.NoError(t, err)
	assert.Len(t, records, 2)
	for _, r := range records {
		assert.NotEmpty(t, r.SupernoteID)
		assert.NotEmpty(t, r.AppleID)
		assert.Equal(t, r.SupernoteHash, r.AppleHash)
	}
}

// A run immediately after a successful run must plan nothing: applying an
// operation refreshes the stored hashes, so its own write is not detected
// as a change on the next pass.
func TestRunIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.sn.seedTask("s1", types.Task{Title: "write essay", ModifiedAt: modAt(1)})
	h.ap.seedTask("a1", types.Task{Title: "buy milk", ModifiedAt: modAt(1)})

	h.run(t)
	rep := h.run(t)
	assert.Empty(t, rep.Results)
	assert.Equal(t, 2, rep.Unchanged)

	rep = h.run(t)
	assert.Empty(t, rep.Results)
}

func TestEditPropagates(t *testing.T) {
	h := newHarness(t)
	h.sn.seedTask("s1", types.Task{Title: "write essay", ModifiedAt: modAt(1)})
	h.run(t)

	h.sn.mutate("s1", func(task *types.Task) {
		task.Title = "write essay draft"
		task.Priority = 9
		task.ModifiedAt = modAt(2)
	})

	rep := h.run(t)
	assert.Equal(t, 1, rep.ToAppleUpdated)
	assert.Equal(t, 0, rep.ConflictsResolved)

	got, ok := h.ap.taskByTitle("write essay draft")
	require.True(t, ok)
	assert.Equal(t, 9, got.Priority)

	rep = h.run(t)
	assert.Empty(t, rep.Results)
}

func TestConflictRecentSideWins(t *testing.T) {
	h := newHarness(t)
	h.sn.seedTask("s1", types.Task{Title: "plan trip", ModifiedAt: modAt(1)})
	h.run(t)

	apID := func() string {
		got, ok := h.ap.taskByTitle("plan trip")
		require.True(t, ok)
		return got.NativeID
	}()

	h.sn.mutate("s1", func(task *types.Task) {
		task.Title = "plan italy trip"
		task.ModifiedAt = modAt(3)
	})
	h.ap.mutate(apID, func(task *types.Task) {
		task.Title = "plan spain trip"
		task.ModifiedAt = modAt(5)
	})

	rep := h.run(t)
	assert.Equal(t, 1, rep.ConflictsResolved)
	assert.Equal(t, 1, rep.ToSupernoteUpdated)

	got, _ := h.sn.task("s1")
	assert.Equal(t, "plan spain trip", got.Title)
	_, stillThere := h.ap.taskByTitle("plan spain trip")
	assert.True(t, stillThere)

	rep = h.run(t)
	assert.Empty(t, rep.Results)
}

// Edits landing within the simultaneity window are concurrent; the fixed
// tie-break keeps the apple side so reruns are deterministic.
func TestConflictWithinWindowTieBreak(t *testing.T) {
	h := newHarness(t)
	h.sn.seedTask("s1", types.Task{Title: "plan trip", ModifiedAt: modAt(1)})
	h.run(t)

	got, ok := h.ap.taskByTitle("plan trip")
	require.True(t, ok)
	apID := got.NativeID

	base := modAt(3)
	h.sn.mutate("s1", func(task *types.Task) {
		task.Title = "plan italy trip"
		task.ModifiedAt = base.Add(30 * time.Second)
	})
	h.ap.mutate(apID, func(task *types.Task) {
		task.Title = "plan spain trip"
		task.ModifiedAt = base
	})

	rep := h.run(t)
	assert.Equal(t, 1, rep.ConflictsResolved)
	gotSn, _ := h.sn.task("s1")
	assert.Equal(t, "plan spain trip", gotSn.Title)
}

func TestDeletePropagates(t *testing.T) {
	h := newHarness(t)
	h.sn.seedTask("s1", types.Task{Title: "old chore", ModifiedAt: modAt(1)})
	h.run(t)

	got, ok := h.ap.taskByTitle("old chore")
	require.True(t, ok)
	h.ap.remove(got.NativeID)

	rep := h.run(t)
	assert.Equal(t, 1, rep.ToSupernoteDeleted)
	_, still := h.sn.task("s1")
	assert.False(t, still)

	stats, err := h.store.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Tombstoned)

	rep = h.run(t)
	assert.Empty(t, rep.Results)
}

// After a deletion is propagated, the same native id reappearing in a
// listing must not be recreated on the other side.
func TestTombstoneStability(t *testing.T) {
	h := newHarness(t)
	h.sn.seedTask("s1", types.Task{Title: "old chore", ModifiedAt: modAt(1)})
	h.run(t)

	got, ok := h.ap.taskByTitle("old chore")
	require.True(t, ok)
	h.ap.remove(got.NativeID)
	h.run(t)

	// The store resurfaces the deleted row under its original id.
	h.sn.seedTask("s1", types.Task{Title: "old chore", ModifiedAt: modAt(9)})

	rep := h.run(t)
	assert.Empty(t, rep.Results)
	_, back := h.ap.taskByTitle("old chore")
	assert.False(t, back)
}

func TestRecordGoneBothSidesTombstoned(t *testing.T) {
	h := newHarness(t)
	h.sn.seedTask("s1", types.Task{Title: "shared", ModifiedAt: modAt(1)})
	h.run(t)

	got, ok := h.ap.taskByTitle("shared")
	require.True(t, ok)
	h.sn.remove("s1")
	h.ap.remove(got.NativeID)

	rep := h.run(t)
	assert.Empty(t, rep.Results)

	stats, err := h.store.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Tombstoned)
}

func TestDryRunTouchesNothing(t *testing.T) {
	h := newHarness(t)
	h.sn.seedTask("s1", types.Task{Title: "write essay", ModifiedAt: modAt(1)})

	rep, err := h.engine(t).Run(true)
	require.NoError(t, err)
	assert.True(t, rep.DryRun)
	require.NotEmpty(t, rep.Results)
	for _, res := range rep.Results {
		assert.Equal(t, types.OutcomeSkipped, res.Outcome)
	}

	assert.Empty(t, h.ap.calls)
	assert.Empty(t, h.sn.calls)
	records, err := h.store.AllRecords()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestTitleFallbackConverges(t *testing.T) {
	h := newHarness(t)
	h.sn.seedTask("s1", types.Task{Title: "Buy Milk", ModifiedAt: modAt(1)})
	h.ap.seedTask("a1", types.Task{Title: "buy milk", ModifiedAt: modAt(1)})

	rep := h.run(t)
	assert.Empty(t, rep.Results)
	assert.Equal(t, 1, rep.Unchanged)
	assert.Empty(t, h.sn.calls)
	assert.Empty(t, h.ap.calls)

	records, err := h.store.AllRecords()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, types.ProvenanceTitleFallback, records[0].Provenance)
	assert.Equal(t, "s1", records[0].SupernoteID)
	assert.Equal(t, "a1", records[0].AppleID)
	assert.NotEmpty(t, records[0].SupernoteHash)
}

func TestAmbiguousFallbackReported(t *testing.T) {
	h := newHarness(t)
	h.sn.seedTask("s1", types.Task{Title: "call mom", ModifiedAt: modAt(1)})
	h.sn.seedTask("s2", types.Task{Title: "call mom", ModifiedAt: modAt(2)})
	h.ap.seedTask("a1", types.Task{Title: "call mom", ModifiedAt: modAt(1)})

	rep := h.run(t)
	assert.Len(t, rep.Ambiguous, 3)
	assert.Empty(t, rep.Results)
	assert.Empty(t, h.ap.calls)
}

func TestCompletionPropagates(t *testing.T) {
	h := newHarness(t)
	h.sn.seedTask("s1", types.Task{Title: "file report", ModifiedAt: modAt(1)})
	h.run(t)

	done := modAt(2)
	h.sn.mutate("s1", func(task *types.Task) {
		task.Status = types.StatusCompleted
		task.CompletedAt = &done
		task.ModifiedAt = done
	})

	rep := h.run(t)
	assert.Equal(t, 1, rep.ToAppleUpdated)
	got, ok := h.ap.taskByTitle("file report")
	require.True(t, ok)
	assert.True(t, got.Completed())
}

func TestCategoryAutoCreate(t *testing.T) {
	h := newHarness(t)
	h.sn.seedCategory("c1", "Groceries")
	h.sn.seedTask("s1", types.Task{Title: "buy milk", CategoryID: "c1", ModifiedAt: modAt(1)})

	rep := h.run(t)
	assert.False(t, rep.Failed())

	cats, err := h.ap.ListCategories()
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, "Groceries", cats[0].Title)

	got, ok := h.ap.taskByTitle("buy milk")
	require.True(t, ok)
	assert.Equal(t, cats[0].NativeID, got.CategoryID)

	links, err := h.store.AllCategoryLinks()
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "c1", links[0].SupernoteID)
	assert.Equal(t, cats[0].NativeID, links[0].AppleID)
}

func TestCategoryAutoCreateOff(t *testing.T) {
	h := newHarness(t)
	h.cfg.AutoCreateCategories = false
	h.sn.seedCategory("c1", "Groceries")

	rep := h.run(t)
	assert.Empty(t, rep.Results)
	cats, err := h.ap.ListCategories()
	require.NoError(t, err)
	assert.Empty(t, cats)
}

// With auto-create off the task still syncs, just without its category.
// The copy reads back uncategorized, which must not register as a change
// on the next run.
func TestAutoCreateOffTaskSyncsUncategorized(t *testing.T) {
	h := newHarness(t)
	h.cfg.AutoCreateCategories = false
	h.sn.seedCategory("c1", "Groceries")
	h.sn.seedTask("s1", types.Task{Title: "buy milk", CategoryID: "c1", ModifiedAt: modAt(1)})

	rep := h.run(t)
	assert.Equal(t, 1, rep.ToAppleCreated)
	got, ok := h.ap.taskByTitle("buy milk")
	require.True(t, ok)
	assert.Equal(t, "", got.CategoryID)

	rep = h.run(t)
	assert.Empty(t, rep.Results)
	assert.Equal(t, 1, rep.Unchanged)
}

func TestCategoryRenamePropagates(t *testing.T) {
	h := newHarness(t)
	h.sn.seedCategory("c1", "Groceries")
	h.ap.seedCategory("d1", "Groceries")
	h.run(t)

	h.ap.retitle("d1", "Food")
	rep := h.run(t)
	assert.False(t, rep.Failed())

	cats, err := h.sn.ListCategories()
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, "Food", cats[0].Title)

	rep = h.run(t)
	assert.Empty(t, rep.Results)
}

// A rename must not break task pairing: the category key is the link id,
// not the title, so tasks in a renamed category stay unchanged.
func TestRenameDoesNotDisturbTasks(t *testing.T) {
	h := newHarness(t)
	h.sn.seedCategory("c1", "Groceries")
	h.sn.seedTask("s1", types.Task{Title: "buy milk", CategoryID: "c1", ModifiedAt: modAt(1)})
	h.run(t)
	h.run(t)

	h.sn.retitle("c1", "Food")
	rep := h.run(t)
	assert.Equal(t, 0, rep.ToAppleUpdated)
	assert.Equal(t, 0, rep.ToAppleCreated)
	assert.Equal(t, 1, rep.Unchanged)
}

func TestCategoryDeletePropagates(t *testing.T) {
	h := newHarness(t)
	h.sn.seedCategory("c1", "Groceries")
	h.ap.seedCategory("d1", "Groceries")
	h.run(t)

	h.sn.removeCategory("c1")
	rep := h.run(t)
	assert.False(t, rep.Failed())

	cats, err := h.ap.ListCategories()
	require.NoError(t, err)
	assert.Empty(t, cats)

	links, err := h.store.AllCategoryLinks()
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.True(t, links[0].Tombstoned)

	rep = h.run(t)
	assert.Empty(t, rep.Results)
}

// A category deleted on one side must not take live tasks with it: the
// counterpart waits until its tasks are gone, then goes on a later run.
func TestCategoryDeleteWaitsForTasks(t *testing.T) {
	h := newHarness(t)
	h.sn.seedCategory("c1", "Groceries")
	h.sn.seedTask("s1", types.Task{Title: "buy milk", CategoryID: "c1", ModifiedAt: modAt(1)})
	h.run(t)
	h.run(t)

	h.sn.removeCategory("c1")
	h.sn.remove("s1")
	rep := h.run(t)
	assert.Equal(t, 1, rep.ToAppleDeleted)

	// The reminder was still in the list at load time, so the list stays.
	cats, err := h.ap.ListCategories()
	require.NoError(t, err)
	require.Len(t, cats, 1)

	rep = h.run(t)
	assert.False(t, rep.Failed())
	cats, err = h.ap.ListCategories()
	require.NoError(t, err)
	assert.Empty(t, cats)
}

func TestConfiguredMappingPairsCategories(t *testing.T) {
	h := newHarness(t)
	h.sn.seedCategory("c1", "Inbox")
	h.ap.seedCategory("d1", "Reminders")
	h.cfg.CategoryMappings = []types.CategoryMapping{{SupernoteID: "c1", AppleID: "d1"}}

	rep := h.run(t)
	// Mapped pair with intentionally different titles: no rename, no create.
	assert.Empty(t, rep.Results)

	links, err := h.store.AllCategoryLinks()
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "c1", links[0].SupernoteID)
	assert.Equal(t, "d1", links[0].AppleID)
	assert.Equal(t, "Inbox", links[0].LastSupernoteTitle)
	assert.Equal(t, "Reminders", links[0].LastAppleTitle)
}

func TestRunAbortsWhenAdapterDown(t *testing.T) {
	h := newHarness(t)
	h.sn.seedTask("s1", types.Task{Title: "write essay", ModifiedAt: modAt(1)})
	h.ap.failList = true

	_, err := h.engine(t).Run(false)
	assert.True(t, errors.Is(err, types.ErrAdapterUnavailable))

	records, err := h.store.AllRecords()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRunAbortsOnCorruptMapping(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.UpsertRecord(&types.SyncRecord{
		SupernoteID: "s1", AppleID: "a1", Provenance: types.ProvenanceExplicit,
	}))
	require.NoError(t, h.store.UpsertRecord(&types.SyncRecord{
		SupernoteID: "s1", AppleID: "a2", Provenance: types.ProvenanceExplicit,
	}))

	_, err := h.engine(t).Run(false)
	assert.True(t, errors.Is(err, types.ErrStateCorrupted))
}

func TestSnapshotCapturedBeforeMutation(t *testing.T) {
	h := newHarness(t)
	h.snaps = snapshot.NewManager(t.TempDir())
	h.sn.seedTask("s1", types.Task{Title: "write essay", ModifiedAt: modAt(1)})

	h.run(t)
	paths, err := h.snaps.List()
	require.NoError(t, err)
	assert.Len(t, paths, 1)

	// Non-mutating run captures nothing.
	h.run(t)
	paths, err = h.snaps.List()
	require.NoError(t, err)
	assert.Len(t, paths, 1)
}

func TestDocLinkCarriedThroughOverwrite(t *testing.T) {
	h := newHarness(t)
	payload := []byte(`{"appName":"note","fileId":"F1","filePath":"/Note/Meetings.note","page":2,"pageId":"p2"}`)
	h.sn.seedTask("s1", types.Task{
		Title:      "review notes",
		DocLink:    types.DecodeDocumentLink(payload),
		ModifiedAt: modAt(1),
	})
	h.run(t)

	got, ok := h.ap.taskByTitle("review notes")
	require.True(t, ok)
	apID := got.NativeID

	// The reminders side strips the link when the user edits the title.
	h.ap.mutate(apID, func(task *types.Task) {
		task.Title = "review meeting notes"
		task.DocLink = nil
		task.ModifiedAt = modAt(5)
	})

	rep := h.run(t)
	assert.Equal(t, 1, rep.ToSupernoteUpdated)
	gotSn, _ := h.sn.task("s1")
	assert.Equal(t, "review meeting notes", gotSn.Title)
	require.NotNil(t, gotSn.DocLink)
	assert.Equal(t, payload, gotSn.DocLink.Payload())
}

// One stale reference fails alone: the rest of the batch proceeds and the
// failing pair's record is left untouched for the next run to re-evaluate.
func TestStaleReferenceFailsSingleOp(t *testing.T) {
	h := newHarness(t)
	h.sn.seedTask("s1", types.Task{Title: "one", ModifiedAt: modAt(1)})
	h.sn.seedTask("s2", types.Task{Title: "two", ModifiedAt: modAt(1)})
	h.run(t)

	gotOne, ok := h.ap.taskByTitle("one")
	require.True(t, ok)

	h.sn.mutate("s1", func(task *types.Task) {
		task.Title = "one edited"
		task.ModifiedAt = modAt(2)
	})
	h.sn.mutate("s2", func(task *types.Task) {
		task.Title = "two edited"
		task.ModifiedAt = modAt(2)
	})
	// "one" vanishes from the reminders store between load and apply.
	h.ap.vanished[gotOne.NativeID] = true

	rep := h.run(t)
	assert.True(t, rep.Failed())
	assert.Len(t, rep.Errors, 1)
	assert.Contains(t, rep.Errors[0], "stale reference")
	assert.Equal(t, 1, rep.ToAppleUpdated)
	_, ok = h.ap.taskByTitle("two edited")
	assert.True(t, ok)

	// The failed pair's stored hashes did not advance; once the id is
	// listable again the edit is retried.
	h.ap.vanished = map[string]bool{}
	rep = h.run(t)
	assert.Equal(t, 1, rep.ToAppleUpdated)
	_, ok = h.ap.taskByTitle("one edited")
	assert.True(t, ok)
}

func TestStatusReportsStateSummary(t *testing.T) {
	h := newHarness(t)
	h.sn.seedTask("s1", types.Task{Title: "write essay", ModifiedAt: modAt(1)})
	h.run(t)

	status, err := h.engine(t).Status()
	require.NoError(t, err)
	assert.Equal(t, 1, status.Stats.Total)
	assert.Equal(t, 1, status.Stats.Paired)
	require.NotEmpty(t, status.RecentLogs)
	assert.Equal(t, "sync_complete", status.RecentLogs[0].Action)
}

// Two engines over identical inputs must produce identical plans and
// identical final store content, whatever map iteration did internally.
func TestRunDeterministicAcrossIdenticalSetups(t *testing.T) {
	build := func() *harness {
		h := newHarness(t)
		h.sn.seedCategory("c1", "Groceries")
		h.sn.seedTask("s1", types.Task{Title: "alpha", CategoryID: "c1", ModifiedAt: modAt(1)})
		h.sn.seedTask("s2", types.Task{Title: "beta", ModifiedAt: modAt(2)})
		h.ap.seedTask("a1", types.Task{Title: "beta", ModifiedAt: modAt(2)})
		h.ap.seedTask("a2", types.Task{Title: "gamma", ModifiedAt: modAt(3)})
		return h
	}

	h1, h2 := build(), build()
	rep1, rep2 := h1.run(t), h2.run(t)

	assert.Equal(t, rep1.ToAppleCreated, rep2.ToAppleCreated)
	assert.Equal(t, rep1.ToSupernoteCreated, rep2.ToSupernoteCreated)
	assert.Equal(t, rep1.Unchanged, rep2.Unchanged)
	require.Len(t, rep2.Results, len(rep1.Results))
	for i := range rep1.Results {
		assert.Equal(t, rep1.Results[i].Op.Type, rep2.Results[i].Op.Type)
		assert.Equal(t, rep1.Results[i].Op.Target, rep2.Results[i].Op.Target)
	}
}
