package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tasksync/pkg/types"
)

func snapOf(side types.Side, tasks ...*types.Task) *storeSnapshot {
	snap := &storeSnapshot{
		side:      side,
		tasksByID: make(map[string]*types.Task),
		catsByID:  make(map[string]*types.Category),
	}
	for _, t := range tasks {
		t.Side = side
		if t.CategoryKey == "" {
			t.CategoryKey = "inbox"
		}
		snap.tasks = append(snap.tasks, t)
		snap.tasksByID[t.NativeID] = t
	}
	return snap
}

func mustIndex(t *testing.T, records ...*types.SyncRecord) *recordIndex {
	t.Helper()
	idx, err := indexRecords(records)
	require.NoError(t, err)
	return idx
}

func TestIndexRecordsDuplicateNativeID(t *testing.T) {
	_, err := indexRecords([]*types.SyncRecord{
		{ID: "r1", SupernoteID: "s1", AppleID: "a1"},
		{ID: "r2", SupernoteID: "s1", AppleID: "a2"},
	})
	assert.True(t, errors.Is(err, types.ErrStateCorrupted))
}

func TestIndexRecordsTombstonesDoNotCollide(t *testing.T) {
	idx, err := indexRecords([]*types.SyncRecord{
		{ID: "r1", SupernoteID: "s1", AppleID: "a1", Tombstoned: true},
		{ID: "r2", SupernoteID: "s1", AppleID: "a2"},
	})
	require.NoError(t, err)
	assert.True(t, idx.tombstoned(types.SideSupernote, "s1"))
	assert.Equal(t, "r2", idx.lookup(types.SideSupernote, "s1").ID)
}

func TestMatchRecordedPair(t *testing.T) {
	sn := snapOf(types.SideSupernote, &types.Task{NativeID: "s1", Title: "buy milk"})
	ap := snapOf(types.SideApple, &types.Task{NativeID: "a1", Title: "buy milk"})
	records := mustIndex(t, &types.SyncRecord{ID: "r1", SupernoteID: "s1", AppleID: "a1"})

	res, err := matchTasks(sn, ap, records)
	require.NoError(t, err)
	require.Len(t, res.pairs, 1)
	assert.Equal(t, "r1", res.pairs[0].record.ID)
	assert.Empty(t, res.newSupernote)
	assert.Empty(t, res.newApple)
}

func TestMatchRecordedDelete(t *testing.T) {
	sn := snapOf(types.SideSupernote, &types.Task{NativeID: "s1", Title: "buy milk"})
	ap := snapOf(types.SideApple)
	records := mustIndex(t, &types.SyncRecord{ID: "r1", SupernoteID: "s1", AppleID: "a1"})

	res, err := matchTasks(sn, ap, records)
	require.NoError(t, err)
	require.Len(t, res.deletes, 1)
	assert.Equal(t, types.SideApple, res.deletes[0].deletedOn)
	assert.Equal(t, "s1", res.deletes[0].survivor.NativeID)
}

func TestMatchGoneBothSides(t *testing.T) {
	sn := snapOf(types.SideSupernote)
	ap := snapOf(types.SideApple)
	records := mustIndex(t, &types.SyncRecord{ID: "r1", SupernoteID: "s1", AppleID: "a1"})

	res, err := matchTasks(sn, ap, records)
	require.NoError(t, err)
	require.Len(t, res.tombstone, 1)
	assert.Equal(t, "r1", res.tombstone[0].ID)
	assert.Empty(t, res.deletes)
}

// A record holding only one side's id never pairs and never plans a
// delete; the surviving task falls through to fallback matching.
func TestMatchHalfFormedRecordInert(t *testing.T) {
	sn := snapOf(types.SideSupernote, &types.Task{NativeID: "s1", Title: "buy milk"})
	ap := snapOf(types.SideApple)
	records := mustIndex(t, &types.SyncRecord{ID: "r1", SupernoteID: "s1"})

	res, err := matchTasks(sn, ap, records)
	require.NoError(t, err)
	assert.Empty(t, res.pairs)
	assert.Empty(t, res.deletes)
	require.Len(t, res.newSupernote, 1)
}

func TestMatchTitleFallback(t *testing.T) {
	sn := snapOf(types.SideSupernote, &types.Task{NativeID: "s1", Title: "Buy Milk"})
	ap := snapOf(types.SideApple, &types.Task{NativeID: "a1", Title: "buy milk"})

	res, err := matchTasks(sn, ap, mustIndex(t))
	require.NoError(t, err)
	require.Len(t, res.pairs, 1)
	p := res.pairs[0]
	assert.Equal(t, types.ProvenanceTitleFallback, p.record.Provenance)
	assert.Equal(t, "s1", p.record.SupernoteID)
	assert.Equal(t, "a1", p.record.AppleID)
	assert.Empty(t, p.record.SupernoteHash)
	assert.Empty(t, res.newSupernote)
	assert.Empty(t, res.newApple)
}

func TestMatchFallbackRespectsCategory(t *testing.T) {
	snTask := &types.Task{NativeID: "s1", Title: "buy milk", CategoryKey: "groceries"}
	apTask := &types.Task{NativeID: "a1", Title: "buy milk", CategoryKey: "work"}
	sn := snapOf(types.SideSupernote, snTask)
	ap := snapOf(types.SideApple, apTask)

	res, err := matchTasks(sn, ap, mustIndex(t))
	require.NoError(t, err)
	assert.Empty(t, res.pairs)
	assert.Len(t, res.newSupernote, 1)
	assert.Len(t, res.newApple, 1)
}

// Competing fallback candidates are never guessed between: every
// contender is flagged ambiguous and excluded from creates.
func TestMatchAmbiguousFallback(t *testing.T) {
	sn := snapOf(types.SideSupernote,
		&types.Task{NativeID: "s1", Title: "call mom"},
		&types.Task{NativeID: "s2", Title: "call mom"},
	)
	ap := snapOf(types.SideApple, &types.Task{NativeID: "a1", Title: "call mom"})

	res, err := matchTasks(sn, ap, mustIndex(t))
	require.NoError(t, err)
	assert.Empty(t, res.pairs)
	assert.Len(t, res.ambiguous, 3)
	assert.Empty(t, res.newSupernote)
	assert.Empty(t, res.newApple)
}

// Scenario: a native id that belongs to a tombstoned record reappears in
// a store listing. It must be neither re-paired nor treated as new.
func TestMatchTombstonedIDNeverResurrected(t *testing.T) {
	sn := snapOf(types.SideSupernote, &types.Task{NativeID: "s1", Title: "old chore"})
	ap := snapOf(types.SideApple)
	records := mustIndex(t,
		&types.SyncRecord{ID: "r1", SupernoteID: "s1", AppleID: "a1", Tombstoned: true},
	)

	res, err := matchTasks(sn, ap, records)
	require.NoError(t, err)
	assert.Empty(t, res.pairs)
	assert.Empty(t, res.newSupernote)
	assert.Empty(t, res.deletes)
}

// A brand-new task with the same title as a tombstoned one is a new task:
// tombstones bind native ids, not titles.
func TestMatchNewIDWithTombstonedTitle(t *testing.T) {
	sn := snapOf(types.SideSupernote, &types.Task{NativeID: "s9", Title: "old chore"})
	ap := snapOf(types.SideApple)
	records := mustIndex(t,
		&types.SyncRecord{ID: "r1", SupernoteID: "s1", AppleID: "a1", Tombstoned: true},
	)

	res, err := matchTasks(sn, ap, records)
	require.NoError(t, err)
	require.Len(t, res.newSupernote, 1)
	assert.Equal(t, "s9", res.newSupernote[0].NativeID)
}

func TestMatchDeterministicAcrossRuns(t *testing.T) {
	mod := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	build := func() (*storeSnapshot, *storeSnapshot) {
		sn := snapOf(types.SideSupernote,
			&types.Task{NativeID: "s1", Title: "alpha", ModifiedAt: mod},
			&types.Task{NativeID: "s2", Title: "beta", ModifiedAt: mod},
			&types.Task{NativeID: "s3", Title: "gamma", ModifiedAt: mod},
		)
		ap := snapOf(types.SideApple,
			&types.Task{NativeID: "a1", Title: "beta", ModifiedAt: mod},
			&types.Task{NativeID: "a2", Title: "gamma", ModifiedAt: mod},
		)
		return sn, ap
	}

	sn, ap := build()
	first, err := matchTasks(sn, ap, mustIndex(t))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		sn, ap := build()
		res, err := matchTasks(sn, ap, mustIndex(t))
		require.NoError(t, err)
		require.Len(t, res.pairs, len(first.pairs))
		for j := range res.pairs {
			assert.Equal(t, first.pairs[j].record.SupernoteID, res.pairs[j].record.SupernoteID)
			assert.Equal(t, first.pairs[j].record.AppleID, res.pairs[j].record.AppleID)
		}
	}
}
