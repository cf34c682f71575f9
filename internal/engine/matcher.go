package engine

import (
	"fmt"
	"sort"

	"github.com/mesh-intelligence/tasksync/pkg/types"
)

// recordIndex indexes sync records by native id, live and tombstoned
// separately. Lookup by native id only ever consults live records.
type recordIndex struct {
	all  []*types.SyncRecord
	live map[types.Side]map[string]*types.SyncRecord
	tomb map[types.Side]map[string]*types.SyncRecord
}

// indexRecords builds a recordIndex, verifying the one-record-per-native-id
// invariant. A native id claimed by two live records means the persisted
// mapping is corrupt and the run must not proceed.
func indexRecords(records []*types.SyncRecord) (*recordIndex, error) {
	idx := &recordIndex{
		all: records,
		live: map[types.Side]map[string]*types.SyncRecord{
			types.SideSupernote: {},
			types.SideApple:     {},
		},
		tomb: map[types.Side]map[string]*types.SyncRecord{
			types.SideSupernote: {},
			types.SideApple:     {},
		},
	}
	for _, r := range records {
		for _, side := range []types.Side{types.SideSupernote, types.SideApple} {
			id := r.SideID(side)
			if id == "" {
				continue
			}
			if r.Tombstoned {
				idx.tomb[side][id] = r
				continue
			}
			if prev := idx.live[side][id]; prev != nil {
				return nil, fmt.Errorf("%w: %s id %q claimed by records %s and %s",
					types.ErrStateCorrupted, side, id, prev.ID, r.ID)
			}
			idx.live[side][id] = r
		}
	}
	return idx, nil
}

// lookup returns the live record holding the given native id, or nil.
func (idx *recordIndex) lookup(side types.Side, nativeID string) *types.SyncRecord {
	return idx.live[side][nativeID]
}

// tombstoned reports whether the given native id belongs to a tombstoned
// record. Such ids are never re-paired.
func (idx *recordIndex) tombstoned(side types.Side, nativeID string) bool {
	return idx.tomb[side][nativeID] != nil
}

// matchedPair is a task present on both sides under one sync record.
type matchedPair struct {
	record    *types.SyncRecord
	supernote *types.Task
	apple     *types.Task
}

// task returns the pair's task on the given side.
func (p *matchedPair) task(side types.Side) *types.Task {
	if side == types.SideSupernote {
		return p.supernote
	}
	return p.apple
}

// candidateDelete is a previously synced task now absent from one side.
type candidateDelete struct {
	record    *types.SyncRecord
	survivor  *types.Task
	deletedOn types.Side
}

// matchResult is the matcher's full classification of both snapshots.
type matchResult struct {
	pairs        []matchedPair
	deletes      []candidateDelete
	newSupernote []*types.Task
	newApple     []*types.Task

	// ambiguous holds tasks whose title fallback had competing candidates.
	// They are surfaced, never paired and never treated as new.
	ambiguous []*types.Task

	// tombstone holds records whose task is now absent from both sides.
	tombstone []*types.SyncRecord
}

// fallbackKey is the pairing key for unmapped tasks: normalized title plus
// the canonical category key.
type fallbackKey struct {
	title    string
	category string
}

// matchTasks pairs the two snapshots using the sync records, then attempts
// title fallback for anything unmapped. Runs before any change detection.
func matchTasks(sn, ap *storeSnapshot, records *recordIndex) (*matchResult, error) {
	res := &matchResult{}
	matchedSn := make(map[string]bool)
	matchedAp := make(map[string]bool)

	for _, r := range records.all {
		if r.Tombstoned {
			continue
		}
		snID, apID := r.SupernoteID, r.AppleID
		if snID == "" || apID == "" {
			// Half-formed record: a create that never completed. Leave the
			// surviving task to fallback matching; the record is inert.
			continue
		}
		snTask := sn.tasksByID[snID]
		apTask := ap.tasksByID[apID]

		switch {
		case snTask != nil && apTask != nil:
			matchedSn[snID] = true
			matchedAp[apID] = true
			res.pairs = append(res.pairs, matchedPair{record: r, supernote: snTask, apple: apTask})
		case snTask != nil:
			matchedSn[snID] = true
			res.deletes = append(res.deletes, candidateDelete{
				record: r, survivor: snTask, deletedOn: types.SideApple,
			})
		case apTask != nil:
			matchedAp[apID] = true
			res.deletes = append(res.deletes, candidateDelete{
				record: r, survivor: apTask, deletedOn: types.SideSupernote,
			})
		default:
			res.tombstone = append(res.tombstone, r)
		}
	}

	// Tasks reusing a tombstoned native id are never re-paired or recreated.
	unmatchedSn := collectUnmatched(sn, matchedSn, records)
	unmatchedAp := collectUnmatched(ap, matchedAp, records)

	snByKey := groupByFallbackKey(unmatchedSn)
	apByKey := groupByFallbackKey(unmatchedAp)

	paired := make(map[*types.Task]bool)
	keys := make([]fallbackKey, 0, len(snByKey))
	for key := range snByKey {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].title != keys[j].title {
			return keys[i].title < keys[j].title
		}
		return keys[i].category < keys[j].category
	})

	for _, key := range keys {
		snGroup := snByKey[key]
		apGroup := apByKey[key]
		if len(apGroup) == 0 {
			continue
		}
		if len(snGroup) == 1 && len(apGroup) == 1 {
			snTask, apTask := snGroup[0], apGroup[0]
			paired[snTask] = true
			paired[apTask] = true
			res.pairs = append(res.pairs, matchedPair{
				record: &types.SyncRecord{
					SupernoteID: snTask.NativeID,
					AppleID:     apTask.NativeID,
					Provenance:  types.ProvenanceTitleFallback,
				},
				supernote: snTask,
				apple:     apTask,
			})
			continue
		}
		// Competing candidates: flag every contender, guess nothing.
		for _, t := range snGroup {
			paired[t] = true
			res.ambiguous = append(res.ambiguous, t)
		}
		for _, t := range apGroup {
			paired[t] = true
			res.ambiguous = append(res.ambiguous, t)
		}
	}

	for _, t := range unmatchedSn {
		if !paired[t] {
			res.newSupernote = append(res.newSupernote, t)
		}
	}
	for _, t := range unmatchedAp {
		if !paired[t] {
			res.newApple = append(res.newApple, t)
		}
	}
	return res, nil
}

func collectUnmatched(snap *storeSnapshot, matched map[string]bool, records *recordIndex) []*types.Task {
	var out []*types.Task
	for _, t := range snap.tasks {
		if matched[t.NativeID] {
			continue
		}
		if records.tombstoned(snap.side, t.NativeID) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func groupByFallbackKey(tasks []*types.Task) map[fallbackKey][]*types.Task {
	groups := make(map[fallbackKey][]*types.Task)
	for _, t := range tasks {
		key := fallbackKey{title: t.NormalizedTitle(), category: t.CategoryKey}
		groups[key] = append(groups[key], t)
	}
	return groups
}
