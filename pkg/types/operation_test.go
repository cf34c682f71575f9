package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSyncRecordSideAccessors(t *testing.T) {
	r := &SyncRecord{}
	r.SetSideID(SideSupernote, "sn-1")
	r.SetSideID(SideApple, "ap-1")
	r.SetHash(SideSupernote, "aaaa")
	r.SetHash(SideApple, "bbbb")

	assert.Equal(t, "sn-1", r.SideID(SideSupernote))
	assert.Equal(t, "ap-1", r.SideID(SideApple))
	assert.Equal(t, "aaaa", r.Hash(SideSupernote))
	assert.Equal(t, "bbbb", r.Hash(SideApple))
}

func TestReportRecordCounts(t *testing.T) {
	r := &Report{}
	r.Record(OpResult{Op: Operation{Type: OpCreateTask, Target: SideApple}, Outcome: OutcomeApplied})
	r.Record(OpResult{Op: Operation{Type: OpUpdateTask, Target: SideSupernote, Reason: "conflict: apple wins"}, Outcome: OutcomeApplied})
	r.Record(OpResult{Op: Operation{Type: OpDeleteTask, Target: SideApple}, Outcome: OutcomeApplied})
	r.Record(OpResult{Op: Operation{Type: OpUpdateTask, Target: SideApple}, Outcome: OutcomeFailed, Detail: "gone"})
	r.Record(OpResult{Op: Operation{Type: OpCreateTask, Target: SideSupernote}, Outcome: OutcomeSkipped, Detail: "dry run"})

	assert.Equal(t, 1, r.ToAppleCreated)
	assert.Equal(t, 1, r.ToSupernoteUpdated)
	assert.Equal(t, 1, r.ToAppleDeleted)
	assert.Equal(t, 0, r.ToSupernoteCreated, "skipped ops must not count")
	assert.Equal(t, 1, r.ConflictsResolved)
	assert.True(t, r.Failed())
	assert.Len(t, r.Errors, 1)
}

func TestPlanMutating(t *testing.T) {
	p := &Plan{Refreshes: []HashRefresh{{}}}
	assert.False(t, p.Mutating(), "hash refreshes alone are not mutations")

	p.Ops = append(p.Ops, Operation{Type: OpCreateTask})
	assert.True(t, p.Mutating())
}
