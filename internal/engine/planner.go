package engine

import (
	"fmt"

	"github.com/mesh-intelligence/tasksync/pkg/types"
)

// buildPlan turns matcher, detector and resolver output into a single
// ordered operation list. Category creates and renames come first so no
// task op ever references a category the target store has not seen yet,
// then task creates, updates, and deletes; category deletes run last,
// after the tasks that pointed at them are gone.
func buildPlan(match *matchResult, dets []detection, res resolver, catOps []types.Operation, dirtyLinks []*types.CategoryLink, cats *categoryIndex) *types.Plan {
	plan := &types.Plan{LinkRefreshes: dirtyLinks}
	var catDeletes []types.Operation
	for _, op := range catOps {
		if op.Type == types.OpDeleteCategory {
			catDeletes = append(catDeletes, op)
			continue
		}
		plan.Ops = append(plan.Ops, op)
	}

	for _, t := range match.newSupernote {
		plan.Ops = append(plan.Ops, createOp(t, types.SideApple, cats))
	}
	for _, t := range match.newApple {
		plan.Ops = append(plan.Ops, createOp(t, types.SideSupernote, cats))
	}

	for _, d := range dets {
		switch d.class {
		case changeNone:
			// Nothing to do, nothing to refresh: stored hashes already match.
		case changeConverged:
			plan.Refreshes = append(plan.Refreshes, types.HashRefresh{
				Record:        d.pair.record,
				SupernoteHash: d.supernoteHash,
				AppleHash:     d.appleHash,
			})
		case changeSupernote:
			plan.Ops = append(plan.Ops, updateOp(d.pair, types.SideSupernote, cats,
				"changed on supernote"))
		case changeApple:
			plan.Ops = append(plan.Ops, updateOp(d.pair, types.SideApple, cats,
				"changed on apple"))
		case changeConflict:
			win := res.winner(d.pair)
			plan.Ops = append(plan.Ops, updateOp(d.pair, win, cats,
				fmt.Sprintf("conflict: %s wins", win)))
		}
	}

	for _, del := range match.deletes {
		plan.Ops = append(plan.Ops, types.Operation{
			Type:     types.OpDeleteTask,
			Target:   del.survivor.Side,
			NativeID: del.survivor.NativeID,
			Task:     del.survivor,
			Record:   del.record,
			Reason:   fmt.Sprintf("deleted on %s", del.deletedOn),
		})
	}

	plan.Ops = append(plan.Ops, catDeletes...)
	return plan
}

// createOp plans copying a task that exists on one side only onto the
// other side. The sync record carries the source side's id and hash now;
// the executor fills in the target id once the create succeeds.
func createOp(t *types.Task, target types.Side, cats *categoryIndex) types.Operation {
	content := projectTask(t, nil, target, cats)
	record := &types.SyncRecord{Provenance: types.ProvenanceExplicit}
	record.SetSideID(t.Side, t.NativeID)
	return types.Operation{
		Type:   types.OpCreateTask,
		Target: target,
		Task:   &content,
		Record: record,
		Link:   linkFor(t, cats),
		Reason: fmt.Sprintf("new on %s", t.Side),
	}
}

// updateOp plans overwriting the target side of a pair with the winning
// side's full content.
func updateOp(p matchedPair, winner types.Side, cats *categoryIndex, reason string) types.Operation {
	target := winner.Other()
	win, lose := p.task(winner), p.task(target)
	content := projectTask(win, lose, target, cats)
	return types.Operation{
		Type:     types.OpUpdateTask,
		Target:   target,
		NativeID: lose.NativeID,
		Task:     &content,
		Record:   p.record,
		Link:     linkFor(win, cats),
		Reason:   reason,
	}
}

// projectTask builds the content to write on the target side: the winning
// side's fields, the target's native identity, and the target-side
// category id from the pair's link. Document links are never dropped: a
// link the winner lacks is carried over from the record being overwritten.
func projectTask(win, lose *types.Task, target types.Side, cats *categoryIndex) types.Task {
	out := *win
	out.Side = target
	out.NativeID = ""
	if lose != nil {
		out.NativeID = lose.NativeID
	}
	out.CategoryID = ""
	if p := cats.pairFor(win.Side, win.CategoryID); p != nil {
		out.CategoryID = p.link.SideID(target)
	}
	if out.DocLink == nil && lose != nil {
		out.DocLink = lose.DocLink
	}
	return out
}

func linkFor(t *types.Task, cats *categoryIndex) *types.CategoryLink {
	if p := cats.pairFor(t.Side, t.CategoryID); p != nil {
		return p.link
	}
	return nil
}
