package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mesh-intelligence/tasksync/internal/state"
	"github.com/mesh-intelligence/tasksync/pkg/types"
)

// executor applies a plan sequentially through the adapters and advances
// the sync state after each success. Failures are best-effort: one failed
// operation is reported and the rest of the batch proceeds; the failing
// pair's record is left untouched so the next run re-evaluates it.
type executor struct {
	adapters map[types.Side]types.Adapter
	store    *state.Store
	dryRun   bool
	log      *slog.Logger
}

// apply runs every planned operation and records outcomes in the report.
// In dry-run mode every operation is recorded as skipped and neither the
// adapters nor the sync state store are touched.
func (x *executor) apply(plan *types.Plan, report *types.Report) {
	for _, op := range plan.Ops {
		if x.dryRun {
			x.log.Info("dry run", "op", op.String())
			report.Record(types.OpResult{Op: op, Outcome: types.OutcomeSkipped, Detail: "dry run"})
			continue
		}
		res := x.applyOp(op)
		if res.Outcome == types.OutcomeApplied {
			x.log.Info("applied", "op", op.String())
		} else {
			x.log.Warn("operation failed", "op", op.String(), "detail", res.Detail)
		}
		report.Record(res)
	}

	if x.dryRun {
		return
	}

	for _, l := range plan.LinkRefreshes {
		if err := x.store.UpsertCategoryLink(l); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("persisting category link: %v", err))
		}
	}
	now := time.Now().UTC()
	for _, ref := range plan.Refreshes {
		r := ref.Record
		r.SupernoteHash = ref.SupernoteHash
		r.AppleHash = ref.AppleHash
		r.LastSyncedAt = now
		if err := x.store.UpsertRecord(r); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("refreshing record hashes: %v", err))
		}
	}
}

func (x *executor) applyOp(op types.Operation) types.OpResult {
	a := x.adapters[op.Target]
	var err error

	switch op.Type {
	case types.OpCreateCategory:
		var id string
		id, err = a.CreateCategory(op.NewTitle)
		if err == nil {
			op.Link.SetSideID(op.Target, id)
			op.Link.SetLastTitle(op.Target, op.NewTitle)
			err = x.store.UpsertCategoryLink(op.Link)
		}

	case types.OpRenameCategory:
		err = a.RenameCategory(op.NativeID, op.NewTitle)
		if err == nil {
			op.Link.SetLastTitle(op.Target, op.NewTitle)
			op.Link.SetLastTitle(op.Target.Other(), op.NewTitle)
			err = x.store.UpsertCategoryLink(op.Link)
		}

	case types.OpDeleteCategory:
		err = a.DeleteCategory(op.NativeID)
		if err == nil && op.Link != nil {
			op.Link.Tombstoned = true
			err = x.store.UpsertCategoryLink(op.Link)
		}

	case types.OpCreateTask:
		task := x.resolveCategory(op)
		var id string
		id, err = a.CreateTask(task)
		if err == nil {
			err = x.advanceRecord(op, id, &task)
		}

	case types.OpUpdateTask:
		task := x.resolveCategory(op)
		err = a.UpdateTask(op.NativeID, task)
		if err == nil {
			err = x.advanceRecord(op, op.NativeID, &task)
		}

	case types.OpDeleteTask:
		err = a.DeleteTask(op.NativeID)
		if err == nil {
			err = x.store.TombstoneRecord(op.Record.ID)
		}

	default:
		err = fmt.Errorf("unknown operation type %q", op.Type)
	}

	if err != nil {
		detail := err.Error()
		if errors.Is(err, types.ErrNotFound) {
			detail = "stale reference: " + detail
		}
		return types.OpResult{Op: op, Outcome: types.OutcomeFailed, Detail: detail}
	}
	_ = x.store.LogAction(op.Type, recordID(op), op.String())
	return types.OpResult{Op: op, Outcome: types.OutcomeApplied}
}

// resolveCategory fills in the target-side category id for task content
// whose category was only created earlier in this same batch.
func (x *executor) resolveCategory(op types.Operation) types.Task {
	task := *op.Task
	if task.CategoryID == "" && op.Link != nil {
		task.CategoryID = op.Link.SideID(op.Target)
	}
	return task
}

// advanceRecord moves the pair's sync record forward after a successful
// create or update: both native ids, both last-seen hashes (the applied
// content is now canonical on both sides), and the sync timestamp.
//
// The two sides can resolve the same content to different category keys:
// the winner keeps its own key, while the target rereads an uncategorized
// write as "inbox". Each stored hash uses the key its side will resolve
// on the next run, or every run would see a phantom category change.
func (x *executor) advanceRecord(op types.Operation, targetID string, applied *types.Task) error {
	r := op.Record
	r.SetSideID(op.Target, targetID)

	srcHash := types.ContentHash(applied)
	tgt := *applied
	if tgt.CategoryID == "" {
		tgt.CategoryKey = "inbox"
	} else if op.Link != nil {
		tgt.CategoryKey = op.Link.ID
	}
	tgtHash := types.ContentHash(&tgt)

	if op.Target == types.SideSupernote {
		r.SupernoteHash = tgtHash
		r.AppleHash = srcHash
	} else {
		r.SupernoteHash = srcHash
		r.AppleHash = tgtHash
	}
	r.LastSyncedAt = time.Now().UTC()
	return x.store.UpsertRecord(r)
}

func recordID(op types.Operation) string {
	if op.Record != nil {
		return op.Record.ID
	}
	return ""
}
