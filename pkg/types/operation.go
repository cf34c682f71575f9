package types

import (
	"fmt"
	"strings"
	"time"
)

// Operation types, in the order the planner emits them.
const (
	OpCreateCategory = "create-category"
	OpRenameCategory = "rename-category"
	OpCreateTask     = "create-task"
	OpUpdateTask     = "update-task"
	OpDeleteTask     = "delete-task"
	OpDeleteCategory = "delete-category"
)

// Operation is one planned adapter mutation. Target names the side the
// mutation is applied to; Task carries the full content to write for task
// ops, Link the category pair for category ops.
type Operation struct {
	Type   string
	Target Side

	Task     *Task       // content to write (create/update)
	NativeID string      // target-side native id (update/delete/rename)
	Record   *SyncRecord // pair advanced when the op succeeds

	Link     *CategoryLink // category ops
	NewTitle string        // rename-category

	Reason string
}

// String renders the operation for reports and dry-run output.
func (o Operation) String() string {
	subject := o.NewTitle
	if o.Task != nil {
		subject = o.Task.Title
	}
	return fmt.Sprintf("%s on %s: %q (%s)", o.Type, o.Target, subject, o.Reason)
}

// Operation outcomes.
const (
	OutcomeApplied = "applied"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// OpResult is the recorded outcome of one planned operation.
type OpResult struct {
	Op      Operation
	Outcome string
	Detail  string // failure reason or skip reason; empty when applied
}

// HashRefresh advances a record's stored hashes without any adapter call.
// Emitted for unchanged and converged-independently pairs.
type HashRefresh struct {
	Record        *SyncRecord
	SupernoteHash string
	AppleHash     string
}

// Plan is the ordered output of the planner: adapter mutations plus
// state-store-only hash refreshes and category links to persist.
type Plan struct {
	Ops       []Operation
	Refreshes []HashRefresh

	// LinkRefreshes are category links formed or retitled this run that
	// need no adapter call, only persistence.
	LinkRefreshes []*CategoryLink
}

// Mutating reports whether the plan contains any adapter mutation.
func (p *Plan) Mutating() bool {
	return len(p.Ops) > 0
}

// Report is the contract every run produces, dry-run or not. The engine
// fills it; the surrounding CLI formats it.
type Report struct {
	StartedAt   time.Time
	CompletedAt time.Time
	DryRun      bool

	Results []OpResult

	ToSupernoteCreated int
	ToSupernoteUpdated int
	ToSupernoteDeleted int
	ToAppleCreated     int
	ToAppleUpdated     int
	ToAppleDeleted     int

	ConflictsResolved int
	Unchanged         int

	// Ambiguous lists titles whose fallback match had multiple candidates
	// and was therefore left unpaired.
	Ambiguous []string

	Errors []string
}

// Record appends a result and updates the summary counters.
func (r *Report) Record(res OpResult) {
	r.Results = append(r.Results, res)
	if res.Outcome != OutcomeApplied {
		if res.Outcome == OutcomeFailed {
			r.Errors = append(r.Errors, fmt.Sprintf("%s: %s", res.Op, res.Detail))
		}
		return
	}
	switch res.Op.Target {
	case SideSupernote:
		switch res.Op.Type {
		case OpCreateTask:
			r.ToSupernoteCreated++
		case OpUpdateTask:
			r.ToSupernoteUpdated++
		case OpDeleteTask:
			r.ToSupernoteDeleted++
		}
	case SideApple:
		switch res.Op.Type {
		case OpCreateTask:
			r.ToAppleCreated++
		case OpUpdateTask:
			r.ToAppleUpdated++
		case OpDeleteTask:
			r.ToAppleDeleted++
		}
	}
	if strings.HasPrefix(res.Op.Reason, "conflict") && res.Op.Type == OpUpdateTask {
		r.ConflictsResolved++
	}
}

// Failed reports whether any operation failed.
func (r *Report) Failed() bool {
	return len(r.Errors) > 0
}

// Summary renders the per-run counts as a short human-readable block.
func (r *Report) Summary() string {
	lines := []string{
		fmt.Sprintf("Apple → Supernote: %d created, %d updated, %d deleted",
			r.ToSupernoteCreated, r.ToSupernoteUpdated, r.ToSupernoteDeleted),
		fmt.Sprintf("Supernote → Apple: %d created, %d updated, %d deleted",
			r.ToAppleCreated, r.ToAppleUpdated, r.ToAppleDeleted),
		fmt.Sprintf("Conflicts resolved: %d", r.ConflictsResolved),
		fmt.Sprintf("Unchanged: %d", r.Unchanged),
	}
	if len(r.Ambiguous) > 0 {
		lines = append(lines, fmt.Sprintf("Ambiguous (left unmatched): %d", len(r.Ambiguous)))
	}
	if len(r.Errors) > 0 {
		lines = append(lines, fmt.Sprintf("Errors: %d", len(r.Errors)))
	}
	return strings.Join(lines, "\n")
}
