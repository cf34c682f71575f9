// Package engine implements the reconciliation core: load both stores,
// match records across them, detect what changed, resolve conflicting
// concurrent edits, and apply a minimal operation list so the two stores
// converge.
package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/mesh-intelligence/tasksync/internal/snapshot"
	"github.com/mesh-intelligence/tasksync/internal/state"
	"github.com/mesh-intelligence/tasksync/pkg/types"
)

// Engine runs discrete reconciliation passes between the two stores. It
// is single-threaded by design: operation ordering and sync-state updates
// require a total order, so one Engine must not be run concurrently.
type Engine struct {
	supernote types.Adapter
	apple     types.Adapter
	store     *state.Store
	snaps     *snapshot.Manager
	cfg       types.Config
	log       *slog.Logger
}

// New constructs an Engine. The snapshot manager may be nil, which
// disables the pre-mutation backup (used by tests). A nil logger falls
// back to slog.Default.
func New(supernote, apple types.Adapter, store *state.Store, snaps *snapshot.Manager, cfg types.Config, log *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		supernote: supernote,
		apple:     apple,
		store:     store,
		snaps:     snaps,
		cfg:       cfg,
		log:       log,
	}, nil
}

// Run executes one full reconciliation pass and returns its report. In
// dry-run mode every planned operation is reported but neither store nor
// the sync state is mutated. A returned error means the run aborted
// before applying anything; per-operation failures are in the report.
func (e *Engine) Run(dryRun bool) (*types.Report, error) {
	report := &types.Report{StartedAt: time.Now().UTC(), DryRun: dryRun}

	// Mapping corruption is checked before anything else runs; the engine
	// never reconciles on top of a corrupt store.
	if err := e.store.CheckIntegrity(); err != nil {
		return nil, err
	}
	recordRows, err := e.store.AllRecords()
	if err != nil {
		return nil, err
	}
	records, err := indexRecords(recordRows)
	if err != nil {
		return nil, err
	}
	links, err := e.store.AllCategoryLinks()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sn, err := load(e.supernote, records, e.cfg, now)
	if err != nil {
		return nil, err
	}
	ap, err := load(e.apple, records, e.cfg, now)
	if err != nil {
		return nil, err
	}
	e.log.Info("loaded snapshots",
		"supernote_tasks", len(sn.tasks), "apple_tasks", len(ap.tasks),
		"supernote_categories", len(sn.categories), "apple_categories", len(ap.categories))

	res := resolver{policy: e.cfg.ConflictPolicy, window: e.cfg.ConflictWindow()}

	cats, catOps, dirtyLinks, err := matchCategories(sn, ap, links, e.cfg, res)
	if err != nil {
		return nil, err
	}
	assignCategoryKeys(sn, cats)
	assignCategoryKeys(ap, cats)

	match, err := matchTasks(sn, ap, records)
	if err != nil {
		return nil, err
	}
	for _, t := range match.ambiguous {
		report.Ambiguous = append(report.Ambiguous, t.Title)
		e.log.Warn("ambiguous fallback match left unpaired",
			"title", t.Title, "side", t.Side)
	}

	dets := make([]detection, 0, len(match.pairs))
	for _, p := range match.pairs {
		d := detect(p)
		if d.class == changeNone || d.class == changeConverged {
			report.Unchanged++
		}
		dets = append(dets, d)
	}

	plan := buildPlan(match, dets, res, catOps, dirtyLinks, cats)
	e.log.Info("planned operations", "ops", len(plan.Ops), "refreshes", len(plan.Refreshes))

	if !dryRun && plan.Mutating() && e.snaps != nil {
		path, err := e.snaps.Capture(e.apple)
		if err != nil {
			return nil, fmt.Errorf("capturing pre-sync snapshot: %w", err)
		}
		e.log.Info("captured snapshot", "path", path)
	}

	x := &executor{
		adapters: map[types.Side]types.Adapter{
			types.SideSupernote: e.supernote,
			types.SideApple:     e.apple,
		},
		store:  e.store,
		dryRun: dryRun,
		log:    e.log,
	}
	x.apply(plan, report)

	if !dryRun {
		for _, r := range match.tombstone {
			if err := e.store.TombstoneRecord(r.ID); err != nil {
				report.Errors = append(report.Errors,
					fmt.Sprintf("tombstoning record %s: %v", r.ID, err))
			}
		}
	}

	report.CompletedAt = time.Now().UTC()
	if !dryRun {
		_ = e.store.LogAction("sync_complete", "", map[string]any{
			"to_supernote": []int{report.ToSupernoteCreated, report.ToSupernoteUpdated, report.ToSupernoteDeleted},
			"to_apple":     []int{report.ToAppleCreated, report.ToAppleUpdated, report.ToAppleDeleted},
			"conflicts":    report.ConflictsResolved,
			"errors":       len(report.Errors),
		})
	}
	return report, nil
}

// Status summarizes the current sync state without touching either store.
type Status struct {
	Stats      state.Stats
	RecentLogs []state.LogEntry
}

// Status reads summary counts and recent audit entries from the state store.
func (e *Engine) Status() (*Status, error) {
	stats, err := e.store.Stats()
	if err != nil {
		return nil, err
	}
	logs, err := e.store.RecentLogs(5)
	if err != nil {
		return nil, err
	}
	return &Status{Stats: stats, RecentLogs: logs}, nil
}
