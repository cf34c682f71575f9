package engine

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/tasksync/pkg/types"
)

// categoryPair binds one category per side through a CategoryLink. Either
// side may be nil when the category is absent from this run's snapshot.
type categoryPair struct {
	link      *types.CategoryLink
	supernote *types.Category
	apple     *types.Category
}

func (p *categoryPair) category(side types.Side) *types.Category {
	if side == types.SideSupernote {
		return p.supernote
	}
	return p.apple
}

// categoryIndex resolves native category ids to their pair on either side.
type categoryIndex struct {
	pairs []*categoryPair
	byID  map[types.Side]map[string]*categoryPair
}

func newCategoryIndex() *categoryIndex {
	return &categoryIndex{
		byID: map[types.Side]map[string]*categoryPair{
			types.SideSupernote: {},
			types.SideApple:     {},
		},
	}
}

func (idx *categoryIndex) add(p *categoryPair) {
	idx.pairs = append(idx.pairs, p)
	if id := p.link.SupernoteID; id != "" {
		idx.byID[types.SideSupernote][id] = p
	}
	if id := p.link.AppleID; id != "" {
		idx.byID[types.SideApple][id] = p
	}
}

// pairFor returns the pair a native category id belongs to, or nil.
func (idx *categoryIndex) pairFor(side types.Side, nativeID string) *categoryPair {
	return idx.byID[side][nativeID]
}

// keyFor returns the canonical category key for hashing and fallback
// matching: the link id for paired categories, otherwise the category's
// normalized title. Linked keys survive renames; unlinked keys are the
// best available cross-side signal.
func (idx *categoryIndex) keyFor(snap *storeSnapshot, nativeID string) string {
	if nativeID == "" {
		return "inbox"
	}
	if p := idx.byID[snap.side][nativeID]; p != nil {
		return p.link.ID
	}
	if c := snap.catsByID[nativeID]; c != nil {
		return c.NormalizedTitle()
	}
	return nativeID
}

// matchCategories pairs the two sides' categories using persisted links,
// the configured id mapping, and a title fallback, then plans the category
// operations (creates for one-sided categories when auto-create is on,
// renames when a paired title drifted from its last-synced value, deletes
// when a previously synced category vanished from one side).
//
// Category ops always precede task ops in the final plan, so adapters never
// receive a task pointing at a not-yet-renamed or not-yet-created category.
func matchCategories(sn, ap *storeSnapshot, links []*types.CategoryLink, cfg types.Config, res resolver) (*categoryIndex, []types.Operation, []*types.CategoryLink, error) {
	idx := newCategoryIndex()
	var dirty []*types.CategoryLink

	linkedSn := make(map[string]bool)
	linkedAp := make(map[string]bool)

	attach := func(l *types.CategoryLink) *categoryPair {
		p := &categoryPair{link: l}
		if l.SupernoteID != "" {
			p.supernote = sn.catsByID[l.SupernoteID]
			linkedSn[l.SupernoteID] = true
		}
		if l.AppleID != "" {
			p.apple = ap.catsByID[l.AppleID]
			linkedAp[l.AppleID] = true
		}
		idx.add(p)
		return p
	}

	known := make(map[string]*types.CategoryLink)
	var vanished []*categoryPair
	for _, l := range links {
		if l.Tombstoned {
			if l.SupernoteID != "" {
				linkedSn[l.SupernoteID] = true
			}
			if l.AppleID != "" {
				linkedAp[l.AppleID] = true
			}
			continue
		}
		p := attach(l)
		if l.SupernoteID != "" {
			known["sn:"+l.SupernoteID] = l
		}
		if l.AppleID != "" {
			known["ap:"+l.AppleID] = l
		}
		if l.SupernoteID != "" && l.AppleID != "" && (p.supernote == nil || p.apple == nil) {
			vanished = append(vanished, p)
		}
	}

	// Configured id mappings not yet persisted become fresh links.
	for _, m := range cfg.CategoryMappings {
		if known["sn:"+m.SupernoteID] != nil || known["ap:"+m.AppleID] != nil {
			continue
		}
		l, err := newLink()
		if err != nil {
			return nil, nil, nil, err
		}
		l.SupernoteID = m.SupernoteID
		l.AppleID = m.AppleID
		p := attach(l)
		initLinkTitles(l, p)
		dirty = append(dirty, l)
	}

	// Title fallback for categories unlinked on both sides: pair when the
	// normalized title is unique on each side.
	snByTitle := groupCategories(sn, linkedSn)
	apByTitle := groupCategories(ap, linkedAp)
	for title, snGroup := range snByTitle {
		apGroup := apByTitle[title]
		if len(snGroup) != 1 || len(apGroup) != 1 {
			continue
		}
		l, err := newLink()
		if err != nil {
			return nil, nil, nil, err
		}
		l.SupernoteID = snGroup[0].NativeID
		l.AppleID = apGroup[0].NativeID
		p := attach(l)
		initLinkTitles(l, p)
		dirty = append(dirty, l)
	}

	var creates, renames []types.Operation

	// One-sided categories: create the counterpart when configured to.
	if cfg.AutoCreateCategories {
		for _, snap := range []*storeSnapshot{sn, ap} {
			for i := range snap.categories {
				c := &snap.categories[i]
				if c.Deleted || idx.pairFor(snap.side, c.NativeID) != nil {
					continue
				}
				if snap.side == types.SideSupernote && linkedSn[c.NativeID] ||
					snap.side == types.SideApple && linkedAp[c.NativeID] {
					continue
				}
				l, err := newLink()
				if err != nil {
					return nil, nil, nil, err
				}
				l.SetSideID(snap.side, c.NativeID)
				l.SetLastTitle(snap.side, c.Title)
				p := &categoryPair{link: l}
				if snap.side == types.SideSupernote {
					p.supernote = c
				} else {
					p.apple = c
				}
				idx.add(p)
				creates = append(creates, types.Operation{
					Type:     types.OpCreateCategory,
					Target:   snap.side.Other(),
					Link:     l,
					NewTitle: c.Title,
					Reason:   fmt.Sprintf("category only in %s", snap.side),
				})
			}
		}
	}

	// Rename detection on fully paired categories.
	for _, p := range idx.pairs {
		if p.supernote == nil || p.apple == nil {
			continue
		}
		l := p.link
		if l.LastSupernoteTitle == "" && l.LastAppleTitle == "" {
			initLinkTitles(l, p)
			dirty = append(dirty, l)
			continue
		}
		snRenamed := p.supernote.Title != l.LastTitle(types.SideSupernote)
		apRenamed := p.apple.Title != l.LastTitle(types.SideApple)
		switch {
		case !snRenamed && !apRenamed:
			// steady state
		case snRenamed && apRenamed && p.supernote.Title == p.apple.Title:
			l.LastSupernoteTitle = p.supernote.Title
			l.LastAppleTitle = p.apple.Title
			dirty = append(dirty, l)
		case snRenamed && apRenamed:
			// Renamed differently on both sides: the conflict policy's
			// preferred side keeps its title.
			win := res.winnerCategory(p)
			renames = append(renames, renameOp(p, win.Other(), p.category(win).Title,
				"category renamed on both sides"))
		case snRenamed:
			renames = append(renames, renameOp(p, types.SideApple, p.supernote.Title,
				"category renamed on supernote"))
		default:
			renames = append(renames, renameOp(p, types.SideSupernote, p.apple.Title,
				"category renamed on apple"))
		}
	}

	// Deletion propagation on previously synced pairs: a category gone
	// from one side takes its counterpart with it, but only once the
	// counterpart is empty. A still-populated category waits for its
	// task deletes to land on an earlier run.
	var deletes []types.Operation
	for _, p := range vanished {
		l := p.link
		switch {
		case p.supernote == nil && p.apple == nil:
			l.Tombstoned = true
			dirty = append(dirty, l)
		case p.supernote == nil && !categoryHasTasks(ap, l.AppleID):
			deletes = append(deletes, deleteOp(l, types.SideApple, "category deleted on supernote"))
		case p.apple == nil && !categoryHasTasks(sn, l.SupernoteID):
			deletes = append(deletes, deleteOp(l, types.SideSupernote, "category deleted on apple"))
		}
	}

	ops := append(creates, renames...)
	return idx, append(ops, deletes...), dirty, nil
}

func deleteOp(l *types.CategoryLink, target types.Side, reason string) types.Operation {
	return types.Operation{
		Type:     types.OpDeleteCategory,
		Target:   target,
		NativeID: l.SideID(target),
		Link:     l,
		Reason:   reason,
	}
}

func categoryHasTasks(snap *storeSnapshot, catID string) bool {
	for _, t := range snap.tasks {
		if t.CategoryID == catID {
			return true
		}
	}
	return false
}

func renameOp(p *categoryPair, target types.Side, newTitle, reason string) types.Operation {
	return types.Operation{
		Type:     types.OpRenameCategory,
		Target:   target,
		NativeID: p.link.SideID(target),
		Link:     p.link,
		NewTitle: newTitle,
		Reason:   reason,
	}
}

// winnerCategory applies the conflict policy to a doubly renamed category.
// prefer_recent has no category timestamps to compare, so it shares the
// fixed tie-break with the simultaneity window.
func (r resolver) winnerCategory(p *categoryPair) types.Side {
	if r.policy == types.PolicyPreferSupernote {
		return types.SideSupernote
	}
	return types.SideApple
}

func initLinkTitles(l *types.CategoryLink, p *categoryPair) {
	if p.supernote != nil {
		l.LastSupernoteTitle = p.supernote.Title
	}
	if p.apple != nil {
		l.LastAppleTitle = p.apple.Title
	}
}

func newLink() (*types.CategoryLink, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating category link id: %w", err)
	}
	return &types.CategoryLink{ID: id.String()}, nil
}

func groupCategories(snap *storeSnapshot, linked map[string]bool) map[string][]*types.Category {
	groups := make(map[string][]*types.Category)
	for i := range snap.categories {
		c := &snap.categories[i]
		if c.Deleted || linked[c.NativeID] {
			continue
		}
		groups[c.NormalizedTitle()] = append(groups[c.NormalizedTitle()], c)
	}
	return groups
}

// assignCategoryKeys stamps every task with its canonical category key.
// Must run after category matching and before task matching or hashing.
func assignCategoryKeys(snap *storeSnapshot, idx *categoryIndex) {
	for _, t := range snap.tasks {
		t.CategoryKey = idx.keyFor(snap, t.CategoryID)
	}
}
