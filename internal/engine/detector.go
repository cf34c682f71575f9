package engine

import "github.com/mesh-intelligence/tasksync/pkg/types"

// changeClass classifies a matched pair against its last-seen hashes.
type changeClass int

const (
	changeNone changeClass = iota
	changeSupernote
	changeApple
	changeConflict
	changeConverged
)

func (c changeClass) String() string {
	switch c {
	case changeNone:
		return "unchanged"
	case changeSupernote:
		return "changed-supernote"
	case changeApple:
		return "changed-apple"
	case changeConflict:
		return "conflict"
	case changeConverged:
		return "converged-independently"
	}
	return "unknown"
}

// detection is the detector's verdict for one matched pair.
type detection struct {
	pair          matchedPair
	class         changeClass
	supernoteHash string
	appleHash     string
}

// detect computes the current content hash per side and compares each to
// the record's last-seen hash for that side. Newly fallback-matched pairs
// carry empty stored hashes, so both sides read as changed: equal current
// hashes converge, unequal ones go to conflict resolution.
func detect(p matchedPair) detection {
	d := detection{
		pair:          p,
		supernoteHash: types.ContentHash(p.supernote),
		appleHash:     types.ContentHash(p.apple),
	}
	snChanged := d.supernoteHash != p.record.SupernoteHash
	apChanged := d.appleHash != p.record.AppleHash

	switch {
	case !snChanged && !apChanged:
		d.class = changeNone
	case d.supernoteHash == d.appleHash:
		// Both sides already hold the same content; only the stored
		// hashes are stale. No operation, refresh only.
		d.class = changeConverged
	case snChanged && apChanged:
		d.class = changeConflict
	case snChanged:
		d.class = changeSupernote
	default:
		d.class = changeApple
	}
	return d
}
