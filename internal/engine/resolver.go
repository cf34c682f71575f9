package engine

import (
	"time"

	"github.com/mesh-intelligence/tasksync/pkg/types"
)

// resolver picks a winner for pairs that changed on both sides. It always
// selects one side's full content as the new canonical state; it never
// merges field by field.
type resolver struct {
	policy string
	window time.Duration
}

// winner returns the side whose content overwrites the other. The result
// depends only on the pair's content and timestamps, never on evaluation
// order: resolving the same inputs twice yields the same side.
func (r resolver) winner(p matchedPair) types.Side {
	switch r.policy {
	case types.PolicyPreferApple:
		return types.SideApple
	case types.PolicyPreferSupernote:
		return types.SideSupernote
	}

	// prefer_recent: later modification wins. Edits within the
	// simultaneity window count as concurrent and fall to a fixed side
	// preference so reruns stay deterministic.
	snMod := p.supernote.ModifiedAt
	apMod := p.apple.ModifiedAt
	diff := snMod.Sub(apMod)
	if diff < 0 {
		diff = -diff
	}
	if diff <= r.window {
		return types.SideApple
	}
	if snMod.After(apMod) {
		return types.SideSupernote
	}
	return types.SideApple
}
