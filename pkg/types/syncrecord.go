package types

import "time"

// Match provenance values. Explicit records were created by a prior sync;
// title-fallback records were inferred from a title match at load time.
const (
	ProvenanceExplicit      = "explicit"
	ProvenanceTitleFallback = "title-fallback"
)

// SyncRecord is the persisted pairing between one native id per side plus
// the content hash each side showed after the last successful sync. It is
// the engine's only memory between runs.
type SyncRecord struct {
	ID string // UUID v7, internal row id

	SupernoteID string // empty when the supernote side is unmatched
	AppleID     string // empty when the apple side is unmatched

	SupernoteHash string
	AppleHash     string

	LastSyncedAt time.Time
	Provenance   string
	Tombstoned   bool
}

// SideID returns the native id recorded for the given side.
func (r *SyncRecord) SideID(side Side) string {
	if side == SideSupernote {
		return r.SupernoteID
	}
	return r.AppleID
}

// SetSideID records the native id for the given side.
func (r *SyncRecord) SetSideID(side Side, id string) {
	if side == SideSupernote {
		r.SupernoteID = id
		return
	}
	r.AppleID = id
}

// Hash returns the last-seen content hash for the given side.
func (r *SyncRecord) Hash(side Side) string {
	if side == SideSupernote {
		return r.SupernoteHash
	}
	return r.AppleHash
}

// SetHash records the last-seen content hash for the given side.
func (r *SyncRecord) SetHash(side Side, hash string) {
	if side == SideSupernote {
		r.SupernoteHash = hash
		return
	}
	r.AppleHash = hash
}
