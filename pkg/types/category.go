package types

import "strings"

// Category is the store-independent representation of a task list.
// Identity is carried by NativeID; titles are display data and may change
// without creating a new category.
type Category struct {
	NativeID string
	Title    string
	Deleted  bool
	Side     Side
}

// NormalizedTitle returns the title trimmed and lowercased.
func (c *Category) NormalizedTitle() string {
	return strings.ToLower(strings.TrimSpace(c.Title))
}

// CategoryLink pairs one category per side and remembers each side's title
// as of the last successful sync, which is how renames are detected. The
// link id doubles as the canonical category key in content hashes, so it
// must stay stable for the life of the pairing.
type CategoryLink struct {
	ID          string // UUID v7
	SupernoteID string
	AppleID     string

	LastSupernoteTitle string
	LastAppleTitle     string

	Tombstoned bool
}

// SideID returns the native id recorded for the given side.
func (l *CategoryLink) SideID(side Side) string {
	if side == SideSupernote {
		return l.SupernoteID
	}
	return l.AppleID
}

// SetSideID records the native id for the given side.
func (l *CategoryLink) SetSideID(side Side, id string) {
	if side == SideSupernote {
		l.SupernoteID = id
		return
	}
	l.AppleID = id
}

// LastTitle returns the title last synced for the given side.
func (l *CategoryLink) LastTitle(side Side) string {
	if side == SideSupernote {
		return l.LastSupernoteTitle
	}
	return l.LastAppleTitle
}

// SetLastTitle records the title last synced for the given side.
func (l *CategoryLink) SetLastTitle(side Side, title string) {
	if side == SideSupernote {
		l.LastSupernoteTitle = title
		return
	}
	l.LastAppleTitle = title
}
