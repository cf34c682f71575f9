package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DocumentLink points a task at a page inside a Supernote document.
// The payload is carried verbatim across syncs: a link this code cannot
// parse is still round-tripped byte for byte rather than dropped.
type DocumentLink struct {
	AppName  string `json:"appName"`
	FileID   string `json:"fileId"`
	FilePath string `json:"filePath"`
	Page     int    `json:"page"`
	PageID   string `json:"pageId"`

	// Raw is the exact payload the link was decoded from. Writers must
	// emit Raw unchanged whenever it is set.
	Raw []byte `json:"-"`

	// Decoded reports whether Raw parsed as a structured link. When false
	// only Raw is meaningful.
	Decoded bool `json:"-"`
}

// DecodeDocumentLink builds a DocumentLink from a raw payload. Malformed
// payloads are preserved opaque (Decoded=false), never rejected.
// Returns nil for an empty payload.
func DecodeDocumentLink(raw []byte) *DocumentLink {
	if len(raw) == 0 {
		return nil
	}
	link := &DocumentLink{Raw: raw}
	var decoded DocumentLink
	if err := json.Unmarshal(raw, &decoded); err == nil {
		decoded.Raw = raw
		decoded.Decoded = true
		return &decoded
	}
	return link
}

// Payload returns the bytes to persist for this link. The original payload
// wins whenever it is present.
func (l *DocumentLink) Payload() []byte {
	if len(l.Raw) > 0 {
		return l.Raw
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil
	}
	return data
}

// Readable renders the link for display in a notes field.
func (l *DocumentLink) Readable() string {
	if !l.Decoded {
		return ""
	}
	name := l.FilePath
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return fmt.Sprintf("📎 %s (page %d)", name, l.Page)
}
