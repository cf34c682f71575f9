package reminders

import (
	"regexp"
	"strings"

	"github.com/mesh-intelligence/tasksync/pkg/types"
)

// Document links live in the Supernote database as opaque payloads that
// Apple Reminders has no field for. The notes column carries a readable
// stand-in instead, appended on write and stripped on read so it never
// leaks into the canonical notes text.

var docLine = regexp.MustCompile("\n*📎 [^\n]+")

// appleNotes renders the notes field written to a reminder: the task's
// notes plus the readable document link when one exists.
func appleNotes(t types.Task) string {
	var b strings.Builder
	b.WriteString(t.Notes)
	if t.DocLink != nil {
		if readable := t.DocLink.Readable(); readable != "" {
			b.WriteString("\n")
			b.WriteString(readable)
		}
	}
	return strings.TrimSpace(b.String())
}

// stripDocLine removes the readable document link from notes read back
// from a reminder.
func stripDocLine(notes string) string {
	return strings.TrimSpace(docLine.ReplaceAllString(notes, ""))
}
