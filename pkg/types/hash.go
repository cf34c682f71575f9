package types

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// hashSep separates fields in the canonical hash input. A non-printable
// separator keeps "a"+"bc" distinct from "ab"+"c".
const hashSep = "\x1f"

// ContentHash fingerprints the synchronization-relevant fields of a task:
// title, notes, status, priority, category key, and the due timestamp
// truncated to the minute. The result is identical regardless of which side
// produced the task and stable across runs; it is a change detector, not a
// cryptographic commitment.
func ContentHash(t *Task) string {
	due := ""
	if t.Due != nil {
		due = t.Due.UTC().Truncate(time.Minute).Format(time.RFC3339)
	}
	input := strings.Join([]string{
		t.Title,
		t.Notes,
		t.Status,
		strconv.Itoa(t.Priority),
		t.CategoryKey,
		due,
	}, hashSep)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])[:16]
}
