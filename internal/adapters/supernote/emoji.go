package supernote

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// The Supernote database stores text as 3-byte utf8, which cannot hold
// characters outside the Basic Multilingual Plane. Those characters are
// written as [U+XXXX] references and restored on read.

var emojiRef = regexp.MustCompile(`\[U\+([0-9A-Fa-f]+)\]`)

func encodeEmoji(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r > 0xFFFF {
			fmt.Fprintf(&b, "[U+%X]", r)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func decodeEmoji(s string) string {
	if !strings.Contains(s, "[U+") {
		return s
	}
	return emojiRef.ReplaceAllStringFunc(s, func(m string) string {
		n, err := strconv.ParseInt(m[3:len(m)-1], 16, 32)
		if err != nil || n > utf8.MaxRune {
			return m
		}
		return string(rune(n))
	})
}

// truncateRunes caps s at n runes. Applied after emoji encoding because a
// single emoji expands to roughly ten characters.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
