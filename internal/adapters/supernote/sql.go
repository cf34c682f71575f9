package supernote

import (
	"fmt"
	"regexp"
	"strings"
)

// The mysql client is driven through process exec, so there are no
// parameterized queries. Identifiers are restricted to UUID-safe
// characters and free text is escaped before interpolation.

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

func validateID(id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("id must not be empty")
	}
	if !idPattern.MatchString(id) {
		return "", fmt.Errorf("invalid id %q", id)
	}
	return id, nil
}

func escapeSQL(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, "'", "''")
	return strings.ReplaceAll(v, "\x00", "")
}

// parseBatch parses mysql --batch --raw output: a tab-separated header
// line followed by one row per line. NULL cells come back as empty strings.
func parseBatch(out string) []map[string]string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 2 || lines[0] == "" {
		return nil
	}
	headers := strings.Split(lines[0], "\t")
	rows := make([]map[string]string, 0, len(lines)-1)
	for _, line := range lines[1:] {
		values := strings.Split(line, "\t")
		row := make(map[string]string, len(headers))
		for i, h := range headers {
			var v string
			if i < len(values) {
				v = values[i]
			}
			if v == "NULL" {
				v = ""
			}
			row[h] = v
		}
		rows = append(rows, row)
	}
	return rows
}
