package queue

import (
	"regexp"
	"sort"
	"strings"
)

// ImportSubmitter is the synthetic submitter credited for bulk-imported clips.
const ImportSubmitter = "[import]"

var importTag = regexp.MustCompile(`^\[import(:[^\]]*)?\]$`)

// ImportMarker returns the synthetic submitter for an import tagged with tag.
func ImportMarker(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ImportSubmitter
	}
	return "[import:" + tag + "]"
}

// IsImportMarker reports whether name is a synthetic bulk-import submitter.
func IsImportMarker(name string) bool {
	name = strings.TrimSpace(name)
	return strings.EqualFold(name, ImportSubmitter) || importTag.MatchString(strings.ToLower(name))
}

// SubmitterCount is one leaderboard row.
type SubmitterCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// TopSubmitters ranks identities by how many of their first-submitted clips were watched.
// Import markers never appear. n <= 0 returns every row.
func TopSubmitters(s State, n int) []SubmitterCount {
	rows := make([]SubmitterCount, 0, len(s.WatchedCounts))
	for name, count := range s.WatchedCounts {
		if count <= 0 || IsImportMarker(name) {
			continue
		}
		rows = append(rows, SubmitterCount{Name: name, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Name < rows[j].Name
	})
	if n > 0 && len(rows) > n {
		rows = rows[:n]
	}
	return rows
}
