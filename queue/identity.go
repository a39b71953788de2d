package queue

import (
	"strings"

	"golang.org/x/text/cases"
)

// FoldIdentity returns the case-insensitive key for a chat identity. Submitter lists, skip voters
// and watch counts all compare through it.
func FoldIdentity(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

func containsIdentity(list []string, name string) bool {
	key := FoldIdentity(name)
	for _, v := range list {
		if FoldIdentity(v) == key {
			return true
		}
	}
	return false
}

func dedupeIdentities(list []string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if strings.TrimSpace(v) == "" || containsIdentity(out, v) {
			continue
		}
		out = append(out, v)
	}
	return out
}
