package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsImportMarker(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"[import]", true},
		{"[IMPORT]", true},
		{"[import:playlist-2024]", true},
		{ImportMarker("Weekly"), true},
		{"importer", false},
		{"alice", false},
		{"[imports]", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsImportMarker(tt.name))
		})
	}
}

func TestTopSubmitters(t *testing.T) {
	s := New()
	s.WatchedCounts = map[string]int{
		"alice":             3,
		"bob":               3,
		"carol":             1,
		"[import]":          10,
		"[import:playlist]": 5,
		"dave":              0,
	}

	assert.Equal(t, []SubmitterCount{{"alice", 3}, {"bob", 3}}, TopSubmitters(s, 2))
	assert.Len(t, TopSubmitters(s, 0), 3)
}

func TestTopSubmittersFromWatches(t *testing.T) {
	s := New()
	s = add(s, "a", "Alice")
	s = add(s, "b", ImportMarker("batch"))
	s = add(s, "c", "alice")
	for range 3 {
		s = Apply(s, CurrentClipWatched{}, t0)
	}
	assert.Equal(t, []SubmitterCount{{"alice", 2}}, TopSubmitters(s, 10))
	assert.Equal(t, 3, s.TotalMediaWatched)
}
