// Package queue holds the clip queue state and the pure transitions applied to it.
//
// Every transition is an Event applied through Apply, which returns a new State and leaves the
// input untouched. Side effects (metadata fetches, timers, persistence) belong to the engine
// package; nothing here performs I/O or reads the clock.
package queue

import (
	"time"
)

// HistoryLimit bounds HistoryIDs. Entries past it are evicted, and their clips are dropped from
// ByID unless still referenced elsewhere.
const HistoryLimit = 300

// DefaultAutoplayDelay is the countdown used by a fresh state.
const DefaultAutoplayDelay = 5 * time.Second

// Status is the display status of a clip.
type Status string

const (
	StatusNone    Status = ""
	StatusWatched Status = "watched"
	StatusRemoved Status = "removed"
)

// Metadata is what a provider knows about a piece of media.
type Metadata struct {
	Title        string    `json:"title,omitempty"`
	Author       string    `json:"author,omitempty"`
	Category     string    `json:"category,omitempty"`
	URL          string    `json:"url,omitempty"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	Duration     int       `json:"duration,omitempty"` // seconds
	Views        int       `json:"views,omitempty"`
	CreatedAt    time.Time `json:"createdAt,omitzero"`
	Platform     string    `json:"platform,omitempty"`
}

// Clip is one submitted piece of media. A clip without a Title is a stub whose metadata fetch has
// not completed yet.
type Clip struct {
	ID           string    `json:"id"`
	Submitters   []string  `json:"submitters"`
	Seq          int       `json:"seq,omitempty"`
	Status       Status    `json:"status,omitempty"`
	IsWatched    bool      `json:"isWatched,omitempty"`
	RememberedAt time.Time `json:"rememberedAt,omitzero"`
	Metadata
}

// FirstSubmitter returns the submitter credited for the clip, or "".
func (c Clip) FirstSubmitter() string {
	if len(c.Submitters) == 0 {
		return ""
	}
	return c.Submitters[0]
}

// State is the whole queue. It is a plain value: maps and slices are never shared between the
// State passed to Apply and the one it returns.
type State struct {
	ByID              map[string]Clip `json:"byId"`
	QueueIDs          []string        `json:"queueIds"`
	CurrentID         string          `json:"currentId,omitempty"`
	HistoryIDs        []string        `json:"historyIds"`
	WatchedHistory    []string        `json:"watchedHistory"`
	WatchedClipCount  int             `json:"watchedClipCount"`
	TotalMediaWatched int             `json:"totalMediaWatched"`
	WatchedCounts     map[string]int  `json:"watchedCounts"`
	NextSeq           int             `json:"nextSeq"`

	IsOpen             bool          `json:"isOpen"`
	ClipLimit          int           `json:"clipLimit,omitempty"` // 0 means unlimited
	ReorderOnDuplicate bool          `json:"reorderOnDuplicate"`
	Providers          []string      `json:"providers"`
	SkipVoteThreshold  int           `json:"skipVoteThreshold"`
	CurrentSkipVoters  []string      `json:"currentSkipVoters,omitempty"`
	Autoplay           bool          `json:"autoplay"`
	AutoplayDelay      time.Duration `json:"autoplayDelay"`
	AutoplayTimer      string        `json:"autoplayTimer,omitempty"`
	AutoplayURL        string        `json:"autoplayUrl,omitempty"`
	Highlighted        string        `json:"highlighted,omitempty"`
}

// New returns an empty, open queue.
func New() State {
	return State{
		ByID:          map[string]Clip{},
		WatchedCounts: map[string]int{},
		NextSeq:       1,
		IsOpen:        true,
		AutoplayDelay: DefaultAutoplayDelay,
	}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := s
	out.ByID = make(map[string]Clip, len(s.ByID))
	for id, c := range s.ByID {
		c.Submitters = append([]string(nil), c.Submitters...)
		out.ByID[id] = c
	}
	out.WatchedCounts = make(map[string]int, len(s.WatchedCounts))
	for k, v := range s.WatchedCounts {
		out.WatchedCounts[k] = v
	}
	out.QueueIDs = append([]string(nil), s.QueueIDs...)
	out.HistoryIDs = append([]string(nil), s.HistoryIDs...)
	out.WatchedHistory = append([]string(nil), s.WatchedHistory...)
	if s.Providers != nil {
		// empty means "none"; keep it distinct from unset
		out.Providers = append([]string{}, s.Providers...)
	}
	out.CurrentSkipVoters = append([]string(nil), s.CurrentSkipVoters...)
	return out
}

// Current returns the clip being played, if any.
func (s State) Current() (Clip, bool) {
	if s.CurrentID == "" {
		return Clip{}, false
	}
	c, ok := s.ByID[s.CurrentID]
	return c, ok
}

// Queue returns the pending clips in play order.
func (s State) Queue() []Clip {
	out := make([]Clip, 0, len(s.QueueIDs))
	for _, id := range s.QueueIDs {
		if c, ok := s.ByID[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Pending reports whether id is waiting in the queue.
func (s State) Pending(id string) bool { return indexOf(s.QueueIDs, id) >= 0 }

// PendingBySeq returns the id of the pending clip with the given seq.
func (s State) PendingBySeq(seq int) (string, bool) {
	if seq <= 0 {
		return "", false
	}
	for _, id := range s.QueueIDs {
		if s.ByID[id].Seq == seq {
			return id, true
		}
	}
	return "", false
}

// Event is a queue transition. The set is closed: only this package defines events.
type Event interface {
	apply(s *State, now time.Time)
}

// Apply returns the state that results from applying ev to s at time now. s is not modified.
func Apply(s State, ev Event, now time.Time) State {
	next := s.Clone()
	if next.ByID == nil {
		next.ByID = map[string]Clip{}
	}
	if next.WatchedCounts == nil {
		next.WatchedCounts = map[string]int{}
	}
	if next.NextSeq < 1 {
		next.NextSeq = 1
	}
	ev.apply(&next, now)
	return next
}
