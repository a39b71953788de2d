package queue

// SchemaVersion is the version written with every persisted state.
//
//	1: initial layout
//	2: clips carry a per-session seq number
const SchemaVersion = 2

// Persisted is the stored envelope.
type Persisted struct {
	Version int   `json:"version"`
	State   State `json:"state"`
}

// Snapshot wraps s for storage at the current schema version.
func Snapshot(s State) Persisted {
	return Persisted{Version: SchemaVersion, State: s.Clone()}
}

// Migrate upgrades a stored envelope to the current schema and returns a usable State.
// Transient playback fields are cleared because timers do not survive a restart.
func Migrate(p Persisted) State {
	s := p.State.Clone()
	if s.ByID == nil {
		s.ByID = map[string]Clip{}
	}
	if s.WatchedCounts == nil {
		s.WatchedCounts = map[string]int{}
	}
	if p.Version < 2 {
		backfillSeq(&s)
	}
	if s.NextSeq < 1 {
		s.NextSeq = 1
	}
	if s.AutoplayDelay < 0 {
		s.AutoplayDelay = 0
	}
	for _, id := range s.QueueIDs {
		if _, ok := s.ByID[id]; !ok {
			s.QueueIDs = without(s.QueueIDs, id)
		}
	}
	s.AutoplayTimer = ""
	s.AutoplayURL = ""
	s.Highlighted = ""
	return s
}

// backfillSeq numbers clips that predate seq in play order: current first, then the queue.
func backfillSeq(s *State) {
	next := 1
	for _, c := range s.ByID {
		if c.Seq >= next {
			next = c.Seq + 1
		}
	}
	order := append([]string{}, s.QueueIDs...)
	if s.CurrentID != "" {
		order = append([]string{s.CurrentID}, order...)
	}
	for _, id := range order {
		c, ok := s.ByID[id]
		if !ok || c.Seq != 0 {
			continue
		}
		c.Seq = next
		next++
		s.ByID[id] = c
	}
	if s.NextSeq < next {
		s.NextSeq = next
	}
}
