package queue

import "time"

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func without(ids []string, id string) []string {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func insertAt(ids []string, pos int, id string) []string {
	out := make([]string, 0, len(ids)+1)
	out = append(out, ids[:pos]...)
	out = append(out, id)
	return append(out, ids[pos:]...)
}

// referenced reports whether id is still reachable from the queue, the current slot, the history
// or the watched stack.
func (s *State) referenced(id string) bool {
	return id == s.CurrentID ||
		indexOf(s.QueueIDs, id) >= 0 ||
		indexOf(s.HistoryIDs, id) >= 0 ||
		indexOf(s.WatchedHistory, id) >= 0
}

// prune drops every clip no longer referenced.
func (s *State) prune() {
	for id := range s.ByID {
		if !s.referenced(id) {
			delete(s.ByID, id)
		}
	}
	if s.Highlighted != "" && indexOf(s.QueueIDs, s.Highlighted) < 0 {
		s.Highlighted = ""
	}
}

// pushHistory moves id to the front of HistoryIDs and enforces HistoryLimit.
func (s *State) pushHistory(id string) {
	s.HistoryIDs = insertAt(without(s.HistoryIDs, id), 0, id)
	if len(s.HistoryIDs) <= HistoryLimit {
		return
	}
	evicted := s.HistoryIDs[HistoryLimit:]
	s.HistoryIDs = s.HistoryIDs[:HistoryLimit:HistoryLimit]
	for _, old := range evicted {
		if !s.referenced(old) {
			delete(s.ByID, old)
		}
	}
}

// clearPlayback resets everything tied to the clip currently playing.
func (s *State) clearPlayback() {
	s.AutoplayTimer = ""
	s.AutoplayURL = ""
	s.CurrentSkipVoters = nil
}

// makeCurrent puts id in the current slot and does the watch bookkeeping. Lifetime statistics
// count a clip once; the session counter follows every watched advance so Previous can undo it.
func (s *State) makeCurrent(id string, now time.Time, watched bool) {
	s.CurrentID = id
	s.pushHistory(id)
	c := s.ByID[id]
	if !c.IsWatched {
		s.TotalMediaWatched++
		if who := c.FirstSubmitter(); who != "" {
			s.WatchedCounts[FoldIdentity(who)]++
		}
		c.IsWatched = true
	}
	if watched {
		s.WatchedClipCount++
	}
	s.WatchedHistory = append(without(s.WatchedHistory, id), id)
	c.Status = StatusWatched
	c.RememberedAt = now
	s.ByID[id] = c
}

// retireCurrent empties the current slot. A clip that was never counted goes back to the head of
// the queue, otherwise it stays in history.
func (s *State) retireCurrent() {
	old := s.CurrentID
	if old == "" {
		return
	}
	s.CurrentID = ""
	c, ok := s.ByID[old]
	if !ok {
		return
	}
	if c.IsWatched {
		if indexOf(s.HistoryIDs, old) < 0 {
			s.pushHistory(old)
		}
		return
	}
	s.HistoryIDs = without(s.HistoryIDs, old)
	s.QueueIDs = insertAt(without(s.QueueIDs, old), 0, old)
	c.Status = StatusNone
	s.ByID[old] = c
}

// dropCurrent removes the current clip from the state as if it had never played, then advances.
func (s *State) dropCurrent(now time.Time) {
	id := s.CurrentID
	c := s.ByID[id]
	if c.IsWatched {
		if s.TotalMediaWatched > 0 {
			s.TotalMediaWatched--
		}
		if who := c.FirstSubmitter(); who != "" {
			key := FoldIdentity(who)
			if s.WatchedCounts[key] > 1 {
				s.WatchedCounts[key]--
			} else {
				delete(s.WatchedCounts, key)
			}
		}
		if s.WatchedClipCount > 0 {
			s.WatchedClipCount--
		}
	}
	s.HistoryIDs = without(s.HistoryIDs, id)
	s.WatchedHistory = without(s.WatchedHistory, id)
	s.CurrentID = ""
	delete(s.ByID, id)
	s.advance(now, false)
}

// resetSession runs whenever nothing is playing or pending.
func (s *State) resetSession() {
	s.NextSeq = 1
	s.WatchedClipCount = 0
	s.WatchedHistory = nil
	s.prune()
}

func (s *State) sessionEmpty() bool {
	return s.CurrentID == "" && len(s.QueueIDs) == 0
}

// reorderByPopularity reinserts id in front of the first pending clip with fewer submitters.
// Clips with equal counts keep their relative order.
func (s *State) reorderByPopularity(id string) {
	count := len(s.ByID[id].Submitters)
	q := without(s.QueueIDs, id)
	pos := len(q)
	for i, other := range q {
		if len(s.ByID[other].Submitters) < count {
			pos = i
			break
		}
	}
	s.QueueIDs = insertAt(q, pos, id)
}
