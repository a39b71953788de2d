package queue

import (
	"time"
)

// AddClip admits a submission. Clip.Submitters[0] is the sender.
//
// A clip already known and pending only gains the sender as a submitter (and is moved up when
// ReorderOnDuplicate is set). A clip known but no longer pending is ignored. A new clip is
// rejected once ClipLimit is reached.
type AddClip struct{ Clip Clip }

func (e AddClip) apply(s *State, _ time.Time) {
	c := e.Clip
	if c.ID == "" || len(c.Submitters) == 0 {
		return
	}
	sender := c.Submitters[0]
	if existing, ok := s.ByID[c.ID]; ok {
		if !s.Pending(c.ID) || containsIdentity(existing.Submitters, sender) {
			return
		}
		existing.Submitters = append(existing.Submitters, sender)
		s.ByID[c.ID] = existing
		if s.ReorderOnDuplicate {
			s.reorderByPopularity(c.ID)
		}
		return
	}
	if s.sessionEmpty() {
		s.NextSeq = 1
	}
	if s.ClipLimit > 0 && s.WatchedClipCount+len(s.QueueIDs) >= s.ClipLimit {
		return
	}
	c.Submitters = dedupeIdentities(c.Submitters)
	if c.Seq == 0 {
		c.Seq = s.NextSeq
		s.NextSeq++
	}
	c.Status = StatusNone
	c.IsWatched = false
	c.RememberedAt = time.Time{}
	s.ByID[c.ID] = c
	s.QueueIDs = append(s.QueueIDs, c.ID)
}

// ClipDetailsFetched merges fetched metadata into a known clip, keeping its queue bookkeeping.
type ClipDetailsFetched struct {
	ID       string
	Metadata Metadata
}

func (e ClipDetailsFetched) apply(s *State, _ time.Time) {
	c, ok := s.ByID[e.ID]
	if !ok {
		return
	}
	c.Metadata = e.Metadata
	s.ByID[e.ID] = c
}

// ClipFetchFailed drops a stub whose metadata could not be resolved, wherever it sits. A stub that
// already became current is taken back out of the current slot with its watch bookkeeping undone,
// and the queue moves on as on a skip.
type ClipFetchFailed struct{ ID string }

func (e ClipFetchFailed) apply(s *State, now time.Time) {
	if e.ID != "" && e.ID == s.CurrentID {
		s.dropCurrent(now)
		return
	}
	if !s.Pending(e.ID) {
		return
	}
	s.QueueIDs = without(s.QueueIDs, e.ID)
	if s.Highlighted == e.ID {
		s.Highlighted = ""
	}
	if !s.referenced(e.ID) {
		delete(s.ByID, e.ID)
	}
}

// CurrentClipWatched advances to the next pending clip, counting the advance as a watch.
type CurrentClipWatched struct{}

func (CurrentClipWatched) apply(s *State, now time.Time) { s.advance(now, true) }

// CurrentClipSkipped advances like CurrentClipWatched without bumping WatchedClipCount.
type CurrentClipSkipped struct{}

func (CurrentClipSkipped) apply(s *State, now time.Time) { s.advance(now, false) }

func (s *State) advance(now time.Time, watched bool) {
	s.clearPlayback()
	if len(s.QueueIDs) == 0 {
		s.CurrentID = ""
	} else {
		id := s.QueueIDs[0]
		s.QueueIDs = append([]string(nil), s.QueueIDs[1:]...)
		if s.Highlighted == id {
			s.Highlighted = ""
		}
		s.makeCurrent(id, now, watched)
	}
	if s.sessionEmpty() {
		s.resetSession()
	}
}

// PreviousClip undoes one advance: the current clip goes back to the head of the queue and the
// clip watched before it becomes current again. It needs at least two entries on the watched
// stack, the top of which must be the current clip.
type PreviousClip struct{}

func (PreviousClip) apply(s *State, _ time.Time) {
	cur := s.CurrentID
	n := len(s.WatchedHistory)
	if cur == "" || n < 2 || s.WatchedHistory[n-1] != cur {
		return
	}
	s.clearPlayback()
	s.WatchedHistory = s.WatchedHistory[:n-1]
	if s.WatchedClipCount > 0 {
		s.WatchedClipCount--
	}
	s.HistoryIDs = without(s.HistoryIDs, cur)
	s.QueueIDs = insertAt(without(s.QueueIDs, cur), 0, cur)
	if c, ok := s.ByID[cur]; ok {
		c.Status = StatusNone
		s.ByID[cur] = c
	}

	prev := s.WatchedHistory[len(s.WatchedHistory)-1]
	s.CurrentID = prev
	if indexOf(s.HistoryIDs, prev) < 0 {
		s.pushHistory(prev)
	}
}

// CurrentClipReplaced plays the pending clip ID immediately.
type CurrentClipReplaced struct{ ID string }

func (e CurrentClipReplaced) apply(s *State, now time.Time) {
	if !s.Pending(e.ID) {
		return
	}
	s.clearPlayback()
	s.QueueIDs = without(s.QueueIDs, e.ID)
	if s.Highlighted == e.ID {
		s.Highlighted = ""
	}
	s.retireCurrent()
	s.makeCurrent(e.ID, now, true)
}

// CurrentClipForceReplaced plays Clip immediately whether or not it is known. A known clip keeps
// its record and gains the new submitters; it is pulled out of the queue and history first so it
// appears exactly once.
type CurrentClipForceReplaced struct{ Clip Clip }

func (e CurrentClipForceReplaced) apply(s *State, now time.Time) {
	c := e.Clip
	if c.ID == "" || c.ID == s.CurrentID {
		return
	}
	s.clearPlayback()
	if existing, ok := s.ByID[c.ID]; ok {
		for _, who := range c.Submitters {
			if !containsIdentity(existing.Submitters, who) {
				existing.Submitters = append(existing.Submitters, who)
			}
		}
		c = existing
	} else {
		if s.sessionEmpty() {
			s.NextSeq = 1
		}
		c.Submitters = dedupeIdentities(c.Submitters)
		if c.Seq == 0 {
			c.Seq = s.NextSeq
			s.NextSeq++
		}
		c.IsWatched = false
	}
	s.QueueIDs = without(s.QueueIDs, c.ID)
	s.HistoryIDs = without(s.HistoryIDs, c.ID)
	if s.Highlighted == c.ID {
		s.Highlighted = ""
	}
	s.ByID[c.ID] = c
	s.retireCurrent()
	s.makeCurrent(c.ID, now, true)
}

// QueueClipRemoved takes a pending clip out of the queue and files it in history as removed.
type QueueClipRemoved struct{ ID string }

func (e QueueClipRemoved) apply(s *State, now time.Time) {
	if !s.Pending(e.ID) {
		return
	}
	s.QueueIDs = without(s.QueueIDs, e.ID)
	if s.Highlighted == e.ID {
		s.Highlighted = ""
	}
	c := s.ByID[e.ID]
	c.Status = StatusRemoved
	c.RememberedAt = now
	s.ByID[e.ID] = c
	s.pushHistory(e.ID)
}

// QueueClipRemovedBySeq is QueueClipRemoved addressed by seq.
type QueueClipRemovedBySeq struct{ Seq int }

func (e QueueClipRemovedBySeq) apply(s *State, now time.Time) {
	if id, ok := s.PendingBySeq(e.Seq); ok {
		QueueClipRemoved{ID: id}.apply(s, now)
	}
}

// BumpClipToTop moves the pending clip with Seq to the head of the queue.
type BumpClipToTop struct{ Seq int }

func (e BumpClipToTop) apply(s *State, _ time.Time) {
	id, ok := s.PendingBySeq(e.Seq)
	if !ok {
		return
	}
	s.QueueIDs = insertAt(without(s.QueueIDs, id), 0, id)
}

// HighlightClip marks the pending clip with Seq. The engine clears it after a fixed delay.
type HighlightClip struct{ Seq int }

func (e HighlightClip) apply(s *State, _ time.Time) {
	if id, ok := s.PendingBySeq(e.Seq); ok {
		s.Highlighted = id
	}
}

// HighlightCleared clears the highlight if it still points at ID.
type HighlightCleared struct{ ID string }

func (e HighlightCleared) apply(s *State, _ time.Time) {
	if s.Highlighted == e.ID {
		s.Highlighted = ""
	}
}

// QueueOpened lets chat submissions in.
type QueueOpened struct{}

func (QueueOpened) apply(s *State, _ time.Time) { s.IsOpen = true }

// QueueClosed rejects chat submissions. Moderator additions still go through.
type QueueClosed struct{}

func (QueueClosed) apply(s *State, _ time.Time) { s.IsOpen = false }

// QueueCleared empties the pending queue. The current clip keeps playing.
type QueueCleared struct{}

func (QueueCleared) apply(s *State, _ time.Time) {
	s.QueueIDs = nil
	s.Highlighted = ""
	if s.sessionEmpty() {
		s.resetSession()
		return
	}
	s.prune()
}

// MemoryPurged forgets everything except the current and pending clips, so previously seen media
// can be submitted again.
type MemoryPurged struct{}

func (MemoryPurged) apply(s *State, _ time.Time) {
	s.HistoryIDs = nil
	s.WatchedHistory = nil
	if s.CurrentID != "" {
		s.HistoryIDs = []string{s.CurrentID}
		s.WatchedHistory = []string{s.CurrentID}
	}
	s.prune()
}

// MemoryExpired drops history entries remembered before Before.
type MemoryExpired struct{ Before time.Time }

func (e MemoryExpired) apply(s *State, _ time.Time) {
	kept := s.HistoryIDs[:0:0]
	for _, id := range s.HistoryIDs {
		c, ok := s.ByID[id]
		if id != s.CurrentID && ok && !c.RememberedAt.IsZero() && c.RememberedAt.Before(e.Before) {
			continue
		}
		kept = append(kept, id)
	}
	if len(kept) == len(s.HistoryIDs) {
		return
	}
	s.HistoryIDs = kept
	s.prune()
}

// SkipVoteAdded records a viewer's vote to skip the current clip. Votes are unique per
// case-folded identity and only count while something is playing.
type SkipVoteAdded struct{ Voter string }

func (e SkipVoteAdded) apply(s *State, _ time.Time) {
	if s.CurrentID == "" || e.Voter == "" || containsIdentity(s.CurrentSkipVoters, e.Voter) {
		return
	}
	s.CurrentSkipVoters = append(s.CurrentSkipVoters, FoldIdentity(e.Voter))
}

// AutoplayArmed records the token of the running countdown.
type AutoplayArmed struct{ Token string }

func (e AutoplayArmed) apply(s *State, _ time.Time) { s.AutoplayTimer = e.Token }

// AutoplayCancelled stops the countdown.
type AutoplayCancelled struct{}

func (AutoplayCancelled) apply(s *State, _ time.Time) { s.AutoplayTimer = "" }

// AutoplayURLResolved stores the direct playable URL of the current clip.
type AutoplayURLResolved struct {
	ID  string
	URL string
}

func (e AutoplayURLResolved) apply(s *State, _ time.Time) {
	if e.ID == s.CurrentID {
		s.AutoplayURL = e.URL
	}
}

// AutoplayFailed turns autoplay off after the current clip could not be resolved for it.
type AutoplayFailed struct{}

func (AutoplayFailed) apply(s *State, _ time.Time) {
	s.Autoplay = false
	s.AutoplayTimer = ""
	s.AutoplayURL = ""
}

// AutoplaySet toggles autoplay.
type AutoplaySet struct{ Enabled bool }

func (e AutoplaySet) apply(s *State, _ time.Time) {
	s.Autoplay = e.Enabled
	if !e.Enabled {
		s.AutoplayURL = ""
	}
}

// AutoplayDelaySet changes the countdown length. Zero or less fires immediately.
type AutoplayDelaySet struct{ Delay time.Duration }

func (e AutoplayDelaySet) apply(s *State, _ time.Time) {
	if e.Delay < 0 {
		e.Delay = 0
	}
	s.AutoplayDelay = e.Delay
}

// ClipLimitSet caps admissions per session. Zero removes the cap.
type ClipLimitSet struct{ Limit int }

func (e ClipLimitSet) apply(s *State, _ time.Time) {
	if e.Limit < 0 {
		return
	}
	s.ClipLimit = e.Limit
}

// ReorderOnDuplicateSet toggles popularity reordering.
type ReorderOnDuplicateSet struct{ Enabled bool }

func (e ReorderOnDuplicateSet) apply(s *State, _ time.Time) { s.ReorderOnDuplicate = e.Enabled }

// SkipVoteThresholdSet changes the number of votes that arms the countdown. Zero disables voting.
type SkipVoteThresholdSet struct{ Threshold int }

func (e SkipVoteThresholdSet) apply(s *State, _ time.Time) {
	if e.Threshold < 0 {
		return
	}
	s.SkipVoteThreshold = e.Threshold
}

// ProvidersSet replaces the enabled provider names.
type ProvidersSet struct{ Names []string }

func (e ProvidersSet) apply(s *State, _ time.Time) {
	s.Providers = append([]string{}, e.Names...)
}
