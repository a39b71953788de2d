package server

import (
	"time"

	"github.com/onnwee/clipqueue/queue"
)

// queueView is the JSON shape of the queue served to the overlay and the API.
type queueView struct {
	Current           *queue.Clip  `json:"current"`
	Queue             []queue.Clip `json:"queue"`
	History           []queue.Clip `json:"history"`
	IsOpen            bool         `json:"isOpen"`
	ClipLimit         int          `json:"clipLimit"`
	Providers         []string     `json:"providers"`
	Autoplay          bool         `json:"autoplay"`
	AutoplayDelay     float64      `json:"autoplayDelaySeconds"`
	CountdownArmed    bool         `json:"countdownArmed"`
	AutoplayURL       string       `json:"autoplayUrl,omitempty"`
	Highlighted       string       `json:"highlighted,omitempty"`
	SkipVotes         int          `json:"skipVotes"`
	SkipVoteThreshold int          `json:"skipVoteThreshold"`
	WatchedClipCount  int          `json:"watchedClipCount"`
	TotalMediaWatched int          `json:"totalMediaWatched"`
}

// newQueueView renders s with at most historyLimit history entries (most recent first).
func newQueueView(s queue.State, historyLimit int) queueView {
	v := queueView{
		Queue:             s.Queue(),
		History:           []queue.Clip{},
		IsOpen:            s.IsOpen,
		ClipLimit:         s.ClipLimit,
		Providers:         s.Providers,
		Autoplay:          s.Autoplay,
		AutoplayDelay:     s.AutoplayDelay.Seconds(),
		CountdownArmed:    s.AutoplayTimer != "",
		AutoplayURL:       s.AutoplayURL,
		Highlighted:       s.Highlighted,
		SkipVotes:         len(s.CurrentSkipVoters),
		SkipVoteThreshold: s.SkipVoteThreshold,
		WatchedClipCount:  s.WatchedClipCount,
		TotalMediaWatched: s.TotalMediaWatched,
	}
	if v.Providers == nil {
		v.Providers = []string{}
	}
	if c, ok := s.Current(); ok {
		v.Current = &c
	}
	for _, id := range s.HistoryIDs {
		if historyLimit >= 0 && len(v.History) >= historyLimit {
			break
		}
		if id == s.CurrentID {
			continue
		}
		if c, ok := s.ByID[id]; ok {
			v.History = append(v.History, c)
		}
	}
	return v
}

// wsMessage is one websocket frame.
type wsMessage struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data queueView `json:"data"`
}
