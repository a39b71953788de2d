package engine

import (
	"context"
	"log/slog"
	"strings"

	"github.com/onnwee/clipqueue/queue"
	"github.com/onnwee/clipqueue/telemetry"
)

// Outcome describes what happened to a submission.
type Outcome string

const (
	// Accepted: a new clip was queued and its metadata is being fetched.
	Accepted Outcome = "accepted"
	// Duplicate: the clip was already pending; the sender was credited if new.
	Duplicate Outcome = "duplicate"
	// Seen: the clip already played or was removed and is not queued again.
	Seen Outcome = "seen"
	// Closed: the queue does not take chat submissions right now.
	Closed Outcome = "closed"
	// LimitReached: the clip limit for this session is used up.
	LimitReached Outcome = "limit"
	// Unresolved: no enabled provider recognized the link.
	Unresolved Outcome = "unresolved"
)

// Submit queues a link sent by sender. Closed queues reject it.
func (e *Engine) Submit(ctx context.Context, rawURL, sender string) (Outcome, error) {
	var out Outcome
	err := e.call(ctx, func() error {
		out = e.admit(rawURL, sender, false)
		return nil
	})
	return out, err
}

// ImportResult counts the outcomes of a bulk import.
type ImportResult struct {
	Outcomes map[Outcome]int `json:"outcomes"`
	Accepted int             `json:"accepted"`
}

// Import queues urls on behalf of the synthetic import submitter for tag, bypassing the open
// gate. Import markers never show on the leaderboard.
func (e *Engine) Import(ctx context.Context, urls []string, tag string) (ImportResult, error) {
	res := ImportResult{Outcomes: map[Outcome]int{}}
	sender := queue.ImportMarker(tag)
	err := e.call(ctx, func() error {
		for _, u := range urls {
			if strings.TrimSpace(u) == "" {
				continue
			}
			o := e.admit(u, sender, true)
			res.Outcomes[o]++
		}
		return nil
	})
	res.Accepted = res.Outcomes[Accepted]
	return res, err
}

// admit resolves rawURL and applies the admission. bypass skips the open/closed gate.
func (e *Engine) admit(rawURL, sender string, bypass bool) (out Outcome) {
	defer func() { telemetry.RecordSubmission(string(out)) }()
	id, ok := e.resolver.ResolveID(rawURL)
	if !ok {
		return Unresolved
	}
	if !bypass && !e.state.IsOpen {
		return Closed
	}
	sender = strings.TrimSpace(sender)
	if sender == "" {
		sender = "anonymous"
	}
	_, known := e.state.ByID[id]
	wasPending := e.state.Pending(id)
	e.apply(queue.AddClip{Clip: queue.Clip{ID: id, Submitters: []string{sender}}})
	switch {
	case wasPending:
		return Duplicate
	case known:
		return Seen
	case !e.state.Pending(id):
		return LimitReached
	}
	e.log.Debug("clip admitted", slog.String("clip_id", id), slog.String("sender", sender))
	e.fetch(id)
	return Accepted
}

// fetch loads metadata for id unless a fetch for it is already running.
func (e *Engine) fetch(id string) {
	if e.inflight[id] {
		return
	}
	e.inflight[id] = true
	ctx, timeout := e.ctx, e.cfg.FetchTimeout
	go func() {
		fctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		md, ok := e.resolver.FetchMetadata(fctx, id)
		e.post(func() { e.fetched(id, md, ok) })
	}()
}

func (e *Engine) fetched(id string, md *queue.Metadata, ok bool) {
	delete(e.inflight, id)
	if !ok || md == nil {
		e.log.Info("dropping clip: metadata unavailable", slog.String("clip_id", id))
		e.apply(queue.ClipFetchFailed{ID: id})
		return
	}
	e.apply(queue.ClipDetailsFetched{ID: id, Metadata: *md})
}
