package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/onnwee/clipqueue/queue"
	"github.com/onnwee/clipqueue/telemetry"
)

// ErrUnknownClip is returned for playback lookups of ids the queue does not hold.
var ErrUnknownClip = errors.New("unknown clip")

// startCountdown arms the advance countdown as a manual Next does. Arming while armed is a no-op;
// a zero delay advances at once.
func (e *Engine) startCountdown() {
	if e.state.AutoplayTimer != "" {
		return
	}
	if e.state.CurrentID == "" && len(e.state.QueueIDs) == 0 {
		return
	}
	if e.state.AutoplayDelay <= 0 {
		e.apply(queue.CurrentClipWatched{})
		return
	}
	e.arm(e.state.AutoplayDelay)
}

// arm starts a countdown of d whose firing advances the queue if it is still the armed one.
func (e *Engine) arm(d time.Duration) {
	if e.state.AutoplayTimer != "" {
		return
	}
	token := e.timers.start(d, func(token string) {
		e.post(func() { e.countdownFired(token) })
	})
	e.log.Debug("countdown armed", slog.Duration("delay", d))
	e.apply(queue.AutoplayArmed{Token: token})
}

func (e *Engine) countdownFired(token string) {
	if e.state.AutoplayTimer != token {
		return
	}
	e.apply(queue.CurrentClipWatched{})
}

// cancelCountdown stops a running countdown.
func (e *Engine) cancelCountdown() {
	if e.state.AutoplayTimer == "" {
		return
	}
	e.apply(queue.AutoplayCancelled{})
}

// resolveAutoplay fetches a playable URL for the current clip when autoplay is on. A result that
// arrives after the current clip changed is discarded.
func (e *Engine) resolveAutoplay() {
	id := e.state.CurrentID
	if !e.state.Autoplay || id == "" {
		return
	}
	ctx, timeout := e.ctx, e.cfg.FetchTimeout
	go func() {
		fctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		u, ok := e.resolver.GetAutoplayURL(fctx, id)
		e.post(func() { e.autoplayResolved(id, u, ok) })
	}()
}

func (e *Engine) autoplayResolved(id, u string, ok bool) {
	if e.state.CurrentID != id || !e.state.Autoplay {
		return
	}
	if !ok {
		e.log.Info("autoplay disabled: no playable url", slog.String("clip_id", id))
		telemetry.RecordAutoplayFailure()
		e.apply(queue.AutoplayFailed{})
		return
	}
	e.apply(queue.AutoplayURLResolved{ID: id, URL: u})
	e.armForCurrent()
}

// armForCurrent waits for the current clip to play out and then starts the countdown. Clips of
// unknown length wait for the player's ended signal instead.
func (e *Engine) armForCurrent() {
	c, ok := e.state.Current()
	if !ok || !e.state.Autoplay || e.state.AutoplayURL == "" || c.Duration <= 0 || e.playout != "" {
		return
	}
	id := c.ID
	e.playout = e.timers.start(time.Duration(c.Duration)*time.Second, func(token string) {
		e.post(func() { e.playedOut(token, id) })
	})
	e.log.Debug("waiting for clip to play out", slog.String("clip_id", id), slog.Int("duration", c.Duration))
}

func (e *Engine) playedOut(token, id string) {
	if e.playout != token {
		return
	}
	e.playout = ""
	if e.state.CurrentID == id && e.state.Autoplay {
		e.startCountdown()
	}
}

// stopPlayout drops the play-out wait, if any.
func (e *Engine) stopPlayout() {
	if e.playout == "" {
		return
	}
	e.timers.stop(e.playout)
	e.playout = ""
}

// pulseHighlight clears the highlight on id after the configured pulse.
func (e *Engine) pulseHighlight(id string) {
	e.timers.start(e.cfg.HighlightDuration, func(string) {
		e.post(func() { e.apply(queue.HighlightCleared{ID: id}) })
	})
}

// PlayerEnded reports that the player finished id. It arms the countdown as a manual Next would.
// An empty id means the current clip; a stale id is ignored.
func (e *Engine) PlayerEnded(ctx context.Context, id string) error {
	return e.call(ctx, func() error {
		if id != "" && id != e.state.CurrentID {
			e.log.Debug("ignoring ended signal for stale clip", slog.String("clip_id", id))
			return nil
		}
		e.startCountdown()
		return nil
	})
}

// Playback are the URLs a player needs for one clip. Empty fields could not be resolved.
type Playback struct {
	ID          string `json:"id"`
	URL         string `json:"url,omitempty"`
	EmbedURL    string `json:"embedUrl,omitempty"`
	AutoplayURL string `json:"autoplayUrl,omitempty"`
}

// Playback resolves the URLs for a clip the queue holds. The autoplay URL is fetched fresh.
func (e *Engine) Playback(ctx context.Context, id string) (Playback, error) {
	if _, ok := e.Snapshot().ByID[id]; !ok {
		return Playback{}, ErrUnknownClip
	}
	ctx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	defer cancel()
	p := Playback{ID: id}
	p.URL, _ = e.resolver.GetURL(ctx, id)
	p.EmbedURL, _ = e.resolver.GetEmbedURL(ctx, id)
	p.AutoplayURL, _ = e.resolver.GetAutoplayURL(ctx, id)
	return p, nil
}
