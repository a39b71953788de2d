package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/onnwee/clipqueue/command"
	"github.com/onnwee/clipqueue/provider"
	"github.com/onnwee/clipqueue/queue"
	"github.com/onnwee/clipqueue/telemetry"
)

var (
	// ErrNotAllowed is returned when the issuer may not run the command.
	ErrNotAllowed = errors.New("command not allowed")
	// ErrInvalidArgument is returned for unusable arguments. No transition is applied.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Execute runs cmd on behalf of who.
func (e *Engine) Execute(ctx context.Context, cmd command.Command, who command.Identity) error {
	if !command.Allowed(cmd, who) {
		return fmt.Errorf("%w: %s by %s", ErrNotAllowed, cmd.Kind, who.Name)
	}
	err := e.call(ctx, func() error { return e.execute(cmd, who) })
	if errors.Is(err, ErrInvalidArgument) {
		e.log.Debug("command ignored", slog.String("command", cmd.String()), slog.String("by", who.Name), slog.Any("err", err))
		return err
	}
	if err == nil {
		telemetry.RecordCommand(string(cmd.Kind))
	}
	return err
}

func invalid(cmd command.Command) error {
	return fmt.Errorf("%w: %q", ErrInvalidArgument, cmd.String())
}

func (e *Engine) execute(cmd command.Command, who command.Identity) error {
	switch cmd.Kind {
	case command.Open:
		e.apply(queue.QueueOpened{})
	case command.Close:
		e.apply(queue.QueueClosed{})
	case command.Next:
		e.startCountdown()
	case command.Skip:
		e.apply(queue.CurrentClipSkipped{})
	case command.VoteSkip:
		e.voteSkip(who.Name)
	case command.Previous:
		e.apply(queue.PreviousClip{})
	case command.Cancel:
		e.cancelCountdown()
	case command.Remove:
		id, ok := e.resolver.ResolveID(cmd.Arg(0))
		if !ok {
			return invalid(cmd)
		}
		e.apply(queue.QueueClipRemoved{ID: id})
	case command.RemoveIdx:
		seq, ok := positive(cmd.Arg(0))
		if !ok {
			return invalid(cmd)
		}
		e.apply(queue.QueueClipRemovedBySeq{Seq: seq})
	case command.Add:
		if cmd.Arg(0) == "" {
			return invalid(cmd)
		}
		if e.admit(cmd.Arg(0), who.Name, true) == Unresolved {
			return invalid(cmd)
		}
	case command.Bump:
		seq, ok := positive(cmd.Arg(0))
		if !ok {
			return invalid(cmd)
		}
		e.apply(queue.BumpClipToTop{Seq: seq})
	case command.Highlight:
		seq, ok := positive(cmd.Arg(0))
		if !ok {
			return invalid(cmd)
		}
		e.apply(queue.HighlightClip{Seq: seq})
	case command.Clear:
		e.apply(queue.QueueCleared{})
	case command.PurgeMemory:
		e.apply(queue.MemoryPurged{})
	case command.Autoplay:
		on, ok := toggle(cmd.Arg(0))
		if !ok {
			return invalid(cmd)
		}
		if !on {
			e.cancelCountdown()
		}
		e.apply(queue.AutoplaySet{Enabled: on})
	case command.Delay:
		d, ok := seconds(cmd.Arg(0))
		if !ok {
			return invalid(cmd)
		}
		e.apply(queue.AutoplayDelaySet{Delay: d})
		if d == 0 && e.state.AutoplayTimer != "" {
			e.apply(queue.CurrentClipWatched{})
		}
	case command.Limit:
		n, ok := limit(cmd.Arg(0))
		if !ok {
			return invalid(cmd)
		}
		e.apply(queue.ClipLimitSet{Limit: n})
	case command.Replace:
		return e.replace(cmd, who)
	case command.Providers:
		names, ok := provider.ParseEnabled(cmd.Rest())
		if !ok {
			return invalid(cmd)
		}
		e.apply(queue.ProvidersSet{Names: provider.Strings(names)})
	case command.Reorder:
		on, ok := toggle(cmd.Arg(0))
		if !ok {
			return invalid(cmd)
		}
		e.apply(queue.ReorderOnDuplicateSet{Enabled: on})
	case command.Votes:
		n, err := strconv.Atoi(cmd.Arg(0))
		if err != nil || n < 0 {
			return invalid(cmd)
		}
		e.apply(queue.SkipVoteThresholdSet{Threshold: n})
	default:
		return invalid(cmd)
	}
	return nil
}

// voteSkip records a vote and arms the countdown once the threshold is met.
func (e *Engine) voteSkip(voter string) {
	e.apply(queue.SkipVoteAdded{Voter: voter})
	t := e.state.SkipVoteThreshold
	if t > 0 && len(e.state.CurrentSkipVoters) >= t && e.state.AutoplayTimer == "" {
		e.log.Info("skip vote threshold reached", slog.Int("votes", len(e.state.CurrentSkipVoters)))
		e.startCountdown()
	}
}

// replace plays the linked clip now: a pending clip is pulled from the queue, anything else is
// injected as current and fetched if new.
func (e *Engine) replace(cmd command.Command, who command.Identity) error {
	id, ok := e.resolver.ResolveID(cmd.Arg(0))
	if !ok {
		return invalid(cmd)
	}
	if e.state.Pending(id) {
		e.apply(queue.CurrentClipReplaced{ID: id})
		return nil
	}
	_, known := e.state.ByID[id]
	e.apply(queue.CurrentClipForceReplaced{Clip: queue.Clip{ID: id, Submitters: []string{who.Name}}})
	if !known && e.state.CurrentID == id {
		e.fetch(id)
	}
	return nil
}

func positive(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimPrefix(s, "#"))
	return n, err == nil && n > 0
}

func toggle(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "on", "true", "yes", "1":
		return true, true
	case "off", "false", "no", "0":
		return false, true
	}
	return false, false
}

func limit(s string) (int, bool) {
	switch strings.ToLower(s) {
	case "off", "none", "unlimited":
		return 0, true
	}
	n, err := strconv.Atoi(s)
	return n, err == nil && n >= 0
}

// seconds parses a delay given in seconds ("5", "2.5") or as a Go duration ("1500ms").
func seconds(s string) (time.Duration, bool) {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if f < 0 {
			return 0, false
		}
		return time.Duration(f * float64(time.Second)), true
	}
	d, err := time.ParseDuration(s)
	return d, err == nil && d >= 0
}
