// Package engine runs the clip queue. It owns the single queue.State and is the only place that
// applies events to it: every submission, command, fetch result and timer firing is delivered to
// one writer goroutine and applied in arrival order. Network fetches and timers run outside that
// goroutine and report back as ordinary messages.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/onnwee/clipqueue/provider"
	"github.com/onnwee/clipqueue/queue"
	"github.com/onnwee/clipqueue/telemetry"
)

// ErrStopped is returned for requests made after Run has returned.
var ErrStopped = errors.New("engine stopped")

// Resolver is the provider registry surface the engine needs. Implementations must be safe for
// concurrent use and report failures as ok == false.
type Resolver interface {
	ResolveID(rawURL string) (string, bool)
	SetEnabled(names []provider.Name)
	FetchMetadata(ctx context.Context, id string) (*queue.Metadata, bool)
	GetURL(ctx context.Context, id string) (string, bool)
	GetEmbedURL(ctx context.Context, id string) (string, bool)
	GetAutoplayURL(ctx context.Context, id string) (string, bool)
}

// Store persists the queue between runs. Load returns nil and no error when nothing is stored.
type Store interface {
	Load(ctx context.Context) (*queue.Persisted, error)
	Save(ctx context.Context, p queue.Persisted) error
}

// Config holds the engine settings. Zero values fall back to defaults where noted.
type Config struct {
	// Initial settings for a queue with no stored state.
	Providers         []provider.Name
	Autoplay          bool
	AutoplayDelay     time.Duration
	SkipVoteThreshold int

	// HighlightDuration is the length of the highlight pulse (default 3s).
	HighlightDuration time.Duration
	// MemoryRetention evicts history entries older than this. Zero disables it.
	MemoryRetention time.Duration
	// FetchTimeout bounds each metadata or URL lookup (default 10s).
	FetchTimeout time.Duration

	Logger *slog.Logger
	// Now is the clock (default time.Now).
	Now func() time.Time
}

// Engine is the single writer of the queue state.
type Engine struct {
	cfg      Config
	log      *slog.Logger
	resolver Resolver
	store    Store
	saver    *saver
	timers   *timers

	inbox chan func()
	ready chan struct{}
	done  chan struct{}

	// Owned by the writer goroutine.
	ctx      context.Context
	state    queue.State
	inflight map[string]bool
	// playout is the token of the wait for the current clip to finish. It is not a countdown.
	playout string

	snap atomic.Pointer[queue.State]

	subMu  sync.Mutex
	subs   map[int]chan queue.State
	nextID int
}

// New returns an engine; nothing happens until Run is called. store may be nil.
func New(cfg Config, resolver Resolver, store Store) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.HighlightDuration <= 0 {
		cfg.HighlightDuration = 3 * time.Second
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.AutoplayDelay < 0 {
		cfg.AutoplayDelay = 0
	}
	log := cfg.Logger.With(slog.String("component", "engine"))
	e := &Engine{
		cfg:      cfg,
		log:      log,
		resolver: resolver,
		store:    store,
		timers:   newTimers(),
		inbox:    make(chan func(), 256),
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
		ctx:      context.Background(),
		inflight: map[string]bool{},
		subs:     map[int]chan queue.State{},
	}
	if store != nil {
		e.saver = newSaver(store, log)
	}
	st := queue.New()
	e.snap.Store(&st)
	return e
}

// Ready is closed once the stored state has been restored and events are being processed.
func (e *Engine) Ready() <-chan struct{} { return e.ready }

// Run restores the stored state and processes events until ctx is done. The final state is
// saved before Run returns.
func (e *Engine) Run(ctx context.Context) error {
	e.ctx = ctx
	if err := e.rehydrate(ctx); err != nil {
		close(e.done)
		return err
	}

	var saverDone chan struct{}
	if e.saver != nil {
		saverDone = make(chan struct{})
		go func() {
			defer close(saverDone)
			e.saver.run(ctx)
		}()
		e.saver.save(queue.Snapshot(e.state))
	}

	var tick <-chan time.Time
	if r := e.cfg.MemoryRetention; r > 0 {
		t := time.NewTicker(retentionInterval(r))
		defer t.Stop()
		tick = t.C
	}

	close(e.ready)
	e.log.Info("engine started", slog.Int("queue_depth", len(e.state.QueueIDs)), slog.String("current", e.state.CurrentID))
	for {
		select {
		case <-ctx.Done():
			close(e.done)
			e.timers.stopAll()
			if saverDone != nil {
				<-saverDone
			}
			e.log.Info("engine stopped")
			return nil
		case fn := <-e.inbox:
			fn()
		case <-tick:
			e.apply(queue.MemoryExpired{Before: e.cfg.Now().Add(-e.cfg.MemoryRetention)})
		}
	}
}

func retentionInterval(r time.Duration) time.Duration {
	d := r / 10
	if d < time.Second {
		d = time.Second
	}
	if d > time.Minute {
		d = time.Minute
	}
	return d
}

// rehydrate loads the stored state. The enabled providers reach the resolver before anything
// else runs.
func (e *Engine) rehydrate(ctx context.Context) error {
	var stored *queue.Persisted
	if e.store != nil {
		p, err := e.store.Load(ctx)
		if err != nil {
			return err
		}
		stored = p
	}
	if stored == nil || stored.State.Providers == nil {
		e.resolver.SetEnabled(e.cfg.Providers)
	} else {
		e.resolver.SetEnabled(provider.Names(stored.State.Providers))
	}

	if stored != nil {
		e.state = queue.Migrate(*stored)
		if e.state.Providers == nil {
			e.state.Providers = provider.Strings(e.cfg.Providers)
		}
		e.log.Info("state restored", slog.Int("schema_version", stored.Version), slog.Int("clips", len(e.state.ByID)))
	} else {
		st := queue.New()
		st.Providers = provider.Strings(e.cfg.Providers)
		st.Autoplay = e.cfg.Autoplay
		st.AutoplayDelay = e.cfg.AutoplayDelay
		st.SkipVoteThreshold = e.cfg.SkipVoteThreshold
		e.state = st
		e.log.Info("starting with empty queue")
	}
	e.publish()
	for _, id := range e.state.QueueIDs {
		if e.state.ByID[id].Title == "" {
			e.fetch(id)
		}
	}
	return nil
}

// post hands fn to the writer goroutine. It reports false once the engine has stopped.
func (e *Engine) post(fn func()) bool {
	select {
	case <-e.done:
		return false
	default:
	}
	select {
	case e.inbox <- fn:
		return true
	case <-e.done:
		return false
	}
}

// call runs fn on the writer goroutine and waits for its result.
func (e *Engine) call(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	select {
	case e.inbox <- func() { errc <- fn() }:
	case <-e.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-errc:
		return err
	case <-e.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// apply runs one transition and its side effects. Only the writer goroutine calls it.
func (e *Engine) apply(ev queue.Event) {
	prev := e.state
	e.state = queue.Apply(prev, ev, e.cfg.Now())
	e.effects(prev, ev)
	e.publish()
	if e.saver != nil {
		e.saver.save(queue.Persisted{Version: queue.SchemaVersion, State: e.state})
	}
}

// effects reconciles timers, the resolver and metrics with the transition from prev.
func (e *Engine) effects(prev queue.State, ev queue.Event) {
	cur := e.state
	if prev.AutoplayTimer != "" && prev.AutoplayTimer != cur.AutoplayTimer {
		e.timers.stop(prev.AutoplayTimer)
	}
	switch ev := ev.(type) {
	case queue.ProvidersSet:
		e.resolver.SetEnabled(provider.Names(ev.Names))
	case queue.CurrentClipWatched:
		telemetry.RecordAdvance("watched")
	case queue.CurrentClipSkipped:
		telemetry.RecordAdvance("skipped")
	case queue.PreviousClip:
		telemetry.RecordAdvance("previous")
	case queue.CurrentClipReplaced, queue.CurrentClipForceReplaced:
		telemetry.RecordAdvance("replaced")
	case queue.AutoplaySet:
		if ev.Enabled && !prev.Autoplay {
			e.resolveAutoplay()
		}
	case queue.ClipDetailsFetched:
		if ev.ID == cur.CurrentID {
			e.armForCurrent()
		}
	}
	if cur.CurrentID != prev.CurrentID || !cur.Autoplay {
		e.stopPlayout()
	}
	if cur.CurrentID != prev.CurrentID {
		e.resolveAutoplay()
	}
	if cur.Highlighted != "" && cur.Highlighted != prev.Highlighted {
		e.pulseHighlight(cur.Highlighted)
	}
	telemetry.SetQueueDepth(len(cur.QueueIDs))
}

func (e *Engine) publish() {
	st := e.state
	e.snap.Store(&st)
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- st:
		default:
			// Slow subscriber: replace the stale snapshot with the latest.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- st:
			default:
			}
		}
	}
}

// Snapshot returns the latest state. The value shares no memory with the engine's copy and must
// be treated as read-only.
func (e *Engine) Snapshot() queue.State { return *e.snap.Load() }

// Subscribe returns a channel receiving every new state, dropping intermediate states for slow
// readers. The current state is delivered first. cancel releases the subscription.
func (e *Engine) Subscribe() (states <-chan queue.State, cancel func()) {
	ch := make(chan queue.State, 1)
	ch <- e.Snapshot()
	e.subMu.Lock()
	id := e.nextID
	e.nextID++
	e.subs[id] = ch
	e.subMu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.subMu.Lock()
			delete(e.subs, id)
			e.subMu.Unlock()
		})
	}
}
