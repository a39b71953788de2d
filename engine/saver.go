package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/onnwee/clipqueue/queue"
	"github.com/onnwee/clipqueue/telemetry"
)

const saveTimeout = 5 * time.Second

// saver writes states in the background. Saves coalesce: a write in progress is followed by one
// write of the latest state, never by a backlog.
type saver struct {
	store Store
	log   *slog.Logger

	mu      sync.Mutex
	pending *queue.Persisted
	kick    chan struct{}
}

func newSaver(store Store, log *slog.Logger) *saver {
	return &saver{store: store, log: log, kick: make(chan struct{}, 1)}
}

func (s *saver) save(p queue.Persisted) {
	s.mu.Lock()
	s.pending = &p
	s.mu.Unlock()
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *saver) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			// Final flush on a fresh context.
			fctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
			s.flush(fctx)
			cancel()
			return
		case <-s.kick:
			s.flush(ctx)
		}
	}
}

func (s *saver) flush(ctx context.Context) {
	s.mu.Lock()
	p := s.pending
	s.pending = nil
	s.mu.Unlock()
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, saveTimeout)
	defer cancel()
	err := s.store.Save(ctx, *p)
	telemetry.RecordStateSave(err == nil)
	if err != nil {
		s.log.Warn("failed to save queue state", slog.Any("err", err))
		// Keep the state for the next flush unless a newer one arrived.
		s.mu.Lock()
		if s.pending == nil {
			s.pending = p
		}
		s.mu.Unlock()
	}
}
