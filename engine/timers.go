package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// timers owns every running timer. State refers to a timer only by its token, so a stored or
// copied state never holds a live handle.
type timers struct {
	mu sync.Mutex
	m  map[string]*time.Timer
}

func newTimers() *timers { return &timers{m: map[string]*time.Timer{}} }

// start runs fire(token) after d and returns the token.
func (t *timers) start(d time.Duration, fire func(token string)) string {
	token := uuid.NewString()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.m[token] = time.AfterFunc(d, func() {
		t.mu.Lock()
		_, live := t.m[token]
		delete(t.m, token)
		t.mu.Unlock()
		if live {
			fire(token)
		}
	})
	return token
}

// stop cancels the timer for token. Unknown tokens are ignored.
func (t *timers) stop(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if tm, ok := t.m[token]; ok {
		tm.Stop()
		delete(t.m, token)
	}
}

func (t *timers) stopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for token, tm := range t.m {
		tm.Stop()
		delete(t.m, token)
	}
}

func (t *timers) active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.m)
}
