package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onnwee/clipqueue/command"
	"github.com/onnwee/clipqueue/config"
	"github.com/onnwee/clipqueue/engine"
	"github.com/onnwee/clipqueue/queue"
)

type fakeEngine struct {
	mu       sync.Mutex
	state    queue.State
	ready    chan struct{}
	states   chan queue.State
	executed []command.Command
	who      []command.Identity
	execErr  error
	ended    []string
	imported []string
	tag      string
}

func newFakeEngine() *fakeEngine {
	st := queue.New()
	st.ByID["youtube:a"] = queue.Clip{ID: "youtube:a", Submitters: []string{"alice"}, Seq: 1, Metadata: queue.Metadata{Title: "A"}}
	st.ByID["youtube:b"] = queue.Clip{ID: "youtube:b", Submitters: []string{"bob"}, Seq: 2, Metadata: queue.Metadata{Title: "B"}}
	st.ByID["youtube:old"] = queue.Clip{ID: "youtube:old", Submitters: []string{"[import:vip]"}, IsWatched: true, Metadata: queue.Metadata{Title: "Old"}}
	st.CurrentID = "youtube:a"
	st.QueueIDs = []string{"youtube:b"}
	st.HistoryIDs = []string{"youtube:a", "youtube:old"}
	st.WatchedCounts = map[string]int{"alice": 3, "[import:vip]": 9, "bob": 1}
	st.CurrentSkipVoters = []string{"x"}
	st.Providers = []string{"youtube"}
	ready := make(chan struct{})
	close(ready)
	return &fakeEngine{state: st, ready: ready, states: make(chan queue.State, 4)}
}

func (f *fakeEngine) Ready() <-chan struct{} { return f.ready }

func (f *fakeEngine) Snapshot() queue.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeEngine) Subscribe() (<-chan queue.State, func()) {
	ch := make(chan queue.State, 1)
	ch <- f.Snapshot()
	go func() {
		for st := range f.states {
			ch <- st
		}
	}()
	return ch, func() {}
}

func (f *fakeEngine) Execute(_ context.Context, cmd command.Command, who command.Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.execErr != nil {
		return f.execErr
	}
	f.executed = append(f.executed, cmd)
	f.who = append(f.who, who)
	return nil
}

func (f *fakeEngine) Import(_ context.Context, urls []string, tag string) (engine.ImportResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imported = append(f.imported, urls...)
	f.tag = tag
	return engine.ImportResult{Outcomes: map[engine.Outcome]int{engine.Accepted: len(urls)}, Accepted: len(urls)}, nil
}

func (f *fakeEngine) Playback(_ context.Context, id string) (engine.Playback, error) {
	if _, ok := f.Snapshot().ByID[id]; !ok {
		return engine.Playback{}, engine.ErrUnknownClip
	}
	return engine.Playback{ID: id, EmbedURL: "https://www.youtube.com/embed/" + strings.TrimPrefix(id, "youtube:")}, nil
}

func (f *fakeEngine) PlayerEnded(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended = append(f.ended, id)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{RateLimitEnabled: true, RateLimitRequests: 100, RateLimitWindow: time.Minute, CORSPermissive: true}
}

func newTestRouter(t *testing.T, fe *fakeEngine, ping func(context.Context) error, cfg *config.Config) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewRouter(ctx, Deps{Engine: fe, Ping: ping}, cfg)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthzOK(t *testing.T) {
	rr := do(t, newTestRouter(t, newFakeEngine(), nil, testConfig()), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get("X-Correlation-ID"))
}

func TestReadyz(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		rr := do(t, newTestRouter(t, newFakeEngine(), func(context.Context) error { return nil }, testConfig()), http.MethodGet, "/readyz", "")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"status":"ready"}`, rr.Body.String())
	})
	t.Run("engine restoring", func(t *testing.T) {
		fe := newFakeEngine()
		fe.ready = make(chan struct{})
		rr := do(t, newTestRouter(t, fe, nil, testConfig()), http.MethodGet, "/readyz", "")
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.Contains(t, rr.Body.String(), `"failed_check":"engine"`)
	})
	t.Run("backend down", func(t *testing.T) {
		ping := func(context.Context) error { return errors.New("connection refused") }
		rr := do(t, newTestRouter(t, newFakeEngine(), ping, testConfig()), http.MethodGet, "/readyz", "")
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.Contains(t, rr.Body.String(), `"failed_check":"state_backend"`)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	rr := do(t, newTestRouter(t, newFakeEngine(), nil, testConfig()), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestQueueView(t *testing.T) {
	rr := do(t, newTestRouter(t, newFakeEngine(), nil, testConfig()), http.MethodGet, "/queue", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var v queueView
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v))
	require.NotNil(t, v.Current)
	assert.Equal(t, "youtube:a", v.Current.ID)
	require.Len(t, v.Queue, 1)
	assert.Equal(t, "youtube:b", v.Queue[0].ID)
	assert.Equal(t, 2, v.Queue[0].Seq)
	require.Len(t, v.History, 1, "current clip is not repeated in history")
	assert.Equal(t, "youtube:old", v.History[0].ID)
	assert.Equal(t, 1, v.SkipVotes)
	assert.Equal(t, []string{"youtube"}, v.Providers)

	rr = do(t, newTestRouter(t, newFakeEngine(), nil, testConfig()), http.MethodGet, "/queue?history=0", "")
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v))
	assert.Empty(t, v.History)
}

func TestLeaderboardHidesImports(t *testing.T) {
	rr := do(t, newTestRouter(t, newFakeEngine(), nil, testConfig()), http.MethodGet, "/queue/leaderboard?limit=5", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Submitters []queue.SubmitterCount `json:"submitters"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, []queue.SubmitterCount{{Name: "alice", Count: 3}, {Name: "bob", Count: 1}}, body.Submitters)
}

func TestPlayback(t *testing.T) {
	h := newTestRouter(t, newFakeEngine(), nil, testConfig())

	rr := do(t, h, http.MethodGet, "/clips/youtube:b/playback", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"id":"youtube:b","embedUrl":"https://www.youtube.com/embed/b"}`, rr.Body.String())

	rr = do(t, h, http.MethodGet, "/clips/youtube:missing/playback", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPlayerEnded(t *testing.T) {
	fe := newFakeEngine()
	h := newTestRouter(t, fe, nil, testConfig())

	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodPost, "/player/ended", `{"id":"youtube:a"}`).Code)
	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodPost, "/player/ended", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/player/ended", `{"id":`).Code)
	assert.Equal(t, []string{"youtube:a", ""}, fe.ended)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/player/ended", "").Code)
}

func TestAdminCommand(t *testing.T) {
	fe := newFakeEngine()
	h := newTestRouter(t, fe, nil, testConfig())

	rr := do(t, h, http.MethodPost, "/admin/command", `{"command":"skip"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, fe.executed, 1)
	assert.Equal(t, command.Skip, fe.executed[0].Kind)
	assert.Equal(t, command.Identity{Name: "admin", Broadcaster: true}, fe.who[0])

	rr = do(t, h, http.MethodPost, "/admin/command", `{"command":"limit 3","user":"ModJane"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"3"}, fe.executed[1].Args)
	assert.Equal(t, "ModJane", fe.who[1].Name)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/admin/command", `{"command":"dance"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/admin/command", `not json`).Code)

	fe.execErr = engine.ErrInvalidArgument
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/admin/command", `{"command":"bump x"}`).Code)
	fe.execErr = engine.ErrStopped
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodPost, "/admin/command", `{"command":"next"}`).Code)
}

func TestAdminImport(t *testing.T) {
	fe := newFakeEngine()
	h := newTestRouter(t, fe, nil, testConfig())

	rr := do(t, h, http.MethodPost, "/admin/import", `{"urls":["https://youtu.be/x","https://youtu.be/y"],"tag":"vip"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var res engine.ImportResult
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	assert.Equal(t, 2, res.Accepted)
	assert.Equal(t, "vip", fe.tag)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/admin/import", `{"urls":[]}`).Code)
}

func TestAdminRoutesRequireAuth(t *testing.T) {
	cfg := testConfig()
	cfg.AdminToken = "s3cret"
	h := newTestRouter(t, newFakeEngine(), nil, cfg)

	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/admin/command", `{"command":"skip"}`).Code)

	req := httptest.NewRequest(http.MethodPost, "/admin/command", strings.NewReader(`{"command":"skip"}`))
	req.Header.Set("X-Admin-Token", "s3cret")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	// Public routes stay open.
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/queue", "").Code)
}

func TestAdminRoutesRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRequests = 2
	h := newTestRouter(t, newFakeEngine(), nil, cfg)

	codes := []int{}
	for i := 0; i < 3; i++ {
		codes = append(codes, do(t, h, http.MethodPost, "/admin/command", `{"command":"open"}`).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestWebsocketStreamsState(t *testing.T) {
	fe := newFakeEngine()
	srv := httptest.NewServer(newTestRouter(t, fe, nil, testConfig()))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var msg wsMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "state", msg.Type)
	require.NotNil(t, msg.Data.Current)
	assert.Equal(t, "youtube:a", msg.Data.Current.ID)

	next := fe.Snapshot()
	next.CurrentID = "youtube:b"
	next.QueueIDs = nil
	fe.states <- next
	require.NoError(t, conn.ReadJSON(&msg))
	require.NotNil(t, msg.Data.Current)
	assert.Equal(t, "youtube:b", msg.Data.Current.ID)
	assert.Empty(t, msg.Data.Queue)
}

func TestWebsocketRejectsForeignOrigin(t *testing.T) {
	cfg := testConfig()
	cfg.CORSPermissive = false
	cfg.CORSAllowedOrigins = []string{"https://overlay.example"}
	srv := httptest.NewServer(newTestRouter(t, newFakeEngine(), nil, cfg))
	t.Cleanup(srv.Close)

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestStartAndShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Start(ctx, http.NotFoundHandler(), "127.0.0.1:0") }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
