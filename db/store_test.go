package db

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onnwee/clipqueue/queue"
)

func sampleState() queue.State {
	st := queue.New()
	st.ByID["youtube:a"] = queue.Clip{ID: "youtube:a", Submitters: []string{"alice", "bob"}, Seq: 1, Metadata: queue.Metadata{Title: "A", Duration: 42}}
	st.ByID["kick-clip:b"] = queue.Clip{ID: "kick-clip:b", Submitters: []string{"carol"}, Seq: 2, Metadata: queue.Metadata{Title: "B"}}
	st.QueueIDs = []string{"youtube:a", "kick-clip:b"}
	st.NextSeq = 3
	st.Providers = []string{"youtube", "kick-clip"}
	st.AutoplayDelay = 7 * time.Second
	st.WatchedCounts["dave"] = 4
	return st
}

func assertSameQueue(t *testing.T, want queue.State, got *queue.Persisted) {
	t.Helper()
	require.NotNil(t, got)
	assert.Equal(t, queue.SchemaVersion, got.Version)
	assert.Equal(t, want.QueueIDs, got.State.QueueIDs)
	assert.Equal(t, want.NextSeq, got.State.NextSeq)
	assert.Equal(t, want.Providers, got.State.Providers)
	assert.Equal(t, want.AutoplayDelay, got.State.AutoplayDelay)
	assert.Equal(t, want.WatchedCounts, got.State.WatchedCounts)
	for id, c := range want.ByID {
		g, ok := got.State.ByID[id]
		require.True(t, ok, id)
		assert.Equal(t, c.Submitters, g.Submitters)
		assert.Equal(t, c.Seq, g.Seq)
		assert.Equal(t, c.Title, g.Title)
		assert.Equal(t, c.Duration, g.Duration)
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	var s MemoryStore

	p, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, p)

	st := sampleState()
	require.NoError(t, s.Save(ctx, queue.Persisted{Version: queue.SchemaVersion, State: st}))
	got, err := s.Load(ctx)
	require.NoError(t, err)
	assertSameQueue(t, st, got)

	// Loaded copies are independent of each other.
	got.State.QueueIDs[0] = "changed"
	again, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "youtube:a", again.State.QueueIDs[0])
}

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(context.Background(), "redis://"+mr.Addr()+"/0", "streamer")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t)

	p, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, p)

	st := sampleState()
	require.NoError(t, s.Save(ctx, queue.Persisted{Version: queue.SchemaVersion, State: st}))
	got, err := s.Load(ctx)
	require.NoError(t, err)
	assertSameQueue(t, st, got)

	v, err := mr.Get("clipqueue:streamer:version")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}

func TestRedisStorePublishesChanges(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestRedisStore(t)

	sub := s.Client.Subscribe(ctx, s.ChangesChannel())
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Save(ctx, queue.Persisted{Version: queue.SchemaVersion, State: sampleState()}))

	rctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	msg, err := sub.ReceiveMessage(rctx)
	require.NoError(t, err)
	var note struct {
		Version int `json:"version"`
		Pending int `json:"pending"`
	}
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &note))
	assert.Equal(t, queue.SchemaVersion, note.Version)
	assert.Equal(t, 2, note.Pending)
}

func TestRedisStoreLegacyStateWithoutVersion(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t)

	raw, err := json.Marshal(sampleState())
	require.NoError(t, err)
	require.NoError(t, mr.Set("clipqueue:streamer:state", string(raw)))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.Version)
	assert.Equal(t, []string{"youtube:a", "kick-clip:b"}, got.State.QueueIDs)
}

func TestRedisStoreBadURL(t *testing.T) {
	_, err := NewRedisStore(context.Background(), "not-a-url", "x")
	assert.Error(t, err)
}
