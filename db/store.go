package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/onnwee/clipqueue/queue"
)

// encode and decode share the persisted JSON layout across all stores.
func encode(p queue.Persisted) ([]byte, error) {
	b, err := json.Marshal(p.State)
	if err != nil {
		return nil, fmt.Errorf("encode queue state: %w", err)
	}
	return b, nil
}

func decode(version int, raw []byte) (*queue.Persisted, error) {
	var st queue.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode queue state: %w", err)
	}
	return &queue.Persisted{Version: version, State: st}, nil
}

// PostgresStore keeps one queue per channel in the queue_state table.
type PostgresStore struct {
	DB      *sql.DB
	Channel string
}

// Load returns the stored queue, or nil when the channel has none.
func (s *PostgresStore) Load(ctx context.Context) (*queue.Persisted, error) {
	var (
		version int
		raw     []byte
	)
	err := s.DB.QueryRowContext(ctx, `SELECT version, state FROM queue_state WHERE channel=$1`, s.Channel).Scan(&version, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load queue state: %w", err)
	}
	return decode(version, raw)
}

// Save upserts the queue for the channel.
func (s *PostgresStore) Save(ctx context.Context, p queue.Persisted) error {
	raw, err := encode(p)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, `INSERT INTO queue_state(channel, version, state, updated_at)
		VALUES($1,$2,$3,NOW())
		ON CONFLICT(channel) DO UPDATE SET
		  version=EXCLUDED.version,
		  state=EXCLUDED.state,
		  updated_at=NOW()`, s.Channel, p.Version, raw)
	if err != nil {
		return fmt.Errorf("save queue state: %w", err)
	}
	return nil
}

// MemoryStore keeps the queue in process memory. State does not survive a restart.
type MemoryStore struct {
	mu      sync.Mutex
	version int
	raw     []byte
}

// Load returns a decoded copy of the last saved queue.
func (m *MemoryStore) Load(context.Context) (*queue.Persisted, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.raw == nil {
		return nil, nil
	}
	return decode(m.version, m.raw)
}

// Save stores an encoded copy of p.
func (m *MemoryStore) Save(_ context.Context, p queue.Persisted) error {
	raw, err := encode(p)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.version, m.raw = p.Version, raw
	m.mu.Unlock()
	return nil
}
