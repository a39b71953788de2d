package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/onnwee/clipqueue/queue"
)

// RedisStore keeps the queue under "clipqueue:<key>:state" and its schema version under
// "clipqueue:<key>:version". Every save publishes the new version on "clipqueue:<key>:changed".
type RedisStore struct {
	Client *redis.Client
	Key    string
}

// NewRedisStore connects to the Redis server at url (redis://host:port/db).
func NewRedisStore(ctx context.Context, url, key string) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	c := redis.NewClient(opt)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{Client: c, Key: key}, nil
}

func (s *RedisStore) stateKey() string   { return "clipqueue:" + s.Key + ":state" }
func (s *RedisStore) versionKey() string { return "clipqueue:" + s.Key + ":version" }

// ChangesChannel is the pub/sub channel announcing saves.
func (s *RedisStore) ChangesChannel() string { return "clipqueue:" + s.Key + ":changed" }

// Load returns the stored queue, or nil when nothing is stored.
func (s *RedisStore) Load(ctx context.Context) (*queue.Persisted, error) {
	vals, err := s.Client.MGet(ctx, s.versionKey(), s.stateKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("load queue state: %w", err)
	}
	vs, _ := vals[0].(string)
	raw, _ := vals[1].(string)
	if raw == "" {
		return nil, nil
	}
	version, err := strconv.Atoi(vs)
	if err != nil {
		// State written before the version key existed.
		version = 1
	}
	return decode(version, []byte(raw))
}

// Save writes the queue and announces the change.
func (s *RedisStore) Save(ctx context.Context, p queue.Persisted) error {
	raw, err := encode(p)
	if err != nil {
		return err
	}
	note, _ := json.Marshal(map[string]any{"version": p.Version, "current": p.State.CurrentID, "pending": len(p.State.QueueIDs)})
	_, err = s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.versionKey(), p.Version, 0)
		pipe.Set(ctx, s.stateKey(), raw, 0)
		pipe.Publish(ctx, s.ChangesChannel(), note)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save queue state: %w", err)
	}
	return nil
}

// Close releases the client.
func (s *RedisStore) Close() error {
	if err := s.Client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return nil
}
