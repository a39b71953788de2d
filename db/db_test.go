package db

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/onnwee/clipqueue/queue"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set; skipping postgres test")
	}
	db, err := Connect(dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	channel := "test_store_round_trip"
	t.Cleanup(func() {
		_, _ = db.ExecContext(context.Background(), `DELETE FROM queue_state WHERE channel=$1`, channel)
	})
	store := &PostgresStore{DB: db, Channel: channel}

	p, err := store.Load(ctx)
	if err != nil || p != nil {
		t.Fatalf("Load() on empty table = %v, %v; want nil, nil", p, err)
	}

	want := sampleState()
	for i := 0; i < 2; i++ {
		if err := store.Save(ctx, queue.Persisted{Version: queue.SchemaVersion, State: want}); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	assertSameQueue(t, want, got)
}
