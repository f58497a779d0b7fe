package storage

import (
	"context"
	"testing"
	"time"

	"github.com/spuro/spuro/db"
	"github.com/spuro/spuro/entity"
	"github.com/spuro/spuro/errors"
)

func TestSweepExpiredReclaimsAndTombstones(t *testing.T) {
	store, hub := newTestStore(t)
	ctx := context.Background()

	base := time.Now()
	store.now = func() time.Time { return base }

	short := mustCreate(t, store, "owner-1", nil) // expires in an hour
	store.now = func() time.Time { return base.Add(time.Minute) }
	long, err := store.Create(ctx, "owner-1", nil, "", nil, 48*time.Hour)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	store.now = func() time.Time { return base.Add(2 * time.Hour) }

	n, err := store.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired() error: %v", err)
	}
	if n != 1 {
		t.Fatalf("reclaimed = %d, want 1", n)
	}

	// The swept key is gone forever, the live one untouched.
	if _, err := store.Get(ctx, short.Key); !errors.IsNotFound(err) {
		t.Errorf("Get(swept) err = %v, want NotFound", err)
	}
	if _, err := store.Get(ctx, long.Key); err != nil {
		t.Errorf("Get(live) err = %v, want nil", err)
	}

	var taken bool
	if err := store.db.QueryRow(keyTakenQuery, short.Key, short.Key).Scan(&taken); err != nil {
		t.Fatalf("tombstone check: %v", err)
	}
	if !taken {
		t.Error("swept key not tombstoned")
	}

	var expired *entity.Event
	evs := hub.events()
	for i := range evs {
		if evs[i].Kind == entity.EventExpired {
			expired = &evs[i]
		}
	}
	if expired == nil {
		t.Fatal("no expired event published")
	}
	if expired.Key != short.Key || expired.Owner != "owner-1" {
		t.Errorf("expired event = %+v, want key %s owner owner-1", expired, short.Key)
	}
}

func TestSweepExpiredIsIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	base := time.Now()
	store.now = func() time.Time { return base }
	mustCreate(t, store, "owner-1", nil)
	store.now = func() time.Time { return base.Add(2 * time.Hour) }

	if n, err := store.SweepExpired(ctx); err != nil || n != 1 {
		t.Fatalf("first sweep = (%d, %v), want (1, nil)", n, err)
	}
	if n, err := store.SweepExpired(ctx); err != nil || n != 0 {
		t.Fatalf("second sweep = (%d, %v), want (0, nil)", n, err)
	}
}

func TestSweepUpdatesStats(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	base := time.Now()
	store.now = func() time.Time { return base }
	mustCreate(t, store, "owner-1", nil)
	e := mustCreate(t, store, "owner-1", nil)
	if err := store.Delete(ctx, e.Key, "owner-1"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	store.now = func() time.Time { return base.Add(2 * time.Hour) }

	st, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if st.Live != 0 || st.ExpiredPendingSweep != 1 || st.Tombstones != 1 {
		t.Errorf("stats before sweep = %+v, want live 0, pending 1, tombstones 1", st)
	}

	if _, err := store.SweepExpired(ctx); err != nil {
		t.Fatalf("SweepExpired() error: %v", err)
	}

	st, err = store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if st.Live != 0 || st.ExpiredPendingSweep != 0 || st.Tombstones != 2 {
		t.Errorf("stats after sweep = %+v, want live 0, pending 0, tombstones 2", st)
	}
}

func TestSweeperStartStop(t *testing.T) {
	store, _ := newTestStore(t)

	sw := NewSweeper(store, 10*time.Millisecond)
	sw.Start()
	time.Sleep(30 * time.Millisecond)
	sw.Stop()

	// Stop is safe to call again.
	sw.Stop()
}

func TestSweepOnClosedDatabase(t *testing.T) {
	store, _ := newTestStore(t)
	store.db.Close()

	_, err := store.SweepExpired(context.Background())
	if err == nil {
		t.Fatal("SweepExpired on closed database returned nil error")
	}
	if !db.IsDatabaseClosed(err) {
		t.Errorf("IsDatabaseClosed(%v) = false, want true", err)
	}

	// sweepOnce must swallow the shutdown race without panicking.
	sw := NewSweeper(store, time.Minute)
	sw.sweepOnce(context.Background())
}

func TestEndToEndExpiry(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping real-clock expiry test in short mode")
	}
	store, _ := newTestStore(t)
	ctx := context.Background()

	e, err := store.Create(ctx, "owner-1", nil, "", nil, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if _, err := store.Get(ctx, e.Key); err != nil {
		t.Fatalf("Get(fresh) error: %v", err)
	}

	time.Sleep(150 * time.Millisecond)

	if _, err := store.Get(ctx, e.Key); !errors.IsNotFound(err) {
		t.Errorf("Get after ttl elapsed err = %v, want NotFound", err)
	}
}
