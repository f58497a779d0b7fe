package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spuro/spuro/db"
	"github.com/spuro/spuro/entity"
	"github.com/spuro/spuro/errors"
)

// recordingHub captures published events in order, assigning sequence
// numbers the way the real hub does.
type recordingHub struct {
	mu  sync.Mutex
	seq int64
	evs []entity.Event
}

func (h *recordingHub) Publish(ev entity.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	ev.Seq = h.seq
	h.evs = append(h.evs, ev)
}

func (h *recordingHub) events() []entity.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]entity.Event, len(h.evs))
	copy(out, h.evs)
	return out
}

func (h *recordingHub) kinds() []entity.EventKind {
	var kinds []entity.EventKind
	for _, ev := range h.events() {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

func newTestStore(t *testing.T) (*SQLStore, *recordingHub) {
	t.Helper()

	conn, err := db.Open(filepath.Join(t.TempDir(), "spuro_test.db"), nil)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.Migrate(conn, nil); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}

	store := NewSQLStore(conn, nil)
	hub := &recordingHub{}
	store.SetPublisher(hub)
	return store, hub
}

func mustCreate(t *testing.T, store *SQLStore, owner entity.Owner, attrs map[string]entity.Value) *entity.Entity {
	t.Helper()
	e, err := store.Create(context.Background(), owner, []byte("payload"), "text/plain", attrs, time.Hour)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	return e
}

func TestCreateAndGet(t *testing.T) {
	store, hub := newTestStore(t)
	ctx := context.Background()

	attrs := map[string]entity.Value{
		"name": entity.String("alice"),
		"age":  entity.Int(30),
		"vip":  entity.Bool(true),
	}
	created, err := store.Create(ctx, "owner-1", []byte("hello"), "text/plain", attrs, time.Hour)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if !entity.ValidKey(created.Key) {
		t.Errorf("minted key %q has wrong shape", created.Key)
	}

	got, err := store.Get(ctx, created.Key)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Owner != "owner-1" {
		t.Errorf("owner = %q, want owner-1", got.Owner)
	}
	if string(got.Payload) != "hello" {
		t.Errorf("payload = %q, want hello", got.Payload)
	}
	if got.ContentType != "text/plain" {
		t.Errorf("content type = %q, want text/plain", got.ContentType)
	}
	if v, ok := got.Attr("age"); !ok || !v.Equal(entity.Int(30)) {
		t.Errorf("age attribute = %v (present=%v), want 30", v, ok)
	}
	if v, ok := got.Attr("vip"); !ok || !v.Equal(entity.Bool(true)) {
		t.Errorf("vip attribute = %v (present=%v), want true", v, ok)
	}

	evs := hub.events()
	if len(evs) != 1 || evs[0].Kind != entity.EventCreated || evs[0].Key != created.Key {
		t.Errorf("events = %+v, want one created event for %s", evs, created.Key)
	}
}

func TestCreateDefaultsContentType(t *testing.T) {
	store, _ := newTestStore(t)

	created, err := store.Create(context.Background(), "owner-1", nil, "", nil, time.Hour)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	got, err := store.Get(context.Background(), created.Key)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.ContentType != DefaultContentType {
		t.Errorf("content type = %q, want %q", got.ContentType, DefaultContentType)
	}
}

func TestCreateRejectsBadInput(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Create(ctx, "", nil, "", nil, time.Hour); !errors.IsInvalidInput(err) {
		t.Errorf("empty owner: err = %v, want InvalidInput", err)
	}
	if _, err := store.Create(ctx, "owner-1", nil, "", nil, 0); !errors.IsInvalidInput(err) {
		t.Errorf("zero ttl: err = %v, want InvalidInput", err)
	}
	if _, err := store.Create(ctx, "owner-1", nil, "", nil, -time.Minute); !errors.IsInvalidInput(err) {
		t.Errorf("negative ttl: err = %v, want InvalidInput", err)
	}
}

func TestGetUnknownKeyIsNotFound(t *testing.T) {
	store, _ := newTestStore(t)

	key, _ := entity.MintKey()
	if _, err := store.Get(context.Background(), key); !errors.IsNotFound(err) {
		t.Errorf("Get(unknown) err = %v, want NotFound", err)
	}
}

func TestExists(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	e := mustCreate(t, store, "owner-1", nil)
	ok, err := store.Exists(ctx, e.Key)
	if err != nil || !ok {
		t.Errorf("Exists(live) = (%v, %v), want (true, nil)", ok, err)
	}

	unknown, _ := entity.MintKey()
	ok, err = store.Exists(ctx, unknown)
	if err != nil || ok {
		t.Errorf("Exists(unknown) = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestUpdateFields(t *testing.T) {
	store, hub := newTestStore(t)
	ctx := context.Background()

	e := mustCreate(t, store, "owner-1", map[string]entity.Value{"age": entity.Int(1)})

	payload := []byte("updated")
	contentType := "application/json"
	attrs := map[string]entity.Value{"age": entity.Int(2)}
	err := store.Update(ctx, e.Key, "owner-1", UpdateFields{
		Payload:     &payload,
		ContentType: &contentType,
		Attributes:  &attrs,
	})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	got, err := store.Get(ctx, e.Key)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if string(got.Payload) != "updated" {
		t.Errorf("payload = %q, want updated", got.Payload)
	}
	if got.ContentType != "application/json" {
		t.Errorf("content type = %q, want application/json", got.ContentType)
	}
	if v, _ := got.Attr("age"); !v.Equal(entity.Int(2)) {
		t.Errorf("age = %v, want 2", v)
	}

	kinds := hub.kinds()
	want := []entity.EventKind{entity.EventCreated, entity.EventUpdated}
	if len(kinds) != len(want) || kinds[0] != want[0] || kinds[1] != want[1] {
		t.Errorf("event kinds = %v, want %v", kinds, want)
	}
}

func TestUpdateAttributesReplaceWholesale(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	e := mustCreate(t, store, "owner-1", map[string]entity.Value{
		"name": entity.String("alice"),
		"age":  entity.Int(30),
	})

	attrs := map[string]entity.Value{"city": entity.String("oslo")}
	if err := store.Update(ctx, e.Key, "owner-1", UpdateFields{Attributes: &attrs}); err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	got, err := store.Get(ctx, e.Key)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if _, ok := got.Attr("name"); ok {
		t.Error("old attribute name survived a wholesale replace")
	}
	if v, ok := got.Attr("city"); !ok || !v.Equal(entity.String("oslo")) {
		t.Errorf("city = %v (present=%v), want oslo", v, ok)
	}
}

func TestUpdateTTLRestartsLifetimeFromNow(t *testing.T) {
	store, hub := newTestStore(t)
	ctx := context.Background()

	base := time.Now()
	store.now = func() time.Time { return base }
	e := mustCreate(t, store, "owner-1", nil)

	// Halfway through the original hour, extend by an hour: expiry must be
	// measured from the extension instant, not stacked on the old expiry.
	store.now = func() time.Time { return base.Add(30 * time.Minute) }
	ttl := time.Hour
	if err := store.Update(ctx, e.Key, "owner-1", UpdateFields{TTL: &ttl}); err != nil {
		t.Fatalf("Update(TTL) error: %v", err)
	}

	got, err := store.Get(ctx, e.Key)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	wantExpiry := base.Add(30 * time.Minute).Add(time.Hour)
	if !got.ExpiresAt.Equal(wantExpiry) {
		t.Errorf("expires_at = %v, want %v", got.ExpiresAt, wantExpiry)
	}

	kinds := hub.kinds()
	if len(kinds) != 2 || kinds[1] != entity.EventExtended {
		t.Errorf("event kinds = %v, want [created extended]", kinds)
	}
}

func TestUpdateAuthorization(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	e := mustCreate(t, store, "owner-1", nil)
	payload := []byte("x")

	if err := store.Update(ctx, e.Key, "intruder", UpdateFields{Payload: &payload}); !errors.IsForbidden(err) {
		t.Errorf("non-owner update err = %v, want Forbidden", err)
	}

	// Forbidden must not leak a change.
	got, _ := store.Get(ctx, e.Key)
	if string(got.Payload) != "payload" {
		t.Errorf("payload after forbidden update = %q, want unchanged", got.Payload)
	}
}

func TestUpdateEmptyFieldsIsInvalid(t *testing.T) {
	store, _ := newTestStore(t)

	e := mustCreate(t, store, "owner-1", nil)
	if err := store.Update(context.Background(), e.Key, "owner-1", UpdateFields{}); !errors.IsInvalidInput(err) {
		t.Errorf("empty update err = %v, want InvalidInput", err)
	}
}

func TestDeleteTombstonesKey(t *testing.T) {
	store, hub := newTestStore(t)
	ctx := context.Background()

	e := mustCreate(t, store, "owner-1", nil)

	if err := store.Delete(ctx, e.Key, "intruder"); !errors.IsForbidden(err) {
		t.Errorf("non-owner delete err = %v, want Forbidden", err)
	}
	if err := store.Delete(ctx, e.Key, "owner-1"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	if _, err := store.Get(ctx, e.Key); !errors.IsNotFound(err) {
		t.Errorf("Get(deleted) err = %v, want NotFound", err)
	}
	if err := store.Delete(ctx, e.Key, "owner-1"); !errors.IsNotFound(err) {
		t.Errorf("second delete err = %v, want NotFound", err)
	}

	var taken bool
	if err := store.db.QueryRow(keyTakenQuery, e.Key, e.Key).Scan(&taken); err != nil {
		t.Fatalf("tombstone check: %v", err)
	}
	if !taken {
		t.Error("deleted key not tombstoned; it could be reissued")
	}

	kinds := hub.kinds()
	if len(kinds) != 2 || kinds[1] != entity.EventDeleted {
		t.Errorf("event kinds = %v, want [created deleted]", kinds)
	}
}

func TestTransferOwnership(t *testing.T) {
	store, hub := newTestStore(t)
	ctx := context.Background()

	e := mustCreate(t, store, "alice", nil)

	if err := store.TransferOwnership(ctx, e.Key, "bob", "bob"); !errors.IsForbidden(err) {
		t.Errorf("non-owner transfer err = %v, want Forbidden", err)
	}
	if err := store.TransferOwnership(ctx, e.Key, "alice", "alice"); !errors.IsInvalidInput(err) {
		t.Errorf("self-transfer err = %v, want InvalidInput", err)
	}
	if err := store.TransferOwnership(ctx, e.Key, "alice", ""); !errors.IsInvalidInput(err) {
		t.Errorf("empty target err = %v, want InvalidInput", err)
	}

	if err := store.TransferOwnership(ctx, e.Key, "alice", "bob"); err != nil {
		t.Fatalf("TransferOwnership() error: %v", err)
	}

	// Old owner immediately loses, new owner immediately gains rights.
	payload := []byte("x")
	if err := store.Update(ctx, e.Key, "alice", UpdateFields{Payload: &payload}); !errors.IsForbidden(err) {
		t.Errorf("old owner update err = %v, want Forbidden", err)
	}
	if err := store.Update(ctx, e.Key, "bob", UpdateFields{Payload: &payload}); err != nil {
		t.Errorf("new owner update err = %v, want nil", err)
	}

	evs := hub.events()
	var transfer *entity.Event
	for i := range evs {
		if evs[i].Kind == entity.EventOwnerChanged {
			transfer = &evs[i]
		}
	}
	if transfer == nil {
		t.Fatal("no owner_changed event published")
	}
	if transfer.Owner != "bob" || transfer.OldOwner != "alice" {
		t.Errorf("owner_changed event = %+v, want owner bob, old owner alice", transfer)
	}
}

func TestExpiredEntityIsInvisible(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	base := time.Now()
	store.now = func() time.Time { return base }
	e := mustCreate(t, store, "owner-1", nil)

	// Exactly at the expiry instant the entity is already gone: visibility
	// is now < expires_at, not <=.
	store.now = func() time.Time { return base.Add(time.Hour) }

	if _, err := store.Get(ctx, e.Key); !errors.IsNotFound(err) {
		t.Errorf("Get(expired) err = %v, want NotFound", err)
	}
	ok, err := store.Exists(ctx, e.Key)
	if err != nil || ok {
		t.Errorf("Exists(expired) = (%v, %v), want (false, nil)", ok, err)
	}
	payload := []byte("x")
	if err := store.Update(ctx, e.Key, "owner-1", UpdateFields{Payload: &payload}); !errors.IsNotFound(err) {
		t.Errorf("Update(expired) err = %v, want NotFound", err)
	}
	if err := store.Delete(ctx, e.Key, "owner-1"); !errors.IsNotFound(err) {
		t.Errorf("Delete(expired) err = %v, want NotFound", err)
	}
	if err := store.TransferOwnership(ctx, e.Key, "owner-1", "owner-2"); !errors.IsNotFound(err) {
		t.Errorf("TransferOwnership(expired) err = %v, want NotFound", err)
	}

	results, err := store.Search(ctx, "", "", 100)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	for _, got := range results {
		if got.Key == e.Key {
			t.Error("expired entity appeared in search results")
		}
	}
}

func TestSearchFilterSortLimit(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for _, row := range []struct {
		name string
		age  int64
	}{
		{"alice", 30}, {"bob", 20}, {"carol", 40}, {"dave", 25},
	} {
		mustCreate(t, store, "owner-1", map[string]entity.Value{
			"name": entity.String(row.name),
			"age":  entity.Int(row.age),
		})
	}

	results, err := store.Search(ctx, `age > 21`, "age:int:desc", 10)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	var names []string
	for _, e := range results {
		v, _ := e.Attr("name")
		s, _ := v.Str()
		names = append(names, s)
	}
	want := []string{"carol", "alice", "dave"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names = %v, want %v", names, want)
		}
	}

	// Limit stops the scan; creation order without a sort spec.
	limited, err := store.Search(ctx, "", "", 2)
	if err != nil {
		t.Fatalf("Search(limit) error: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("limited results = %d, want 2", len(limited))
	}
	v, _ := limited[0].Attr("name")
	if s, _ := v.Str(); s != "alice" {
		t.Errorf("first result = %q, want alice (creation order)", s)
	}
}

func TestSearchParseErrorIsInvalidInput(t *testing.T) {
	store, _ := newTestStore(t)

	mustCreate(t, store, "owner-1", nil)
	if _, err := store.Search(context.Background(), `age >`, "", 10); !errors.IsInvalidInput(err) {
		t.Errorf("malformed query err = %v, want InvalidInput", err)
	}
}

func TestOpenCursorIsLazy(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	first := mustCreate(t, store, "owner-1", nil)
	mustCreate(t, store, "owner-1", nil)

	cur, err := store.OpenCursor("", "", 1)
	if err != nil {
		t.Fatalf("OpenCursor() error: %v", err)
	}
	e, err := cur.Next(ctx)
	if err != nil {
		t.Fatalf("Next() error: %v", err)
	}
	if e == nil || e.Key != first.Key {
		t.Errorf("first cursor result = %v, want %s", e, first.Key)
	}
	e, err = cur.Next(ctx)
	if err != nil || e != nil {
		t.Errorf("exhausted cursor = (%v, %v), want (nil, nil)", e, err)
	}
}
