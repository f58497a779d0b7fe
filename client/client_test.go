package client

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spuro/spuro/config"
	"github.com/spuro/spuro/entity"
	"github.com/spuro/spuro/entity/storage"
	"github.com/spuro/spuro/entity/watch"
	"github.com/spuro/spuro/errors"
	itesting "github.com/spuro/spuro/internal/testing"
	"github.com/spuro/spuro/server"
)

func newTestClient(t *testing.T, caller string) *Client {
	t.Helper()

	conn := itesting.OpenTestDB(t)
	store := storage.NewSQLStore(conn, nil)
	hub := watch.NewHub(nil)
	t.Cleanup(hub.Close)
	store.SetPublisher(hub)

	cfg := &config.Config{
		Server: config.ServerConfig{
			CallerHeader:    config.DefaultCallerHeader,
			MaxPayloadBytes: config.DefaultMaxPayload,
		},
	}
	srv := server.New(cfg, conn, store, hub, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return New(config.ClientConfig{
		BaseURL:        ts.URL,
		Caller:         caller,
		TimeoutSeconds: 5,
	})
}

func TestCreateGetRoundTrip(t *testing.T) {
	c := newTestClient(t, "alice")
	ctx := context.Background()

	created, err := c.Create(ctx, []byte("hello"), "text/plain",
		map[string]entity.Value{"name": entity.String("widget")}, time.Hour)
	require.NoError(t, err)
	assert.True(t, entity.ValidKey(created.Key))

	got, err := c.Get(ctx, created.Key)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got.Payload)
	assert.Equal(t, entity.Owner("alice"), got.Owner)
}

func TestGetUnknownIsNotFound(t *testing.T) {
	c := newTestClient(t, "alice")
	_, err := c.Get(context.Background(), "0xdeadbeef")
	assert.True(t, errors.IsNotFound(err))
}

func TestMutationWithoutCallerIsInvalid(t *testing.T) {
	c := newTestClient(t, "")
	_, err := c.Create(context.Background(), nil, "", nil, time.Hour)
	assert.True(t, errors.IsInvalidInput(err))
}

func TestUpdateByNonOwnerIsForbidden(t *testing.T) {
	alice := newTestClient(t, "alice")
	ctx := context.Background()
	created, err := alice.Create(ctx, []byte("x"), "", nil, time.Hour)
	require.NoError(t, err)

	mallory := New(config.ClientConfig{BaseURL: alice.BaseURL(), Caller: "mallory", TimeoutSeconds: 5})
	payload := []byte("taken")
	err = mallory.Update(ctx, created.Key, UpdateRequest{Payload: &payload})
	assert.True(t, errors.IsForbidden(err))
}

func TestExistsAndDelete(t *testing.T) {
	c := newTestClient(t, "alice")
	ctx := context.Background()
	created, err := c.Create(ctx, []byte("x"), "", nil, time.Hour)
	require.NoError(t, err)

	ok, err := c.Exists(ctx, created.Key)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Delete(ctx, created.Key))

	ok, err = c.Exists(ctx, created.Key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetPayloadContentType(t *testing.T) {
	c := newTestClient(t, "alice")
	ctx := context.Background()
	created, err := c.Create(ctx, []byte(`{"a":1}`), "application/json", nil, time.Hour)
	require.NoError(t, err)

	body, contentType, err := c.GetPayload(ctx, created.Key)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":1}`), body)
	assert.Equal(t, "application/json", contentType)
}

func TestQueryFilterAndOrder(t *testing.T) {
	c := newTestClient(t, "alice")
	ctx := context.Background()
	for i, name := range []string{"carol", "alice", "dave"} {
		_, err := c.Create(ctx, nil, "", map[string]entity.Value{
			"name": entity.String(name),
			"rank": entity.Int(int64(i)),
		}, time.Hour)
		require.NoError(t, err)
	}

	result, err := c.Query(ctx, `rank > 0`, "name:string", 10, false)
	require.NoError(t, err)
	require.Equal(t, 2, result.Count)
	first, _ := result.Entities[0].Attr("name")
	name, _ := first.Str()
	assert.Equal(t, "alice", name)
}

func TestQueryParseErrorIsInvalid(t *testing.T) {
	c := newTestClient(t, "alice")
	_, err := c.Query(context.Background(), `name =`, "", 0, false)
	assert.True(t, errors.IsInvalidInput(err))
}

func TestTransferHandoff(t *testing.T) {
	alice := newTestClient(t, "alice")
	ctx := context.Background()
	created, err := alice.Create(ctx, nil, "", nil, time.Hour)
	require.NoError(t, err)

	require.NoError(t, alice.Transfer(ctx, created.Key, "bob"))

	err = alice.Delete(ctx, created.Key)
	assert.True(t, errors.IsForbidden(err))

	bob := New(config.ClientConfig{BaseURL: alice.BaseURL(), Caller: "bob", TimeoutSeconds: 5})
	assert.NoError(t, bob.Delete(ctx, created.Key))
}

func TestUnreachableServerIsUnavailable(t *testing.T) {
	c := New(config.ClientConfig{BaseURL: "http://127.0.0.1:1", TimeoutSeconds: 1})
	err := c.Health(context.Background())
	assert.True(t, errors.IsUnavailable(err))
}

func TestWatchStreamsEvents(t *testing.T) {
	c := newTestClient(t, "alice")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := c.Watch(ctx, []entity.EventKind{entity.EventCreated})
	require.NoError(t, err)
	defer stream.Close()

	created, err := c.Create(ctx, []byte("x"), "", nil, time.Hour)
	require.NoError(t, err)

	select {
	case ev := <-stream.Events():
		assert.Equal(t, entity.EventCreated, ev.Kind)
		assert.Equal(t, created.Key, ev.Key)
	case err := <-stream.Err():
		t.Fatalf("stream error: %v", err)
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}
