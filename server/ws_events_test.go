package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spuro/spuro/entity"
)

// The event stream must work through the same handler stack Start serves,
// not just the bare mux: the request-timeout wrapper cannot be hijacked,
// so /ws/events has to route around it.
func TestEventStreamThroughServingStack(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/events?kinds=created"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err, "upgrade failed through the serving stack")
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// The subscription registers just after the handshake completes.
	require.Eventually(t, func() bool {
		return s.hub.FilterCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	created := createTestEntity(t, s, "alice", nil)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev entity.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, entity.EventCreated, ev.Kind)
	assert.Equal(t, created.Key, ev.Key)
}

func TestServingStackStillServesAPIRoutes(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/ws/events?kinds=bogus")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
