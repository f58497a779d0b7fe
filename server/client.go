package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/spuro/spuro/entity"
	"github.com/spuro/spuro/entity/watch"
)

// WebSocket timeout constants following Gorilla best practices
const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 4 * 1024

	// Buffered events per subscriber at the transport edge
	sendBuffer = 256
)

// Client is one WebSocket event subscriber. Its watch filter queues events
// engine-side; the send channel is only the transport edge.
type Client struct {
	server    *SpuroServer
	conn      *websocket.Conn
	filter    *watch.Filter
	send      chan entity.Event
	id        string
	closeOnce sync.Once
}

func newClient(s *SpuroServer, conn *websocket.Conn) *Client {
	return &Client{
		server: s,
		conn:   conn,
		send:   make(chan entity.Event, sendBuffer),
		id:     uuid.NewString(),
	}
}

// deliver pushes one event toward the socket. A subscriber that cannot
// drain its buffer loses transport-edge events rather than stalling its
// filter forever.
func (c *Client) deliver(ev entity.Event) {
	select {
	case c.send <- ev:
	default:
		c.server.logger.Warnw("event subscriber send buffer full, dropping event",
			"client_id", c.id,
			"seq", ev.Seq,
		)
	}
}

// readPump consumes control frames until the peer goes away.
func (c *Client) readPump() {
	defer func() {
		c.server.unregisterClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNoStatusReceived,
			) {
				c.server.logger.Warnw("websocket read error",
					"client_id", c.id,
					"error", err,
				)
			}
			return
		}
	}
}

// writePump writes events and pings to the WebSocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.server.ctx.Done():
			return
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				c.server.logger.Debugw("event write error",
					"client_id", c.id,
					"error", err,
				)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// close safely closes the client's send channel.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}
