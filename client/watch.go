package client

import (
	"context"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/spuro/spuro/entity"
	"github.com/spuro/spuro/errors"
)

// EventStream is a live subscription to server lifecycle events.
type EventStream struct {
	conn   *websocket.Conn
	events chan entity.Event
	errs   chan error
}

// Events yields lifecycle events in server commit order. The channel closes
// when the stream ends; consult Err afterwards.
func (s *EventStream) Events() <-chan entity.Event { return s.events }

// Err reports the terminal stream error, if any.
func (s *EventStream) Err() <-chan error { return s.errs }

// Close tears the subscription down.
func (s *EventStream) Close() error {
	return s.conn.Close()
}

// Watch subscribes to /ws/events, optionally restricted to the named event
// kinds. The stream runs until Close, context cancellation, or a transport
// failure.
func (c *Client) Watch(ctx context.Context, kinds []entity.EventKind) (*EventStream, error) {
	wsURL, err := c.eventsURL(kinds)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, errors.WrapUnavailable(err, "connect event stream")
	}

	s := &EventStream{
		conn:   conn,
		events: make(chan entity.Event),
		errs:   make(chan error, 1),
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	go func() {
		defer close(s.events)
		for {
			var ev entity.Event
			if err := conn.ReadJSON(&ev); err != nil {
				if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.errs <- errors.WrapUnavailable(err, "event stream")
				}
				return
			}
			select {
			case s.events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return s, nil
}

func (c *Client) eventsURL(kinds []entity.EventKind) (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", errors.Wrap(err, "parse base URL")
	}
	switch base.Scheme {
	case "http":
		base.Scheme = "ws"
	case "https":
		base.Scheme = "wss"
	default:
		return "", errors.NewInvalidInputf("unsupported scheme %q", base.Scheme)
	}
	base.Path = strings.TrimRight(base.Path, "/") + "/ws/events"

	if len(kinds) > 0 {
		names := make([]string, len(kinds))
		for i, k := range kinds {
			names[i] = string(k)
		}
		q := base.Query()
		q.Set("kinds", strings.Join(names, ","))
		base.RawQuery = q.Encode()
	}
	return base.String(), nil
}
