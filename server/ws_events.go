package server

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"golang.org/x/time/rate"

	"github.com/spuro/spuro/entity"
	"github.com/spuro/spuro/entity/watch"
	"github.com/spuro/spuro/errors"
	"github.com/spuro/spuro/logger"
)

// HandleEventsWebSocket upgrades the connection and streams lifecycle
// events as JSON frames.
// GET /ws/events?kinds=created,deleted&rate=10
//
// Subscription starts at the moment of registration; nothing is replayed.
func (s *SpuroServer) HandleEventsWebSocket(w http.ResponseWriter, r *http.Request) {
	kinds, err := parseKindsParam(r.URL.Query().Get("kinds"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := watch.FilterOptions{Kinds: kinds}
	if s.cfg.Watch.DeliveryRatePerSecond > 0 {
		opts.Rate = rate.Limit(s.cfg.Watch.DeliveryRatePerSecond)
		opts.Burst = s.cfg.Watch.DeliveryBurst
	}

	s.clientsMu.Lock()
	atCapacity := len(s.clients) >= MaxClients
	s.clientsMu.Unlock()
	if atCapacity {
		writeError(w, http.StatusServiceUnavailable, "event subscriber limit reached")
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.originAllowed(origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("websocket upgrade failed", logger.FieldError, err)
		return
	}

	client := newClient(s, conn)

	filter, err := s.hub.Watch(client.deliver, opts)
	if err != nil {
		s.logger.Warnw("watch filter registration failed", logger.FieldError, err)
		conn.Close()
		return
	}
	client.filter = filter

	if err := filter.Start(); err != nil {
		s.logger.Warnw("watch filter start failed",
			logger.FieldFilterID, filter.ID,
			logger.FieldError, err,
		)
		filter.Uninstall()
		conn.Close()
		return
	}

	s.registerClient(client)
	s.logger.Infow("event subscriber connected",
		"client_id", client.id,
		logger.FieldFilterID, filter.ID,
		logger.FieldClient, r.RemoteAddr,
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		client.writePump()
	}()
	go client.readPump()
}

func parseKindsParam(raw string) ([]entity.EventKind, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	kinds := make([]entity.EventKind, 0, len(parts))
	for _, part := range parts {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		kind, ok := entity.ParseEventKind(name)
		if !ok {
			return nil, errors.NewInvalidInputf("unknown event kind %q", name)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

func (s *SpuroServer) registerClient(c *Client) {
	s.clientsMu.Lock()
	s.clients[c] = true
	count := len(s.clients)
	s.clientsMu.Unlock()
	eventSubscribers.Set(float64(count))
}

func (s *SpuroServer) unregisterClient(c *Client) {
	s.clientsMu.Lock()
	_, present := s.clients[c]
	delete(s.clients, c)
	count := len(s.clients)
	s.clientsMu.Unlock()
	eventSubscribers.Set(float64(count))

	if c.filter != nil {
		c.filter.Uninstall()
	}
	c.close()
	if present {
		s.logger.Infow("event subscriber disconnected", "client_id", c.id)
	}
}
