// Package server exposes the Spuro entity store over HTTP and WebSocket.
// It translates engine outcomes to status codes and decodes caller identity
// before anything reaches the store; the engine itself never sees HTTP.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spuro/spuro/config"
	"github.com/spuro/spuro/entity/storage"
	"github.com/spuro/spuro/entity/watch"
	"github.com/spuro/spuro/errors"
	"github.com/spuro/spuro/logger"
)

// ServerState tracks the shutdown lifecycle.
type ServerState int32

const (
	ServerStateRunning ServerState = iota
	ServerStateDraining
	ServerStateStopped
)

// ShutdownTimeout bounds how long Stop waits for goroutines to drain.
const ShutdownTimeout = 10 * time.Second

// MaxClients caps concurrent WebSocket event subscribers.
const MaxClients = 256

// SpuroServer serves the entity store API.
type SpuroServer struct {
	cfg    *config.Config
	db     *sql.DB
	store  *storage.SQLStore
	hub    *watch.Hub
	logger *zap.SugaredLogger

	mux        *http.ServeMux
	httpServer *http.Server

	clients   map[*Client]bool
	clientsMu sync.Mutex

	startedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	state  atomic.Int32
}

// New assembles a server over an already-opened store and hub.
func New(cfg *config.Config, db *sql.DB, store *storage.SQLStore, hub *watch.Hub, lg *zap.SugaredLogger) *SpuroServer {
	if lg == nil {
		lg = logger.Logger
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &SpuroServer{
		cfg:       cfg,
		db:        db,
		store:     store,
		hub:       hub,
		logger:    lg,
		mux:       http.NewServeMux(),
		clients:   make(map[*Client]bool),
		startedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
	s.setupRoutes()
	return s
}

// Start listens on the configured port and blocks until the listener fails
// or Stop is called.
func (s *SpuroServer) Start() error {
	port := s.cfg.Server.EffectivePort()
	addr := fmt.Sprintf(":%d", port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.buildHandler(),
		ReadTimeout:  s.cfg.Server.RequestTimeout() + 5*time.Second,
		WriteTimeout: 0, // WebSocket connections outlive any write deadline
	}

	s.logger.Infow("Spuro server listening",
		"addr", addr,
		logger.FieldPath, s.cfg.Database.Path,
	)

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return errors.WrapUnavailable(err, "http listener")
}

// buildHandler assembles the serving stack. API routes sit behind
// http.TimeoutHandler; the WebSocket endpoint must bypass it because the
// timeout wrapper's ResponseWriter does not implement http.Hijacker, which
// the upgrade needs.
func (s *SpuroServer) buildHandler() http.Handler {
	outer := http.NewServeMux()
	outer.Handle("/ws/events", s.mux)
	outer.Handle("/", http.TimeoutHandler(s.mux, s.cfg.Server.RequestTimeout(), "request timed out"))
	return outer
}

// Handler returns the same handler stack Start serves (testing entry point).
func (s *SpuroServer) Handler() http.Handler {
	return s.buildHandler()
}

func (s *SpuroServer) getState() ServerState {
	return ServerState(s.state.Load())
}

func (s *SpuroServer) setState(newState ServerState) {
	s.state.Store(int32(newState))
	s.logger.Infow("server state changed", "new_state", stateString(newState))
}

func stateString(state ServerState) string {
	switch state {
	case ServerStateRunning:
		return "running"
	case ServerStateDraining:
		return "draining"
	case ServerStateStopped:
		return "stopped"
	}
	return "unknown"
}

// Stop gracefully shuts the server down: drain HTTP, close event clients,
// then wait for goroutines.
func (s *SpuroServer) Stop() error {
	s.logger.Infow("initiating server shutdown")
	s.setState(ServerStateDraining)

	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warnw("http shutdown error", logger.FieldError, err)
		}
	}

	// Close client connections before cancelling the context so the read
	// pumps unblock cleanly.
	s.clientsMu.Lock()
	clientsToClose := make([]*Client, 0, len(s.clients))
	for client := range s.clients {
		clientsToClose = append(clientsToClose, client)
		delete(s.clients, client)
	}
	s.clientsMu.Unlock()
	for _, client := range clientsToClose {
		client.conn.Close()
	}

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Infow("all goroutines stopped cleanly")
	case <-time.After(ShutdownTimeout):
		s.logger.Warnw("goroutine shutdown timed out, forcing exit")
	}

	s.setState(ServerStateStopped)
	s.logger.Infow("server shutdown complete")
	return nil
}
