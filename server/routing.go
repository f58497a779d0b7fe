package server

import (
	"context"
	"net/http"
	"time"

	"github.com/spuro/spuro/entity"
	"github.com/spuro/spuro/logger"
	"github.com/spuro/spuro/version"
)

type callerContextKey struct{}

// setupRoutes configures all HTTP handlers.
func (s *SpuroServer) setupRoutes() {
	s.mux.HandleFunc("POST /api/entities", s.withMiddleware(s.HandleCreateEntity))
	s.mux.HandleFunc("GET /api/entities/query", s.withMiddleware(s.HandleQueryEntities))
	s.mux.HandleFunc("POST /api/entities/transfer", s.withMiddleware(s.HandleTransferOwnership))
	s.mux.HandleFunc("GET /api/entities/{key}", s.withMiddleware(s.HandleGetEntity))
	s.mux.HandleFunc("HEAD /api/entities/{key}", s.withMiddleware(s.HandleEntityExists))
	s.mux.HandleFunc("GET /api/entities/{key}/payload", s.withMiddleware(s.HandleGetPayload))
	s.mux.HandleFunc("PUT /api/entities/{key}", s.withMiddleware(s.HandleUpdateEntity))
	s.mux.HandleFunc("DELETE /api/entities/{key}", s.withMiddleware(s.HandleDeleteEntity))

	s.mux.HandleFunc("/ws/events", s.corsMiddleware(s.HandleEventsWebSocket))

	s.mux.HandleFunc("GET /health", s.corsMiddleware(s.HandleHealth))
	s.mux.HandleFunc("GET /api/status", s.corsMiddleware(s.HandleStatus))
	s.mux.Handle("GET /metrics", s.metricsHandler())
}

// withMiddleware is the standard chain for API routes: CORS, caller
// identity, request logging, metrics.
func (s *SpuroServer) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return s.corsMiddleware(s.callerMiddleware(s.observeMiddleware(next)))
}

// corsMiddleware adds CORS headers using the configured allowed origins.
func (s *SpuroServer) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, HEAD, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+s.cfg.Server.CallerHeader+", "+ClientVersionHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}

func (s *SpuroServer) originAllowed(origin string) bool {
	for _, allowed := range s.cfg.Server.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// ClientVersionHeader carries the client release; old clients are turned
// away before their request reaches a handler.
const ClientVersionHeader = "X-Spuro-Client-Version"

// callerMiddleware decodes the caller identity header into the request
// context. Mutating handlers reject requests without one; reads are public
// and never consult it.
func (s *SpuroServer) callerMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cv := r.Header.Get(ClientVersionHeader); cv != "" {
			if err := version.CheckClientCompatible(cv); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		}
		caller := r.Header.Get(s.cfg.Server.CallerHeader)
		if caller != "" {
			ctx := context.WithValue(r.Context(), callerContextKey{}, entity.Owner(caller))
			r = r.WithContext(ctx)
		}
		next(w, r)
	}
}

// observeMiddleware records request logs and metrics.
func (s *SpuroServer) observeMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		elapsed := time.Since(start)

		route := r.Pattern
		if route == "" {
			route = r.URL.Path
		}
		recordRequest(r.Method, route, rec.status, elapsed)
		s.logger.Debugw("request",
			logger.FieldMethod, r.Method,
			logger.FieldPath, r.URL.Path,
			logger.FieldStatus, rec.status,
			logger.FieldDuration, elapsed.String(),
		)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// caller returns the decoded caller identity, if the request carried one.
func caller(r *http.Request) (entity.Owner, bool) {
	owner, ok := r.Context().Value(callerContextKey{}).(entity.Owner)
	return owner, ok
}

// requireCaller rejects mutating requests that carry no identity.
func (s *SpuroServer) requireCaller(w http.ResponseWriter, r *http.Request) (entity.Owner, bool) {
	owner, ok := caller(r)
	if !ok || owner == "" {
		writeError(w, http.StatusBadRequest, "missing caller identity header "+s.cfg.Server.CallerHeader)
		return "", false
	}
	return owner, true
}
