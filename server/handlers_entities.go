package server

import (
	"net/http"
	"time"

	"github.com/spuro/spuro/entity"
	"github.com/spuro/spuro/entity/storage"
	"github.com/spuro/spuro/logger"
)

type createEntityRequest struct {
	Payload     []byte                  `json:"payload,omitempty"`
	ContentType string                  `json:"content_type,omitempty"`
	Attributes  map[string]entity.Value `json:"attributes,omitempty"`
	TTLSeconds  int64                   `json:"ttl_seconds"`
}

type updateEntityRequest struct {
	Payload     *[]byte                  `json:"payload,omitempty"`
	ContentType *string                  `json:"content_type,omitempty"`
	Attributes  *map[string]entity.Value `json:"attributes,omitempty"`
	TTLSeconds  *int64                   `json:"ttl_seconds,omitempty"`
}

type transferRequest struct {
	EntityKey entity.Key   `json:"entity_key"`
	NewOwner  entity.Owner `json:"new_owner"`
}

// HandleCreateEntity creates an entity owned by the caller.
// POST /api/entities
func (s *SpuroServer) HandleCreateEntity(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxPayloadBytes)

	var req createEntityRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}

	created, err := s.store.Create(r.Context(), owner,
		req.Payload, req.ContentType, req.Attributes,
		time.Duration(req.TTLSeconds)*time.Second,
	)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	s.logger.Infow("entity created",
		logger.FieldEntityKey, created.Key,
		logger.FieldOwner, owner,
	)
	writeJSON(w, http.StatusCreated, created)
}

// HandleGetEntity returns one entity as JSON.
// GET /api/entities/{key}
func (s *SpuroServer) HandleGetEntity(w http.ResponseWriter, r *http.Request) {
	key := entity.Key(r.PathValue("key"))
	e, err := s.store.Get(r.Context(), key)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// HandleEntityExists answers existence without materializing the payload.
// HEAD /api/entities/{key}
func (s *SpuroServer) HandleEntityExists(w http.ResponseWriter, r *http.Request) {
	key := entity.Key(r.PathValue("key"))
	exists, err := s.store.Exists(r.Context(), key)
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	if !exists {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// HandleGetPayload returns the raw payload bytes under the entity's stored
// content type.
// GET /api/entities/{key}/payload
func (s *SpuroServer) HandleGetPayload(w http.ResponseWriter, r *http.Request) {
	key := entity.Key(r.PathValue("key"))
	e, err := s.store.Get(r.Context(), key)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.Header().Set("Content-Type", e.ContentType)
	w.WriteHeader(http.StatusOK)
	w.Write(e.Payload)
}

// HandleUpdateEntity applies partial field updates to a caller-owned entity.
// PUT /api/entities/{key}
func (s *SpuroServer) HandleUpdateEntity(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxPayloadBytes)

	key := entity.Key(r.PathValue("key"))
	var req updateEntityRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}

	fields := storage.UpdateFields{
		Payload:     req.Payload,
		ContentType: req.ContentType,
		Attributes:  req.Attributes,
	}
	if req.TTLSeconds != nil {
		ttl := time.Duration(*req.TTLSeconds) * time.Second
		fields.TTL = &ttl
	}

	if err := s.store.Update(r.Context(), key, owner, fields); err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// HandleDeleteEntity removes a caller-owned entity.
// DELETE /api/entities/{key}
func (s *SpuroServer) HandleDeleteEntity(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	key := entity.Key(r.PathValue("key"))
	if err := s.store.Delete(r.Context(), key, owner); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.logger.Infow("entity deleted",
		logger.FieldEntityKey, key,
		logger.FieldCaller, owner,
	)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// HandleTransferOwnership reassigns a caller-owned entity to a new owner.
// POST /api/entities/transfer
func (s *SpuroServer) HandleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	var req transferRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}
	if err := s.store.TransferOwnership(r.Context(), req.EntityKey, owner, req.NewOwner); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.logger.Infow("entity ownership transferred",
		logger.FieldEntityKey, req.EntityKey,
		logger.FieldOwner, req.NewOwner,
	)
	writeJSON(w, http.StatusOK, map[string]string{"status": "transferred"})
}
