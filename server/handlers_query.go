package server

import (
	"net/http"
	"strconv"

	"github.com/spuro/spuro/entity"
	"github.com/spuro/spuro/logger"
)

// DefaultQueryLimit applies when a query request names none.
const DefaultQueryLimit = 100

// MaxQueryLimit caps any single query response.
const MaxQueryLimit = 1000

type queryResponse struct {
	Entities []*entity.Entity `json:"entities"`
	Count    int              `json:"count"`
}

// HandleQueryEntities runs an attribute filter over the live store.
// GET /api/entities/query?query=...&order=...&limit=...&include_payload=...
//
// An empty query parameter (or an absent one) matches every entity; a
// malformed one is a 400, never an empty result.
func (s *SpuroServer) HandleQueryEntities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := DefaultQueryLimit
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = parsed
	}
	if limit <= 0 || limit > MaxQueryLimit {
		writeError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(MaxQueryLimit))
		return
	}

	includePayload := false
	if raw := q.Get("include_payload"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "include_payload must be a boolean")
			return
		}
		includePayload = parsed
	}

	filter := q.Get("query")
	order := q.Get("order")

	matched, err := s.store.Search(r.Context(), filter, order, limit)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	if !includePayload {
		// Strip payloads from the response copy; attribute-level queries
		// rarely want megabytes of entity bodies back.
		stripped := make([]*entity.Entity, len(matched))
		for i, e := range matched {
			c := *e
			c.Payload = nil
			stripped[i] = &c
		}
		matched = stripped
	}

	s.logger.Debugw("query served",
		logger.FieldQuery, filter,
		logger.FieldLimit, limit,
		logger.FieldMatched, len(matched),
	)
	writeJSON(w, http.StatusOK, queryResponse{Entities: matched, Count: len(matched)})
}
