package server

import (
	"encoding/json"
	"net/http"

	"github.com/spuro/spuro/errors"
	"github.com/spuro/spuro/logger"
)

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		return errors.Wrap(err, "failed to encode JSON")
	}
	return nil
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeEngineError maps the engine's error taxonomy onto HTTP status codes:
// NotFound→404, Forbidden→403, InvalidInput→400, Unavailable→503,
// anything else→500.
func (s *SpuroServer) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.IsForbidden(err):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.IsInvalidInput(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.IsUnavailable(err):
		s.logger.Errorw("storage unavailable", logger.FieldError, err)
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
	default:
		s.logger.Errorw("unexpected engine error", logger.FieldError, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// readJSON reads and decodes a JSON request body
func readJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return err
	}
	return nil
}
