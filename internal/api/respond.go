package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/jpdacostaza/ai-rag-test-sub002/internal/memory"
	"github.com/jpdacostaza/ai-rag-test-sub002/internal/models"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{Status: models.StatusError, Message: message})
}

// writeRequestError maps validation errors to 400 and anything else to 500.
func writeRequestError(w http.ResponseWriter, err error) {
	if errors.Is(err, memory.ErrValidation) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// decodeRequest decodes the body into v and runs validate on it. On failure
// it writes the error response and returns false.
func decodeRequest(w http.ResponseWriter, r *http.Request, v any, validate func() error) bool {
	err := decodeJSON(r, v)
	if err == nil && validate != nil {
		err = validate()
	}
	if err != nil {
		writeRequestError(w, err)
		return false
	}
	return true
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		return memory.Invalid("invalid request body: %s", err)
	}
	return nil
}
