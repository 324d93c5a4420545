package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/aleks8/blog-list/internal/db"
)

const maxBodyBytes = 1 << 20

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondStoreError maps store errors to a response, logging anything that is
// not the caller's fault.
func respondStoreError(w http.ResponseWriter, log *zap.Logger, err error, message string) {
	if errors.Is(err, db.ErrInvalidID) {
		respondError(w, http.StatusBadRequest, db.ErrInvalidID.Error())
		return
	}
	log.Error(message, zap.Error(err))
	respondError(w, http.StatusInternalServerError, message)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return false
	}
	return true
}

func UnknownEndpoint(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusNotFound, "unknown endpoint")
}

func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusMethodNotAllowed, "method not allowed")
}
