package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/brushwork-ai/brushwork/internal/domain"
)

func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request) {
	keys := s.pool.Keys()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"keys":  keys,
		"total": len(keys),
	})
}

func (s *Server) handleAddKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}
	if err := domain.ValidateKey(req.Key); err != nil {
		writeDomainError(w, err)
		return
	}
	if !s.pool.Add(req.Key) {
		writeDomainError(w, domain.ErrKeyExists)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "API key added",
	})
}

func (s *Server) handleRemoveKey(w http.ResponseWriter, r *http.Request) {
	suffix := chi.URLParam(r, "suffix")
	if !s.pool.RemoveBySuffix(suffix) {
		writeDomainError(w, domain.ErrKeyNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "API key removed",
	})
}
