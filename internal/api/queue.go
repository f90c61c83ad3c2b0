package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.QueueStatus())
}

func (s *Server) handleQueueAdd(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Enqueue(chi.URLParam(r, "taskID")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "task added to queue",
	})
}

func (s *Server) handleQueueRemove(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Dequeue(chi.URLParam(r, "taskID")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "task removed from queue",
	})
}
