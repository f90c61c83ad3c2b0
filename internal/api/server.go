// Package api provides the HTTP server for Brushwork: API keys, batch
// tasks, the processing queue, prompt tooling, and artifact downloads.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/brushwork-ai/brushwork/internal/domain"
	"github.com/brushwork-ai/brushwork/internal/keypool"
	"github.com/brushwork-ai/brushwork/internal/prompt"
	"github.com/brushwork-ai/brushwork/internal/queue"
	"github.com/brushwork-ai/brushwork/internal/storage"
)

// Server is the Brushwork HTTP API server.
type Server struct {
	manager        *queue.Manager
	pool           *keypool.Pool
	files          *storage.Files
	splitter       *prompt.Splitter
	version        string
	metricsEnabled bool
	logger         zerolog.Logger
}

// NewServer creates a new API server.
func NewServer(manager *queue.Manager, pool *keypool.Pool, files *storage.Files, splitter *prompt.Splitter, version string, logger zerolog.Logger) *Server {
	return &Server{
		manager:  manager,
		pool:     pool,
		files:    files,
		splitter: splitter,
		version:  version,
		logger:   logger.With().Str("component", "api").Logger(),
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version": s.version,
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)

		r.Get("/keys", s.handleListKeys)
		r.Post("/keys", s.handleAddKey)
		r.Delete("/keys/{suffix}", s.handleRemoveKey)

		r.Post("/tasks", s.handleCreateTask)
		r.Get("/tasks", s.handleListTasks)
		r.Get("/tasks/{taskID}", s.handleGetTask)
		r.Delete("/tasks/{taskID}", s.handleDeleteTask)
		r.Post("/tasks/{taskID}/start", s.handleStartTask)

		r.Get("/queue/status", s.handleQueueStatus)
		r.Post("/queue/add/{taskID}", s.handleQueueAdd)
		r.Post("/queue/remove/{taskID}", s.handleQueueRemove)

		r.Post("/split-prompts", s.handleSplitPrompts)
		r.Post("/analyze-character", s.handleAnalyzeCharacter)
		r.Post("/upload-image", s.handleUploadImage)

		r.Get("/images/{filename}", s.handleServeImage)
		r.Get("/download-image/{filename}", s.handleDownloadImage)
		r.Get("/download-all-images/{taskID}", s.handleDownloadAll)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// writeDomainError maps the domain sentinels onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrTaskNotFound),
		errors.Is(err, domain.ErrKeyNotFound),
		errors.Is(err, domain.ErrImageNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrEmptyPrompts),
		errors.Is(err, domain.ErrAlreadyTerminal),
		errors.Is(err, domain.ErrNoKeysConfigured),
		errors.Is(err, domain.ErrInvalidKeyFormat),
		errors.Is(err, domain.ErrKeyExists),
		errors.Is(err, domain.ErrUnsupportedImage):
		status = http.StatusBadRequest
	}
	writeError(w, status, err.Error())
}

// corsMiddleware adds CORS headers for the local frontend.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
