package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/brushwork-ai/brushwork/internal/domain"
	"github.com/brushwork-ai/brushwork/internal/storage"
)

// 32 MB is plenty for a reference image.
const maxUploadMemory = 32 << 20

func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	path, err := s.files.SaveUpload(header.Filename, file)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":    "image uploaded",
		"image_path": path,
	})
}

func (s *Server) handleServeImage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	path, err := s.files.ArtifactPath(name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", storage.MIMEType(name))
	http.ServeFile(w, r, path)
}

func (s *Server) handleDownloadImage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	path, err := s.files.ArtifactPath(name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", storage.MIMEType(name))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeFile(w, r, path)
}

func (s *Server) handleDownloadAll(w http.ResponseWriter, r *http.Request) {
	task, ok := s.manager.Get(chi.URLParam(r, "taskID"))
	if !ok {
		writeDomainError(w, domain.ErrTaskNotFound)
		return
	}
	succeeded := 0
	for _, res := range task.Results {
		if res.Status == domain.ResultSuccess && res.Filename != "" {
			succeeded++
		}
	}
	if succeeded == 0 {
		writeError(w, http.StatusBadRequest, "task has no completed images")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", task.Name+"_images.zip"))

	count, err := s.files.ZipArtifacts(task, w)
	if err != nil {
		// Headers are gone; all we can do is log.
		s.logger.Error().Err(err).Str("task_id", task.ID).Msg("zip download failed")
		return
	}
	s.logger.Info().Str("task_id", task.ID).Int("images", count).Msg("zip downloaded")
}
