package api

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/brushwork-ai/brushwork/internal/domain"
	"github.com/brushwork-ai/brushwork/internal/prompt"
)

type createTaskRequest struct {
	Prompts           []string `json:"prompts"`
	Name              string   `json:"name"`
	InputImagePath    string   `json:"input_image_path"`
	CharacterSync     bool     `json:"character_sync"`
	CharacterAnalysis string   `json:"character_analysis"`
	AutoStart         *bool    `json:"auto_start"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Prompts) == 0 {
		writeDomainError(w, domain.ErrEmptyPrompts)
		return
	}
	if s.pool.Size() == 0 {
		writeDomainError(w, domain.ErrNoKeysConfigured)
		return
	}
	if req.InputImagePath != "" && !s.files.ValidUpload(req.InputImagePath) {
		writeDomainError(w, domain.ErrImageNotFound)
		return
	}

	// Character sync without a prepared analysis runs one on the spot.
	analysis := req.CharacterAnalysis
	if req.CharacterSync && analysis == "" && req.InputImagePath != "" {
		got, err := s.splitter.AnalyzeCharacter(r.Context(), req.InputImagePath)
		if err != nil {
			s.logger.Warn().Err(err).Msg("character analysis failed, prompts left as-is")
		} else {
			analysis = got
		}
	}

	prompts := req.Prompts
	if req.CharacterSync && analysis != "" {
		prompts = make([]string, len(req.Prompts))
		for i, p := range req.Prompts {
			prompts[i] = prompt.EnhanceWithCharacter(p, analysis)
		}
	}

	autoStart := true
	if req.AutoStart != nil {
		autoStart = *req.AutoStart
	}

	task, err := s.manager.Create(prompts, req.Name, req.InputImagePath, autoStart)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"task_id":        task.ID,
		"message":        "task created",
		"auto_start":     autoStart,
		"character_sync": req.CharacterSync,
	})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks := s.manager.List()
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})

	byID := make(map[string]*domain.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tasks": byID,
		"total": len(tasks),
	})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, ok := s.manager.Get(chi.URLParam(r, "taskID"))
	if !ok {
		writeDomainError(w, domain.ErrTaskNotFound)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.manager.Delete(chi.URLParam(r, "taskID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	// Artifacts and any leftover upload go with the task.
	s.files.DeleteTaskArtifacts(task)
	if task.InputImagePath != "" {
		s.files.DeleteUpload(task.InputImagePath)
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "task deleted",
	})
}

func (s *Server) handleStartTask(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.StartManual(chi.URLParam(r, "taskID")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "task queued",
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	counts, total := s.manager.Counts()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_api_keys":   s.pool.Size(),
		"available_keys":   len(s.pool.Available()),
		"failed_keys":      s.pool.CoolingCount(),
		"total_tasks":      total,
		"pending_tasks":    counts[domain.TaskPending],
		"queued_tasks":     counts[domain.TaskQueued],
		"processing_tasks": counts[domain.TaskProcessing],
		"completed_tasks":  counts[domain.TaskCompleted],
		"failed_tasks":     counts[domain.TaskFailed],
		"partial_tasks":    counts[domain.TaskPartial],
		"queue":            s.manager.QueueStatus(),
	})
}
