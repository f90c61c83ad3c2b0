package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/brushwork-ai/brushwork/internal/domain"
)

func (s *Server) handleSplitPrompts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text  string `json:"text"`
		UseAI *bool  `json:"use_ai"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if s.pool.Size() == 0 {
		writeDomainError(w, domain.ErrNoKeysConfigured)
		return
	}

	useAI := true
	if req.UseAI != nil {
		useAI = *req.UseAI
	}

	if !useAI {
		result := s.splitter.SplitSimple(text)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":      true,
			"prompts":      result.Prompts,
			"count":        result.Count,
			"analysis":     result.Analysis,
			"api_key_used": result.KeyUsed,
		})
		return
	}

	result, err := s.splitter.SplitAI(r.Context(), text)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"prompts":      result.Prompts,
		"count":        result.Count,
		"analysis":     result.Analysis,
		"api_key_used": result.KeyUsed,
	})
}

func (s *Server) handleAnalyzeCharacter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ImagePath string `json:"image_path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ImagePath == "" {
		writeError(w, http.StatusBadRequest, "image_path is required")
		return
	}
	if !s.files.ValidUpload(req.ImagePath) {
		writeDomainError(w, domain.ErrImageNotFound)
		return
	}

	analysis, err := s.splitter.AnalyzeCharacter(r.Context(), req.ImagePath)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"analysis": analysis,
	})
}
