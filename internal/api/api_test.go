package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brushwork-ai/brushwork/internal/domain"
	"github.com/brushwork-ai/brushwork/internal/keypool"
	"github.com/brushwork-ai/brushwork/internal/prompt"
	"github.com/brushwork-ai/brushwork/internal/queue"
	"github.com/brushwork-ai/brushwork/internal/storage"
)

const testKey = "AIzaTestKey000000000000000000000XYZ"

type nopStore struct{}

func (nopStore) SaveTask(*domain.Task) error { return nil }
func (nopStore) DeleteTask(string) error     { return nil }
func (nopStore) SaveQueue([]string) error    { return nil }

type fakeModel struct {
	answer string
	err    error
}

func (f *fakeModel) GenerateText(context.Context, string, string) (string, error) {
	return f.answer, f.err
}

func (f *fakeModel) DescribeImage(context.Context, string, string, string) (string, error) {
	return f.answer, f.err
}

type testEnv struct {
	srv     *httptest.Server
	manager *queue.Manager
	pool    *keypool.Pool
	files   *storage.Files
	model   *fakeModel
}

func newEnv(t *testing.T, keys ...string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	files, err := storage.New(filepath.Join(dir, "images"), filepath.Join(dir, "uploads"), zerolog.Nop())
	require.NoError(t, err)

	manager := queue.NewManager(nil, nil, nopStore{}, zerolog.Nop())
	pool := keypool.New(keys, nil, zerolog.Nop())
	model := &fakeModel{}
	splitter := prompt.NewSplitter(pool, model, zerolog.Nop())

	server := NewServer(manager, pool, files, splitter, "test", zerolog.Nop())
	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, manager: manager, pool: pool, files: files, model: model}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	resp, body := e.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestKeyLifecycle(t *testing.T) {
	e := newEnv(t)

	resp, _ := e.do(t, http.MethodPost, "/api/keys", map[string]string{"key": "too-short"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPost, "/api/keys", map[string]string{"key": testKey})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPost, "/api/keys", map[string]string{"key": testKey})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "duplicate key rejected")

	resp, body := e.do(t, http.MethodGet, "/api/keys", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["total"])

	suffix := domain.KeySuffix(testKey)
	resp, _ = e.do(t, http.MethodDelete, "/api/keys/"+suffix, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, e.pool.Size())

	resp, _ = e.do(t, http.MethodDelete, "/api/keys/"+suffix, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateTaskValidation(t *testing.T) {
	e := newEnv(t)

	// No keys configured yet.
	resp, _ := e.do(t, http.MethodPost, "/api/tasks", map[string]interface{}{
		"prompts": []string{"a castle"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	e.pool.Add(testKey)

	resp, _ = e.do(t, http.MethodPost, "/api/tasks", map[string]interface{}{
		"prompts": []string{},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPost, "/api/tasks", map[string]interface{}{
		"prompts":          []string{"a castle"},
		"input_image_path": "/etc/passwd",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "input image outside uploads dir")
}

func TestCreateTaskAutoStart(t *testing.T) {
	e := newEnv(t, testKey)

	resp, body := e.do(t, http.MethodPost, "/api/tasks", map[string]interface{}{
		"prompts": []string{"a castle", "a fox"},
		"name":    "My batch",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["auto_start"])

	taskID := body["task_id"].(string)
	task, ok := e.manager.Get(taskID)
	require.True(t, ok)
	assert.Equal(t, domain.TaskQueued, task.Status)
	assert.Equal(t, "My batch", task.Name)
	assert.Equal(t, 2, task.TotalCount)
}

func TestCreateTaskManualStart(t *testing.T) {
	e := newEnv(t, testKey)

	autoStart := false
	resp, body := e.do(t, http.MethodPost, "/api/tasks", map[string]interface{}{
		"prompts":    []string{"a castle"},
		"auto_start": &autoStart,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	taskID := body["task_id"].(string)
	task, _ := e.manager.Get(taskID)
	assert.Equal(t, domain.TaskPending, task.Status)

	resp, _ = e.do(t, http.MethodPost, "/api/tasks/"+taskID+"/start", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	task, _ = e.manager.Get(taskID)
	assert.Equal(t, domain.TaskQueued, task.Status)
}

func TestStartTerminalTaskRejected(t *testing.T) {
	e := newEnv(t, testKey)

	task, err := e.manager.Create([]string{"p"}, "Batch", "", false)
	require.NoError(t, err)
	require.NoError(t, e.manager.Update(task.ID, func(t *domain.Task) {
		t.Status = domain.TaskCompleted
	}))

	resp, _ := e.do(t, http.MethodPost, "/api/tasks/"+task.ID+"/start", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetTaskNotFound(t *testing.T) {
	e := newEnv(t)
	resp, _ := e.do(t, http.MethodGet, "/api/tasks/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteTaskCascades(t *testing.T) {
	e := newEnv(t, testKey)

	task, err := e.manager.Create([]string{"p"}, "Batch", "", false)
	require.NoError(t, err)
	name, err := e.files.SaveArtifact(task.ID, []byte("png"))
	require.NoError(t, err)
	require.NoError(t, e.manager.Update(task.ID, func(t *domain.Task) {
		t.Results = append(t.Results, domain.Result{
			Prompt: "p", Status: domain.ResultSuccess, Filename: name,
		})
	}))

	resp, _ := e.do(t, http.MethodDelete, "/api/tasks/"+task.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, ok := e.manager.Get(task.ID)
	assert.False(t, ok)
	_, err = e.files.ArtifactPath(name)
	assert.ErrorIs(t, err, domain.ErrImageNotFound)
}

func TestQueueEndpoints(t *testing.T) {
	e := newEnv(t, testKey)

	task, err := e.manager.Create([]string{"p"}, "Batch", "", false)
	require.NoError(t, err)

	resp, _ := e.do(t, http.MethodPost, "/api/queue/add/"+task.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := e.do(t, http.MethodGet, "/api/queue/status", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["queue_length"])
	assert.Equal(t, task.ID, body["next_task"])

	resp, _ = e.do(t, http.MethodPost, "/api/queue/remove/"+task.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = e.do(t, http.MethodGet, "/api/queue/status", nil)
	assert.Equal(t, float64(0), body["queue_length"])

	resp, _ = e.do(t, http.MethodPost, "/api/queue/add/unknown", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatusAggregate(t *testing.T) {
	e := newEnv(t, testKey)

	_, err := e.manager.Create([]string{"p"}, "Batch", "", true)
	require.NoError(t, err)
	_, err = e.manager.Create([]string{"p"}, "Batch", "", false)
	require.NoError(t, err)

	resp, body := e.do(t, http.MethodGet, "/api/status", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["total_api_keys"])
	assert.Equal(t, float64(1), body["available_keys"])
	assert.Equal(t, float64(2), body["total_tasks"])
	assert.Equal(t, float64(1), body["queued_tasks"])
	assert.Equal(t, float64(1), body["pending_tasks"])
}

func TestSplitPromptsSimple(t *testing.T) {
	e := newEnv(t, testKey)

	useAI := false
	resp, body := e.do(t, http.MethodPost, "/api/split-prompts", map[string]interface{}{
		"text":   "1. a red fox\n2. a blue whale",
		"use_ai": &useAI,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(2), body["count"])
}

func TestSplitPromptsAI(t *testing.T) {
	e := newEnv(t, testKey)
	e.model.answer = `{"prompts": ["a red fox"], "count": 1, "analysis": "found 1 request"}`

	resp, body := e.do(t, http.MethodPost, "/api/split-prompts", map[string]string{
		"text": "draw me a red fox",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, domain.KeySuffix(testKey), body["api_key_used"])
}

func TestSplitPromptsRequiresKeys(t *testing.T) {
	e := newEnv(t)
	resp, _ := e.do(t, http.MethodPost, "/api/split-prompts", map[string]string{"text": "a fox"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadAndAnalyze(t *testing.T) {
	e := newEnv(t, testKey)
	e.model.answer = "brown hair, green eyes"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "ref.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("fake png bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(e.srv.URL+"/api/upload-image", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var uploaded map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&uploaded))
	imagePath := uploaded["image_path"]
	require.True(t, e.files.ValidUpload(imagePath))

	resp2, body := e.do(t, http.MethodPost, "/api/analyze-character", map[string]string{
		"image_path": imagePath,
	})
	require.Equal(t, http.StatusOK, resp2.StatusCode)
	assert.Equal(t, "brown hair, green eyes", body["analysis"])
}

func TestUploadRejectsUnknownExtension(t *testing.T) {
	e := newEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "script.sh")
	require.NoError(t, err)
	fmt.Fprint(part, "#!/bin/sh")
	require.NoError(t, mw.Close())

	resp, err := http.Post(e.srv.URL+"/api/upload-image", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServeImage(t *testing.T) {
	e := newEnv(t, testKey)

	name, err := e.files.SaveArtifact("task1", []byte("png bytes"))
	require.NoError(t, err)

	resp, err := http.Get(e.srv.URL + "/api/images/" + name)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	resp, err = http.Get(e.srv.URL + "/api/images/missing.png")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDownloadAllRequiresImages(t *testing.T) {
	e := newEnv(t, testKey)

	task, err := e.manager.Create([]string{"p"}, "Batch", "", false)
	require.NoError(t, err)

	resp, _ := e.do(t, http.MethodGet, "/api/download-all-images/"+task.ID, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDownloadAllZip(t *testing.T) {
	e := newEnv(t, testKey)

	task, err := e.manager.Create([]string{"a red fox"}, "Batch", "", false)
	require.NoError(t, err)
	name, err := e.files.SaveArtifact(task.ID, []byte("png bytes"))
	require.NoError(t, err)
	require.NoError(t, e.manager.Update(task.ID, func(t *domain.Task) {
		t.Results = append(t.Results, domain.Result{
			Prompt: "a red fox", Status: domain.ResultSuccess, Filename: name,
		})
	}))

	resp, err := http.Get(e.srv.URL + "/api/download-all-images/" + task.ID)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/zip", resp.Header.Get("Content-Type"))
	assert.True(t, strings.Contains(resp.Header.Get("Content-Disposition"), ".zip"))
}
