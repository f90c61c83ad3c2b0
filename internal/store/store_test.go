package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brushwork-ai/brushwork/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestKeysRoundTrip(t *testing.T) {
	s := newTestStore(t)

	keys, err := s.LoadKeys()
	require.NoError(t, err)
	assert.Empty(t, keys)

	want := []string{"AIzaKeyOne000000000000000000000000", "AIzaKeyTwo000000000000000000000000"}
	require.NoError(t, s.SaveKeys(want))

	keys, err = s.LoadKeys()
	require.NoError(t, err)
	assert.Equal(t, want, keys, "insertion order must survive a reload")

	// Replacing shrinks the list.
	require.NoError(t, s.SaveKeys(want[1:]))
	keys, err = s.LoadKeys()
	require.NoError(t, err)
	assert.Equal(t, want[1:], keys)
}

func TestTaskRoundTrip(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Millisecond)

	task := &domain.Task{
		ID:             "11111111-1111-1111-1111-111111111111",
		Name:           "Batch",
		Prompts:        []string{"a cat", "a dog"},
		InputImagePath: "/tmp/ref.png",
		TotalCount:     2,
		CompletedCount: 1,
		FailedCount:    1,
		Status:         domain.TaskPartial,
		Results: []domain.Result{
			{Prompt: "a cat", Status: domain.ResultSuccess, Filename: "x.png", KeyUsed: "12345678", Timestamp: now},
			{Prompt: "a dog", Status: domain.ResultFailed, Error: "no credentials available", Timestamp: now},
		},
		AutoStart: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.SaveTask(task))
	require.NoError(t, s.SaveQueue([]string{task.ID}))

	tasks, queue, err := s.LoadTasks()
	require.NoError(t, err)
	require.Contains(t, tasks, task.ID)
	assert.Equal(t, []string{task.ID}, queue)

	got := tasks[task.ID]
	assert.Equal(t, task.Prompts, got.Prompts)
	assert.Equal(t, task.Results, got.Results)
	assert.Equal(t, domain.TaskPartial, got.Status)
	assert.True(t, got.AutoStart)
	assert.True(t, got.CreatedAt.Equal(now))
}

func TestSaveTaskUpsert(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	task := &domain.Task{
		ID: "t1", Name: "Batch", Prompts: []string{"p"}, TotalCount: 1,
		Status: domain.TaskPending, Results: []domain.Result{},
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.SaveTask(task))

	task.Status = domain.TaskCompleted
	task.CompletedCount = 1
	require.NoError(t, s.SaveTask(task))

	tasks, _, err := s.LoadTasks()
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, domain.TaskCompleted, tasks["t1"].Status)
	assert.Equal(t, 1, tasks["t1"].CompletedCount)
}

func TestDeleteTask(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	task := &domain.Task{
		ID: "t1", Name: "Batch", Prompts: []string{"p"}, TotalCount: 1,
		Status: domain.TaskPending, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.SaveTask(task))
	require.NoError(t, s.DeleteTask("t1"))

	tasks, _, err := s.LoadTasks()
	require.NoError(t, err)
	assert.Empty(t, tasks)

	// Deleting an unknown id is a no-op.
	require.NoError(t, s.DeleteTask("missing"))
}

func TestQueueOrderSurvivesReload(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	require.NoError(t, s.SaveQueue([]string{"t3", "t1", "t2"}))
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()

	_, queue, err := s.LoadTasks()
	require.NoError(t, err)
	assert.Equal(t, []string{"t3", "t1", "t2"}, queue)
}
