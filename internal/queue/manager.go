// Package queue owns the task registry, the FIFO pending queue, and
// the single processing flag, all behind one mutex.
//
// Invariants: a task id appears in the queue at most once; a task's
// status is "queued" exactly while its id is queued; at most one task
// is "processing" at any instant. The worker is the only caller of
// Claim/Release, which is what keeps processing single-flight.
package queue

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/brushwork-ai/brushwork/internal/domain"
	"github.com/brushwork-ai/brushwork/internal/metrics"
)

// TaskStore persists task records and queue order. Writes happen after
// every mutation; a failed write is logged and in-memory state stays
// authoritative until the next successful write.
type TaskStore interface {
	SaveTask(t *domain.Task) error
	DeleteTask(id string) error
	SaveQueue(ids []string) error
}

// Status is a read-only snapshot of the queue for observability.
type Status struct {
	Queue        []string `json:"queue"`
	IsProcessing bool     `json:"is_processing"`
	QueueLength  int      `json:"queue_length"`
	NextTask     string   `json:"next_task,omitempty"`
}

// Manager is the single owning context for tasks and queue membership.
type Manager struct {
	mu         sync.Mutex
	tasks      map[string]*domain.Task
	queue      []string
	processing bool

	store  TaskStore
	logger zerolog.Logger
	wake   chan struct{}
}

// NewManager wraps previously loaded state. Call Reconcile before
// starting the worker to repair any crash leftovers.
func NewManager(tasks map[string]*domain.Task, queued []string, store TaskStore, logger zerolog.Logger) *Manager {
	if tasks == nil {
		tasks = make(map[string]*domain.Task)
	}
	m := &Manager{
		tasks:  tasks,
		queue:  append([]string(nil), queued...),
		store:  store,
		logger: logger.With().Str("component", "queue").Logger(),
		wake:   make(chan struct{}, 1),
	}
	metrics.QueueLength.Set(float64(len(m.queue)))
	return m
}

// Wake returns the channel signalled on every enqueue. The worker
// selects on it so new work is picked up without waiting a poll tick.
func (m *Manager) Wake() <-chan struct{} {
	return m.wake
}

func (m *Manager) notify() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// ─── Task lifecycle ─────────────────────────────────────────────────────────

// Create registers a new task. Prompts must be non-empty; the caller
// is responsible for checking that keys are configured.
func (m *Manager) Create(prompts []string, name, inputImagePath string, autoStart bool) (*domain.Task, error) {
	if len(prompts) == 0 {
		return nil, domain.ErrEmptyPrompts
	}
	if name == "" {
		name = "Batch"
	}

	now := time.Now().UTC()
	task := &domain.Task{
		ID:             uuid.NewString(),
		Name:           name,
		Prompts:        append([]string(nil), prompts...),
		InputImagePath: inputImagePath,
		TotalCount:     len(prompts),
		Status:         domain.TaskPending,
		Results:        []domain.Result{},
		AutoStart:      autoStart,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	m.mu.Lock()
	m.tasks[task.ID] = task
	m.persistTask(task)
	m.mu.Unlock()

	m.logger.Info().Str("task_id", task.ID).Int("prompts", task.TotalCount).
		Bool("auto_start", autoStart).Msg("task created")

	if autoStart {
		// Enqueue persists again with status queued.
		_ = m.Enqueue(task.ID)
	}
	return task.Clone(), nil
}

// Get returns a copy of the task record.
func (m *Manager) Get(id string) (*domain.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok {
		return nil, false
	}
	return task.Clone(), true
}

// List returns copies of every task record.
func (m *Manager) List() []*domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*domain.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t.Clone())
	}
	return out
}

// Delete removes the task and its queue entry. The returned copy lets
// the caller cascade-delete the artifacts it references.
func (m *Manager) Delete(id string) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}

	delete(m.tasks, id)
	m.removeFromQueueLocked(id)
	if err := m.store.DeleteTask(id); err != nil {
		m.logger.Error().Err(err).Str("task_id", id).Msg("failed to delete task record")
	}
	m.persistQueue()

	m.logger.Info().Str("task_id", id).Msg("task deleted")
	return task.Clone(), nil
}

// Update applies fn to the task under the lock, stamps UpdatedAt, and
// persists the record. Used by the worker for progress mutations.
func (m *Manager) Update(id string, fn func(*domain.Task)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok {
		return domain.ErrTaskNotFound
	}
	fn(task)
	task.UpdatedAt = time.Now().UTC()
	m.persistTask(task)
	return nil
}

// ─── Queue membership ───────────────────────────────────────────────────────

// Enqueue appends the task to the queue tail. No-op when already
// queued; unknown ids are rejected.
func (m *Manager) Enqueue(id string) error {
	m.mu.Lock()

	task, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return domain.ErrTaskNotFound
	}
	for _, qid := range m.queue {
		if qid == id {
			m.mu.Unlock()
			return nil
		}
	}

	m.queue = append(m.queue, id)
	task.Status = domain.TaskQueued
	task.UpdatedAt = time.Now().UTC()
	m.persistTask(task)
	m.persistQueue()
	metrics.QueueLength.Set(float64(len(m.queue)))
	m.mu.Unlock()

	m.logger.Info().Str("task_id", id).Msg("task enqueued")
	m.notify()
	return nil
}

// Dequeue removes the task from the queue. A queued task reverts to
// pending; a task mid-processing is unaffected.
func (m *Manager) Dequeue(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok {
		return domain.ErrTaskNotFound
	}
	if !m.removeFromQueueLocked(id) {
		return nil
	}
	if task.Status == domain.TaskQueued {
		task.Status = domain.TaskPending
		task.UpdatedAt = time.Now().UTC()
		m.persistTask(task)
	}
	m.persistQueue()
	metrics.QueueLength.Set(float64(len(m.queue)))
	m.logger.Info().Str("task_id", id).Msg("task dequeued")
	return nil
}

// StartManual puts a pending (or previously dequeued) task back on the
// queue. Completed and failed tasks are rejected; a partial task may
// be restarted, and the worker skips the items that already carry a
// result.
func (m *Manager) StartManual(id string) error {
	m.mu.Lock()
	task, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return domain.ErrTaskNotFound
	}
	if task.Status == domain.TaskCompleted || task.Status == domain.TaskFailed {
		m.mu.Unlock()
		return domain.ErrAlreadyTerminal
	}
	m.mu.Unlock()

	return m.Enqueue(id)
}

// Head returns the id at the queue head without removing it.
func (m *Manager) Head() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.queue) == 0 {
		return "", false
	}
	return m.queue[0], true
}

// Claim atomically pops the queue head and raises the processing flag.
// Returns false while another task is in flight or the queue is empty.
// The claimed task is moved to status processing and persisted.
func (m *Manager) Claim() (*domain.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.processing || len(m.queue) == 0 {
		return nil, false
	}

	id := m.queue[0]
	m.queue = m.queue[1:]
	m.processing = true

	task, ok := m.tasks[id]
	if !ok {
		// Stale queue entry (task deleted while queued): drop it and
		// let the worker try again.
		m.processing = false
		m.persistQueue()
		metrics.QueueLength.Set(float64(len(m.queue)))
		return nil, false
	}

	task.Status = domain.TaskProcessing
	task.UpdatedAt = time.Now().UTC()
	m.persistTask(task)
	m.persistQueue()
	metrics.QueueLength.Set(float64(len(m.queue)))
	metrics.ProcessingActive.Set(1)

	m.logger.Info().Str("task_id", id).Msg("task claimed for processing")
	return task.Clone(), true
}

// Release clears the processing flag after the claimed task drained.
func (m *Manager) Release() {
	m.mu.Lock()
	m.processing = false
	m.mu.Unlock()
	metrics.ProcessingActive.Set(0)
}

// QueueStatus returns a read-only snapshot.
func (m *Manager) QueueStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{
		Queue:        append([]string{}, m.queue...),
		IsProcessing: m.processing,
		QueueLength:  len(m.queue),
	}
	if len(m.queue) > 0 {
		st.NextTask = m.queue[0]
	}
	return st
}

// Counts returns the number of tasks per status plus the total.
func (m *Manager) Counts() (map[domain.TaskStatus]int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[domain.TaskStatus]int)
	for _, t := range m.tasks {
		counts[t.Status]++
	}
	return counts, len(m.tasks)
}

// ─── Startup reconciliation ─────────────────────────────────────────────────

// Reconcile repairs state left behind by a crash: tasks stuck in
// "processing" are re-queued at the head, queued tasks missing their
// queue entry are re-appended, and queue entries pointing at unknown
// tasks are dropped. Call once, before the worker starts.
func (m *Manager) Reconcile() {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Drop stale queue entries.
	kept := m.queue[:0]
	for _, id := range m.queue {
		if _, ok := m.tasks[id]; ok {
			kept = append(kept, id)
		} else {
			m.logger.Warn().Str("task_id", id).Msg("dropping queue entry for unknown task")
		}
	}
	m.queue = kept

	queued := make(map[string]bool, len(m.queue))
	for _, id := range m.queue {
		queued[id] = true
	}

	for id, task := range m.tasks {
		switch task.Status {
		case domain.TaskProcessing:
			// Interrupted mid-task: run it again from the front of the
			// queue. Items that already have a result keep it.
			task.Status = domain.TaskQueued
			task.UpdatedAt = time.Now().UTC()
			m.queue = append([]string{id}, m.queue...)
			m.persistTask(task)
			m.logger.Warn().Str("task_id", id).Msg("re-queued task interrupted mid-processing")
		case domain.TaskQueued:
			if !queued[id] {
				m.queue = append(m.queue, id)
				m.logger.Warn().Str("task_id", id).Msg("restored missing queue entry")
			}
		}
	}

	m.persistQueue()
	metrics.QueueLength.Set(float64(len(m.queue)))
}

// ─── Internal helpers (mutex held) ──────────────────────────────────────────

func (m *Manager) removeFromQueueLocked(id string) bool {
	for i, qid := range m.queue {
		if qid == id {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return true
		}
	}
	return false
}

func (m *Manager) persistTask(t *domain.Task) {
	if err := m.store.SaveTask(t); err != nil {
		m.logger.Error().Err(err).Str("task_id", t.ID).Msg("failed to persist task")
	}
}

func (m *Manager) persistQueue() {
	if err := m.store.SaveQueue(append([]string(nil), m.queue...)); err != nil {
		m.logger.Error().Err(err).Msg("failed to persist queue")
	}
}
