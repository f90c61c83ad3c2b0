// Package domain holds the pure types of the batch pipeline:
// tasks, per-item results, lifecycle statuses, and failure kinds.
// A Task is a named batch of prompts that flows
// pending → queued → processing → completed|failed|partial.
package domain

import "time"

// TaskStatus tracks the task lifecycle.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskQueued     TaskStatus = "queued"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskPartial    TaskStatus = "partial"
)

// ResultStatus is the outcome of a single prompt within a task.
type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultFailed  ResultStatus = "failed"
)

// Result records the outcome of one prompt. Exactly one Result is
// appended per prompt, in prompt order, when the item finishes.
type Result struct {
	Prompt    string       `json:"prompt"`
	Status    ResultStatus `json:"status"`
	Filename  string       `json:"filename,omitempty"`
	Error     string       `json:"error,omitempty"`
	KeyUsed   string       `json:"api_key_used,omitempty"` // 8-char key suffix
	Timestamp time.Time    `json:"timestamp"`
}

// Task is a named batch of image-generation prompts sharing an
// optional reference image. Prompts are immutable after creation;
// status, counters, and results are mutated only by the worker while
// the task is being processed.
type Task struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Prompts        []string   `json:"prompts"`
	InputImagePath string     `json:"input_image_path,omitempty"`
	TotalCount     int        `json:"total_count"`
	CompletedCount int        `json:"completed_count"`
	FailedCount    int        `json:"failed_count"`
	Status         TaskStatus `json:"status"`
	Results        []Result   `json:"results"`
	AutoStart      bool       `json:"auto_start"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// IsTerminal returns true once the task has reached a final state.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskCompleted || t.Status == TaskFailed || t.Status == TaskPartial
}

// FinalStatus derives the terminal status from the counters.
// Every item failed → failed; every item succeeded → completed;
// anything mixed → partial.
func (t *Task) FinalStatus() TaskStatus {
	switch {
	case t.FailedCount == t.TotalCount:
		return TaskFailed
	case t.CompletedCount == t.TotalCount:
		return TaskCompleted
	default:
		return TaskPartial
	}
}

// Clone returns a deep copy safe to hand across the API boundary
// while the worker keeps mutating the original.
func (t *Task) Clone() *Task {
	c := *t
	c.Prompts = append([]string(nil), t.Prompts...)
	c.Results = append([]Result(nil), t.Results...)
	return &c
}
