// Package worker drains the task queue, one task at a time.
//
// A single loop claims the queue head when idle and runs every prompt
// of the claimed task in order against the key pool, applying the
// retry policy per item. Only this loop mutates task progress and key
// cooldown state while a task is in flight, so failures are always
// attributable to the key that produced them.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/brushwork-ai/brushwork/internal/domain"
	"github.com/brushwork-ai/brushwork/internal/keypool"
	"github.com/brushwork-ai/brushwork/internal/metrics"
	"github.com/brushwork-ai/brushwork/internal/queue"
	"github.com/brushwork-ai/brushwork/internal/storage"
)

// Generator is the external image-generation collaborator. Failures
// are tagged *domain.GenerationError; anything else is treated as
// transient.
type Generator interface {
	Generate(ctx context.Context, key, prompt, refImagePath string) ([]byte, error)
}

// Config sets the worker's fixed delays.
type Config struct {
	PollInterval time.Duration // idle re-check interval (fallback to the wake signal)
	RetryDelay   time.Duration // pause between attempts of one item
	ItemDelay    time.Duration // pause between items of one task
}

// DefaultConfig mirrors the tuning the pipeline was built around.
func DefaultConfig() Config {
	return Config{
		PollInterval: 2 * time.Second,
		RetryDelay:   2 * time.Second,
		ItemDelay:    time.Second,
	}
}

// Worker is the single background consumer of the queue.
type Worker struct {
	manager *queue.Manager
	pool    *keypool.Pool
	gen     Generator
	files   *storage.Files
	cfg     Config
	logger  zerolog.Logger
}

// New wires a worker.
func New(manager *queue.Manager, pool *keypool.Pool, gen Generator, files *storage.Files, cfg Config, logger zerolog.Logger) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	return &Worker{
		manager: manager,
		pool:    pool,
		gen:     gen,
		files:   files,
		cfg:     cfg,
		logger:  logger.With().Str("component", "worker").Logger(),
	}
}

// Run blocks until ctx is cancelled. It drains the queue whenever the
// wake signal fires or the poll tick elapses.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.logger.Info().Dur("poll_interval", w.cfg.PollInterval).Msg("worker started")

	// Drain anything reconciled at startup before the first tick.
	w.drain(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("worker stopped")
			return
		case <-w.manager.Wake():
			w.drain(ctx)
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// drain processes queued tasks until the queue is empty or ctx ends.
func (w *Worker) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		task, ok := w.manager.Claim()
		if !ok {
			return
		}
		err := w.process(ctx, task)
		w.manager.Release()
		if err != nil {
			// Shutdown mid-task: the task stays "processing" and is
			// re-queued by reconciliation on the next start.
			w.logger.Warn().Err(err).Str("task_id", task.ID).Msg("task interrupted")
			return
		}
	}
}

// process runs every prompt of the task to completion. It only errors
// on context cancellation; item failures are recorded, never raised.
func (w *Worker) process(ctx context.Context, task *domain.Task) error {
	logger := w.logger.With().Str("task_id", task.ID).Logger()
	logger.Info().Int("items", task.TotalCount).Msg("processing task")

	for i, prompt := range task.Prompts {
		if i < len(task.Results) {
			// Result recorded before an interrupted run; keep it.
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		result, err := w.processItem(ctx, task, prompt)
		if err != nil {
			// Shutdown mid-attempt: record nothing, so the interrupted
			// item is retried after reconciliation re-queues the task.
			return err
		}
		if err := w.manager.Update(task.ID, func(t *domain.Task) {
			t.Results = append(t.Results, result)
			if result.Status == domain.ResultSuccess {
				t.CompletedCount++
			} else {
				t.FailedCount++
			}
		}); err != nil {
			// Task deleted mid-processing: stop quietly.
			logger.Warn().Err(err).Msg("task vanished while processing")
			return nil
		}
		metrics.ItemsProcessed.WithLabelValues(string(result.Status)).Inc()

		// Fixed pause between items keeps burst pressure off the API.
		if err := sleep(ctx, w.cfg.ItemDelay); err != nil {
			return err
		}
	}

	var final domain.TaskStatus
	if err := w.manager.Update(task.ID, func(t *domain.Task) {
		t.Status = t.FinalStatus()
		final = t.Status
	}); err != nil {
		return nil
	}
	metrics.TasksProcessed.WithLabelValues(string(final)).Inc()

	// The reference upload lives only as long as its task.
	if task.InputImagePath != "" && w.files != nil {
		w.files.DeleteUpload(task.InputImagePath)
	}

	logger.Info().Str("status", string(final)).Msg("task finished")
	return nil
}

// processItem attempts one prompt until it succeeds, the retry budget
// runs out, or the failure is not retryable. A non-nil error means the
// context ended mid-attempt and no result was produced.
func (w *Worker) processItem(ctx context.Context, task *domain.Task, prompt string) (domain.Result, error) {
	logger := w.logger.With().Str("task_id", task.ID).Logger()

	// Budget is fixed at item start: two attempts per configured key.
	poolSize := w.pool.Size()

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return domain.Result{}, err
		}
		avail := w.pool.Available()
		if len(avail) == 0 {
			metrics.GenerationAttempts.WithLabelValues(string(domain.FailurePoolEmpty)).Inc()
			d := Decide(attempt, poolSize, &domain.GenerationError{Kind: domain.FailurePoolEmpty})
			return failedResult(prompt, "", d.Reason), nil
		}
		key := avail[0]

		start := time.Now()
		data, err := w.gen.Generate(ctx, key, prompt, task.InputImagePath)
		metrics.GenerationDuration.Observe(time.Since(start).Seconds())

		if err == nil {
			filename, saveErr := w.files.SaveArtifact(task.ID, data)
			if saveErr != nil {
				logger.Error().Err(saveErr).Msg("failed to store artifact")
				return failedResult(prompt, key, "failed to store generated image: "+saveErr.Error()), nil
			}
			metrics.GenerationAttempts.WithLabelValues("success").Inc()
			logger.Info().Str("file", filename).Str("key_suffix", domain.KeySuffix(key)).
				Int("attempt", attempt+1).Msg("image generated")
			return domain.Result{
				Prompt:    prompt,
				Status:    domain.ResultSuccess,
				Filename:  filename,
				KeyUsed:   domain.KeySuffix(key),
				Timestamp: time.Now().UTC(),
			}, nil
		}

		genErr := classify(err)
		metrics.GenerationAttempts.WithLabelValues(string(genErr.Kind)).Inc()
		logger.Warn().Str("kind", string(genErr.Kind)).Str("key_suffix", domain.KeySuffix(key)).
			Int("attempt", attempt+1).Msg("generation attempt failed")

		if genErr.Kind == domain.FailurePermanent {
			return failedResult(prompt, key, Decide(attempt, poolSize, genErr).Reason), nil
		}

		// Quota and transient failures cool the key down before the
		// next attempt picks a different one.
		w.pool.MarkFailed(key)
		metrics.KeyCooldowns.Inc()

		d := Decide(attempt, poolSize, genErr)
		if !d.Retry {
			return failedResult(prompt, key, d.Reason), nil
		}
		if err := sleep(ctx, w.cfg.RetryDelay); err != nil {
			return domain.Result{}, err
		}
	}
}

// classify coerces any error from the generator into the tagged form.
func classify(err error) *domain.GenerationError {
	var genErr *domain.GenerationError
	if errors.As(err, &genErr) {
		return genErr
	}
	return &domain.GenerationError{Kind: domain.FailureTransient, Message: err.Error()}
}

func failedResult(prompt, key, msg string) domain.Result {
	r := domain.Result{
		Prompt:    prompt,
		Status:    domain.ResultFailed,
		Error:     msg,
		Timestamp: time.Now().UTC(),
	}
	if key != "" {
		r.KeyUsed = domain.KeySuffix(key)
	}
	return r
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
