// Package metrics provides Prometheus metrics for brushwork:
// generation attempts, task outcomes, key cooldowns, and queue depth.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// GenerationAttempts counts individual Gemini calls by outcome
// (success, quota_exhausted, transient, permanent).
var GenerationAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "brushwork",
	Name:      "generation_attempts_total",
	Help:      "Total generation attempts by outcome.",
}, []string{"outcome"})

// GenerationDuration tracks the wall-clock time of one Gemini call.
var GenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "brushwork",
	Name:      "generation_duration_seconds",
	Help:      "Duration of a single generation call in seconds.",
	Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
})

// TasksProcessed counts drained tasks by final status
// (completed, failed, partial).
var TasksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "brushwork",
	Name:      "tasks_processed_total",
	Help:      "Total tasks drained by final status.",
}, []string{"status"})

// ItemsProcessed counts finished job items by result status.
var ItemsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "brushwork",
	Name:      "items_processed_total",
	Help:      "Total job items finished by result status.",
}, []string{"status"})

// KeyCooldowns counts how often a key was put into cooldown.
var KeyCooldowns = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "brushwork",
	Name:      "key_cooldowns_total",
	Help:      "Total times an API key entered cooldown.",
})

// QueueLength tracks the number of tasks waiting in the queue.
var QueueLength = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "brushwork",
	Name:      "queue_length",
	Help:      "Tasks currently waiting in the pending queue.",
})

// ProcessingActive is 1 while the worker is draining a task.
var ProcessingActive = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "brushwork",
	Name:      "processing_active",
	Help:      "Whether a task is currently being processed (0 or 1).",
})
