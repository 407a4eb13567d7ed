package queue

import (
	"context"
	"log/slog"

	"github.com/reachlabs/reach-be/internal/job"
)

// Counts holds the number of jobs per lifecycle state for one queue.
type Counts struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// CountSource reads lifecycle-state counts grouped by job kind.
type CountSource interface {
	JobStatusCounts(ctx context.Context) (map[job.Kind]Counts, error)
}

// Health is the reported status of the queue set.
type Health struct {
	Healthy bool              `json:"healthy"`
	Error   string            `json:"error,omitempty"`
	Queues  map[string]Counts `json:"queues"`
}

// HealthReporter exposes per-queue job counts for operational dashboards.
// It is a pure read and never raises: read errors are reported as an
// unhealthy payload.
type HealthReporter struct {
	registry *Registry
	source   CountSource
	metrics  *Metrics
	logger   *slog.Logger
}

// NewHealthReporter creates a HealthReporter.
func NewHealthReporter(registry *Registry, source CountSource, metrics *Metrics, logger *slog.Logger) *HealthReporter {
	return &HealthReporter{
		registry: registry,
		source:   source,
		metrics:  metrics,
		logger:   logger,
	}
}

// Report returns the counts for every registered queue. Queues with no jobs
// report zeros rather than being omitted.
func (h *HealthReporter) Report(ctx context.Context) Health {
	counts, err := h.source.JobStatusCounts(ctx)
	if err != nil {
		h.logger.Error("Queue health read failed",
			slog.Any("error", err),
		)
		return Health{
			Healthy: false,
			Error:   err.Error(),
			Queues:  map[string]Counts{},
		}
	}

	queues := make(map[string]Counts, len(h.registry.All()))
	for _, spec := range h.registry.All() {
		c := counts[spec.Kind]
		queues[spec.Name] = c

		if h.metrics != nil {
			h.metrics.QueueWaiting.WithLabelValues(spec.Name).Set(float64(c.Waiting))
			h.metrics.QueueActive.WithLabelValues(spec.Name).Set(float64(c.Active))
		}
	}

	return Health{Healthy: true, Queues: queues}
}
