package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/reachlabs/reach-be/internal/job"
)

const reapBatchSize = 100

// runReaper periodically reclaims stalled jobs and prunes terminal rows
// beyond each queue's retention.
func (w *Worker) runReaper(ctx context.Context) {
	defer w.wg.Done()

	interval := w.reaperInterval
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.Info("Reaper started",
		slog.Duration("interval", interval),
		slog.Duration("stall_threshold", w.stallThreshold),
	)

	for {
		select {
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.reapOnce(ctx)
		}
	}
}

// reapOnce runs one reclaim pass. A job whose heartbeat went stale counts
// as a failed attempt: it returns to WAITING with its attempt count intact
// and gets republished.
func (w *Worker) reapOnce(ctx context.Context) {
	stale, err := w.store.ReleaseStaleJobs(ctx, w.stallThreshold, reapBatchSize)
	if err != nil {
		w.logger.Error("Failed to release stale jobs",
			slog.Any("error", err),
		)
	} else {
		w.republish(ctx, stale, "stale")
	}

	// Jobs persisted but never published (broker outage during enqueue).
	waiting, err := w.store.WaitingJobsOlderThan(ctx, w.stallThreshold, reapBatchSize)
	if err != nil {
		w.logger.Error("Failed to list unclaimed waiting jobs",
			slog.Any("error", err),
		)
	} else {
		w.republish(ctx, waiting, "unclaimed")
	}

	for _, spec := range w.registry.All() {
		pruned, err := w.store.PruneTerminalJobs(ctx, spec.Kind, spec.Retention)
		if err != nil {
			w.logger.Error("Failed to prune terminal jobs",
				slog.String("queue", spec.Name),
				slog.Any("error", err),
			)
			continue
		}
		if pruned > 0 {
			w.logger.Info("Pruned terminal jobs",
				slog.String("queue", spec.Name),
				slog.Int64("pruned", pruned),
			)
		}
	}
}

// republish pushes reclaimed job messages back onto their queues.
func (w *Worker) republish(ctx context.Context, msgs []job.Message, reason string) {
	for _, m := range msgs {
		body, err := json.Marshal(m)
		if err != nil {
			w.logger.Error("Failed to marshal reclaimed job",
				slog.String("job_id", m.JobID),
				slog.Any("error", err),
			)
			continue
		}

		if err := w.broker.Publish(ctx, string(m.Kind), body, "application/json"); err != nil {
			w.logger.Error("Failed to republish reclaimed job",
				slog.String("job_id", m.JobID),
				slog.String("reason", reason),
				slog.Any("error", err),
			)
			continue
		}

		w.logger.Info("Reclaimed job republished",
			slog.String("job_id", m.JobID),
			slog.String("kind", string(m.Kind)),
			slog.String("reason", reason),
		)
	}
}
