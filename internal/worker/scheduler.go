package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/reachlabs/reach-be/internal/job"
)

// runSnapshotScheduler enqueues one snapshot job per tenant once a day,
// shortly after the configured hour, covering the previous calendar day.
func (w *Worker) runSnapshotScheduler(ctx context.Context) {
	defer w.wg.Done()

	w.logger.Info("Snapshot scheduler started",
		slog.Int("hour", w.snapshotHour),
	)

	for {
		next := w.nextSnapshotTime()
		timer := time.NewTimer(next.Sub(w.now()))

		select {
		case <-w.stopChan:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			w.enqueueSnapshots(ctx)
		}
	}
}

// nextSnapshotTime returns the next occurrence of the snapshot hour.
func (w *Worker) nextSnapshotTime() time.Time {
	now := w.now()
	next := time.Date(now.Year(), now.Month(), now.Day(), w.snapshotHour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// enqueueSnapshots creates one snapshot job per tenant for yesterday.
func (w *Worker) enqueueSnapshots(ctx context.Context) {
	tenants, err := w.store.ListTenants(ctx)
	if err != nil {
		w.logger.Error("Failed to list tenants for snapshots",
			slog.Any("error", err),
		)
		return
	}

	date := w.now().AddDate(0, 0, -1).Format(job.DateLayout)
	payload, _ := json.Marshal(job.SnapshotPayload{Date: date})

	for _, tenant := range tenants {
		jobID, err := w.enqueuer.Enqueue(ctx, job.KindSnapshot, tenant, payload)
		if err != nil {
			w.logger.Error("Failed to enqueue snapshot job",
				slog.String("tenant_id", tenant),
				slog.String("date", date),
				slog.Any("error", err),
			)
			continue
		}

		w.logger.Info("Snapshot job enqueued",
			slog.String("tenant_id", tenant),
			slog.String("date", date),
			slog.String("job_id", jobID),
		)
	}

	w.logger.Info(fmt.Sprintf("Snapshot jobs scheduled for %d tenants", len(tenants)),
		slog.String("date", date),
	)
}
