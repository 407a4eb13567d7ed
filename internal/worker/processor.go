package worker

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/reachlabs/reach-be/internal/delivery"
	"github.com/reachlabs/reach-be/internal/job"
	"github.com/reachlabs/reach-be/internal/queue"
	"github.com/reachlabs/reach-be/internal/worker/storage"
)

// outcome is what a single execution attempt produced, success or not. The
// terminal outcome feeds the one activity record every processed job gets.
type outcome struct {
	channel   delivery.Channel
	address   string
	content   string
	messageID string
	contactID string
}

// processJob runs the full lifecycle for one claimed job: decode the typed
// payload, execute with the queue's retry envelope, transition the row to a
// terminal state, and write exactly one activity record. The returned error
// is non-nil only when the job could not be claimed; a claimed job never
// leaves here without a terminal state.
func (w *Worker) processJob(ctx context.Context, spec queue.Spec, t task) error {
	env, err := w.store.ClaimJob(ctx, t.msg.JobID, w.workerID)
	if err != nil {
		return err
	}

	w.logger.Info("Processing job",
		slog.String("job_id", env.JobID),
		slog.String("tenant_id", env.TenantID),
		slog.String("queue", spec.Name),
		slog.String("worker_id", w.workerID),
	)

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	heartbeatDone := make(chan struct{})
	go w.sendHeartbeat(jobCtx, env.JobID, heartbeatDone)
	defer close(heartbeatDone)

	payload, err := job.DecodePayload(env.Kind, env.Payload)
	if err != nil {
		w.finish(ctx, spec, env, outcome{channel: delivery.ChannelNone}, err)
		return nil
	}

	out, runErr := w.runWithRetry(jobCtx, spec, env, payload)
	w.finish(ctx, spec, env, out, runErr)
	return nil
}

// runWithRetry executes the job until it succeeds, fails terminally, or the
// retry budget is exhausted. Backoff is exponential on the queue's base
// delay: base, 2*base, 4*base between attempts.
func (w *Worker) runWithRetry(ctx context.Context, spec queue.Spec, env *job.Envelope, payload any) (outcome, error) {
	var out outcome
	var runErr error

	for attempt := env.AttemptCount + 1; attempt <= spec.MaxAttempts; attempt++ {
		if err := w.store.RecordAttempt(ctx, env.JobID, attempt); err != nil {
			w.logger.Warn("Failed to record attempt",
				slog.String("job_id", env.JobID),
				slog.Any("error", err),
			)
		}
		env.AttemptCount = attempt

		out, runErr = w.runOnce(ctx, env, payload)
		if runErr == nil {
			return out, nil
		}

		if !job.IsRetryable(runErr) {
			return out, runErr
		}

		w.logger.Warn("Attempt failed with transient error",
			slog.String("job_id", env.JobID),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", spec.MaxAttempts),
			slog.Any("error", runErr),
		)

		if attempt < spec.MaxAttempts {
			if w.metrics != nil {
				w.metrics.JobsRetried.WithLabelValues(spec.Name).Inc()
			}

			delay := spec.BackoffBase << (attempt - 1)
			if err := w.sleep(ctx, delay); err != nil {
				return out, fmt.Errorf("retry wait aborted: %w", err)
			}
		}
	}

	return out, fmt.Errorf("retries exhausted after %d attempts: %w", spec.MaxAttempts, runErr)
}

// runOnce executes one attempt for one typed payload.
func (w *Worker) runOnce(ctx context.Context, env *job.Envelope, payload any) (outcome, error) {
	switch p := payload.(type) {
	case *job.ReminderPayload:
		return w.runMessage(ctx, env, p.ContactID, p.Template, messageData{
			Subject:     p.Subject,
			ScheduledAt: p.ScheduledAt,
		})

	case *job.NurturePayload:
		return w.runMessage(ctx, env, p.ContactID, p.Template, messageData{
			Step: p.Step,
		})

	case *job.DunningPayload:
		return w.runMessage(ctx, env, p.ContactID, p.Template, messageData{
			Amount:      formatCents(p.AmountCents),
			DaysOverdue: p.DaysOverdue,
		})

	case *job.SnapshotPayload:
		return w.runSnapshot(ctx, env, p)
	}

	return outcome{channel: delivery.ChannelNone}, fmt.Errorf("%w: unsupported payload type %T", job.ErrInvalidPayload, payload)
}

// runMessage is the shared pipeline for the three message-sending kinds:
// resolve the contact, pick a channel, render, deliver.
func (w *Worker) runMessage(ctx context.Context, env *job.Envelope, contactID, tmpl string, data messageData) (outcome, error) {
	out := outcome{channel: delivery.ChannelNone, contactID: contactID}

	contact, err := w.store.ResolveContact(ctx, env.TenantID, contactID)
	if err != nil {
		return out, err
	}

	channel, address, err := selectChannel(contact)
	if err != nil {
		return out, err
	}
	out.channel = channel
	out.address = address

	data.FirstName = contact.FirstName
	data.LastName = contact.LastName

	content, err := renderMessage(env.Kind, tmpl, data)
	if err != nil {
		return out, err
	}
	out.content = content

	res, err := w.adapter.Deliver(ctx, channel, address, content)
	if err != nil {
		return out, err
	}

	out.messageID = res.ProviderMessageID
	return out, nil
}

// runSnapshot computes the tenant's daily metrics instead of sending a
// message. Store errors are transient so the standard retry envelope
// applies.
func (w *Worker) runSnapshot(ctx context.Context, env *job.Envelope, p *job.SnapshotPayload) (outcome, error) {
	out := outcome{channel: delivery.ChannelNone}

	date := w.now()
	if p.Date != "" {
		// Format was validated at payload decode.
		date, _ = time.Parse(job.DateLayout, p.Date)
	}

	m, err := w.snapshots.Run(ctx, env.TenantID, date)
	if err != nil {
		return out, job.Transient(err)
	}

	out.content = fmt.Sprintf("daily metrics snapshot for %s: leads=%d deals_won=%d revenue=%d show_rate=%.2f",
		m.Date.Format(job.DateLayout), m.LeadsCount, m.DealsWonCount, m.RevenueTotal, m.AppointmentShowRate)
	return out, nil
}

// finish moves the job to its terminal state and writes the single activity
// record, on success and on exhausted failure alike. The activity row is
// the audit trail proving the system attempted contact.
func (w *Worker) finish(ctx context.Context, spec queue.Spec, env *job.Envelope, out outcome, runErr error) {
	succeeded := runErr == nil

	if succeeded {
		if err := w.store.CompleteJob(ctx, env.JobID); err != nil {
			w.logger.Error("Failed to mark job completed",
				slog.String("job_id", env.JobID),
				slog.Any("error", err),
			)
		}
		if w.metrics != nil {
			w.metrics.JobsCompleted.WithLabelValues(spec.Name).Inc()
		}
		w.logger.Info("Job completed",
			slog.String("job_id", env.JobID),
			slog.String("queue", spec.Name),
			slog.String("channel", string(out.channel)),
		)
	} else {
		if err := w.store.FailJob(ctx, env.JobID, runErr.Error()); err != nil {
			w.logger.Error("Failed to mark job failed",
				slog.String("job_id", env.JobID),
				slog.Any("error", err),
			)
		}
		if w.metrics != nil {
			w.metrics.JobsFailed.WithLabelValues(spec.Name).Inc()
		}
		w.logger.Error("Job failed terminally",
			slog.String("job_id", env.JobID),
			slog.String("queue", spec.Name),
			slog.Int("attempts", env.AttemptCount),
			slog.Any("error", runErr),
		)
	}

	activity := &storage.Activity{
		TenantID:  env.TenantID,
		JobID:     env.JobID,
		Channel:   string(out.channel),
		Content:   out.content,
		Succeeded: succeeded,
	}
	if out.contactID != "" {
		activity.ContactID = sql.NullString{String: out.contactID, Valid: true}
	}
	if out.messageID != "" {
		activity.ProviderMessageID = sql.NullString{String: out.messageID, Valid: true}
	}

	if err := w.store.RecordActivity(ctx, activity); err != nil {
		w.logger.Error("Failed to record activity",
			slog.String("job_id", env.JobID),
			slog.Any("error", err),
		)
	}
}

// sendHeartbeat periodically refreshes the job's heartbeat so the reaper
// does not reclaim an execution that is merely slow.
func (w *Worker) sendHeartbeat(ctx context.Context, jobID string, done <-chan struct{}) {
	interval := w.heartbeatInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.store.UpdateHeartbeat(ctx, jobID); err != nil {
				w.logger.Warn("Failed to update heartbeat",
					slog.String("job_id", jobID),
					slog.Any("error", err),
				)
			}
		}
	}
}
