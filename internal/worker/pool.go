package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/reachlabs/reach-be/internal/job"
	"github.com/reachlabs/reach-be/internal/queue"
)

// task pairs a parsed job message with the AMQP delivery that carried it so
// the processing goroutine can ack or nack it.
type task struct {
	msg      *job.Message
	delivery amqp.Delivery
}

// spawnPool spawns one processing goroutine per unit of the queue's
// concurrency limit.
func (w *Worker) spawnPool(ctx context.Context, spec queue.Spec, jobsChan <-chan task) {
	w.logger.Info("Spawning worker pool",
		slog.String("queue", spec.Name),
		slog.Int("concurrency", spec.Concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < spec.Concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, spec, jobsChan, i)
	}
}

// dispatch reads AMQP deliveries for one queue, validates the message
// envelope, and hands tasks to the pool.
func (w *Worker) dispatch(ctx context.Context, spec queue.Spec, deliveries <-chan amqp.Delivery, jobsChan chan<- task) {
	defer w.wg.Done()
	defer close(jobsChan)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Dispatcher stopped - context canceled",
				slog.String("queue", spec.Name),
			)
			return

		case <-w.stopChan:
			w.logger.Info("Dispatcher stopped",
				slog.String("queue", spec.Name),
			)
			return

		case d, ok := <-deliveries:
			if !ok {
				w.logger.Warn("Delivery channel closed",
					slog.String("queue", spec.Name),
				)
				return
			}

			var msg job.Message
			if err := json.Unmarshal(d.Body, &msg); err != nil || msg.JobID == "" {
				w.logger.Error("Malformed job message",
					slog.String("queue", spec.Name),
					slog.String("body", string(d.Body)),
				)
				// Malformed messages can never be processed; drop them.
				if nackErr := d.Nack(false, false); nackErr != nil {
					w.logger.Error("Failed to NACK malformed message",
						slog.Any("error", nackErr),
					)
				}
				continue
			}
			msg.DeliveryTag = d.DeliveryTag

			select {
			case jobsChan <- task{msg: &msg, delivery: d}:
			case <-ctx.Done():
				// Requeue so another worker picks it up.
				if nackErr := d.Nack(false, true); nackErr != nil {
					w.logger.Error("Failed to NACK message on shutdown",
						slog.Any("error", nackErr),
					)
				}
				return
			}
		}
	}
}

// workerLoop is the main processing loop for each pool goroutine. Every job
// reaches a terminal decision here: processed jobs are always acked (their
// lifecycle lives in the jobs table), and only claim-level transient
// failures are requeued to the broker.
func (w *Worker) workerLoop(ctx context.Context, spec queue.Spec, jobsChan <-chan task, slot int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%s-%d", w.workerID, spec.Name, slot)

	for {
		select {
		case <-w.stopChan:
			return

		case <-ctx.Done():
			return

		case t, ok := <-jobsChan:
			if !ok {
				return
			}

			err := w.processJob(ctx, spec, t)

			switch {
			case err == nil:
				if ackErr := t.delivery.Ack(false); ackErr != nil {
					w.logger.Error("Failed to ACK message",
						slog.String("worker_name", workerName),
						slog.String("job_id", t.msg.JobID),
						slog.Any("error", ackErr),
					)
				}

			case errors.Is(err, job.ErrJobAlreadyClaimed):
				// Another worker owns this execution; nothing left to do
				// with the message.
				w.logger.Warn("Job already claimed, skipping",
					slog.String("worker_name", workerName),
					slog.String("job_id", t.msg.JobID),
				)
				if ackErr := t.delivery.Ack(false); ackErr != nil {
					w.logger.Error("Failed to ACK message",
						slog.Any("error", ackErr),
					)
				}

			default:
				// Claiming failed before processing started (store outage,
				// shutdown). Requeue so the job is not lost.
				w.logger.Error("Job claim failed, requeueing",
					slog.String("worker_name", workerName),
					slog.String("job_id", t.msg.JobID),
					slog.Any("error", err),
				)
				if nackErr := t.delivery.Nack(false, true); nackErr != nil {
					w.logger.Error("Failed to NACK message",
						slog.Any("error", nackErr),
					)
				}
			}
		}
	}
}
