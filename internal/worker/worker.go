package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/reachlabs/reach-be/internal/delivery"
	"github.com/reachlabs/reach-be/internal/job"
	"github.com/reachlabs/reach-be/internal/queue"
	"github.com/reachlabs/reach-be/internal/snapshot"
	"github.com/reachlabs/reach-be/internal/worker/storage"
)

// Store is the database contract the worker runtime depends on.
type Store interface {
	ClaimJob(ctx context.Context, jobID, workerID string) (*job.Envelope, error)
	RecordAttempt(ctx context.Context, jobID string, attempt int) error
	CompleteJob(ctx context.Context, jobID string) error
	FailJob(ctx context.Context, jobID, lastError string) error
	UpdateHeartbeat(ctx context.Context, jobID string) error
	ResolveContact(ctx context.Context, tenantID, contactID string) (*storage.Contact, error)
	RecordActivity(ctx context.Context, a *storage.Activity) error
	ListTenants(ctx context.Context) ([]string, error)
	ReleaseStaleJobs(ctx context.Context, threshold time.Duration, limit int) ([]job.Message, error)
	WaitingJobsOlderThan(ctx context.Context, threshold time.Duration, limit int) ([]job.Message, error)
	PruneTerminalJobs(ctx context.Context, kind job.Kind, keep int) (int64, error)
}

// Broker is the AMQP surface the worker consumes from and republishes to.
type Broker interface {
	Consume(queueName, consumerTag string, prefetch int) (<-chan amqp.Delivery, *amqp.Channel, error)
	Publish(ctx context.Context, routingKey string, body []byte, contentType string) error
}

// SnapshotRunner computes and stores one tenant-day metric snapshot.
type SnapshotRunner interface {
	Run(ctx context.Context, tenantID string, date time.Time) (*snapshot.Metrics, error)
}

// Enqueuer creates jobs; the snapshot scheduler uses it to trigger the
// nightly per-tenant snapshot jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, kind job.Kind, tenantID string, payload json.RawMessage) (string, error)
}

// Config holds worker configuration
type Config struct {
	Logger            *slog.Logger
	Store             Store
	Broker            Broker
	Registry          *queue.Registry
	Adapter           delivery.Adapter
	Snapshots         SnapshotRunner
	Enqueuer          Enqueuer
	Metrics           *queue.Metrics
	JobTimeout        time.Duration
	HeartbeatInterval time.Duration
	StallThreshold    time.Duration
	ReaperInterval    time.Duration
	SnapshotHour      int
}

// Worker runs one processor pool per registered queue, plus the stale-job
// reaper and the snapshot scheduler.
type Worker struct {
	logger            *slog.Logger
	store             Store
	broker            Broker
	registry          *queue.Registry
	adapter           delivery.Adapter
	snapshots         SnapshotRunner
	enqueuer          Enqueuer
	metrics           *queue.Metrics
	jobTimeout        time.Duration
	heartbeatInterval time.Duration
	stallThreshold    time.Duration
	reaperInterval    time.Duration
	snapshotHour      int

	workerID string
	wg       sync.WaitGroup
	stopChan chan struct{}

	// sleep is the backoff wait between retry attempts; tests replace it.
	sleep func(ctx context.Context, d time.Duration) error

	// now is the clock; tests replace it.
	now func() time.Time
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	return &Worker{
		logger:            cfg.Logger,
		store:             cfg.Store,
		broker:            cfg.Broker,
		registry:          cfg.Registry,
		adapter:           cfg.Adapter,
		snapshots:         cfg.Snapshots,
		enqueuer:          cfg.Enqueuer,
		metrics:           cfg.Metrics,
		jobTimeout:        cfg.JobTimeout,
		heartbeatInterval: cfg.HeartbeatInterval,
		stallThreshold:    cfg.StallThreshold,
		reaperInterval:    cfg.ReaperInterval,
		snapshotHour:      cfg.SnapshotHour,
		workerID:          fmt.Sprintf("worker-%s", uuid.New().String()[:8]),
		stopChan:          make(chan struct{}),
		sleep:             sleepCtx,
		now:               time.Now,
	}
}

// Start begins consuming from every registered queue. It blocks until the
// context is canceled or a consumer setup fails.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	for _, spec := range w.registry.All() {
		deliveries, _, err := w.broker.Consume(spec.Name, fmt.Sprintf("%s-%s", w.workerID, spec.Name), spec.Concurrency)
		if err != nil {
			return fmt.Errorf("failed to start consumer for queue %s: %w", spec.Name, err)
		}

		jobsChan := make(chan task, spec.Concurrency)
		w.spawnPool(ctx, spec, jobsChan)

		w.wg.Add(1)
		go w.dispatch(ctx, spec, deliveries, jobsChan)
	}

	w.wg.Add(1)
	go w.runReaper(ctx)

	if w.enqueuer != nil {
		w.wg.Add(1)
		go w.runSnapshotScheduler(ctx)
	}

	w.logger.Info("Worker started",
		slog.Int("queues", len(w.registry.All())),
	)

	<-ctx.Done()
	return nil
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}

// sleepCtx waits d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
