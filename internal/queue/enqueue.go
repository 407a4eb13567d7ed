package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/reachlabs/reach-be/internal/job"
)

// JobStore persists job envelopes. Implemented by the API storage layer.
type JobStore interface {
	InsertJob(ctx context.Context, env *job.Envelope) error
}

// Publisher pushes job messages to the broker.
type Publisher interface {
	PublishWithRetry(ctx context.Context, routingKey string, body []byte, contentType string) error
}

// Enqueuer is the only sanctioned entry point for creating jobs. It
// guarantees every job carries a tenant id and a recognized kind before it
// reaches a queue. Payload shape is not validated here; the worker decodes
// it into the typed variant for the kind.
type Enqueuer struct {
	registry  *Registry
	store     JobStore
	publisher Publisher
	metrics   *Metrics
	logger    *slog.Logger
}

// NewEnqueuer creates an Enqueuer.
func NewEnqueuer(registry *Registry, store JobStore, publisher Publisher, metrics *Metrics, logger *slog.Logger) *Enqueuer {
	return &Enqueuer{
		registry:  registry,
		store:     store,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

// Enqueue validates the request, persists the envelope, and publishes a
// message to the kind's queue. Returns the job id synchronously; processing
// results are never returned here.
func (e *Enqueuer) Enqueue(ctx context.Context, kind job.Kind, tenantID string, payload json.RawMessage) (string, error) {
	if strings.TrimSpace(tenantID) == "" {
		return "", fmt.Errorf("%w: tenant_id is required", job.ErrInvalidJobRequest)
	}

	spec, ok := e.registry.Spec(kind)
	if !ok || !kind.Valid() {
		return "", fmt.Errorf("%w: unrecognized job kind %q", job.ErrInvalidJobRequest, kind)
	}

	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}

	now := time.Now().UTC()
	env := &job.Envelope{
		JobID:        uuid.New().String(),
		TenantID:     tenantID,
		Kind:         kind,
		Payload:      payload,
		Status:       job.StatusWaiting,
		AttemptCount: 0,
		EnqueuedAt:   now,
		UpdatedAt:    now,
	}

	if err := e.store.InsertJob(ctx, env); err != nil {
		return "", fmt.Errorf("failed to persist job: %w", err)
	}

	body, err := json.Marshal(job.Message{
		JobID:    env.JobID,
		TenantID: env.TenantID,
		Kind:     env.Kind,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal job message: %w", err)
	}

	if err := e.publisher.PublishWithRetry(ctx, string(kind), body, "application/json"); err != nil {
		// The row stays WAITING; the reaper republishes unclaimed waiting
		// jobs, so the job is delayed rather than lost.
		e.logger.Error("Failed to publish job message",
			slog.String("job_id", env.JobID),
			slog.String("queue", spec.Name),
			slog.Any("error", err),
		)
		return "", fmt.Errorf("failed to publish job: %w", err)
	}

	if e.metrics != nil {
		e.metrics.JobsEnqueued.WithLabelValues(spec.Name).Inc()
	}

	e.logger.Info("Job enqueued",
		slog.String("job_id", env.JobID),
		slog.String("tenant_id", tenantID),
		slog.String("queue", spec.Name),
	)

	return env.JobID, nil
}
