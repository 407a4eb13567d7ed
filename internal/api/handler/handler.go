package handler

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/reachlabs/reach-be/internal/api/storage"
	"github.com/reachlabs/reach-be/internal/job"
	"github.com/reachlabs/reach-be/internal/queue"
)

// Enqueuer is the producer-side queue contract the handlers call into.
type Enqueuer interface {
	Enqueue(ctx context.Context, kind job.Kind, tenantID string, payload json.RawMessage) (string, error)
}

// HealthReporter reads per-queue job counts.
type HealthReporter interface {
	Report(ctx context.Context) queue.Health
}

// Dependencies holds everything the handlers need.
type Dependencies struct {
	Logger   *slog.Logger
	Storage  *storage.Storage
	Enqueuer Enqueuer
	Health   HealthReporter
}

// Handler serves the job and activity endpoints.
type Handler struct {
	logger   *slog.Logger
	storage  *storage.Storage
	enqueuer Enqueuer
	health   HealthReporter
}

// NewHandler creates a Handler from its dependencies.
func NewHandler(deps *Dependencies) *Handler {
	return &Handler{
		logger:   deps.Logger,
		storage:  deps.Storage,
		enqueuer: deps.Enqueuer,
		health:   deps.Health,
	}
}
