package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/reachlabs/reach-be/internal/api/dto"
	"github.com/reachlabs/reach-be/internal/job"
)

// CreateJob handles POST /api/v1/jobs
// Validates the request and places the job on its queue. The response only
// acknowledges acceptance; processing happens asynchronously.
func (h *Handler) CreateJob(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	jobID, err := h.enqueuer.Enqueue(c.Request.Context(), job.Kind(req.JobKind), req.TenantID, req.Payload)
	if err != nil {
		if errors.Is(err, job.ErrInvalidJobRequest) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": err.Error(),
			})
			return
		}

		h.logger.Error("Failed to enqueue job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to enqueue job",
		})
		return
	}

	c.JSON(http.StatusAccepted, dto.CreateJobResponse{
		JobID:  jobID,
		Status: "waiting",
	})
}

// GetJob handles GET /api/v1/jobs/:job_id
// Retrieves the lifecycle state of one job.
func (h *Handler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	env, err := h.storage.GetJob(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
			return
		}

		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job",
		})
		return
	}

	resp := dto.JobResponse{
		JobID:        env.JobID,
		TenantID:     env.TenantID,
		JobKind:      string(env.Kind),
		Payload:      env.Payload,
		Status:       env.Status,
		AttemptCount: env.AttemptCount,
		EnqueuedAt:   env.EnqueuedAt.Format(time.RFC3339),
		UpdatedAt:    env.UpdatedAt.Format(time.RFC3339),
	}
	if env.LastError.Valid {
		resp.LastError = env.LastError.String
	}

	c.JSON(http.StatusOK, resp)
}

// QueueHealth handles GET /api/v1/queues/health
// Reports per-queue job counts. Always 200: read failures surface as an
// unhealthy payload, never as an error response.
func (h *Handler) QueueHealth(c *gin.Context) {
	c.JSON(http.StatusOK, h.health.Report(c.Request.Context()))
}
