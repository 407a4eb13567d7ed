package dto

import "encoding/json"

// CreateJobRequest is the body for POST /api/v1/jobs.
type CreateJobRequest struct {
	JobKind  string          `json:"job_kind" binding:"required"`
	TenantID string          `json:"tenant_id" binding:"required"`
	Payload  json.RawMessage `json:"payload"`
}

// CreateJobResponse acknowledges an accepted job. Enqueue is fire-and-forget:
// no processing result is ever returned here.
type CreateJobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// JobResponse is the read model for GET /api/v1/jobs/:job_id.
type JobResponse struct {
	JobID        string          `json:"job_id"`
	TenantID     string          `json:"tenant_id"`
	JobKind      string          `json:"job_kind"`
	Payload      json.RawMessage `json:"payload"`
	Status       string          `json:"status"`
	AttemptCount int             `json:"attempt_count"`
	LastError    string          `json:"last_error,omitempty"`
	EnqueuedAt   string          `json:"enqueued_at"`
	UpdatedAt    string          `json:"updated_at"`
}

// ListActivitiesRequest holds the query parameters for GET /api/v1/activities.
type ListActivitiesRequest struct {
	TenantID  string `form:"tenant_id" binding:"required"`
	Succeeded *bool  `form:"succeeded"`
	PageSize  int    `form:"page_size"`
	Cursor    string `form:"cursor"`
}

// ActivityDTO is one activity row on the wire.
type ActivityDTO struct {
	ActivityID        string `json:"activity_id"`
	TenantID          string `json:"tenant_id"`
	ContactID         string `json:"contact_id,omitempty"`
	JobID             string `json:"job_id"`
	Channel           string `json:"channel"`
	Content           string `json:"content"`
	Succeeded         bool   `json:"succeeded"`
	ProviderMessageID string `json:"provider_message_id,omitempty"`
	CreatedAt         string `json:"created_at"`
}

// ListActivitiesResponse is the paginated activity listing.
type ListActivitiesResponse struct {
	Activities []ActivityDTO `json:"activities"`
	NextCursor string        `json:"next_cursor,omitempty"`
}
