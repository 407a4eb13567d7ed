package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/reachlabs/reach-be/internal/api/dto"
	"github.com/reachlabs/reach-be/internal/api/storage"
)

// ListActivities handles GET /api/v1/activities
// Lists a tenant's delivery audit trail with keyset pagination.
func (h *Handler) ListActivities(c *gin.Context) {
	var req dto.ListActivitiesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeActivityCursor(req.Cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	filter := storage.ActivityFilter{
		TenantID:  req.TenantID,
		Succeeded: req.Succeeded,
		PageSize:  req.PageSize,
		Cursor:    cursor,
	}

	records, err := h.storage.ListActivities(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list activities", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list activities",
		})
		return
	}

	hasMore := len(records) > req.PageSize
	if hasMore {
		records = records[:req.PageSize]
	}

	activities := make([]dto.ActivityDTO, len(records))
	for i, r := range records {
		activities[i] = dto.ActivityDTO{
			ActivityID: r.ActivityID,
			TenantID:   r.TenantID,
			JobID:      r.JobID,
			Channel:    r.Channel,
			Content:    r.Content,
			Succeeded:  r.Succeeded,
			CreatedAt:  r.CreatedAt.Format(time.RFC3339),
		}
		if r.ContactID.Valid {
			activities[i].ContactID = r.ContactID.String
		}
		if r.ProviderMessageID.Valid {
			activities[i].ProviderMessageID = r.ProviderMessageID.String
		}
	}

	var nextCursor string
	if hasMore {
		last := records[len(records)-1]
		nextCursor = EncodeActivityCursor(&storage.ActivityCursor{
			CreatedAt:  last.CreatedAt,
			ActivityID: last.ActivityID,
		})
	}

	c.JSON(http.StatusOK, dto.ListActivitiesResponse{
		Activities: activities,
		NextCursor: nextCursor,
	})
}
