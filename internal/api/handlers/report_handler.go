package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"tradenest/marketplace/internal/api/middleware"
	"tradenest/marketplace/internal/models"
	"tradenest/marketplace/internal/services"
	"tradenest/marketplace/internal/tasks"
)

// ReportHandler handles abuse report intake. The route carries optional
// authentication: anonymous reports are accepted.
type ReportHandler struct {
	moderation services.IModerationService
	taskClient IAsynqClient
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(moderation services.IModerationService, taskClient IAsynqClient) *ReportHandler {
	return &ReportHandler{moderation: moderation, taskClient: taskClient}
}

type createReportRequest struct {
	TargetType  string `json:"target_type" binding:"required"`
	TargetID    string `json:"target_id"`
	Reason      string `json:"reason"`
	Description string `json:"description" binding:"required"`
}

// CreateReport handles POST /v1/report
func (h *ReportHandler) CreateReport(c *gin.Context) {
	var req createReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	var reporterID *primitive.ObjectID
	if id, ok := middleware.CallerID(c); ok {
		reporterID = &id
	}

	var targetID *primitive.ObjectID
	if req.TargetID != "" {
		id, err := primitive.ObjectIDFromHex(req.TargetID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid target_id format"})
			return
		}
		targetID = &id
	}

	report, err := h.moderation.CreateReport(c.Request.Context(), reporterID, services.CreateReportInput{
		TargetType:  models.ReportTargetType(req.TargetType),
		TargetID:    targetID,
		Reason:      req.Reason,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	if h.taskClient != nil {
		if task, err := tasks.NewReportFiledTask(report.ID); err == nil {
			if _, err := h.taskClient.EnqueueContext(c.Request.Context(), task); err != nil {
				log.Printf("Failed to enqueue report notification for %s: %v", report.ID.Hex(), err)
			}
		}
	}

	c.JSON(http.StatusCreated, gin.H{"data": report})
}
