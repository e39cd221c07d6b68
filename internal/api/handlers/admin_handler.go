package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tradenest/marketplace/internal/api/middleware"
	"tradenest/marketplace/internal/models"
	"tradenest/marketplace/internal/services"
	"tradenest/marketplace/internal/tasks"
)

// AdminHandler exposes the moderation surface. Every route behind it is
// gated by AuthMiddleware plus AdminMiddleware, and the moderation
// service independently re-reads the caller's role.
type AdminHandler struct {
	moderation services.IModerationService
	taskClient IAsynqClient
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(moderation services.IModerationService, taskClient IAsynqClient) *AdminHandler {
	return &AdminHandler{moderation: moderation, taskClient: taskClient}
}

type productStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// SetProductStatus handles PUT /v1/admin/product/:id/status
func (h *AdminHandler) SetProductStatus(c *gin.Context) {
	adminID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	productID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req productStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	product, err := h.moderation.SetProductStatus(c.Request.Context(), adminID, productID, models.ProductStatus(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": product})
}

type orderStatusRequest struct {
	Status        *string `json:"status"`
	PaymentStatus *string `json:"payment_status"`
}

// SetOrderStatus handles PATCH /v1/admin/order/:id/status
func (h *AdminHandler) SetOrderStatus(c *gin.Context) {
	adminID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req orderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	var patch services.OrderStatusPatch
	if req.Status != nil {
		s := models.OrderStatus(*req.Status)
		patch.Status = &s
	}
	if req.PaymentStatus != nil {
		s := models.PaymentStatus(*req.PaymentStatus)
		patch.PaymentStatus = &s
	}

	order, err := h.moderation.SetOrderStatus(c.Request.Context(), adminID, orderID, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": order})
}

// ConfirmPayment handles POST /v1/admin/order/:id/payment
func (h *AdminHandler) ConfirmPayment(c *gin.Context) {
	adminID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	order, err := h.moderation.ConfirmPayment(c.Request.Context(), adminID, orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	if task, err := tasks.NewPaymentConfirmedTask(order.ID); err != nil {
		log.Printf("Failed to build notification task for %s: %v", order.ID.Hex(), err)
	} else if _, err := h.taskClient.EnqueueContext(c.Request.Context(), task); err != nil {
		log.Printf("Failed to enqueue notification task %s for %s: %v", task.Type(), order.ID.Hex(), err)
	}

	c.JSON(http.StatusOK, gin.H{"data": order})
}

type userRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// SetUserRole handles PUT /v1/admin/user/:id/role
func (h *AdminHandler) SetUserRole(c *gin.Context) {
	adminID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req userRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	user, err := h.moderation.SetUserRole(c.Request.Context(), adminID, userID, models.Role(req.Role))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": user})
}

// SuspendUser handles POST /v1/admin/user/:id/suspend
func (h *AdminHandler) SuspendUser(c *gin.Context) {
	adminID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.moderation.SuspendUser(c.Request.Context(), adminID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"suspended": true}})
}

// UnsuspendUser handles POST /v1/admin/user/:id/unsuspend
func (h *AdminHandler) UnsuspendUser(c *gin.Context) {
	adminID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.moderation.UnsuspendUser(c.Request.Context(), adminID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"suspended": false}})
}

// ListReports handles GET /v1/admin/report
func (h *AdminHandler) ListReports(c *gin.Context) {
	adminID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	offset, _ := strconv.ParseInt(c.DefaultQuery("offset", "0"), 10, 64)

	reports, err := h.moderation.ListReports(c.Request.Context(), adminID, services.ReportFilter{
		Status:     models.ReportStatus(c.Query("status")),
		TargetType: models.ReportTargetType(c.Query("target_type")),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": reports})
}

type reviewReportRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

// ReviewReport handles PUT /v1/admin/report/:id
func (h *AdminHandler) ReviewReport(c *gin.Context) {
	adminID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	reportID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req reviewReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	report, err := h.moderation.ReviewReport(c.Request.Context(), adminID, reportID, models.ReportStatus(req.Status), req.Note)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": report})
}
