package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"tradenest/marketplace/internal/api/middleware"
	"tradenest/marketplace/internal/models"
	"tradenest/marketplace/internal/services"
	"tradenest/marketplace/internal/tasks"
)

// IAsynqClient abstracts the asynq client for testing.
type IAsynqClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// OrderHandler handles order placement and lifecycle endpoints.
type OrderHandler struct {
	orders     services.IOrderService
	taskClient IAsynqClient
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orders services.IOrderService, taskClient IAsynqClient) *OrderHandler {
	return &OrderHandler{orders: orders, taskClient: taskClient}
}

type placeOrderRequest struct {
	ProductID       string `json:"product_id" binding:"required"`
	PaymentMethod   string `json:"payment_method" binding:"required"`
	ShippingAddress string `json:"shipping_address"`
	PaymentDetails  string `json:"payment_details"`
}

// PlaceOrder handles POST /v1/order
func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	productID, err := primitive.ObjectIDFromHex(req.ProductID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product_id format"})
		return
	}

	order, err := h.orders.PlaceOrder(c.Request.Context(), callerID, services.PlaceOrderInput{
		ProductID:       productID,
		PaymentMethod:   models.PaymentMethod(req.PaymentMethod),
		ShippingAddress: req.ShippingAddress,
		PaymentDetails:  req.PaymentDetails,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	h.enqueue(c, tasks.NewOrderPlacedTask, order.ID)
	c.JSON(http.StatusCreated, gin.H{"data": order})
}

// GetOrder handles GET /v1/order/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), orderID, callerID, middleware.CallerRole(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": order})
}

// ListMyOrders handles GET /v1/order/mine
func (h *OrderHandler) ListMyOrders(c *gin.Context) {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	orders, err := h.orders.ListOrdersForUser(c.Request.Context(), callerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": orders})
}

// ListMySales handles GET /v1/order/sales
func (h *OrderHandler) ListMySales(c *gin.Context) {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	orders, err := h.orders.ListOrdersForSeller(c.Request.Context(), callerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": orders})
}

type trackingRequest struct {
	Carrier        string `json:"carrier" binding:"required"`
	TrackingNumber string `json:"tracking_number" binding:"required"`
}

// AddTracking handles PUT /v1/order/:id/tracking
func (h *OrderHandler) AddTracking(c *gin.Context) {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req trackingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	err := h.orders.AddTracking(c.Request.Context(), orderID, callerID, middleware.CallerRole(c), models.Tracking{
		Carrier:        req.Carrier,
		TrackingNumber: req.TrackingNumber,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"tracking": req}})
}

// enqueue fires a notification task. Failures are logged, never surfaced:
// the order is already durable and the client must see success.
func (h *OrderHandler) enqueue(c *gin.Context, build func(primitive.ObjectID) (*asynq.Task, error), id primitive.ObjectID) {
	if h.taskClient == nil {
		return
	}
	task, err := build(id)
	if err != nil {
		log.Printf("Failed to build notification task for %s: %v", id.Hex(), err)
		return
	}
	if _, err := h.taskClient.EnqueueContext(c.Request.Context(), task); err != nil {
		log.Printf("Failed to enqueue notification task %s for %s: %v", task.Type(), id.Hex(), err)
	}
}
