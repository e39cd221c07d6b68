package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"tradenest/marketplace/internal/api/handlers"
	"tradenest/marketplace/internal/api/middleware"
	"tradenest/marketplace/internal/apperr"
	"tradenest/marketplace/internal/models"
	"tradenest/marketplace/internal/services"
	"tradenest/marketplace/internal/tasks"
)

func setupAdminRouter(moderation *MockModerationService, taskClient handlers.IAsynqClient) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := handlers.NewAdminHandler(moderation, taskClient)
	admin := r.Group("/v1/admin", middleware.AuthMiddleware(testJwtSecret), middleware.AdminMiddleware())
	admin.PUT("/product/:id/status", h.SetProductStatus)
	admin.PATCH("/order/:id/status", h.SetOrderStatus)
	admin.POST("/order/:id/payment", h.ConfirmPayment)
	admin.PUT("/user/:id/role", h.SetUserRole)
	admin.POST("/user/:id/suspend", h.SuspendUser)
	admin.GET("/report", h.ListReports)
	admin.PUT("/report/:id", h.ReviewReport)
	return r
}

func TestAdminHandler_RoleGate(t *testing.T) {
	moderation := new(MockModerationService)
	router := setupAdminRouter(moderation, new(MockAsynqClient))

	productID := primitive.NewObjectID()
	body, _ := json.Marshal(gin.H{"status": "removed"})

	// Non-admin token is stopped at the middleware.
	req, _ := http.NewRequest("PUT", "/v1/admin/product/"+productID.Hex()+"/status", bytes.NewReader(body))
	req.Header.Set("Authorization", bearerToken(t, primitive.NewObjectID(), models.RoleSeller))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Missing token is unauthorized.
	req2, _ := http.NewRequest("PUT", "/v1/admin/product/"+productID.Hex()+"/status", bytes.NewReader(body))
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req2)
	assert.Equal(t, http.StatusUnauthorized, w2.Code)

	moderation.AssertNotCalled(t, "SetProductStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAdminHandler_SetProductStatus(t *testing.T) {
	moderation := new(MockModerationService)
	router := setupAdminRouter(moderation, new(MockAsynqClient))

	adminID := primitive.NewObjectID()
	productID := primitive.NewObjectID()
	product := &models.Product{ID: productID, Status: models.ProductStatusRemoved}
	moderation.On("SetProductStatus", mock.Anything, adminID, productID, models.ProductStatusRemoved).
		Return(product, nil)

	body, _ := json.Marshal(gin.H{"status": "removed"})
	req, _ := http.NewRequest("PUT", "/v1/admin/product/"+productID.Hex()+"/status", bytes.NewReader(body))
	req.Header.Set("Authorization", bearerToken(t, adminID, models.RoleAdmin))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	moderation.AssertExpectations(t)
}

func TestAdminHandler_SetOrderStatus_PartialPatch(t *testing.T) {
	moderation := new(MockModerationService)
	router := setupAdminRouter(moderation, new(MockAsynqClient))

	adminID := primitive.NewObjectID()
	orderID := primitive.NewObjectID()
	updated := &models.Order{ID: orderID, PaymentStatus: models.PaymentStatusRefunded}
	moderation.On("SetOrderStatus", mock.Anything, adminID, orderID, mock.MatchedBy(func(patch services.OrderStatusPatch) bool {
		return patch.Status == nil && patch.PaymentStatus != nil && *patch.PaymentStatus == models.PaymentStatusRefunded
	})).Return(updated, nil)

	body, _ := json.Marshal(gin.H{"payment_status": "refunded"})
	req, _ := http.NewRequest("PATCH", "/v1/admin/order/"+orderID.Hex()+"/status", bytes.NewReader(body))
	req.Header.Set("Authorization", bearerToken(t, adminID, models.RoleAdmin))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	moderation.AssertExpectations(t)
}

func TestAdminHandler_ConfirmPayment(t *testing.T) {
	moderation := new(MockModerationService)
	taskClient := new(MockAsynqClient)
	router := setupAdminRouter(moderation, taskClient)

	adminID := primitive.NewObjectID()
	orderID := primitive.NewObjectID()
	paid := &models.Order{
		ID:            orderID,
		Status:        models.OrderStatusPendingDelivery,
		PaymentStatus: models.PaymentStatusPaid,
	}
	moderation.On("ConfirmPayment", mock.Anything, adminID, orderID).Return(paid, nil)
	taskClient.On("EnqueueContext", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
		return task.Type() == tasks.TypePaymentConfirmed
	}), mock.Anything).Return(&asynq.TaskInfo{}, nil)

	req, _ := http.NewRequest("POST", "/v1/admin/order/"+orderID.Hex()+"/payment", nil)
	req.Header.Set("Authorization", bearerToken(t, adminID, models.RoleAdmin))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	moderation.AssertExpectations(t)
	taskClient.AssertExpectations(t)
}

func TestAdminHandler_ConfirmPayment_SellerForbidden(t *testing.T) {
	moderation := new(MockModerationService)
	router := setupAdminRouter(moderation, new(MockAsynqClient))

	orderID := primitive.NewObjectID()
	req, _ := http.NewRequest("POST", "/v1/admin/order/"+orderID.Hex()+"/payment", nil)
	req.Header.Set("Authorization", bearerToken(t, primitive.NewObjectID(), models.RoleSeller))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	moderation.AssertNotCalled(t, "ConfirmPayment", mock.Anything, mock.Anything, mock.Anything)
}

func TestAdminHandler_SetUserRole_AdminTarget(t *testing.T) {
	moderation := new(MockModerationService)
	router := setupAdminRouter(moderation, new(MockAsynqClient))

	adminID := primitive.NewObjectID()
	targetID := primitive.NewObjectID()
	moderation.On("SetUserRole", mock.Anything, adminID, targetID, models.RoleBuyer).
		Return(nil, apperr.Forbidden("admin accounts cannot be modified"))

	body, _ := json.Marshal(gin.H{"role": "buyer"})
	req, _ := http.NewRequest("PUT", "/v1/admin/user/"+targetID.Hex()+"/role", bytes.NewReader(body))
	req.Header.Set("Authorization", bearerToken(t, adminID, models.RoleAdmin))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminHandler_ListReports_Filters(t *testing.T) {
	moderation := new(MockModerationService)
	router := setupAdminRouter(moderation, new(MockAsynqClient))

	adminID := primitive.NewObjectID()
	moderation.On("ListReports", mock.Anything, adminID, mock.MatchedBy(func(filter services.ReportFilter) bool {
		return filter.Status == models.ReportStatusPending && filter.TargetType == models.ReportTargetProduct && filter.Limit == 10
	})).Return([]models.Report{}, nil)

	req, _ := http.NewRequest("GET", "/v1/admin/report?status=pending&target_type=product&limit=10", nil)
	req.Header.Set("Authorization", bearerToken(t, adminID, models.RoleAdmin))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	moderation.AssertExpectations(t)
}

func TestAdminHandler_ReviewReport(t *testing.T) {
	moderation := new(MockModerationService)
	router := setupAdminRouter(moderation, new(MockAsynqClient))

	adminID := primitive.NewObjectID()
	reportID := primitive.NewObjectID()
	report := &models.Report{ID: reportID, Status: models.ReportStatusDismissed}
	moderation.On("ReviewReport", mock.Anything, adminID, reportID, models.ReportStatusDismissed, "duplicate").
		Return(report, nil)

	body, _ := json.Marshal(gin.H{"status": "dismissed", "note": "duplicate"})
	req, _ := http.NewRequest("PUT", "/v1/admin/report/"+reportID.Hex(), bytes.NewReader(body))
	req.Header.Set("Authorization", bearerToken(t, adminID, models.RoleAdmin))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	moderation.AssertExpectations(t)
}
