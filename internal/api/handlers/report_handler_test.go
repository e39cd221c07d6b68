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

func setupReportRouter(moderation *MockModerationService, taskClient handlers.IAsynqClient) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := handlers.NewReportHandler(moderation, taskClient)
	r.POST("/v1/report", middleware.OptionalAuthMiddleware(testJwtSecret), h.CreateReport)
	return r
}

func TestReportHandler_CreateReport_Anonymous(t *testing.T) {
	moderation := new(MockModerationService)
	mockClient := new(MockAsynqClient)
	router := setupReportRouter(moderation, mockClient)

	report := &models.Report{ID: primitive.NewObjectID(), Status: models.ReportStatusPending}
	moderation.On("CreateReport", mock.Anything, (*primitive.ObjectID)(nil), mock.MatchedBy(func(input services.CreateReportInput) bool {
		return input.TargetType == models.ReportTargetGeneral && input.TargetID == nil
	})).Return(report, nil)
	mockClient.On("EnqueueContext", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
		return task.Type() == tasks.TypeReportFiled
	}), mock.Anything).Return(&asynq.TaskInfo{}, nil)

	body, _ := json.Marshal(gin.H{
		"target_type": "general",
		"description": "The checkout page keeps crashing on submit.",
	})
	req, _ := http.NewRequest("POST", "/v1/report", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	moderation.AssertExpectations(t)
	mockClient.AssertExpectations(t)
}

func TestReportHandler_CreateReport_Authenticated(t *testing.T) {
	moderation := new(MockModerationService)
	mockClient := new(MockAsynqClient)
	router := setupReportRouter(moderation, mockClient)

	reporterID := primitive.NewObjectID()
	targetID := primitive.NewObjectID()
	report := &models.Report{ID: primitive.NewObjectID(), ReporterID: &reporterID}
	moderation.On("CreateReport", mock.Anything, mock.MatchedBy(func(id *primitive.ObjectID) bool {
		return id != nil && *id == reporterID
	}), mock.MatchedBy(func(input services.CreateReportInput) bool {
		return input.TargetType == models.ReportTargetProduct && input.TargetID != nil && *input.TargetID == targetID
	})).Return(report, nil)
	mockClient.On("EnqueueContext", mock.Anything, mock.Anything, mock.Anything).Return(&asynq.TaskInfo{}, nil)

	body, _ := json.Marshal(gin.H{
		"target_type": "product",
		"target_id":   targetID.Hex(),
		"reason":      "counterfeit",
		"description": "This listing is selling counterfeit goods.",
	})
	req, _ := http.NewRequest("POST", "/v1/report", bytes.NewReader(body))
	req.Header.Set("Authorization", bearerToken(t, reporterID, models.RoleBuyer))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	moderation.AssertExpectations(t)
}

func TestReportHandler_CreateReport_ShortDescription(t *testing.T) {
	moderation := new(MockModerationService)
	mockClient := new(MockAsynqClient)
	router := setupReportRouter(moderation, mockClient)

	moderation.On("CreateReport", mock.Anything, (*primitive.ObjectID)(nil), mock.Anything).
		Return(nil, apperr.Validation("description must be at least 10 characters"))

	body, _ := json.Marshal(gin.H{"target_type": "general", "description": "bad"})
	req, _ := http.NewRequest("POST", "/v1/report", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockClient.AssertNotCalled(t, "EnqueueContext", mock.Anything, mock.Anything, mock.Anything)
}

func TestReportHandler_CreateReport_BadToken(t *testing.T) {
	router := setupReportRouter(new(MockModerationService), new(MockAsynqClient))

	body, _ := json.Marshal(gin.H{"target_type": "general", "description": "long enough description"})
	req, _ := http.NewRequest("POST", "/v1/report", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
