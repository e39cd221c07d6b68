package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"tradenest/marketplace/internal/api/handlers"
	"tradenest/marketplace/internal/apperr"
	"tradenest/marketplace/internal/config"
	"tradenest/marketplace/internal/models"
)

func setupAuthRouter(users *MockUserService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{JwtSecret: testJwtSecret, JwtTTL: time.Hour}
	h := handlers.NewAuthHandler(cfg, users)
	r := gin.New()
	r.POST("/v1/auth/register", h.Register)
	r.POST("/v1/auth/login", h.Login)
	return r
}

func TestAuthHandler_Register(t *testing.T) {
	mockUsers := new(MockUserService)
	router := setupAuthRouter(mockUsers)

	user := &models.User{
		ID:    primitive.NewObjectID(),
		Email: "alice@example.com",
		Role:  models.RoleBuyer,
	}
	mockUsers.On("Register", mock.Anything, "alice@example.com", "password123", "Alice", "", models.RoleBuyer).
		Return(user, nil)

	body, _ := json.Marshal(gin.H{
		"email":    "alice@example.com",
		"password": "password123",
		"name":     "Alice",
		"role":     "buyer",
	})
	req, _ := http.NewRequest("POST", "/v1/auth/register", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["token"])
	mockUsers.AssertExpectations(t)
}

func TestAuthHandler_Register_DuplicateEmail(t *testing.T) {
	mockUsers := new(MockUserService)
	router := setupAuthRouter(mockUsers)

	mockUsers.On("Register", mock.Anything, "alice@example.com", "password123", "", "", models.RoleBuyer).
		Return(nil, apperr.Conflict("email alice@example.com is already in use"))

	body, _ := json.Marshal(gin.H{
		"email":    "alice@example.com",
		"password": "password123",
		"role":     "buyer",
	})
	req, _ := http.NewRequest("POST", "/v1/auth/register", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAuthHandler_Login(t *testing.T) {
	mockUsers := new(MockUserService)
	router := setupAuthRouter(mockUsers)

	user := &models.User{ID: primitive.NewObjectID(), Email: "alice@example.com", Role: models.RoleSeller}
	mockUsers.On("Authenticate", mock.Anything, "alice@example.com", "password123").Return(user, nil)

	body, _ := json.Marshal(gin.H{"email": "alice@example.com", "password": "password123"})
	req, _ := http.NewRequest("POST", "/v1/auth/login", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["token"])
}

func TestAuthHandler_Login_BadCredentials(t *testing.T) {
	mockUsers := new(MockUserService)
	router := setupAuthRouter(mockUsers)

	mockUsers.On("Authenticate", mock.Anything, "alice@example.com", "wrong").
		Return(nil, apperr.Unauthorized("invalid email or password"))

	body, _ := json.Marshal(gin.H{"email": "alice@example.com", "password": "wrong"})
	req, _ := http.NewRequest("POST", "/v1/auth/login", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandler_Login_MissingFields(t *testing.T) {
	router := setupAuthRouter(new(MockUserService))

	body, _ := json.Marshal(gin.H{"email": "alice@example.com"})
	req, _ := http.NewRequest("POST", "/v1/auth/login", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
