package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"tradenest/marketplace/internal/api/handlers"
	"tradenest/marketplace/internal/api/middleware"
	"tradenest/marketplace/internal/config"
	"tradenest/marketplace/internal/services"
)

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, db *mongo.Database, rdb *redis.Client, taskClient handlers.IAsynqClient) *gin.Engine {
	userService := services.NewUserService(db, cfg.PasswordRegexp)
	productService := services.NewProductService(db)
	orderService := services.NewOrderService(db)
	moderationService := services.NewModerationService(db, orderService)

	r := gin.Default()

	rateLimiter := middleware.NewRateLimiterMiddleware(cfg)
	r.Use(middleware.CORSMiddleware())
	r.Use(rateLimiter.Limit())

	authHandler := handlers.NewAuthHandler(cfg, userService)
	productHandler := handlers.NewProductHandler(productService)
	orderHandler := handlers.NewOrderHandler(orderService, taskClient)
	reportHandler := handlers.NewReportHandler(moderationService, taskClient)
	adminHandler := handlers.NewAdminHandler(moderationService, taskClient)

	v1 := r.Group("/v1")
	{
		// Public routes
		v1.POST("/auth/register", authHandler.Register)
		v1.POST("/auth/login", authHandler.Login)
		v1.GET("/product/search", productHandler.SearchProducts)
		v1.GET("/product/:id", productHandler.GetProductByID)

		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		// Report intake accepts both anonymous and authenticated callers.
		v1.POST("/report", middleware.OptionalAuthMiddleware(cfg.JwtSecret), reportHandler.CreateReport)

		// Authenticated routes
		authRequired := v1.Group("/")
		authRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret))
		{
			authRequired.POST("/product", productHandler.CreateProduct)
			authRequired.GET("/product/mine", productHandler.ListMyProducts)
			authRequired.PATCH("/product/:id", productHandler.UpdateProduct)
			authRequired.PUT("/product/:id/availability", productHandler.SetAvailability)

			authRequired.POST("/order", orderHandler.PlaceOrder)
			authRequired.GET("/order/mine", orderHandler.ListMyOrders)
			authRequired.GET("/order/sales", orderHandler.ListMySales)
			authRequired.GET("/order/:id", orderHandler.GetOrder)
			authRequired.PUT("/order/:id/tracking", orderHandler.AddTracking)
		}

		// Admin routes
		adminRequired := v1.Group("/admin")
		adminRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret), middleware.AdminMiddleware())
		{
			adminRequired.PUT("/product/:id/status", adminHandler.SetProductStatus)
			adminRequired.PATCH("/order/:id/status", adminHandler.SetOrderStatus)
			adminRequired.POST("/order/:id/payment", adminHandler.ConfirmPayment)
			adminRequired.PUT("/user/:id/role", adminHandler.SetUserRole)
			adminRequired.POST("/user/:id/suspend", adminHandler.SuspendUser)
			adminRequired.POST("/user/:id/unsuspend", adminHandler.UnsuspendUser)
			adminRequired.GET("/report", adminHandler.ListReports)
			adminRequired.PUT("/report/:id", adminHandler.ReviewReport)
		}
	}

	return r
}
