package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"tradenest/marketplace/internal/api/middleware"
	"tradenest/marketplace/internal/models"
	"tradenest/marketplace/internal/services"
)

// ProductHandler handles REST requests for the product catalog.
type ProductHandler struct {
	products services.IProductService
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(products services.IProductService) *ProductHandler {
	return &ProductHandler{products: products}
}

type createProductRequest struct {
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description"`
	Price       float64  `json:"price" binding:"required"`
	Category    string   `json:"category"`
	Condition   string   `json:"condition" binding:"required"`
	Tags        []string `json:"tags"`
	Images      []string `json:"images"`
}

// CreateProduct handles POST /v1/product
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	product, err := h.products.CreateProduct(c.Request.Context(), callerID, middleware.CallerRole(c), services.CreateProductInput{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Condition:   models.ProductCondition(req.Condition),
		Tags:        req.Tags,
		Images:      req.Images,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": product})
}

// GetProductByID handles GET /v1/product/:id
func (h *ProductHandler) GetProductByID(c *gin.Context) {
	productID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	product, err := h.products.FindProductByID(c.Request.Context(), productID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": product})
}

// UpdateProduct handles PATCH /v1/product/:id
func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	productID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	product, err := h.products.UpdateProduct(c.Request.Context(), productID, callerID, updates)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": product})
}

type availabilityRequest struct {
	Available *bool `json:"available" binding:"required"`
}

// SetAvailability handles PUT /v1/product/:id/availability
func (h *ProductHandler) SetAvailability(c *gin.Context) {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	productID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req availabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	err := h.products.SetAvailability(c.Request.Context(), productID, callerID, middleware.CallerRole(c), *req.Available)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"available": *req.Available}})
}

// SearchProducts handles GET /v1/product/search
func (h *ProductHandler) SearchProducts(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}

	var tags []string
	if tagsStr := c.Query("tags"); tagsStr != "" {
		for _, tag := range strings.Split(tagsStr, ",") {
			if trimmed := strings.TrimSpace(tag); trimmed != "" {
				tags = append(tags, trimmed)
			}
		}
	}

	products, err := h.products.SearchProducts(c.Request.Context(), services.ProductFilter{
		Query:         c.Query("q"),
		Category:      c.Query("category"),
		Tags:          tags,
		OnlyAvailable: c.Query("available") == "true",
		Limit:         limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": products})
}

// ListMyProducts handles GET /v1/product/mine
func (h *ProductHandler) ListMyProducts(c *gin.Context) {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	products, err := h.products.ListProductsBySeller(c.Request.Context(), callerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": products})
}
