package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tradenest/marketplace/internal/apperr"
	"tradenest/marketplace/internal/db"
	"tradenest/marketplace/internal/models"
)

// IProductService defines the interface for catalog operations.
type IProductService interface {
	CreateProduct(ctx context.Context, sellerID primitive.ObjectID, sellerRole models.Role, input CreateProductInput) (*models.Product, error)
	FindProductByID(ctx context.Context, productID primitive.ObjectID) (*models.Product, error)
	UpdateProduct(ctx context.Context, productID, sellerID primitive.ObjectID, updates map[string]interface{}) (*models.Product, error)
	SetAvailability(ctx context.Context, productID, callerID primitive.ObjectID, callerRole models.Role, available bool) error
	SearchProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error)
	ListProductsBySeller(ctx context.Context, sellerID primitive.ObjectID) ([]models.Product, error)
}

// CreateProductInput carries the seller-provided fields for a new listing.
type CreateProductInput struct {
	Title       string
	Description string
	Price       float64
	Category    string
	Condition   models.ProductCondition
	Tags        []string
	Images      []string
}

// ProductFilter narrows buyer-facing product searches. Only active
// products are ever returned through SearchProducts.
type ProductFilter struct {
	Query         string
	Category      string
	Tags          []string
	OnlyAvailable bool
	Limit         int
}

const productsCollection = "products"

type productService struct {
	db *mongo.Database
}

// NewProductService creates a new ProductService.
func NewProductService(database *mongo.Database) IProductService {
	return &productService{db: database}
}

// CreateProduct inserts a new active, available product owned by sellerID.
// Listing is a seller capability; buyer accounts cannot create products.
func (s *productService) CreateProduct(ctx context.Context, sellerID primitive.ObjectID, sellerRole models.Role, input CreateProductInput) (*models.Product, error) {
	if sellerRole != models.RoleSeller && sellerRole != models.RoleAdmin {
		return nil, apperr.Forbidden("only sellers may list products")
	}
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return nil, apperr.Validation("title is required")
	}
	if input.Price <= 0 {
		return nil, apperr.Validation("price must be positive")
	}
	if !models.ValidProductCondition(input.Condition) {
		return nil, apperr.Validation("unknown condition %q", input.Condition)
	}

	collection := s.db.Collection(productsCollection)
	now := time.Now().UTC()

	var newProduct *models.Product

	operation := func() error {
		newProduct = &models.Product{
			ID:          primitive.NewObjectID(),
			SellerID:    sellerID,
			Title:       input.Title,
			Description: strings.TrimSpace(input.Description),
			Price:       input.Price,
			Category:    input.Category,
			Condition:   input.Condition,
			Tags:        input.Tags,
			Images:      input.Images,
			Status:      models.ProductStatusActive,
			IsAvailable: true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		_, insertErr := collection.InsertOne(ctx, newProduct)
		return insertErr
	}

	if err := db.Try(operation); err != nil {
		return nil, wrapStoreErr(err, "failed to insert new product for seller %s after multiple retries", sellerID.Hex())
	}

	return newProduct, nil
}

// FindProductByID finds a product by its ID regardless of status. Buyer
// facing paths filter on Status themselves; removed products stay
// resolvable because orders keep referencing them.
func (s *productService) FindProductByID(ctx context.Context, productID primitive.ObjectID) (*models.Product, error) {
	var product models.Product
	collection := s.db.Collection(productsCollection)

	err := collection.FindOne(ctx, bson.M{"_id": productID}).Decode(&product)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("product %s not found", productID.Hex())
		}
		return nil, wrapStoreErr(err, "error finding product by ID %s", productID.Hex())
	}
	return &product, nil
}

// UpdateProduct updates mutable fields of a product owned by sellerID.
// Ownership, status and availability cannot be changed through here.
// Price edits never touch existing orders: orders hold snapshots.
func (s *productService) UpdateProduct(ctx context.Context, productID, sellerID primitive.ObjectID, updates map[string]interface{}) (*models.Product, error) {
	collection := s.db.Collection(productsCollection)

	allowedUpdates := bson.M{}
	for key, value := range updates {
		switch key {
		case "title", "description", "price", "category", "condition", "tags", "images":
			allowedUpdates[key] = value
		default:
			return nil, apperr.Validation("field %q cannot be updated", key)
		}
	}
	if len(allowedUpdates) == 0 {
		return nil, apperr.Validation("no valid fields provided for update")
	}
	if price, ok := allowedUpdates["price"]; ok {
		if p, ok := price.(float64); !ok || p <= 0 {
			return nil, apperr.Validation("price must be positive")
		}
	}
	if cond, ok := allowedUpdates["condition"]; ok {
		c, _ := cond.(string)
		if !models.ValidProductCondition(models.ProductCondition(c)) {
			return nil, apperr.Validation("unknown condition %q", c)
		}
	}
	allowedUpdates["updated_at"] = time.Now().UTC()

	filter := bson.M{
		"_id":       productID,
		"seller_id": sellerID,
		"status":    bson.M{"$ne": models.ProductStatusRemoved},
	}
	update := bson.M{"$set": allowedUpdates}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Product
	err := collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, s.diagnoseUpdateFailure(ctx, productID, sellerID)
		}
		return nil, wrapStoreErr(err, "failed to update product %s", productID.Hex())
	}

	return &updated, nil
}

// diagnoseUpdateFailure re-reads the product to explain why a guarded
// update matched nothing.
func (s *productService) diagnoseUpdateFailure(ctx context.Context, productID, sellerID primitive.ObjectID) error {
	product, err := s.FindProductByID(ctx, productID)
	if err != nil {
		return err
	}
	if product.SellerID != sellerID {
		return apperr.Forbidden("product %s does not belong to caller", productID.Hex())
	}
	if product.Status == models.ProductStatusRemoved {
		return apperr.Conflict("product %s has been removed", productID.Hex())
	}
	return apperr.Conflict("product %s cannot be updated", productID.Hex())
}

// SetAvailability flips the purchasable flag. Only the owning seller or
// an admin may call this; the buyer flow never does (it only consumes
// availability through order placement).
func (s *productService) SetAvailability(ctx context.Context, productID, callerID primitive.ObjectID, callerRole models.Role, available bool) error {
	collection := s.db.Collection(productsCollection)

	filter := bson.M{"_id": productID}
	if callerRole != models.RoleAdmin {
		filter["seller_id"] = callerID
	}

	update := bson.M{"$set": bson.M{
		"is_available": available,
		"updated_at":   time.Now().UTC(),
	}}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return wrapStoreErr(err, "db error setting availability on product %s", productID.Hex())
	}
	if result.MatchedCount == 0 {
		product, findErr := s.FindProductByID(ctx, productID)
		if findErr != nil {
			return findErr
		}
		if product.SellerID != callerID {
			return apperr.Forbidden("product %s does not belong to caller", productID.Hex())
		}
		return apperr.Conflict("product %s cannot be updated", productID.Hex())
	}
	return nil
}

// SearchProducts returns active products matching the filter, newest first.
func (s *productService) SearchProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error) {
	collection := s.db.Collection(productsCollection)

	query := bson.M{"status": models.ProductStatusActive}
	if filter.OnlyAvailable {
		query["is_available"] = true
	}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if len(filter.Tags) > 0 {
		query["tags"] = bson.M{"$all": filter.Tags}
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		query["$text"] = bson.M{"$search": q}
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	opts := options.Find().
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := collection.Find(ctx, query, opts)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to execute product search query")
	}
	defer cursor.Close(ctx)

	var results []models.Product
	if err = cursor.All(ctx, &results); err != nil {
		return nil, wrapStoreErr(err, "failed to decode product search results")
	}
	return results, nil
}

// ListProductsBySeller returns all non-removed products owned by sellerID.
func (s *productService) ListProductsBySeller(ctx context.Context, sellerID primitive.ObjectID) ([]models.Product, error) {
	collection := s.db.Collection(productsCollection)
	filter := bson.M{
		"seller_id": sellerID,
		"status":    bson.M{"$ne": models.ProductStatusRemoved},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to list products for seller %s", sellerID.Hex())
	}
	defer cursor.Close(ctx)

	var results []models.Product
	if err = cursor.All(ctx, &results); err != nil {
		return nil, wrapStoreErr(err, "failed to decode seller products")
	}
	return results, nil
}
