package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tradenest/marketplace/internal/apperr"
	"tradenest/marketplace/internal/db"
	"tradenest/marketplace/internal/models"
)

// Fixed pricing constants. Orders persist the breakdown computed from
// these at placement time; changing them later must never alter stored
// orders.
const (
	FlatShippingFee = 5.00
	TaxRate         = 0.08
)

// fallbackShippingAddress is stored when a non-COD buyer has no profile
// address. The field is never left empty.
const fallbackShippingAddress = "address to be confirmed"

// IOrderService defines the interface for order placement and lifecycle
// operations.
type IOrderService interface {
	PlaceOrder(ctx context.Context, buyerID primitive.ObjectID, input PlaceOrderInput) (*models.Order, error)
	GetOrder(ctx context.Context, orderID, callerID primitive.ObjectID, callerRole models.Role) (*models.Order, error)
	ListOrdersForUser(ctx context.Context, buyerID primitive.ObjectID) ([]models.Order, error)
	ListOrdersForSeller(ctx context.Context, sellerID primitive.ObjectID) ([]models.Order, error)
	ConfirmPayment(ctx context.Context, orderID primitive.ObjectID) (*models.Order, error)
	SetOrderStatus(ctx context.Context, orderID primitive.ObjectID, patch OrderStatusPatch) (*models.Order, error)
	AddTracking(ctx context.Context, orderID, callerID primitive.ObjectID, callerRole models.Role, tracking models.Tracking) error
}

// PlaceOrderInput carries a purchase intent.
type PlaceOrderInput struct {
	ProductID       primitive.ObjectID
	PaymentMethod   models.PaymentMethod
	ShippingAddress string
	PaymentDetails  string // opaque gateway reference, not interpreted here
}

// OrderStatusPatch is a partial admin update; at least one field must be
// set.
type OrderStatusPatch struct {
	Status        *models.OrderStatus
	PaymentStatus *models.PaymentStatus
}

const ordersCollection = "orders"

type orderService struct {
	db *mongo.Database
}

// NewOrderService creates a new OrderService.
func NewOrderService(database *mongo.Database) IOrderService {
	return &orderService{db: database}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// PlaceOrder turns a purchase intent into a durable order while
// guaranteeing single ownership of the product. The availability check
// and flip happen in one conditional update, so two concurrent calls on
// the same product can never both succeed; the loser gets Conflict.
func (s *orderService) PlaceOrder(ctx context.Context, buyerID primitive.ObjectID, input PlaceOrderInput) (*models.Order, error) {
	if !models.ValidPaymentMethod(input.PaymentMethod) {
		return nil, apperr.Validation("unknown payment method %q", input.PaymentMethod)
	}

	products := s.db.Collection(productsCollection)

	// Pre-checks give precise errors; the conditional update below is the
	// authoritative availability check.
	var product models.Product
	err := products.FindOne(ctx, bson.M{"_id": input.ProductID}).Decode(&product)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("product %s not found", input.ProductID.Hex())
		}
		return nil, wrapStoreErr(err, "error finding product %s", input.ProductID.Hex())
	}
	if product.SellerID == buyerID {
		return nil, apperr.Validation("you cannot purchase your own product")
	}
	if !product.Purchasable() {
		return nil, apperr.Conflict("product %s is already sold or unavailable", input.ProductID.Hex())
	}

	address, err := s.resolveShippingAddress(ctx, buyerID, input)
	if err != nil {
		return nil, err
	}

	// Reservation: flip is_available true -> false in a single guarded
	// round trip. The pre-update document supplies the price snapshot.
	reserveFilter := bson.M{
		"_id":          input.ProductID,
		"status":       models.ProductStatusActive,
		"is_available": true,
	}
	reserveUpdate := bson.M{"$set": bson.M{
		"is_available": false,
		"updated_at":   time.Now().UTC(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)

	var reserved models.Product
	err = products.FindOneAndUpdate(ctx, reserveFilter, reserveUpdate, opts).Decode(&reserved)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.Conflict("product %s is already sold or unavailable", input.ProductID.Hex())
		}
		return nil, wrapStoreErr(err, "failed to reserve product %s", input.ProductID.Hex())
	}

	order, err := s.insertOrder(ctx, buyerID, &reserved, input.PaymentMethod, address)
	if err != nil {
		s.releaseReservation(ctx, input.ProductID)
		return nil, err
	}
	return order, nil
}

func (s *orderService) resolveShippingAddress(ctx context.Context, buyerID primitive.ObjectID, input PlaceOrderInput) (string, error) {
	address := strings.TrimSpace(input.ShippingAddress)
	if input.PaymentMethod == models.PaymentMethodCOD {
		if address == "" {
			return "", apperr.Validation("shipping address is required for cash on delivery")
		}
		return address, nil
	}
	if address != "" {
		return address, nil
	}

	// Fall back to the buyer's profile address, then to the sentinel.
	var buyer models.User
	err := s.db.Collection(usersCollection).FindOne(ctx, bson.M{"_id": buyerID, "deleted": false}).Decode(&buyer)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", apperr.Unauthorized("buyer account not found")
		}
		return "", wrapStoreErr(err, "error finding buyer %s", buyerID.Hex())
	}
	if profile := strings.TrimSpace(buyer.Address); profile != "" {
		return profile, nil
	}
	return fallbackShippingAddress, nil
}

// insertOrder persists the order for an already-reserved product.
func (s *orderService) insertOrder(ctx context.Context, buyerID primitive.ObjectID, product *models.Product, method models.PaymentMethod, address string) (*models.Order, error) {
	collection := s.db.Collection(ordersCollection)
	now := time.Now().UTC()

	price := product.Price
	breakdown := models.PriceBreakdown{
		Price:       price,
		ShippingFee: FlatShippingFee,
		Tax:         round2(price * TaxRate),
	}
	breakdown.Total = round2(breakdown.Price + breakdown.ShippingFee + breakdown.Tax)

	snapshot := models.ProductSnapshot{
		Title: product.Title,
		Price: price,
	}
	if len(product.Images) > 0 {
		snapshot.Image = product.Images[0]
	}

	var newOrder *models.Order

	operation := func() error {
		newOrder = &models.Order{
			ID:              primitive.NewObjectID(),
			Reference:       fmt.Sprintf("ORD-%s", strings.ToUpper(uuid.NewString()[:8])),
			ProductID:       product.ID,
			BuyerID:         buyerID,
			SellerID:        product.SellerID,
			Product:         snapshot,
			Breakdown:       breakdown,
			PaymentMethod:   method,
			PaymentStatus:   models.PaymentStatusPending,
			Status:          models.OrderStatusPendingPayment,
			ShippingAddress: address,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		_, insertErr := collection.InsertOne(ctx, newOrder)
		return insertErr
	}

	if err := db.Try(operation); err != nil {
		return nil, wrapStoreErr(err, "failed to insert order for product %s after multiple retries", product.ID.Hex())
	}
	return newOrder, nil
}

// releaseReservation is the compensating action when order insertion
// fails after the product was reserved. The guard on is_available=false
// means it can never flip a product someone else has since relisted and
// sold again.
func (s *orderService) releaseReservation(ctx context.Context, productID primitive.ObjectID) {
	filter := bson.M{"_id": productID, "is_available": false}
	update := bson.M{"$set": bson.M{
		"is_available": true,
		"updated_at":   time.Now().UTC(),
	}}
	if _, err := s.db.Collection(productsCollection).UpdateOne(ctx, filter, update); err != nil {
		log.Printf("CRITICAL: failed to release reservation on product %s after order insert failure: %v", productID.Hex(), err)
	}
}

// GetOrder returns an order visible to its buyer, its seller, or an admin.
func (s *orderService) GetOrder(ctx context.Context, orderID, callerID primitive.ObjectID, callerRole models.Role) (*models.Order, error) {
	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if callerRole != models.RoleAdmin && order.BuyerID != callerID && order.SellerID != callerID {
		return nil, apperr.Forbidden("order %s is not visible to caller", orderID.Hex())
	}
	return order, nil
}

func (s *orderService) findOrder(ctx context.Context, orderID primitive.ObjectID) (*models.Order, error) {
	var order models.Order
	err := s.db.Collection(ordersCollection).FindOne(ctx, bson.M{"_id": orderID}).Decode(&order)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("order %s not found", orderID.Hex())
		}
		return nil, wrapStoreErr(err, "error finding order %s", orderID.Hex())
	}
	return &order, nil
}

// ListOrdersForUser returns all orders where the user is the buyer,
// newest first.
func (s *orderService) ListOrdersForUser(ctx context.Context, buyerID primitive.ObjectID) ([]models.Order, error) {
	return s.listOrders(ctx, bson.M{"buyer_id": buyerID})
}

// ListOrdersForSeller returns all orders where the user is the seller,
// newest first.
func (s *orderService) ListOrdersForSeller(ctx context.Context, sellerID primitive.ObjectID) ([]models.Order, error) {
	return s.listOrders(ctx, bson.M{"seller_id": sellerID})
}

func (s *orderService) listOrders(ctx context.Context, filter bson.M) ([]models.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(ordersCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to query orders")
	}
	defer cursor.Close(ctx)

	var orders []models.Order
	if err = cursor.All(ctx, &orders); err != nil {
		return nil, wrapStoreErr(err, "failed to decode orders")
	}
	return orders, nil
}

// ConfirmPayment marks an order paid. Reached through the moderation
// service: recording a payment is an admin action, typically for cod and
// bank_transfer orders that have no gateway confirmation. Idempotent:
// confirming an already-paid order is a no-op success.
func (s *orderService) ConfirmPayment(ctx context.Context, orderID primitive.ObjectID) (*models.Order, error) {
	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus == models.PaymentStatusPaid {
		return order, nil
	}
	if order.Status.Terminal() {
		return nil, apperr.Conflict("order %s is %s and cannot be mutated", orderID.Hex(), order.Status)
	}

	set := bson.M{
		"payment_status": models.PaymentStatusPaid,
		"updated_at":     time.Now().UTC(),
	}
	if order.Status == models.OrderStatusPendingPayment {
		set["status"] = models.OrderStatusPendingDelivery
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Order
	err = s.db.Collection(ordersCollection).FindOneAndUpdate(ctx, bson.M{"_id": orderID}, bson.M{"$set": set}, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("order %s not found", orderID.Hex())
		}
		return nil, wrapStoreErr(err, "failed to confirm payment on order %s", orderID.Hex())
	}
	return &updated, nil
}

// SetOrderStatus applies a partial status/payment update after validating
// the transition. Callers must have done their authorization already;
// the Moderation Engine is the only production caller.
func (s *orderService) SetOrderStatus(ctx context.Context, orderID primitive.ObjectID, patch OrderStatusPatch) (*models.Order, error) {
	if patch.Status == nil && patch.PaymentStatus == nil {
		return nil, apperr.Validation("at least one of status or payment_status is required")
	}
	if patch.Status != nil && !models.ValidOrderStatus(*patch.Status) {
		return nil, apperr.Validation("unknown order status %q", *patch.Status)
	}
	if patch.PaymentStatus != nil && !models.ValidPaymentStatus(*patch.PaymentStatus) {
		return nil, apperr.Validation("unknown payment status %q", *patch.PaymentStatus)
	}

	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	// Confirming payment through the patch path keeps the idempotent
	// confirm semantics: already paid is a no-op, not a conflict.
	if patch.PaymentStatus != nil && *patch.PaymentStatus == models.PaymentStatusPaid &&
		order.PaymentStatus == models.PaymentStatusPaid && patch.Status == nil {
		return order, nil
	}

	if order.Status.Terminal() {
		return nil, apperr.Conflict("order %s is %s and cannot be mutated", orderID.Hex(), order.Status)
	}
	if patch.Status != nil {
		if err := validateStatusTransition(order.Status, *patch.Status); err != nil {
			return nil, err
		}
	}

	set := bson.M{"updated_at": time.Now().UTC()}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}
	if patch.PaymentStatus != nil {
		set["payment_status"] = *patch.PaymentStatus
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Order
	err = s.db.Collection(ordersCollection).FindOneAndUpdate(ctx, bson.M{"_id": orderID}, bson.M{"$set": set}, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("order %s not found", orderID.Hex())
		}
		return nil, wrapStoreErr(err, "failed to update status on order %s", orderID.Hex())
	}
	return &updated, nil
}

// validateStatusTransition enforces the order state machine. Admins may
// move freely between non-terminal states to correct mistakes; only the
// side exits and terminal states are restricted.
func validateStatusTransition(current, next models.OrderStatus) error {
	switch next {
	case models.OrderStatusCancelled:
		if current != models.OrderStatusPendingPayment && current != models.OrderStatusPendingDelivery {
			return apperr.Conflict("order can only be cancelled from pending_payment or pending_delivery, not %s", current)
		}
	case models.OrderStatusReturned:
		if current != models.OrderStatusDelivered {
			return apperr.Conflict("order can only be returned after delivery, not from %s", current)
		}
	default:
		if current == models.OrderStatusDelivered {
			return apperr.Conflict("delivered order only admits a return, not %s", next)
		}
	}
	return nil
}

// AddTracking attaches shipment tracking metadata. Tracking is the one
// mutation permitted while the order sits in shipped; sellers and admins
// may set it.
func (s *orderService) AddTracking(ctx context.Context, orderID, callerID primitive.ObjectID, callerRole models.Role, tracking models.Tracking) error {
	if strings.TrimSpace(tracking.Carrier) == "" || strings.TrimSpace(tracking.TrackingNumber) == "" {
		return apperr.Validation("carrier and tracking number are required")
	}

	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if callerRole != models.RoleAdmin && order.SellerID != callerID {
		return apperr.Forbidden("only the seller or an admin may set tracking")
	}
	if order.Status != models.OrderStatusShipped && order.Status != models.OrderStatusPendingDelivery {
		return apperr.Conflict("tracking can only be set while the order is pending delivery or shipped, not %s", order.Status)
	}

	update := bson.M{"$set": bson.M{
		"tracking":   tracking,
		"updated_at": time.Now().UTC(),
	}}
	result, err := s.db.Collection(ordersCollection).UpdateOne(ctx, bson.M{"_id": orderID}, update)
	if err != nil {
		return wrapStoreErr(err, "failed to set tracking on order %s", orderID.Hex())
	}
	if result.MatchedCount == 0 {
		return apperr.NotFound("order %s not found", orderID.Hex())
	}
	return nil
}
