package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PaymentMethod is how the buyer pays for an order.
type PaymentMethod string

const (
	PaymentMethodCreditCard   PaymentMethod = "credit_card"
	PaymentMethodCOD          PaymentMethod = "cod"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

// ValidPaymentMethod reports whether m is one of the known payment methods.
func ValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case PaymentMethodCreditCard, PaymentMethodCOD, PaymentMethodBankTransfer:
		return true
	}
	return false
}

// PaymentStatus is the payment state of an order.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// ValidPaymentStatus reports whether s is one of the known payment statuses.
func ValidPaymentStatus(s PaymentStatus) bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderStatusPendingPayment  OrderStatus = "pending_payment"
	OrderStatusPendingDelivery OrderStatus = "pending_delivery"
	OrderStatusShipped         OrderStatus = "shipped"
	OrderStatusDelivered       OrderStatus = "delivered"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusReturned        OrderStatus = "returned"
)

// ValidOrderStatus reports whether s is one of the known order statuses.
func ValidOrderStatus(s OrderStatus) bool {
	switch s {
	case OrderStatusPendingPayment, OrderStatusPendingDelivery, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusReturned:
		return true
	}
	return false
}

// Terminal reports whether s admits no further status transitions.
// Delivered is near-terminal: it only admits "returned".
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCancelled || s == OrderStatusReturned
}

// ProductSnapshot holds product fields copied into the order at purchase
// time. Later edits to the product never alter these.
type ProductSnapshot struct {
	Title string  `bson:"title" json:"title"`
	Price float64 `bson:"price" json:"price"`
	Image string  `bson:"image,omitempty" json:"image,omitempty"`
}

// PriceBreakdown is computed once at placement and persisted as-is. It is
// never recomputed, even if the fee or rate constants change later.
type PriceBreakdown struct {
	Price       float64 `bson:"price" json:"price"`
	ShippingFee float64 `bson:"shipping_fee" json:"shipping_fee"`
	Tax         float64 `bson:"tax" json:"tax"`
	Total       float64 `bson:"total" json:"total"`
}

// Tracking holds optional shipment tracking metadata. It is the only
// order data that stays mutable while the order is shipped.
type Tracking struct {
	Carrier        string `bson:"carrier" json:"carrier"`
	TrackingNumber string `bson:"tracking_number" json:"tracking_number"`
}

// Order is a buyer's purchase of a single product.
type Order struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Reference       string             `bson:"reference" json:"reference"`
	ProductID       primitive.ObjectID `bson:"product_id" json:"product_id"`
	BuyerID         primitive.ObjectID `bson:"buyer_id" json:"buyer_id"`
	SellerID        primitive.ObjectID `bson:"seller_id" json:"seller_id"`
	Product         ProductSnapshot    `bson:"product" json:"product"`
	Breakdown       PriceBreakdown     `bson:"breakdown" json:"breakdown"`
	PaymentMethod   PaymentMethod      `bson:"payment_method" json:"payment_method"`
	PaymentStatus   PaymentStatus      `bson:"payment_status" json:"payment_status"`
	Status          OrderStatus        `bson:"status" json:"status"`
	ShippingAddress string             `bson:"shipping_address" json:"shipping_address"`
	Tracking        *Tracking          `bson:"tracking,omitempty" json:"tracking,omitempty"`
	CreatedAt       time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at" json:"updated_at"`
}
