package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProductStatus is the moderation status of a product.
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusInactive ProductStatus = "inactive"
	ProductStatusRemoved  ProductStatus = "removed"
)

// ValidProductStatus reports whether s is one of the known product statuses.
func ValidProductStatus(s ProductStatus) bool {
	switch s {
	case ProductStatusActive, ProductStatusInactive, ProductStatusRemoved:
		return true
	}
	return false
}

// ProductCondition describes the physical condition of a listed item.
type ProductCondition string

const (
	ConditionNew     ProductCondition = "new"
	ConditionLikeNew ProductCondition = "like_new"
	ConditionGood    ProductCondition = "good"
	ConditionFair    ProductCondition = "fair"
	ConditionPoor    ProductCondition = "poor"
)

// ValidProductCondition reports whether c is one of the known conditions.
func ValidProductCondition(c ProductCondition) bool {
	switch c {
	case ConditionNew, ConditionLikeNew, ConditionGood, ConditionFair, ConditionPoor:
		return true
	}
	return false
}

// Product represents a single-unit physical item listed by a seller.
// A product with Status != active is never purchasable regardless of
// IsAvailable. IsAvailable flips to false exactly once per successful
// purchase; only the owning seller or an admin may flip it back.
type Product struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	SellerID    primitive.ObjectID `bson:"seller_id" json:"seller_id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description" json:"description"`
	Price       float64            `bson:"price" json:"price"`
	Category    string             `bson:"category" json:"category"`
	Condition   ProductCondition   `bson:"condition" json:"condition"`
	Tags        []string           `bson:"tags" json:"tags"`
	Images      []string           `bson:"images" json:"images"` // ordered URIs
	Status      ProductStatus      `bson:"status" json:"status"`
	IsAvailable bool               `bson:"is_available" json:"is_available"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

// Purchasable reports whether the product can currently be bought.
func (p *Product) Purchasable() bool {
	return p.Status == ProductStatusActive && p.IsAvailable
}
