package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes the services rely on. CreateOne is
// idempotent for an identical definition, so this runs on every startup.
//
// The users email index is partial: soft-deleted accounts keep their email
// document but must not block re-registration. It is also what makes
// concurrent registrations of the same address collide instead of both
// succeeding past the pre-insert uniqueness check.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	_, err := database.Collection("users").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}},
		Options: options.Index().
			SetName("uniq_email_active").
			SetUnique(true).
			SetPartialFilterExpression(bson.D{{Key: "deleted", Value: false}}),
	})
	if err != nil {
		return fmt.Errorf("failed to ensure users email index: %w", err)
	}

	_, err = database.Collection("products").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "is_available", Value: 1}, {Key: "created_at", Value: -1}},
		Options: options.Index().SetName("product_search"),
	})
	if err != nil {
		return fmt.Errorf("failed to ensure products search index: %w", err)
	}

	return nil
}
