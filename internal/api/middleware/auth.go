package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"tradenest/marketplace/internal/auth"
	"tradenest/marketplace/internal/models"
)

const (
	// ContextKeyUserID holds the key for the caller's ID in Gin context.
	ContextKeyUserID = "userID"
	// ContextKeyRole holds the key for the caller's token role in Gin context.
	ContextKeyRole = "userRole"
)

// AuthMiddleware creates a Gin middleware for JWT authentication.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, role, err := callerFromHeader(c, jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		c.Set(ContextKeyUserID, userID)
		c.Set(ContextKeyRole, role)
		c.Next()
	}
}

// OptionalAuthMiddleware resolves the caller when a token is present but
// lets anonymous requests through. Report filing uses it.
func OptionalAuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Next()
			return
		}
		userID, role, err := callerFromHeader(c, jwtSecret)
		if err != nil {
			// A malformed token is an error even on optional routes; silently
			// downgrading it to anonymous would mask client bugs.
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set(ContextKeyUserID, userID)
		c.Set(ContextKeyRole, role)
		c.Next()
	}
}

func callerFromHeader(c *gin.Context, jwtSecret string) (primitive.ObjectID, models.Role, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return primitive.NilObjectID, "", fmt.Errorf("Authorization header required")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return primitive.NilObjectID, "", fmt.Errorf("Authorization header format must be Bearer {token}")
	}

	claims, err := auth.ValidateJWT(parts[1], jwtSecret)
	if err != nil {
		return primitive.NilObjectID, "", fmt.Errorf("Invalid or expired token: %v", err)
	}
	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return primitive.NilObjectID, "", fmt.Errorf("Invalid token subject")
	}
	return userID, models.Role(claims.Role), nil
}

// AdminMiddleware gates admin routes on the token role. This is a cheap
// first filter only: the moderation service re-reads the role from the
// database on every call.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get(ContextKeyRole)
		if !exists || role.(models.Role) != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Administrator privileges required"})
			return
		}
		c.Next()
	}
}

// CallerID returns the authenticated user's ID from the Gin context.
func CallerID(c *gin.Context) (primitive.ObjectID, bool) {
	v, exists := c.Get(ContextKeyUserID)
	if !exists {
		return primitive.NilObjectID, false
	}
	id, ok := v.(primitive.ObjectID)
	return id, ok
}

// CallerRole returns the token role from the Gin context.
func CallerRole(c *gin.Context) models.Role {
	v, exists := c.Get(ContextKeyRole)
	if !exists {
		return ""
	}
	role, _ := v.(models.Role)
	return role
}
