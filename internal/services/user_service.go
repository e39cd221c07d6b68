package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"tradenest/marketplace/internal/apperr"
	"tradenest/marketplace/internal/auth"
	"tradenest/marketplace/internal/db"
	"tradenest/marketplace/internal/models"
)

// IUserService defines the interface for identity operations. This is the
// boundary to the Identity Store: everything else in the core consumes
// users through it and never trusts client-supplied role values.
type IUserService interface {
	Register(ctx context.Context, email, password, name, address string, role models.Role) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	FindByID(ctx context.Context, userID primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

const usersCollection = "users"

// defaultPasswordPattern mirrors the PASSWORD_REGEXP config default.
const defaultPasswordPattern = "^.{8,}$"

type userService struct {
	db         *mongo.Database
	passwordRe *regexp.Regexp
}

// NewUserService creates a new UserService. passwordPattern is the policy
// regexp new passwords must match; empty falls back to the default minimum
// length. The pattern is validated at config load, so compiling here is safe.
func NewUserService(database *mongo.Database, passwordPattern string) IUserService {
	if passwordPattern == "" {
		passwordPattern = defaultPasswordPattern
	}
	return &userService{db: database, passwordRe: regexp.MustCompile(passwordPattern)}
}

// Register creates a new user account. Only buyer and seller accounts can
// be self-registered; admin accounts are provisioned out of band.
func (s *userService) Register(ctx context.Context, email, password, name, address string, role models.Role) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperr.Validation("a valid email address is required")
	}
	if !s.passwordRe.MatchString(password) {
		return nil, apperr.Validation("password does not meet the password policy")
	}
	if role != models.RoleBuyer && role != models.RoleSeller {
		return nil, apperr.Validation("role must be buyer or seller")
	}

	collection := s.db.Collection(usersCollection)
	count, err := collection.CountDocuments(ctx, bson.M{"email": email, "deleted": false})
	if err != nil {
		return nil, wrapStoreErr(err, "error checking email uniqueness for %s", email)
	}
	if count > 0 {
		return nil, apperr.Conflict("email %s is already in use", email)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	var newUser *models.User

	operation := func() error {
		newUser = &models.User{
			ID:           primitive.NewObjectID(),
			Email:        email,
			Name:         strings.TrimSpace(name),
			PasswordHash: hash,
			Role:         role,
			Address:      strings.TrimSpace(address),
			Suspended:    false,
			Deleted:      false,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		_, insertErr := collection.InsertOne(ctx, newUser)
		return insertErr
	}

	if err := db.Try(operation); err != nil {
		if mongo.IsDuplicateKeyError(err) && strings.Contains(err.Error(), "email") {
			return nil, apperr.Conflict("email %s is already in use", email)
		}
		return nil, wrapStoreErr(err, "failed to insert new user %s after multiple retries", email)
	}

	return newUser, nil
}

// Authenticate verifies credentials and returns the matching user.
func (s *userService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Unauthorized("invalid email or password")
		}
		return nil, err
	}
	if user.Suspended {
		return nil, apperr.Forbidden("account is suspended")
	}
	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, apperr.Unauthorized("invalid email or password")
	}
	return user, nil
}

// FindByID finds a non-deleted user by ID.
func (s *userService) FindByID(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	var user models.User
	collection := s.db.Collection(usersCollection)
	filter := bson.M{"_id": userID, "deleted": false}

	err := collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("user %s not found", userID.Hex())
		}
		return nil, wrapStoreErr(err, "error finding user by ID %s", userID.Hex())
	}
	return &user, nil
}

// FindByEmail finds a non-deleted user by email address.
func (s *userService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	collection := s.db.Collection(usersCollection)
	filter := bson.M{"email": email, "deleted": false}

	err := collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("user with email %s not found", email)
		}
		return nil, wrapStoreErr(err, "error finding user by email %s", email)
	}
	return &user, nil
}
