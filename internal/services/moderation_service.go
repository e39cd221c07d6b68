package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tradenest/marketplace/internal/apperr"
	"tradenest/marketplace/internal/db"
	"tradenest/marketplace/internal/models"
)

const reportsCollection = "reports"

const minReportDescription = 10

// IModerationService defines the admin-facing moderation surface plus
// report intake, which is open to everyone.
type IModerationService interface {
	SetProductStatus(ctx context.Context, adminID, productID primitive.ObjectID, status models.ProductStatus) (*models.Product, error)
	SetOrderStatus(ctx context.Context, adminID, orderID primitive.ObjectID, patch OrderStatusPatch) (*models.Order, error)
	ConfirmPayment(ctx context.Context, adminID, orderID primitive.ObjectID) (*models.Order, error)
	SetUserRole(ctx context.Context, adminID, userID primitive.ObjectID, role models.Role) (*models.User, error)
	SuspendUser(ctx context.Context, adminID, userID primitive.ObjectID) error
	UnsuspendUser(ctx context.Context, adminID, userID primitive.ObjectID) error
	CreateReport(ctx context.Context, reporterID *primitive.ObjectID, input CreateReportInput) (*models.Report, error)
	ReviewReport(ctx context.Context, adminID, reportID primitive.ObjectID, status models.ReportStatus, note string) (*models.Report, error)
	ListReports(ctx context.Context, adminID primitive.ObjectID, filter ReportFilter) ([]models.Report, error)
}

// CreateReportInput carries a new abuse report.
type CreateReportInput struct {
	TargetType  models.ReportTargetType
	TargetID    *primitive.ObjectID
	Reason      string
	Description string
}

// ReportFilter narrows report listings.
type ReportFilter struct {
	Status     models.ReportStatus
	TargetType models.ReportTargetType
	Limit      int64
	Offset     int64
}

type moderationService struct {
	db     *mongo.Database
	orders IOrderService
}

// NewModerationService creates a new ModerationService. Order status
// patches go through the order service so the state machine is enforced
// in one place.
func NewModerationService(database *mongo.Database, orders IOrderService) IModerationService {
	return &moderationService{db: database, orders: orders}
}

// requireAdmin re-reads the caller's role from storage. Token claims are
// never trusted for moderation: a demoted or suspended admin loses the
// surface immediately, not at token expiry.
func (s *moderationService) requireAdmin(ctx context.Context, adminID primitive.ObjectID) error {
	var caller models.User
	err := s.db.Collection(usersCollection).FindOne(ctx, bson.M{"_id": adminID, "deleted": false}).Decode(&caller)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperr.Forbidden("caller is not an administrator")
		}
		return wrapStoreErr(err, "error finding caller %s", adminID.Hex())
	}
	if caller.Role != models.RoleAdmin || caller.Suspended {
		return apperr.Forbidden("caller is not an administrator")
	}
	return nil
}

// SetProductStatus moves a product between active, inactive and removed.
// Any transition is allowed, including restoring a removed product.
// Availability is deliberately untouched: reinstating a product does not
// resurrect a consumed reservation.
func (s *moderationService) SetProductStatus(ctx context.Context, adminID, productID primitive.ObjectID, status models.ProductStatus) (*models.Product, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	if !models.ValidProductStatus(status) {
		return nil, apperr.Validation("unknown product status %q", status)
	}

	update := bson.M{"$set": bson.M{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var product models.Product
	err := s.db.Collection(productsCollection).FindOneAndUpdate(ctx, bson.M{"_id": productID}, update, opts).Decode(&product)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("product %s not found", productID.Hex())
		}
		return nil, wrapStoreErr(err, "failed to set status on product %s", productID.Hex())
	}
	return &product, nil
}

// SetOrderStatus applies an admin patch to an order through the order
// state machine.
func (s *moderationService) SetOrderStatus(ctx context.Context, adminID, orderID primitive.ObjectID, patch OrderStatusPatch) (*models.Order, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	return s.orders.SetOrderStatus(ctx, orderID, patch)
}

// ConfirmPayment records a received payment on an order. Payment is only
// ever recorded by an admin; buyers and sellers never set it themselves.
func (s *moderationService) ConfirmPayment(ctx context.Context, adminID, orderID primitive.ObjectID) (*models.Order, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	return s.orders.ConfirmPayment(ctx, orderID)
}

// SetUserRole changes a user's role. Admin accounts are immutable
// through this path, and it cannot mint new admins.
func (s *moderationService) SetUserRole(ctx context.Context, adminID, userID primitive.ObjectID, role models.Role) (*models.User, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	if !models.ValidRole(role) {
		return nil, apperr.Validation("unknown role %q", role)
	}
	if role == models.RoleAdmin {
		return nil, apperr.Validation("admin role cannot be granted through this endpoint")
	}

	// Guard in the filter: an admin target never matches, so the update is
	// a no-op even under concurrent role changes.
	filter := bson.M{"_id": userID, "role": bson.M{"$ne": models.RoleAdmin}, "deleted": false}
	update := bson.M{"$set": bson.M{
		"role":       role,
		"updated_at": time.Now().UTC(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user models.User
	err := s.db.Collection(usersCollection).FindOneAndUpdate(ctx, filter, update, opts).Decode(&user)
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, wrapStoreErr(err, "failed to set role on user %s", userID.Hex())
	}
	return nil, s.diagnoseUserUpdateFailure(ctx, userID)
}

// diagnoseUserUpdateFailure re-reads a user after a guarded update
// matched nothing, to report the precise reason.
func (s *moderationService) diagnoseUserUpdateFailure(ctx context.Context, userID primitive.ObjectID) error {
	var user models.User
	err := s.db.Collection(usersCollection).FindOne(ctx, bson.M{"_id": userID, "deleted": false}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperr.NotFound("user %s not found", userID.Hex())
		}
		return wrapStoreErr(err, "error finding user %s", userID.Hex())
	}
	if user.Role == models.RoleAdmin {
		return apperr.Forbidden("admin accounts cannot be modified")
	}
	return apperr.Conflict("user %s could not be updated", userID.Hex())
}

// SuspendUser blocks a user from authenticating. Admins cannot suspend
// themselves or other admins.
func (s *moderationService) SuspendUser(ctx context.Context, adminID, userID primitive.ObjectID) error {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}
	if adminID == userID {
		return apperr.Validation("you cannot suspend your own account")
	}
	return s.setSuspended(ctx, userID, true)
}

// UnsuspendUser lifts a suspension.
func (s *moderationService) UnsuspendUser(ctx context.Context, adminID, userID primitive.ObjectID) error {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}
	return s.setSuspended(ctx, userID, false)
}

func (s *moderationService) setSuspended(ctx context.Context, userID primitive.ObjectID, suspended bool) error {
	filter := bson.M{"_id": userID, "role": bson.M{"$ne": models.RoleAdmin}, "deleted": false}
	update := bson.M{"$set": bson.M{
		"suspended":  suspended,
		"updated_at": time.Now().UTC(),
	}}
	result, err := s.db.Collection(usersCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return wrapStoreErr(err, "failed to update suspension on user %s", userID.Hex())
	}
	if result.MatchedCount == 0 {
		return s.diagnoseUserUpdateFailure(ctx, userID)
	}
	return nil
}

// CreateReport files an abuse report. reporterID is nil for anonymous
// reports; TargetID may be nil only for general reports.
func (s *moderationService) CreateReport(ctx context.Context, reporterID *primitive.ObjectID, input CreateReportInput) (*models.Report, error) {
	if !models.ValidReportTargetType(input.TargetType) {
		return nil, apperr.Validation("unknown report target type %q", input.TargetType)
	}
	description := strings.TrimSpace(input.Description)
	if utf8.RuneCountInString(description) < minReportDescription {
		return nil, apperr.Validation("description must be at least %d characters", minReportDescription)
	}
	if input.TargetType != models.ReportTargetGeneral && input.TargetID == nil {
		return nil, apperr.Validation("target id is required for %s reports", input.TargetType)
	}

	// Product and user targets must exist; message and other targets live
	// in external systems and are recorded as given.
	if input.TargetID != nil {
		if err := s.verifyReportTarget(ctx, input.TargetType, *input.TargetID); err != nil {
			return nil, err
		}
	}

	collection := s.db.Collection(reportsCollection)
	now := time.Now().UTC()

	var report *models.Report
	operation := func() error {
		report = &models.Report{
			ID:          primitive.NewObjectID(),
			ReporterID:  reporterID,
			TargetType:  input.TargetType,
			TargetID:    input.TargetID,
			Reason:      strings.TrimSpace(input.Reason),
			Description: description,
			Status:      models.ReportStatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		_, insertErr := collection.InsertOne(ctx, report)
		return insertErr
	}
	if err := db.Try(operation); err != nil {
		return nil, wrapStoreErr(err, "failed to insert report after multiple retries")
	}
	return report, nil
}

func (s *moderationService) verifyReportTarget(ctx context.Context, targetType models.ReportTargetType, targetID primitive.ObjectID) error {
	var collection string
	switch targetType {
	case models.ReportTargetProduct:
		collection = productsCollection
	case models.ReportTargetUser:
		collection = usersCollection
	default:
		return nil
	}
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": targetID}).Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperr.NotFound("report target %s %s not found", targetType, targetID.Hex())
		}
		return wrapStoreErr(err, "error verifying report target %s", targetID.Hex())
	}
	return nil
}

// ReviewReport moves a report through its workflow and records the
// reviewing admin.
func (s *moderationService) ReviewReport(ctx context.Context, adminID, reportID primitive.ObjectID, status models.ReportStatus, note string) (*models.Report, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	if !models.ValidReportStatus(status) {
		return nil, apperr.Validation("unknown report status %q", status)
	}

	set := bson.M{
		"status":      status,
		"reviewed_by": adminID,
		"updated_at":  time.Now().UTC(),
	}
	if note = strings.TrimSpace(note); note != "" {
		set["admin_notes"] = note
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var report models.Report
	err := s.db.Collection(reportsCollection).FindOneAndUpdate(ctx, bson.M{"_id": reportID}, bson.M{"$set": set}, opts).Decode(&report)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("report %s not found", reportID.Hex())
		}
		return nil, wrapStoreErr(err, "failed to review report %s", reportID.Hex())
	}
	return &report, nil
}

// ListReports returns reports matching the filter, newest first.
func (s *moderationService) ListReports(ctx context.Context, adminID primitive.ObjectID, filter ReportFilter) ([]models.Report, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}

	query := bson.M{}
	if filter.Status != "" {
		if !models.ValidReportStatus(filter.Status) {
			return nil, apperr.Validation("unknown report status %q", filter.Status)
		}
		query["status"] = filter.Status
	}
	if filter.TargetType != "" {
		if !models.ValidReportTargetType(filter.TargetType) {
			return nil, apperr.Validation("unknown report target type %q", filter.TargetType)
		}
		query["target_type"] = filter.TargetType
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit).
		SetSkip(filter.Offset)

	cursor, err := s.db.Collection(reportsCollection).Find(ctx, query, opts)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to query reports")
	}
	defer cursor.Close(ctx)

	var reports []models.Report
	if err = cursor.All(ctx, &reports); err != nil {
		return nil, wrapStoreErr(err, "failed to decode reports")
	}
	return reports, nil
}
