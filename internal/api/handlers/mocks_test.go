package handlers_test

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"tradenest/marketplace/internal/models"
	"tradenest/marketplace/internal/services"
)

// MockUserService implements services.IUserService
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Register(ctx context.Context, email, password, name, address string, role models.Role) (*models.User, error) {
	args := m.Called(ctx, email, password, name, address, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) FindByID(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// MockProductService implements services.IProductService
type MockProductService struct {
	mock.Mock
}

func (m *MockProductService) CreateProduct(ctx context.Context, sellerID primitive.ObjectID, sellerRole models.Role, input services.CreateProductInput) (*models.Product, error) {
	args := m.Called(ctx, sellerID, sellerRole, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductService) FindProductByID(ctx context.Context, productID primitive.ObjectID) (*models.Product, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductService) UpdateProduct(ctx context.Context, productID, sellerID primitive.ObjectID, updates map[string]interface{}) (*models.Product, error) {
	args := m.Called(ctx, productID, sellerID, updates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductService) SetAvailability(ctx context.Context, productID, callerID primitive.ObjectID, callerRole models.Role, available bool) error {
	args := m.Called(ctx, productID, callerID, callerRole, available)
	return args.Error(0)
}

func (m *MockProductService) SearchProducts(ctx context.Context, filter services.ProductFilter) ([]models.Product, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *MockProductService) ListProductsBySeller(ctx context.Context, sellerID primitive.ObjectID) ([]models.Product, error) {
	args := m.Called(ctx, sellerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Product), args.Error(1)
}

// MockOrderService implements services.IOrderService
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) PlaceOrder(ctx context.Context, buyerID primitive.ObjectID, input services.PlaceOrderInput) (*models.Order, error) {
	args := m.Called(ctx, buyerID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderService) GetOrder(ctx context.Context, orderID, callerID primitive.ObjectID, callerRole models.Role) (*models.Order, error) {
	args := m.Called(ctx, orderID, callerID, callerRole)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderService) ListOrdersForUser(ctx context.Context, buyerID primitive.ObjectID) ([]models.Order, error) {
	args := m.Called(ctx, buyerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Order), args.Error(1)
}

func (m *MockOrderService) ListOrdersForSeller(ctx context.Context, sellerID primitive.ObjectID) ([]models.Order, error) {
	args := m.Called(ctx, sellerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Order), args.Error(1)
}

func (m *MockOrderService) ConfirmPayment(ctx context.Context, orderID primitive.ObjectID) (*models.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderService) SetOrderStatus(ctx context.Context, orderID primitive.ObjectID, patch services.OrderStatusPatch) (*models.Order, error) {
	args := m.Called(ctx, orderID, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderService) AddTracking(ctx context.Context, orderID, callerID primitive.ObjectID, callerRole models.Role, tracking models.Tracking) error {
	args := m.Called(ctx, orderID, callerID, callerRole, tracking)
	return args.Error(0)
}

// MockModerationService implements services.IModerationService
type MockModerationService struct {
	mock.Mock
}

func (m *MockModerationService) SetProductStatus(ctx context.Context, adminID, productID primitive.ObjectID, status models.ProductStatus) (*models.Product, error) {
	args := m.Called(ctx, adminID, productID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockModerationService) SetOrderStatus(ctx context.Context, adminID, orderID primitive.ObjectID, patch services.OrderStatusPatch) (*models.Order, error) {
	args := m.Called(ctx, adminID, orderID, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockModerationService) ConfirmPayment(ctx context.Context, adminID, orderID primitive.ObjectID) (*models.Order, error) {
	args := m.Called(ctx, adminID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockModerationService) SetUserRole(ctx context.Context, adminID, userID primitive.ObjectID, role models.Role) (*models.User, error) {
	args := m.Called(ctx, adminID, userID, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockModerationService) SuspendUser(ctx context.Context, adminID, userID primitive.ObjectID) error {
	args := m.Called(ctx, adminID, userID)
	return args.Error(0)
}

func (m *MockModerationService) UnsuspendUser(ctx context.Context, adminID, userID primitive.ObjectID) error {
	args := m.Called(ctx, adminID, userID)
	return args.Error(0)
}

func (m *MockModerationService) CreateReport(ctx context.Context, reporterID *primitive.ObjectID, input services.CreateReportInput) (*models.Report, error) {
	args := m.Called(ctx, reporterID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Report), args.Error(1)
}

func (m *MockModerationService) ReviewReport(ctx context.Context, adminID, reportID primitive.ObjectID, status models.ReportStatus, note string) (*models.Report, error) {
	args := m.Called(ctx, adminID, reportID, status, note)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Report), args.Error(1)
}

func (m *MockModerationService) ListReports(ctx context.Context, adminID primitive.ObjectID, filter services.ReportFilter) ([]models.Report, error) {
	args := m.Called(ctx, adminID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Report), args.Error(1)
}

// MockAsynqClient implements handlers.IAsynqClient
type MockAsynqClient struct {
	mock.Mock
}

func (m *MockAsynqClient) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}
