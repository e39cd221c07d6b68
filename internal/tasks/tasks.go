package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"tradenest/marketplace/internal/apperr"
	"tradenest/marketplace/internal/config"
	"tradenest/marketplace/internal/email"
	"tradenest/marketplace/internal/models"
	"tradenest/marketplace/internal/services"
)

// Task types handled by the background worker.
const (
	TypeOrderPlaced      = "order:placed"
	TypePaymentConfirmed = "order:payment_confirmed"
	TypeReportFiled      = "report:filed"
)

// --- Task Client (Enqueuing tasks) ---

func NewClient(rdb *redis.Client) *asynq.Client {
	clientOpt := asynq.RedisClientOpt{
		Addr:     rdb.Options().Addr,
		Password: rdb.Options().Password,
		DB:       rdb.Options().DB,
	}
	return asynq.NewClient(clientOpt)
}

// NewOrderPlacedTask builds the task enqueued right after an order is
// persisted.
func NewOrderPlacedTask(orderID primitive.ObjectID) (*asynq.Task, error) {
	payload, err := json.Marshal(OrderTaskPayload{OrderID: orderID.Hex()})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order placed payload: %w", err)
	}
	return asynq.NewTask(TypeOrderPlaced, payload, asynq.Queue("critical")), nil
}

// NewPaymentConfirmedTask builds the task enqueued after payment is
// recorded.
func NewPaymentConfirmedTask(orderID primitive.ObjectID) (*asynq.Task, error) {
	payload, err := json.Marshal(OrderTaskPayload{OrderID: orderID.Hex()})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment confirmed payload: %w", err)
	}
	return asynq.NewTask(TypePaymentConfirmed, payload, asynq.Queue("default")), nil
}

// NewReportFiledTask builds the moderation notification task for a new
// report.
func NewReportFiledTask(reportID primitive.ObjectID) (*asynq.Task, error) {
	payload, err := json.Marshal(ReportTaskPayload{ReportID: reportID.Hex()})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report filed payload: %w", err)
	}
	return asynq.NewTask(TypeReportFiled, payload, asynq.Queue("low")), nil
}

// --- Task Server (Processing tasks) ---

// TaskProcessor handles the processing of tasks. It holds the
// dependencies needed by task handlers.
type TaskProcessor struct {
	cfg         *config.Config
	emailSender email.Sender
	orders      services.IOrderService
	users       services.IUserService
}

func NewTaskProcessor(
	cfg *config.Config,
	emailSender email.Sender,
	orders services.IOrderService,
	users services.IUserService,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:         cfg,
		emailSender: emailSender,
		orders:      orders,
		users:       users,
	}
}

// SetupServer configures and starts an Asynq server. The server runs in
// its own goroutines; callers stop it with Shutdown.
func SetupServer(rdb *redis.Client, processor *TaskProcessor) *asynq.Server {
	serverOpt := asynq.RedisClientOpt{
		Addr:     rdb.Options().Addr,
		Password: rdb.Options().Password,
		DB:       rdb.Options().DB,
	}

	srv := asynq.NewServer(
		serverOpt,
		asynq.Config{
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v", task.Type(), string(task.Payload()), err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeOrderPlaced, processor.HandleOrderPlacedTask)
	mux.HandleFunc(TypePaymentConfirmed, processor.HandlePaymentConfirmedTask)
	mux.HandleFunc(TypeReportFiled, processor.HandleReportFiledTask)
	log.Println("Registered background task handlers.")

	if err := srv.Start(mux); err != nil {
		log.Fatalf("Could not start Asynq server: %v", err)
	}

	return srv
}

// --- Task Handlers ---

// OrderTaskPayload carries an order reference between API and worker.
type OrderTaskPayload struct {
	OrderID string `json:"order_id"`
}

// ReportTaskPayload carries a report reference.
type ReportTaskPayload struct {
	ReportID string `json:"report_id"`
}

// loadOrder resolves a task payload to the order it refers to. The worker
// reads on the system's behalf, so lookup bypasses per-user visibility.
func (p *TaskProcessor) loadOrder(ctx context.Context, t *asynq.Task) (*models.Order, error) {
	var payload OrderTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order task payload: %v: %w", err, asynq.SkipRetry)
	}
	orderID, err := primitive.ObjectIDFromHex(payload.OrderID)
	if err != nil {
		return nil, fmt.Errorf("invalid order ID in payload: %w", asynq.SkipRetry)
	}
	order, err := p.orders.GetOrder(ctx, orderID, primitive.NilObjectID, models.RoleAdmin)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, fmt.Errorf("order not found: %w", asynq.SkipRetry)
		}
		return nil, err
	}
	return order, nil
}

// HandleOrderPlacedTask notifies the buyer and the seller of a new order.
func (p *TaskProcessor) HandleOrderPlacedTask(ctx context.Context, t *asynq.Task) error {
	order, err := p.loadOrder(ctx, t)
	if err != nil {
		return err
	}

	buyer, err := p.users.FindByID(ctx, order.BuyerID)
	if err != nil {
		log.Printf("Error fetching buyer %s for order %s: %v", order.BuyerID.Hex(), order.Reference, err)
		return err
	}
	seller, err := p.users.FindByID(ctx, order.SellerID)
	if err != nil {
		log.Printf("Error fetching seller %s for order %s: %v", order.SellerID.Hex(), order.Reference, err)
		return err
	}

	buyerSubject := fmt.Sprintf("%s Order Confirmation %s", p.cfg.AppName, order.Reference)
	buyerBody := fmt.Sprintf(
		"Hi %s,\n\nYour order %s for %q has been placed.\n\nItem: %.2f\nShipping: %.2f\nTax: %.2f\nTotal: %.2f\n\nPayment method: %s\nShip to: %s\n",
		buyer.Name, order.Reference, order.Product.Title,
		order.Breakdown.Price, order.Breakdown.ShippingFee, order.Breakdown.Tax, order.Breakdown.Total,
		order.PaymentMethod, order.ShippingAddress,
	)
	if err := p.sendMail(ctx, buyer.Email, buyerSubject, buyerBody); err != nil {
		return err
	}

	sellerSubject := fmt.Sprintf("%s: You Made a Sale (%s)", p.cfg.AppName, order.Reference)
	sellerBody := fmt.Sprintf(
		"Hi %s,\n\nYour listing %q sold for %.2f (order %s).\nPrepare the item for shipment to: %s\n",
		seller.Name, order.Product.Title, order.Breakdown.Price, order.Reference, order.ShippingAddress,
	)
	return p.sendMail(ctx, seller.Email, sellerSubject, sellerBody)
}

// HandlePaymentConfirmedTask notifies the buyer that payment was recorded.
func (p *TaskProcessor) HandlePaymentConfirmedTask(ctx context.Context, t *asynq.Task) error {
	order, err := p.loadOrder(ctx, t)
	if err != nil {
		return err
	}

	buyer, err := p.users.FindByID(ctx, order.BuyerID)
	if err != nil {
		log.Printf("Error fetching buyer %s for order %s: %v", order.BuyerID.Hex(), order.Reference, err)
		return err
	}

	subject := fmt.Sprintf("%s: Payment Received for %s", p.cfg.AppName, order.Reference)
	body := fmt.Sprintf(
		"Hi %s,\n\nWe received your payment of %.2f for order %s. The seller has been asked to ship your item.\n",
		buyer.Name, order.Breakdown.Total, order.Reference,
	)
	return p.sendMail(ctx, buyer.Email, subject, body)
}

// HandleReportFiledTask notifies the moderation inbox about a new report.
func (p *TaskProcessor) HandleReportFiledTask(ctx context.Context, t *asynq.Task) error {
	var payload ReportTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal report task payload: %v: %w", err, asynq.SkipRetry)
	}

	subject := fmt.Sprintf("%s: New Report %s", p.cfg.AppName, payload.ReportID)
	body := fmt.Sprintf("A new report %s was filed and is awaiting review.\n", payload.ReportID)
	return p.sendMail(ctx, p.cfg.ModerationEmail, subject, body)
}

// sendMail wraps the body in a minimal plain-text RFC 5322 message and
// hands it to the configured sender.
func (p *TaskProcessor) sendMail(ctx context.Context, to, subject, body string) error {
	fromAddress := p.cfg.SmtpFromAddress
	if fromAddress == "" {
		fromAddress = "noreply@example.com"
		log.Printf("Warning: SmtpFromAddress not configured, using fallback %s for email to %s", fromAddress, to)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("To: %s\r\n", to))
	sb.WriteString(fmt.Sprintf("From: %s\r\n", fromAddress))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	sb.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(body)
	sb.WriteString("\r\n")

	if err := p.emailSender.Send(ctx, []string{to}, subject, []byte(sb.String())); err != nil {
		log.Printf("Email sending failed for %s: %v", to, err)
		return err
	}
	return nil
}
