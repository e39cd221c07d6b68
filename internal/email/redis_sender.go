package email

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"tradenest/marketplace/internal/config"
)

// RedisSender implements the Sender interface by storing emails in Redis.
// Integration tests read the keys back instead of polling a mailbox.
type RedisSender struct {
	client *redis.Client
	cfg    *config.Config
}

// NewRedisSender creates a new RedisSender.
func NewRedisSender(client *redis.Client, cfg *config.Config) Sender {
	return &RedisSender{
		client: client,
		cfg:    cfg,
	}
}

// Send stores a representation of the email in Redis instead of sending
// it via SMTP. The key encodes the primary recipient and a best-effort
// classification of the notification so tests can target it directly.
func (s *RedisSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	notification := "unknown"
	switch {
	case strings.Contains(subject, "Order Confirmation"):
		notification = "order_placed"
	case strings.Contains(subject, "You Made a Sale"):
		notification = "order_sold"
	case strings.Contains(subject, "Payment Received"):
		notification = "payment_confirmed"
	case strings.Contains(subject, "New Report"):
		notification = "report_filed"
	}

	primaryTo := ""
	if len(to) > 0 {
		primaryTo = to[0]
	}

	emailData := map[string]interface{}{
		"to":           strings.Join(to, ", "),
		"from":         s.cfg.SmtpFromAddress,
		"subject":      subject,
		"body":         string(rawMessage),
		"sent_at":      time.Now().UTC().Format(time.RFC3339Nano),
		"notification": notification,
	}

	jsonData, err := json.Marshal(emailData)
	if err != nil {
		return fmt.Errorf("failed to marshal email data: %w", err)
	}

	key := fmt.Sprintf("mockemail:%s:%s", primaryTo, notification)
	ttl := 5 * time.Minute

	err = s.client.Set(ctx, key, jsonData, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to store email in Redis key '%s': %w", key, err)
	}

	log.Printf("Mock email stored in Redis key '%s' (TTL: %v, To: %s, Subject: %s)", key, ttl, strings.Join(to, ", "), subject)
	return nil
}
