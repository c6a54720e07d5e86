package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/mercadito/storefront-api/internal/model"
	"github.com/mercadito/storefront-api/internal/repository"
)

const (
	orderCreatedQueue = "orders.created"
	dlxExchange       = "orders.created.dlx"
	dlqQueueName      = "orders.created.dlq"
	idempotencyTTL    = 24 * time.Hour
)

// NotifyWorker consumes order-created events and prepares the WhatsApp
// confirmation message for the merchant.
type NotifyWorker struct {
	channel       *amqp.Channel
	orderRepo     repository.OrderRepository
	redisClient   *redis.Client
	merchantPhone string
	log           *slog.Logger
	done          chan struct{}
}

func NewNotifyWorker(
	ch *amqp.Channel,
	orderRepo repository.OrderRepository,
	redisClient *redis.Client,
	merchantPhone string,
	log *slog.Logger,
) *NotifyWorker {
	return &NotifyWorker{
		channel:       ch,
		orderRepo:     orderRepo,
		redisClient:   redisClient,
		merchantPhone: merchantPhone,
		log:           log,
		done:          make(chan struct{}),
	}
}

// SetupRabbitMQ declares exchanges, queues, and bindings (DLX/DLQ).
func SetupRabbitMQ(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(dlxExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLX: %w", err)
	}
	if _, err := ch.QueueDeclare(dlqQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLQ: %w", err)
	}
	if err := ch.QueueBind(dlqQueueName, orderCreatedQueue, dlxExchange, false, nil); err != nil {
		return fmt.Errorf("bind DLQ: %w", err)
	}
	if _, err := ch.QueueDeclare(orderCreatedQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    dlxExchange,
		"x-dead-letter-routing-key": orderCreatedQueue,
	}); err != nil {
		return fmt.Errorf("declare order queue: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set QoS: %w", err)
	}
	return nil
}

func (w *NotifyWorker) Start(ctx context.Context) error {
	msgs, err := w.channel.Consume(orderCreatedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	go func() {
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				w.processMessage(ctx, msg)
			case <-w.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	w.log.Info("notify worker started")
	return nil
}

func (w *NotifyWorker) Stop() { close(w.done) }

func (w *NotifyWorker) processMessage(ctx context.Context, msg amqp.Delivery) {
	var orderMsg model.OrderCreatedMessage
	if err := json.Unmarshal(msg.Body, &orderMsg); err != nil {
		w.log.Error("unmarshal order message", "error", err)
		_ = msg.Nack(false, false)
		return
	}

	log := w.log.With("order_id", orderMsg.OrderID, "order_number", orderMsg.OrderNumber)

	// Idempotency check via Redis
	idempotencyKey := "order_notified:" + orderMsg.OrderID.String()
	exists, err := w.redisClient.Exists(ctx, idempotencyKey).Result()
	if err != nil {
		log.Error("check idempotency key", "error", err)
		_ = msg.Nack(false, true)
		return
	}
	if exists > 0 {
		log.Info("order already notified, skipping")
		_ = msg.Ack(false)
		return
	}

	if err := w.notifyMerchant(ctx, orderMsg.OrderID); err != nil {
		log.Error("notify merchant failed", "error", err)
		_ = msg.Nack(false, false) // → DLQ
		return
	}

	if err := w.redisClient.Set(ctx, idempotencyKey, "1", idempotencyTTL).Err(); err != nil {
		log.Error("set idempotency key", "error", err)
	}

	_ = msg.Ack(false)
	log.Info("merchant notified")
}

func (w *NotifyWorker) notifyMerchant(ctx context.Context, orderID uuid.UUID) error {
	order, err := w.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return fmt.Errorf("order not found: %s", orderID)
	}

	waURL := WhatsAppURL(w.merchantPhone, order)
	w.log.Info("order confirmation link ready",
		"order_number", order.OrderNumber,
		"customer", order.CustomerName,
		"total", order.Total.StringFixed(2),
		"whatsapp_url", waURL,
	)
	return nil
}

// WhatsAppURL builds the wa.me link the merchant uses to confirm an order.
func WhatsAppURL(phone string, order *model.Order) string {
	var b strings.Builder
	b.WriteString("¡Hola! 👋\n\n")
	b.WriteString("Acabo de realizar un pedido\n\n")
	fmt.Fprintf(&b, "*Pedido:* %s\n", order.OrderNumber)
	fmt.Fprintf(&b, "*Total:* Q%s\n", order.Total.StringFixed(2))
	fmt.Fprintf(&b, "*Nombre:* %s\n\n", order.CustomerName)
	b.WriteString("¿Podrían confirmar mi pedido?\n\n¡Gracias!")

	return fmt.Sprintf("https://wa.me/%s?text=%s",
		strings.TrimPrefix(phone, "+"),
		url.QueryEscape(b.String()),
	)
}
