package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/vinylverse/storefront/internal/mail"
	"github.com/vinylverse/storefront/internal/model"
	"github.com/vinylverse/storefront/internal/queue"
)

// Notifier tells the customer about a placed order. Calls are best-effort:
// callers log failures and carry on.
type Notifier interface {
	OrderPlaced(ctx context.Context, order model.Order, email string) error
}

// MailNotifier sends the order confirmation directly.
type MailNotifier struct {
	Sender mail.Sender
}

func (n MailNotifier) OrderPlaced(ctx context.Context, order model.Order, email string) error {
	if email == "" {
		return nil
	}
	msg, err := mail.OrderConfirmation(email, order)
	if err != nil {
		return err
	}
	return n.Sender.Send(ctx, msg)
}

// OrderPublisher is implemented by queue.Publisher.
type OrderPublisher interface {
	PublishOrderPaid(ctx context.Context, ev queue.OrderPaidEvent) error
}

// QueueNotifier hands the order to the message broker; a consumer running
// MailNotifier delivers the email.
type QueueNotifier struct {
	Publisher OrderPublisher
}

func (n QueueNotifier) OrderPlaced(ctx context.Context, order model.Order, email string) error {
	return n.Publisher.PublishOrderPaid(ctx, queue.NewOrderPaidEvent(order, email))
}

// MailHandler adapts a Notifier into a queue.Handler for the consumer.
func MailHandler(n Notifier, log *zap.Logger) queue.Handler {
	return func(ctx context.Context, ev queue.OrderPaidEvent) error {
		if err := n.OrderPlaced(ctx, ev.Order(), ev.Email); err != nil {
			return err
		}
		log.Info("order confirmation delivered", zap.Uint64("order_id", ev.OrderID))
		return nil
	}
}
