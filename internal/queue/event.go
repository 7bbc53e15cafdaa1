// Package queue carries order events over RabbitMQ: a publisher used by
// checkout and a reconnecting consumer that delivers confirmation mail.
package queue

import (
	"time"

	"github.com/vinylverse/storefront/internal/model"
)

// OrderPaidQueue is the durable queue order events are published to.
const OrderPaidQueue = "order.paid"

// OrderPaidEvent is published once an order has been materialized. It
// carries everything the mail worker needs, so consumers never query the
// primary database.
type OrderPaidEvent struct {
	OrderID          uint64      `json:"order_id"`
	UserID           uint64      `json:"user_id"`
	Email            string      `json:"email"`
	Status           string      `json:"status"`
	TotalPrice       int64       `json:"total_price"`
	ShippingAddress  string      `json:"shipping_address"`
	PaymentSessionID string      `json:"payment_session_id,omitempty"`
	Items            []EventItem `json:"items"`
	PlacedAt         string      `json:"placed_at"`
}

// EventItem is one order line inside an OrderPaidEvent.
type EventItem struct {
	ListingID uint64 `json:"listing_id"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Price     int64  `json:"price"`
}

// NewOrderPaidEvent builds the event for order, to be mailed to email.
func NewOrderPaidEvent(order model.Order, email string) OrderPaidEvent {
	ev := OrderPaidEvent{
		OrderID:         order.ID,
		UserID:          order.UserID,
		Email:           email,
		Status:          string(order.Status),
		TotalPrice:      order.TotalPrice,
		ShippingAddress: order.ShippingAddress,
		Items:           make([]EventItem, 0, len(order.Items)),
		PlacedAt:        order.CreatedAt.UTC().Format(time.RFC3339),
	}
	if order.PaymentSessionID != nil {
		ev.PaymentSessionID = *order.PaymentSessionID
	}
	for _, it := range order.Items {
		ev.Items = append(ev.Items, EventItem{ListingID: it.ListingID, Title: it.Title, Artist: it.Artist, Price: it.Price})
	}
	return ev
}

// Order converts the event back into the order it describes.
func (ev OrderPaidEvent) Order() model.Order {
	o := model.Order{
		ID:              ev.OrderID,
		UserID:          ev.UserID,
		Status:          model.OrderStatus(ev.Status),
		TotalPrice:      ev.TotalPrice,
		ShippingAddress: ev.ShippingAddress,
		Items:           make([]model.OrderItem, 0, len(ev.Items)),
	}
	if ev.PaymentSessionID != "" {
		sid := ev.PaymentSessionID
		o.PaymentSessionID = &sid
	}
	if t, err := time.Parse(time.RFC3339, ev.PlacedAt); err == nil {
		o.CreatedAt = t
	}
	for _, it := range ev.Items {
		o.Items = append(o.Items, model.OrderItem{OrderID: ev.OrderID, ListingID: it.ListingID, Title: it.Title, Artist: it.Artist, Price: it.Price})
	}
	return o
}
