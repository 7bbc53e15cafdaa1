package model

import (
	"strings"
	"time"
)

// OrderStatus enumerates the lifecycle states stored in orders.status.
type OrderStatus string

const (
	// OrderPending is used by the synchronous checkout that runs without a
	// payment provider.
	OrderPending OrderStatus = "pending"
	// OrderPaid is used for orders materialized from a confirmed payment.
	OrderPaid OrderStatus = "paid"
)

// Order mirrors the `orders` table. PaymentSessionID is unique and links the
// order back to the hosted checkout session that paid for it.
type Order struct {
	ID               uint64      `json:"id"`
	UserID           uint64      `json:"userId"`
	TotalPrice       int64       `json:"totalPrice"`
	Status           OrderStatus `json:"status"`
	ShippingAddress  string      `json:"shippingAddress"`
	PaymentSessionID *string     `json:"paymentSessionId"`
	Items            []OrderItem `json:"items"`
	CreatedAt        time.Time   `json:"createdAt"`
}

// OrderItem mirrors `order_items`. Price, Title and Artist are snapshots
// taken when the order was materialized.
type OrderItem struct {
	ID        uint64 `json:"id"`
	OrderID   uint64 `json:"orderId"`
	ListingID uint64 `json:"listingId"`
	Price     int64  `json:"price"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
}

// Shipping is the structured shipping address collected at checkout. It is
// flattened into Order.ShippingAddress when the order is written.
type Shipping struct {
	FullName string `json:"fullName"`
	Address  string `json:"address"`
	City     string `json:"city"`
	State    string `json:"state"`
	Zip      string `json:"zip"`
}

// String renders the address as "Name, Line, City, State Zip", leaving out
// empty parts.
func (s Shipping) String() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{s.FullName, s.Address, s.City} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	tail := strings.TrimSpace(strings.TrimSpace(s.State) + " " + strings.TrimSpace(s.Zip))
	if tail != "" {
		parts = append(parts, tail)
	}
	return strings.Join(parts, ", ")
}
