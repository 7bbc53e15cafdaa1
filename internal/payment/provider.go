// Package payment adapts the hosted checkout provider. The service layer
// only sees Provider, so tests and the synchronous checkout mode can run
// without Stripe.
package payment

import (
	"context"
	"errors"
	"strings"
)

// ErrInvalidSignature is returned by ParseWebhook when the payload was not
// signed with the configured secret.
var ErrInvalidSignature = errors.New("payment: invalid webhook signature")

// Event types the checkout engine reacts to.
const (
	EventCheckoutCompleted      = "checkout.session.completed"
	EventCheckoutAsyncSucceeded = "checkout.session.async_payment_succeeded"
	EventCheckoutExpired        = "checkout.session.expired"
)

// LineItem is one priced cart row. Amount is in minor units.
type LineItem struct {
	Name        string
	Description string
	ImageURL    string
	Amount      int64
}

// CheckoutSessionRequest describes a hosted checkout to create.
type CheckoutSessionRequest struct {
	Currency       string
	Items          []LineItem
	SuccessURL     string
	CancelURL      string
	CustomerEmail  string
	Metadata       map[string]string
	IdempotencyKey string
	// ShippingCountries restricts address collection; empty disables it.
	ShippingCountries []string
}

// CheckoutSession is the provider's answer to a create request.
type CheckoutSession struct {
	ID  string
	URL string
}

// Address is a postal address reported by the provider.
type Address struct {
	Name       string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}

// Street joins both address lines.
func (a Address) Street() string {
	return strings.TrimSpace(strings.TrimSpace(a.Line1) + " " + strings.TrimSpace(a.Line2))
}

// Event is a verified webhook notification reduced to what checkout needs.
type Event struct {
	ID            string
	Type          string
	SessionID     string
	PaymentStatus string
	CustomerEmail string
	// Shipping and Customer are nil when the provider omitted them.
	Shipping *Address
	Customer *Address
	Metadata map[string]string
}

// Provider creates hosted checkout sessions and verifies webhooks.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error)
	ParseWebhook(payload []byte, signature string) (Event, error)
}
