package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vinylverse/storefront/internal/model"
	"github.com/vinylverse/storefront/internal/payment"
	"github.com/vinylverse/storefront/internal/repository"
)

// OrderStore persists orders; materialization consumes cart rows in the
// same transaction.
type OrderStore interface {
	MaterializeSession(ctx context.Context, sessionID string, build repository.OrderBuilder) (model.Order, error)
	MaterializeCart(ctx context.Context, userID uint64, build repository.OrderBuilder) (model.Order, error)
	GetBySession(ctx context.Context, userID uint64, sessionID string) (model.Order, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Order, error)
	GetByID(ctx context.Context, id uint64) (model.Order, error)
}

// UserLookup resolves account emails for receipts.
type UserLookup interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// CheckoutConfig holds the storefront settings checkout needs.
type CheckoutConfig struct {
	PublicURL         string
	Currency          string
	ShippingCountries []string
}

// CheckoutResult is returned by Initiate. With a payment provider URL and
// SessionID are set; without one the order is placed immediately.
type CheckoutResult struct {
	URL       string       `json:"url,omitempty"`
	SessionID string       `json:"sessionId,omitempty"`
	Order     *model.Order `json:"order,omitempty"`
}

// WebhookResult describes what a payment notification did.
type WebhookResult struct {
	EventType string       `json:"eventType"`
	Order     *model.Order `json:"-"`
	Released  int64        `json:"-"`
}

// CheckoutService turns carts into orders.
type CheckoutService struct {
	carts    CartStore
	orders   OrderStore
	users    UserLookup
	provider payment.Provider
	notifier Notifier
	cfg      CheckoutConfig
	log      *zap.Logger
	newKey   func() string
}

// NewCheckoutService wires a CheckoutService. provider may be nil, in which
// case checkout places pending orders synchronously.
func NewCheckoutService(carts CartStore, orders OrderStore, users UserLookup, provider payment.Provider,
	notifier Notifier, cfg CheckoutConfig, log *zap.Logger) *CheckoutService {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	return &CheckoutService{
		carts:    carts,
		orders:   orders,
		users:    users,
		provider: provider,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
		newKey:   func() string { return uuid.NewString() },
	}
}

// Initiate starts checkout for the caller's persisted cart.
func (s *CheckoutService) Initiate(ctx context.Context, id model.Identity, ship model.Shipping) (CheckoutResult, error) {
	lines, err := s.carts.ListByUser(ctx, id.UserID)
	if err != nil {
		return CheckoutResult{}, fmt.Errorf("load cart: %w", err)
	}
	if len(lines) == 0 {
		return CheckoutResult{}, ErrCartEmpty
	}
	var sold []string
	for _, l := range lines {
		if !l.Listing.Available() {
			sold = append(sold, l.Listing.Title)
		}
	}
	if len(sold) > 0 {
		return CheckoutResult{}, fmt.Errorf("%w: %s", ErrListingUnavailable, strings.Join(sold, ", "))
	}
	ship = trimShipping(ship)

	if s.provider == nil {
		return s.placeDirect(ctx, id, ship)
	}

	items := make([]payment.LineItem, 0, len(lines))
	rowIDs := make([]uint64, 0, len(lines))
	for _, l := range lines {
		rowIDs = append(rowIDs, l.ID)
		items = append(items, payment.LineItem{
			Name:        l.Listing.Title,
			Description: l.Listing.Artist,
			ImageURL:    l.Listing.ImageURL,
			Amount:      l.EffectivePrice * 100,
		})
	}
	session, err := s.provider.CreateCheckoutSession(ctx, payment.CheckoutSessionRequest{
		Currency:      s.cfg.Currency,
		Items:         items,
		SuccessURL:    s.cfg.PublicURL + "/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     s.cfg.PublicURL + "/cancel",
		CustomerEmail: id.Email,
		Metadata: map[string]string{
			"userId":   strconv.FormatUint(id.UserID, 10),
			"fullName": ship.FullName,
			"address":  ship.Address,
			"city":     ship.City,
			"state":    ship.State,
			"zip":      ship.Zip,
		},
		IdempotencyKey:    s.newKey(),
		ShippingCountries: s.cfg.ShippingCountries,
	})
	if err != nil {
		return CheckoutResult{}, fmt.Errorf("%w: %v", ErrPaymentUpstream, err)
	}

	// Only the charged rows carry the session; stale stamps from an
	// abandoned attempt are overwritten.
	n, err := s.carts.StampSession(ctx, id.UserID, session.ID, rowIDs)
	if err != nil {
		return CheckoutResult{}, fmt.Errorf("stamp cart: %w", err)
	}
	s.log.Info("checkout initiated",
		zap.Uint64("user_id", id.UserID), zap.String("session_id", session.ID), zap.Int64("rows", n))
	return CheckoutResult{URL: session.URL, SessionID: session.ID}, nil
}

// placeDirect materializes the cart immediately as a pending order.
func (s *CheckoutService) placeDirect(ctx context.Context, id model.Identity, ship model.Shipping) (CheckoutResult, error) {
	order, err := s.orders.MaterializeCart(ctx, id.UserID, func(lines []model.CartLine) (model.Order, error) {
		for _, l := range lines {
			if !l.Listing.Available() {
				return model.Order{}, ErrListingUnavailable
			}
		}
		return BuildOrder(lines, model.OrderPending, ship), nil
	})
	if errors.Is(err, repository.ErrNothingToMaterialize) {
		return CheckoutResult{}, ErrCartEmpty
	}
	if err != nil {
		return CheckoutResult{}, fmt.Errorf("place order: %w", err)
	}
	s.log.Info("order placed without payment provider", zap.Uint64("order_id", order.ID), zap.Uint64("user_id", id.UserID))
	s.notify(ctx, order, id.Email)
	return CheckoutResult{Order: &order}, nil
}

// HandleWebhook verifies and applies one payment notification. Replays
// and unknown sessions are acknowledged without effect.
func (s *CheckoutService) HandleWebhook(ctx context.Context, payload []byte, signature string) (WebhookResult, error) {
	if s.provider == nil {
		return WebhookResult{}, ErrPaymentsDisabled
	}
	evt, err := s.provider.ParseWebhook(payload, signature)
	if err != nil {
		return WebhookResult{}, err
	}
	res := WebhookResult{EventType: evt.Type}
	log := s.log.With(zap.String("event_id", evt.ID), zap.String("event_type", evt.Type), zap.String("session_id", evt.SessionID))

	switch evt.Type {
	case payment.EventCheckoutCompleted, payment.EventCheckoutAsyncSucceeded:
		if evt.Type == payment.EventCheckoutCompleted && evt.PaymentStatus == "unpaid" {
			log.Info("checkout completed with payment pending; waiting for async result")
			return res, nil
		}
		order, err := s.materialize(ctx, evt)
		switch {
		case errors.Is(err, repository.ErrNothingToMaterialize):
			log.Info("no cart rows for session; already processed or unknown")
			return res, nil
		case errors.Is(err, repository.ErrDuplicateOrder):
			log.Info("order already exists for session")
			return res, nil
		case err != nil:
			log.Error("order materialization failed", zap.Error(err))
			return res, err
		}
		res.Order = &order
		log.Info("order materialized", zap.Uint64("order_id", order.ID), zap.Int64("total", order.TotalPrice))
		s.notify(ctx, order, s.receiptEmail(ctx, evt.CustomerEmail, order.UserID))
	case payment.EventCheckoutExpired:
		n, err := s.carts.ClearSessionStamp(ctx, evt.SessionID)
		if err != nil {
			log.Error("clearing expired session failed", zap.Error(err))
			return res, err
		}
		res.Released = n
		log.Info("checkout session expired", zap.Int64("rows", n))
	default:
		log.Debug("ignoring payment event")
	}
	return res, nil
}

func (s *CheckoutService) materialize(ctx context.Context, evt payment.Event) (model.Order, error) {
	if evt.SessionID == "" {
		return model.Order{}, repository.ErrNothingToMaterialize
	}
	ship := ResolveShipping(evt)
	return s.orders.MaterializeSession(ctx, evt.SessionID, func(lines []model.CartLine) (model.Order, error) {
		// The payment is captured, so the order is written anyway and the
		// double sale is left for an admin to refund.
		for _, l := range lines {
			if !l.Listing.Available() {
				s.log.Warn("paid session includes a listing that is already sold",
					zap.String("session_id", evt.SessionID),
					zap.Uint64("listing_id", l.ListingID),
					zap.Uint64("user_id", l.UserID))
			}
		}
		return BuildOrder(lines, model.OrderPaid, ship), nil
	})
}

func (s *CheckoutService) receiptEmail(ctx context.Context, fromProvider string, userID uint64) string {
	if fromProvider != "" {
		return fromProvider
	}
	if s.users == nil || userID == 0 {
		return ""
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		s.log.Warn("receipt email lookup failed", zap.Uint64("user_id", userID), zap.Error(err))
		return ""
	}
	return u.Email
}

func (s *CheckoutService) notify(ctx context.Context, order model.Order, email string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.OrderPlaced(ctx, order, email); err != nil {
		s.log.Warn("order notification failed", zap.Uint64("order_id", order.ID), zap.Error(err))
	}
}

// OrderBySession returns the caller's order for a payment session.
func (s *CheckoutService) OrderBySession(ctx context.Context, id model.Identity, sessionID string) (model.Order, error) {
	return s.orders.GetBySession(ctx, id.UserID, sessionID)
}

// Orders returns the caller's orders, newest first.
func (s *CheckoutService) Orders(ctx context.Context, id model.Identity) ([]model.Order, error) {
	return s.orders.ListByUser(ctx, id.UserID)
}

// BuildOrder prices lines into an order: the total and each item use the
// effective price, and items snapshot title and artist.
func BuildOrder(lines []model.CartLine, status model.OrderStatus, ship model.Shipping) model.Order {
	o := model.Order{
		Status:          status,
		ShippingAddress: ship.String(),
		Items:           make([]model.OrderItem, 0, len(lines)),
	}
	if len(lines) > 0 {
		o.UserID = lines[0].UserID
	}
	for _, l := range lines {
		o.Items = append(o.Items, model.OrderItem{
			ListingID: l.ListingID,
			Price:     l.EffectivePrice,
			Title:     l.Listing.Title,
			Artist:    l.Listing.Artist,
		})
	}
	o.TotalPrice = model.CartTotal(lines)
	return o
}

// ResolveShipping picks each shipping field from the provider's shipping
// details, then its customer details, then the session metadata. Missing
// fields stay empty.
func ResolveShipping(evt payment.Event) model.Shipping {
	var shipping, customer payment.Address
	if evt.Shipping != nil {
		shipping = *evt.Shipping
	}
	if evt.Customer != nil {
		customer = *evt.Customer
	}
	meta := evt.Metadata
	return model.Shipping{
		FullName: first(shipping.Name, customer.Name, meta["fullName"]),
		Address:  first(shipping.Street(), customer.Street(), meta["address"]),
		City:     first(shipping.City, customer.City, meta["city"]),
		State:    first(shipping.State, customer.State, meta["state"]),
		Zip:      first(shipping.PostalCode, customer.PostalCode, meta["zip"]),
	}
}

func first(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func trimShipping(s model.Shipping) model.Shipping {
	return model.Shipping{
		FullName: strings.TrimSpace(s.FullName),
		Address:  strings.TrimSpace(s.Address),
		City:     strings.TrimSpace(s.City),
		State:    strings.TrimSpace(s.State),
		Zip:      strings.TrimSpace(s.Zip),
	}
}
