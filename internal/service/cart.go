package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/vinylverse/storefront/internal/model"
	"github.com/vinylverse/storefront/internal/repository"
)

// ListingStore is the catalog contract used by carts and checkout.
type ListingStore interface {
	GetByID(ctx context.Context, id uint64) (model.Listing, error)
	GetByIDs(ctx context.Context, ids []uint64) ([]model.Listing, error)
}

// CartStore persists cart rows.
type CartStore interface {
	ListByUser(ctx context.Context, userID uint64) ([]model.CartLine, error)
	GetByID(ctx context.Context, id uint64) (model.CartLine, error)
	AddIfAbsent(ctx context.Context, userID uint64, listing model.Listing) (model.CartLine, bool, error)
	DeleteOwned(ctx context.Context, userID, id uint64) error
	StampSession(ctx context.Context, userID uint64, sessionID string, rowIDs []uint64) (int64, error)
	ClearSessionStamp(ctx context.Context, sessionID string) (int64, error)
}

// Cart is a priced view of a cart. Skipped lists requested listing ids
// that could not be placed in it.
type Cart struct {
	Items   []model.CartLine `json:"items"`
	Total   int64            `json:"total"`
	Skipped []uint64         `json:"skipped,omitempty"`
}

func newCart(lines []model.CartLine) Cart {
	if lines == nil {
		lines = []model.CartLine{}
	}
	return Cart{Items: lines, Total: model.CartTotal(lines)}
}

// CartService reconciles persisted carts with the catalog.
type CartService struct {
	listings ListingStore
	carts    CartStore
	log      *zap.Logger
}

// NewCartService wires a CartService.
func NewCartService(listings ListingStore, carts CartStore, log *zap.Logger) *CartService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CartService{listings: listings, carts: carts, log: log}
}

// List returns the caller's persisted cart.
func (s *CartService) List(ctx context.Context, id model.Identity) (Cart, error) {
	lines, err := s.carts.ListByUser(ctx, id.UserID)
	if err != nil {
		return Cart{}, fmt.Errorf("list cart: %w", err)
	}
	return newCart(lines), nil
}

// Guest prices a cart remembered by an anonymous client. Nothing is
// persisted; lines carry id 0. Unknown and sold listings are dropped and
// reported in Skipped.
func (s *CartService) Guest(ctx context.Context, listingIDs []uint64) (Cart, error) {
	ids := dedupe(listingIDs)
	found, err := s.listings.GetByIDs(ctx, ids)
	if err != nil {
		return Cart{}, fmt.Errorf("resolve guest cart: %w", err)
	}
	byID := make(map[uint64]model.Listing, len(found))
	for _, l := range found {
		byID[l.ID] = l
	}
	lines := make([]model.CartLine, 0, len(ids))
	var skipped []uint64
	for _, lid := range ids {
		l, ok := byID[lid]
		if !ok || !l.Available() {
			skipped = append(skipped, lid)
			continue
		}
		lines = append(lines, model.NewCartLine(model.CartItem{ListingID: lid}, l))
	}
	cart := newCart(lines)
	cart.Skipped = skipped
	return cart, nil
}

// Add places a listing in the caller's cart. Adding a listing that is
// already there returns the existing row with created=false.
func (s *CartService) Add(ctx context.Context, id model.Identity, listingID uint64) (model.CartLine, bool, error) {
	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return model.CartLine{}, false, err
	}
	if !listing.Available() {
		return model.CartLine{}, false, ErrListingUnavailable
	}
	line, created, err := s.carts.AddIfAbsent(ctx, id.UserID, listing)
	if err != nil {
		return model.CartLine{}, false, fmt.Errorf("add to cart: %w", err)
	}
	return line, created, nil
}

// Remove deletes one of the caller's cart rows. Rows that are missing or
// owned by someone else yield repository.ErrForbidden.
func (s *CartService) Remove(ctx context.Context, id model.Identity, cartItemID uint64) error {
	err := s.carts.DeleteOwned(ctx, id.UserID, cartItemID)
	if errors.Is(err, repository.ErrForbidden) {
		s.log.Info("cart removal denied", zap.Uint64("user_id", id.UserID), zap.Uint64("cart_item_id", cartItemID))
	}
	return err
}

// Migrate moves a guest cart into the caller's persisted cart. It is
// idempotent: listings already in the cart are reused. Unknown or sold
// listings are skipped and reported.
func (s *CartService) Migrate(ctx context.Context, id model.Identity, listingIDs []uint64) (Cart, error) {
	ids := dedupe(listingIDs)
	found, err := s.listings.GetByIDs(ctx, ids)
	if err != nil {
		return Cart{}, fmt.Errorf("resolve guest cart: %w", err)
	}
	byID := make(map[uint64]model.Listing, len(found))
	for _, l := range found {
		byID[l.ID] = l
	}
	var skipped []uint64
	for _, lid := range ids {
		l, ok := byID[lid]
		if !ok || !l.Available() {
			skipped = append(skipped, lid)
			continue
		}
		if _, _, err := s.carts.AddIfAbsent(ctx, id.UserID, l); err != nil {
			return Cart{}, fmt.Errorf("migrate listing %d: %w", lid, err)
		}
	}
	if len(skipped) > 0 {
		s.log.Info("guest cart migration skipped listings",
			zap.Uint64("user_id", id.UserID), zap.Uint64s("listing_ids", skipped))
	}
	cart, err := s.List(ctx, id)
	if err != nil {
		return Cart{}, err
	}
	cart.Skipped = skipped
	return cart, nil
}

// dedupe drops zero and repeated ids, keeping first-seen order.
func dedupe(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
