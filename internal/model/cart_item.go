package model

import "time"

// CartItem mirrors a row of the `cart_items` table. A row ties one
// listing to one user; the pair (UserID, ListingID) is unique.
// PaymentSessionID is stamped when the owner starts a checkout and is
// overwritten by every later attempt.
type CartItem struct {
	ID               uint64    `json:"id"`               // cart_items.id (0 for guest lines)
	UserID           uint64    `json:"userId"`           // cart_items.user_id
	ListingID        uint64    `json:"listingId"`        // cart_items.listing_id
	SalePrice        *int64    `json:"salePrice"`        // cart_items.sale_price snapshot taken at add time
	PaymentSessionID *string   `json:"paymentSessionId"` // cart_items.payment_session_id (nullable)
	CreatedAt        time.Time `json:"createdAt"`        // cart_items.created_at
}

// CartLine is a cart row joined with its listing and priced with the
// effective price rule.
type CartLine struct {
	CartItem
	Listing        Listing `json:"listing"`
	EffectivePrice int64   `json:"effectivePrice"`
}

// NewCartLine prices item against listing.
func NewCartLine(item CartItem, listing Listing) CartLine {
	return CartLine{CartItem: item, Listing: listing, EffectivePrice: listing.EffectivePrice()}
}

// CartTotal sums the effective price of every line.
func CartTotal(lines []CartLine) int64 {
	var total int64
	for _, l := range lines {
		total += l.EffectivePrice
	}
	return total
}
