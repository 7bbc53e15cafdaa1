package model

import "time"

// Listing represents a single record for sale as stored in the `listings`
// table. Every listing is one physical copy, so once an order materializes
// it the listing is marked sold and can no longer be added to a cart.
//
// Fields:
//  Price       – list price in whole currency units.
//  SalePrice   – discounted price, only charged while OnSale is true.
//  ReleaseYear – original release year when known.
//  SoldAt      – set when a placed order consumed the listing.
type Listing struct {
	ID          uint64     `json:"id"`          // listings.id
	Title       string     `json:"title"`       // listings.title
	Artist      string     `json:"artist"`      // listings.artist
	Genre       string     `json:"genre"`       // listings.genre
	Condition   string     `json:"condition"`   // listings.media_condition
	Price       int64      `json:"price"`       // listings.price
	SalePrice   *int64     `json:"salePrice"`   // listings.sale_price (nullable)
	OnSale      bool       `json:"onSale"`      // listings.on_sale
	Featured    bool       `json:"featured"`    // listings.featured
	ReleaseYear *int       `json:"releaseYear"` // listings.release_year (nullable)
	ImageURL    string     `json:"imageUrl"`    // listings.image_url
	UPC         string     `json:"upc"`         // listings.upc
	Description string     `json:"description"` // listings.description
	SoldAt      *time.Time `json:"soldAt"`      // listings.sold_at (nullable)
	CreatedAt   time.Time  `json:"createdAt"`   // listings.created_at
	UpdatedAt   time.Time  `json:"updatedAt"`   // listings.updated_at
}

// EffectivePrice is the price actually charged for the listing: the sale
// price when the listing is on sale and has one, otherwise the list price.
func (l Listing) EffectivePrice() int64 {
	if l.OnSale && l.SalePrice != nil {
		return *l.SalePrice
	}
	return l.Price
}

// Available reports whether the listing can still be bought.
func (l Listing) Available() bool { return l.SoldAt == nil }
