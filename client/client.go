// Package client is a typed HTTP client for the storefront API together with
// the guest cart store a browser or CLI front end keeps between visits.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vinylverse/storefront/internal/model"
)

const defaultTimeout = 10 * time.Second

// Aliases so callers outside the module can name the payload types.
type (
	Listing   = model.Listing
	CartLine  = model.CartLine
	Order     = model.Order
	OrderItem = model.OrderItem
	Shipping  = model.Shipping
	User      = model.User
)

// Session is returned by signup, login and refresh.
type Session struct {
	Token            string     `json:"token"`
	ExpiresAt        time.Time  `json:"expiresAt"`
	RefreshToken     string     `json:"refreshToken,omitempty"`
	RefreshExpiresAt *time.Time `json:"refreshExpiresAt,omitempty"`
	User             User       `json:"user"`
}

// Cart is a priced cart. Skipped lists the listing ids a migrate could not
// move into the persisted cart.
type Cart struct {
	Items   []CartLine `json:"items"`
	Total   int64      `json:"total"`
	Skipped []uint64   `json:"skipped,omitempty"`
}

// CheckoutResult carries either a hosted payment redirect or, when the
// server runs without a payment provider, the placed order.
type CheckoutResult struct {
	URL       string `json:"url,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Order     *Order `json:"order,omitempty"`
}

// ListingPage is one page of catalog search results.
type ListingPage struct {
	Items      []Listing `json:"items"`
	Total      int64     `json:"total"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
	TotalPages int       `json:"totalPages"`
}

// ListingQuery holds the catalog filters. Zero values are omitted.
type ListingQuery struct {
	Search   string
	Genre    string
	Sort     string
	Year     int
	Decade   int
	MinPrice int64
	MaxPrice int64
	OnSale   bool
	Featured bool
	Page     int
	PageSize int
}

func (q ListingQuery) values() url.Values {
	v := url.Values{}
	setStr := func(k, s string) {
		if s != "" {
			v.Set(k, s)
		}
	}
	setInt := func(k string, n int64) {
		if n > 0 {
			v.Set(k, strconv.FormatInt(n, 10))
		}
	}
	setStr("search", q.Search)
	setStr("genre", q.Genre)
	setStr("sort", q.Sort)
	setInt("year", int64(q.Year))
	setInt("decade", int64(q.Decade))
	setInt("minPrice", q.MinPrice)
	setInt("maxPrice", q.MaxPrice)
	setInt("page", int64(q.Page))
	setInt("pageSize", int64(q.PageSize))
	if q.OnSale {
		v.Set("onSale", "true")
	}
	if q.Featured {
		v.Set("featured", "true")
	}
	return v
}

// APIError is returned for every non-2xx response.
type APIError struct {
	Status  int
	Message string
	Code    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api: status %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == http.StatusNotFound
}

// ErrMissingSessionID is returned when no checkout session id is given.
var ErrMissingSessionID = errors.New("client: missing session id")

// Client talks to one storefront API. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithToken starts the client with an existing access token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New constructs a client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Token returns the current access token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the access token used on authenticated calls.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Signup creates an account and keeps its access token.
func (c *Client) Signup(ctx context.Context, email, password string) (Session, error) {
	return c.signIn(ctx, "/auth/signup", email, password)
}

// Login signs in and keeps the access token.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	return c.signIn(ctx, "/auth/login", email, password)
}

func (c *Client) signIn(ctx context.Context, path, email, password string) (Session, error) {
	var s Session
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, path, body, &s); err != nil {
		return Session{}, err
	}
	c.SetToken(s.Token)
	return s, nil
}

// Refresh exchanges a refresh token for a new session.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	var s Session
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", map[string]string{"refreshToken": refreshToken}, &s); err != nil {
		return Session{}, err
	}
	c.SetToken(s.Token)
	return s, nil
}

// Logout revokes the caller's refresh tokens and forgets the access token.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil); err != nil {
		return err
	}
	c.SetToken("")
	return nil
}

// Listings searches the catalog.
func (c *Client) Listings(ctx context.Context, q ListingQuery) (ListingPage, error) {
	path := "/listings"
	if enc := q.values().Encode(); enc != "" {
		path += "?" + enc
	}
	var page ListingPage
	err := c.do(ctx, http.MethodGet, path, nil, &page)
	return page, err
}

// Listing fetches one listing.
func (c *Client) Listing(ctx context.Context, id uint64) (Listing, error) {
	var l Listing
	err := c.do(ctx, http.MethodGet, "/listings/"+strconv.FormatUint(id, 10), nil, &l)
	return l, err
}

// Cart returns the caller's persisted cart.
func (c *Client) Cart(ctx context.Context) (Cart, error) {
	var cart Cart
	err := c.do(ctx, http.MethodGet, "/carts", nil, &cart)
	return cart, err
}

// AddToCart adds a listing. Adding one already in the cart returns the
// existing line.
func (c *Client) AddToCart(ctx context.Context, listingID uint64) (CartLine, error) {
	var line CartLine
	err := c.do(ctx, http.MethodPost, "/carts", map[string]uint64{"listingId": listingID}, &line)
	return line, err
}

// RemoveFromCart deletes one of the caller's cart rows.
func (c *Client) RemoveFromCart(ctx context.Context, cartItemID uint64) error {
	return c.do(ctx, http.MethodDelete, "/carts/"+strconv.FormatUint(cartItemID, 10), nil, nil)
}

// GuestCart prices remembered listing ids without persisting anything.
func (c *Client) GuestCart(ctx context.Context, listingIDs []uint64) (Cart, error) {
	var cart Cart
	err := c.do(ctx, http.MethodPost, "/carts/guest", idsBody(listingIDs), &cart)
	return cart, err
}

// Migrate moves guest listing ids into the caller's persisted cart.
func (c *Client) Migrate(ctx context.Context, listingIDs []uint64) (Cart, error) {
	var cart Cart
	err := c.do(ctx, http.MethodPost, "/carts/migrate", idsBody(listingIDs), &cart)
	return cart, err
}

// Checkout starts payment for the caller's cart.
func (c *Client) Checkout(ctx context.Context, ship Shipping) (CheckoutResult, error) {
	var res CheckoutResult
	err := c.do(ctx, http.MethodPost, "/checkout", ship, &res)
	return res, err
}

// Orders lists the caller's orders, newest first.
func (c *Client) Orders(ctx context.Context) ([]Order, error) {
	var orders []Order
	err := c.do(ctx, http.MethodGet, "/orders", nil, &orders)
	return orders, err
}

// OrderBySession looks up the order paid through a checkout session. A 404
// means the payment notification has not been processed yet.
func (c *Client) OrderBySession(ctx context.Context, sessionID string) (Order, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Order{}, ErrMissingSessionID
	}
	var o Order
	err := c.do(ctx, http.MethodGet, "/orders/session/"+url.PathEscape(sessionID), nil, &o)
	return o, err
}

// PollOrder calls OrderBySession every interval until the order exists,
// a non-404 error occurs or ctx ends.
func (c *Client) PollOrder(ctx context.Context, sessionID string, interval time.Duration) (Order, error) {
	if interval <= 0 {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		o, err := c.OrderBySession(ctx, sessionID)
		if err == nil || !IsNotFound(err) {
			return o, err
		}
		select {
		case <-ctx.Done():
			return Order{}, ctx.Err()
		case <-t.C:
		}
	}
}

// SendContact posts a message to the support inbox.
func (c *Client) SendContact(ctx context.Context, message string) error {
	return c.do(ctx, http.MethodPost, "/contact", map[string]string{"message": message}, nil)
}

func idsBody(ids []uint64) map[string][]uint64 {
	if ids == nil {
		ids = []uint64{}
	}
	return map[string][]uint64{"listingIds": ids}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body struct {
		Error     string `json:"error"`
		ErrorCode string `json:"errorCode"`
	}
	ae := &APIError{Status: resp.StatusCode}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		ae.Message, ae.Code = body.Error, body.ErrorCode
	} else {
		ae.Message = strings.TrimSpace(string(raw))
		if ae.Message == "" {
			ae.Message = http.StatusText(resp.StatusCode)
		}
	}
	return ae
}
