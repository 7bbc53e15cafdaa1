package handler

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vinylverse/storefront/internal/catalog"
	"github.com/vinylverse/storefront/internal/identity"
	"github.com/vinylverse/storefront/internal/model"
	"github.com/vinylverse/storefront/internal/payment"
	"github.com/vinylverse/storefront/internal/repository"
)

// store is a single in-memory backing for every repository fake.
type store struct {
	mu       sync.Mutex
	listings map[uint64]model.Listing
	rows     map[uint64]model.CartItem
	orders   map[uint64]model.Order
	users    map[uint64]model.User
	tokens   map[string]uint64
	seq      uint64
	lastQ    repository.ListingSearchQuery
	// failWrites is returned by order materialization when set.
	failWrites error
}

func newStore(listings ...model.Listing) *store {
	s := &store{
		listings: map[uint64]model.Listing{},
		rows:     map[uint64]model.CartItem{},
		orders:   map[uint64]model.Order{},
		users:    map[uint64]model.User{},
		tokens:   map[string]uint64{},
		seq:      100,
	}
	for _, l := range listings {
		s.listings[l.ID] = l
	}
	return s
}

func (s *store) next() uint64 { s.seq++; return s.seq }

func (s *store) lines(match func(model.CartItem) bool) []model.CartLine {
	ids := []uint64{}
	for id, r := range s.rows {
		if match(r) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]model.CartLine, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.NewCartLine(s.rows[id], s.listings[s.rows[id].ListingID]))
	}
	return out
}

// listings

type listingFake struct{ *store }

func (f listingFake) Search(_ context.Context, q repository.ListingSearchQuery) ([]model.Listing, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q.Normalize()
	f.lastQ = q
	out := []model.Listing{}
	for _, l := range f.listings {
		if q.Search == "" || strings.Contains(strings.ToLower(l.Title), strings.ToLower(q.Search)) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (f listingFake) Genres(context.Context) ([]string, error) { return []string{"Jazz"}, nil }

func (f listingFake) GetByID(_ context.Context, id uint64) (model.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.listings[id]
	if !ok {
		return model.Listing{}, repository.ErrNotFound
	}
	return l, nil
}

func (f listingFake) GetByIDs(_ context.Context, ids []uint64) ([]model.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Listing{}
	for _, id := range ids {
		if l, ok := f.listings[id]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f listingFake) Create(_ context.Context, l model.Listing) (model.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l.ID = f.next()
	f.listings[l.ID] = l
	return l, nil
}

func (f listingFake) Update(_ context.Context, l model.Listing) (model.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.listings[l.ID]; !ok {
		return model.Listing{}, repository.ErrNotFound
	}
	f.listings[l.ID] = l
	return l, nil
}

func (f listingFake) Delete(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.listings[id]
	if !ok {
		return repository.ErrNotFound
	}
	if l.SoldAt != nil {
		return repository.ErrConflict
	}
	delete(f.listings, id)
	return nil
}

// carts

type cartFake struct{ *store }

func (f cartFake) ListByUser(_ context.Context, userID uint64) ([]model.CartLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lines(func(r model.CartItem) bool { return r.UserID == userID }), nil
}

func (f cartFake) GetByID(_ context.Context, id uint64) (model.CartLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return model.CartLine{}, repository.ErrNotFound
	}
	return model.NewCartLine(r, f.listings[r.ListingID]), nil
}

func (f cartFake) AddIfAbsent(_ context.Context, userID uint64, l model.Listing) (model.CartLine, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.UserID == userID && r.ListingID == l.ID {
			return model.NewCartLine(r, l), false, nil
		}
	}
	r := model.CartItem{ID: f.next(), UserID: userID, ListingID: l.ID, CreatedAt: time.Now()}
	f.rows[r.ID] = r
	return model.NewCartLine(r, l), true, nil
}

func (f cartFake) DeleteOwned(_ context.Context, userID, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rows[id]; !ok || r.UserID != userID {
		return repository.ErrForbidden
	}
	delete(f.rows, id)
	return nil
}

func (f cartFake) StampSession(_ context.Context, userID uint64, sid string, rowIDs []uint64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, r := range f.rows {
		if r.UserID == userID && slices.Contains(rowIDs, id) {
			s := sid
			r.PaymentSessionID = &s
			f.rows[id] = r
			n++
		}
	}
	return n, nil
}

func (f cartFake) ClearSessionStamp(_ context.Context, sid string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, r := range f.rows {
		if r.PaymentSessionID != nil && *r.PaymentSessionID == sid {
			r.PaymentSessionID = nil
			f.rows[id] = r
			n++
		}
	}
	return n, nil
}

// orders

type orderFake struct{ *store }

func (f orderFake) materialize(match func(model.CartItem) bool, sid *string, build repository.OrderBuilder) (model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lines := f.lines(match)
	if len(lines) == 0 {
		return model.Order{}, repository.ErrNothingToMaterialize
	}
	if f.failWrites != nil {
		return model.Order{}, f.failWrites
	}
	o, err := build(lines)
	if err != nil {
		return model.Order{}, err
	}
	o.ID = f.next()
	o.PaymentSessionID = sid
	now := time.Now()
	for _, l := range lines {
		delete(f.rows, l.ID)
		lst := f.listings[l.ListingID]
		lst.SoldAt = &now
		f.listings[l.ListingID] = lst
	}
	f.orders[o.ID] = o
	return o, nil
}

func (f orderFake) MaterializeSession(_ context.Context, sid string, build repository.OrderBuilder) (model.Order, error) {
	s := sid
	return f.materialize(func(r model.CartItem) bool {
		return r.PaymentSessionID != nil && *r.PaymentSessionID == sid
	}, &s, build)
}

func (f orderFake) MaterializeCart(_ context.Context, userID uint64, build repository.OrderBuilder) (model.Order, error) {
	return f.materialize(func(r model.CartItem) bool { return r.UserID == userID }, nil, build)
}

func (f orderFake) GetBySession(_ context.Context, userID uint64, sid string) (model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.UserID == userID && o.PaymentSessionID != nil && *o.PaymentSessionID == sid {
			return o, nil
		}
	}
	return model.Order{}, repository.ErrNotFound
}

func (f orderFake) ListByUser(_ context.Context, userID uint64) ([]model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Order{}
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f orderFake) GetByID(_ context.Context, id uint64) (model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return model.Order{}, repository.ErrNotFound
	}
	return o, nil
}

// users and tokens

type userFake struct{ *store }

func (f userFake) Create(_ context.Context, u model.User) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u.Email = repository.NormalizeEmail(u.Email)
	for _, x := range f.users {
		if x.Email == u.Email {
			return model.User{}, repository.ErrEmailExists
		}
	}
	u.ID = f.next()
	f.users[u.ID] = u
	return u, nil
}

func (f userFake) find(match func(model.User) bool) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if match(u) {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (f userFake) GetByEmail(_ context.Context, email string) (model.User, error) {
	email = repository.NormalizeEmail(email)
	return f.find(func(u model.User) bool { return u.Email == email })
}

func (f userFake) GetByID(_ context.Context, id uint64) (model.User, error) {
	return f.find(func(u model.User) bool { return u.ID == id })
}

func (f userFake) GetByGoogleSub(_ context.Context, sub string) (model.User, error) {
	return f.find(func(u model.User) bool { return u.GoogleSub != "" && u.GoogleSub == sub })
}

func (f userFake) set(id uint64, mut func(*model.User)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	mut(&u)
	f.users[id] = u
	return nil
}

func (f userFake) UpdateEmail(ctx context.Context, id uint64, email string) error {
	if other, err := f.GetByEmail(ctx, email); err == nil && other.ID != id {
		return repository.ErrEmailExists
	}
	return f.set(id, func(u *model.User) { u.Email = repository.NormalizeEmail(email) })
}

func (f userFake) UpdatePasswordHash(_ context.Context, id uint64, hash string) error {
	return f.set(id, func(u *model.User) { u.PasswordHash = hash })
}

func (f userFake) LinkGoogle(_ context.Context, id uint64, sub string) error {
	return f.set(id, func(u *model.User) { u.GoogleSub = sub })
}

func (f userFake) Delete(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, id)
	return nil
}

func (f userFake) StoreRefresh(_ context.Context, userID uint64, hash string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[hash] = userID
	return nil
}

func (f userFake) ValidateRefresh(_ context.Context, hash string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.tokens[hash]
	if !ok {
		return 0, repository.ErrNotFound
	}
	return id, nil
}

func (f userFake) RotateRefresh(_ context.Context, userID uint64, oldHash, newHash string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tokens[oldHash] != userID {
		return repository.ErrNotFound
	}
	delete(f.tokens, oldHash)
	f.tokens[newHash] = userID
	return nil
}

func (f userFake) RevokeAllForUser(_ context.Context, userID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for h, id := range f.tokens {
		if id == userID {
			delete(f.tokens, h)
		}
	}
	return nil
}

// payment provider: signature "good" verifies, payload is the session id.

type providerFake struct {
	mu    sync.Mutex
	count int
	err   error
}

func (p *providerFake) CreateCheckoutSession(_ context.Context, _ payment.CheckoutSessionRequest) (payment.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return payment.CheckoutSession{}, p.err
	}
	p.count++
	return payment.CheckoutSession{ID: "cs_1", URL: "https://pay.test/cs_1"}, nil
}

func (p *providerFake) ParseWebhook(payload []byte, sig string) (payment.Event, error) {
	if sig != "good" {
		return payment.Event{}, payment.ErrInvalidSignature
	}
	return payment.Event{Type: payment.EventCheckoutCompleted, SessionID: string(payload), PaymentStatus: "paid"}, nil
}

type googleFake struct{ acct identity.GoogleAccount }

func (g googleFake) Verify(context.Context, string) (identity.GoogleAccount, error) { return g.acct, nil }

type discogsFake struct {
	s   catalog.Suggestion
	err error
}

func (d discogsFake) LookupBarcode(context.Context, string) (catalog.Suggestion, error) { return d.s, d.err }
