package service

import (
	"context"
	"slices"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/vinylverse/storefront/internal/identity"
	"github.com/vinylverse/storefront/internal/mail"
	"github.com/vinylverse/storefront/internal/model"
	"github.com/vinylverse/storefront/internal/payment"
	"github.com/vinylverse/storefront/internal/repository"
)

func i64(v int64) *int64 { return &v }

// memDB backs the cart and order fakes with shared state so
// materialization consumes the same rows the cart fake hands out.
type memDB struct {
	mu        sync.Mutex
	listings  map[uint64]model.Listing
	rows      map[uint64]model.CartItem
	nextRow   uint64
	orders    map[uint64]model.Order
	nextOrder uint64
	// failWrites makes materialization fail like a lost connection.
	failWrites error
}

func newMemDB(listings ...model.Listing) *memDB {
	db := &memDB{
		listings: map[uint64]model.Listing{},
		rows:     map[uint64]model.CartItem{},
		orders:   map[uint64]model.Order{},
	}
	for _, l := range listings {
		db.listings[l.ID] = l
	}
	return db
}

func (db *memDB) linesWhere(match func(model.CartItem) bool) []model.CartLine {
	var ids []uint64
	for id, r := range db.rows {
		if match(r) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]model.CartLine, 0, len(ids))
	for _, id := range ids {
		r := db.rows[id]
		out = append(out, model.NewCartLine(r, db.listings[r.ListingID]))
	}
	return out
}

func (db *memDB) rowCount(userID uint64) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	n := 0
	for _, r := range db.rows {
		if r.UserID == userID {
			n++
		}
	}
	return n
}

func (db *memDB) orderCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.orders)
}

type memListings struct{ db *memDB }

func (m memListings) GetByID(_ context.Context, id uint64) (model.Listing, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	l, ok := m.db.listings[id]
	if !ok {
		return model.Listing{}, repository.ErrNotFound
	}
	return l, nil
}

func (m memListings) GetByIDs(_ context.Context, ids []uint64) ([]model.Listing, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	out := []model.Listing{}
	for _, id := range ids {
		if l, ok := m.db.listings[id]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

type memCarts struct{ db *memDB }

func (m memCarts) ListByUser(_ context.Context, userID uint64) ([]model.CartLine, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	return m.db.linesWhere(func(r model.CartItem) bool { return r.UserID == userID }), nil
}

func (m memCarts) GetByID(_ context.Context, id uint64) (model.CartLine, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	r, ok := m.db.rows[id]
	if !ok {
		return model.CartLine{}, repository.ErrNotFound
	}
	return model.NewCartLine(r, m.db.listings[r.ListingID]), nil
}

func (m memCarts) AddIfAbsent(_ context.Context, userID uint64, l model.Listing) (model.CartLine, bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, r := range m.db.rows {
		if r.UserID == userID && r.ListingID == l.ID {
			return model.NewCartLine(r, m.db.listings[l.ID]), false, nil
		}
	}
	m.db.nextRow++
	r := model.CartItem{ID: m.db.nextRow, UserID: userID, ListingID: l.ID, CreatedAt: time.Now()}
	if l.OnSale {
		r.SalePrice = l.SalePrice
	}
	m.db.rows[r.ID] = r
	return model.NewCartLine(r, m.db.listings[l.ID]), true, nil
}

func (m memCarts) DeleteOwned(_ context.Context, userID, id uint64) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	r, ok := m.db.rows[id]
	if !ok || r.UserID != userID {
		return repository.ErrForbidden
	}
	delete(m.db.rows, id)
	return nil
}

func (m memCarts) StampSession(_ context.Context, userID uint64, sessionID string, rowIDs []uint64) (int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var n int64
	for id, r := range m.db.rows {
		if r.UserID == userID && slices.Contains(rowIDs, id) {
			sid := sessionID
			r.PaymentSessionID = &sid
			m.db.rows[id] = r
			n++
		}
	}
	return n, nil
}

func (m memCarts) ClearSessionStamp(_ context.Context, sessionID string) (int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var n int64
	for id, r := range m.db.rows {
		if r.PaymentSessionID != nil && *r.PaymentSessionID == sessionID {
			r.PaymentSessionID = nil
			m.db.rows[id] = r
			n++
		}
	}
	return n, nil
}

type memOrders struct{ db *memDB }

func (m memOrders) MaterializeSession(_ context.Context, sessionID string, build repository.OrderBuilder) (model.Order, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	lines := m.db.linesWhere(func(r model.CartItem) bool {
		return r.PaymentSessionID != nil && *r.PaymentSessionID == sessionID
	})
	if len(lines) == 0 {
		return model.Order{}, repository.ErrNothingToMaterialize
	}
	if m.db.failWrites != nil {
		return model.Order{}, m.db.failWrites
	}
	for _, o := range m.db.orders {
		if o.PaymentSessionID != nil && *o.PaymentSessionID == sessionID {
			return model.Order{}, repository.ErrDuplicateOrder
		}
	}
	o, err := build(lines)
	if err != nil {
		return model.Order{}, err
	}
	sid := sessionID
	o.PaymentSessionID = &sid
	return m.commit(o, lines), nil
}

func (m memOrders) MaterializeCart(_ context.Context, userID uint64, build repository.OrderBuilder) (model.Order, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	lines := m.db.linesWhere(func(r model.CartItem) bool { return r.UserID == userID })
	if len(lines) == 0 {
		return model.Order{}, repository.ErrNothingToMaterialize
	}
	o, err := build(lines)
	if err != nil {
		return model.Order{}, err
	}
	o.UserID = userID
	return m.commit(o, lines), nil
}

// commit must be called with the lock held.
func (m memOrders) commit(o model.Order, lines []model.CartLine) model.Order {
	m.db.nextOrder++
	o.ID = m.db.nextOrder
	o.CreatedAt = time.Now()
	for i := range o.Items {
		o.Items[i].ID = uint64(i + 1)
		o.Items[i].OrderID = o.ID
	}
	m.db.orders[o.ID] = o
	now := time.Now()
	for _, l := range lines {
		delete(m.db.rows, l.ID)
		lst := m.db.listings[l.ListingID]
		lst.SoldAt = &now
		m.db.listings[l.ListingID] = lst
	}
	return o
}

func (m memOrders) GetBySession(_ context.Context, userID uint64, sessionID string) (model.Order, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, o := range m.db.orders {
		if o.UserID == userID && o.PaymentSessionID != nil && *o.PaymentSessionID == sessionID {
			return o, nil
		}
	}
	return model.Order{}, repository.ErrNotFound
}

func (m memOrders) ListByUser(_ context.Context, userID uint64) ([]model.Order, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	out := []model.Order{}
	for _, o := range m.db.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m memOrders) GetByID(_ context.Context, id uint64) (model.Order, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	o, ok := m.db.orders[id]
	if !ok {
		return model.Order{}, repository.ErrNotFound
	}
	return o, nil
}

// fakeProvider accepts the signature "valid" and returns the event
// registered for the payload.
type fakeProvider struct {
	mu       sync.Mutex
	requests []payment.CheckoutSessionRequest
	events   map[string]payment.Event
	err      error
	// onCreate runs while a session is being created.
	onCreate func()
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{events: map[string]payment.Event{}}
}

func (p *fakeProvider) CreateCheckoutSession(_ context.Context, req payment.CheckoutSessionRequest) (payment.CheckoutSession, error) {
	if p.onCreate != nil {
		p.onCreate()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return payment.CheckoutSession{}, p.err
	}
	p.requests = append(p.requests, req)
	id := "cs_test_" + strconv.Itoa(len(p.requests))
	return payment.CheckoutSession{ID: id, URL: "https://pay.test/" + id}, nil
}

func (p *fakeProvider) ParseWebhook(payload []byte, signature string) (payment.Event, error) {
	if signature != "valid" {
		return payment.Event{}, payment.ErrInvalidSignature
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	evt, ok := p.events[string(payload)]
	if !ok {
		return payment.Event{ID: "evt_other", Type: "customer.created"}, nil
	}
	return evt, nil
}

func (p *fakeProvider) sessionCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

type fakeNotifier struct {
	mu     sync.Mutex
	orders []model.Order
	emails []string
	err    error
}

func (n *fakeNotifier) OrderPlaced(_ context.Context, o model.Order, email string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.orders = append(n.orders, o)
	n.emails = append(n.emails, email)
	return n.err
}

type fakeSender struct {
	sent []mail.Message
	err  error
}

func (s *fakeSender) Send(_ context.Context, m mail.Message) error {
	s.sent = append(s.sent, m)
	return s.err
}

type memUsers struct {
	mu     sync.Mutex
	byID   map[uint64]model.User
	nextID uint64
}

func newMemUsers() *memUsers { return &memUsers{byID: map[uint64]model.User{}} }

func (m *memUsers) Create(_ context.Context, u model.User) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.Email = repository.NormalizeEmail(u.Email)
	for _, x := range m.byID {
		if x.Email == u.Email {
			return model.User{}, repository.ErrEmailExists
		}
	}
	m.nextID++
	u.ID = m.nextID
	u.CreatedAt = time.Now()
	m.byID[u.ID] = u
	return u, nil
}

func (m *memUsers) find(match func(model.User) bool) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if match(u) {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	email = repository.NormalizeEmail(email)
	return m.find(func(u model.User) bool { return u.Email == email })
}

func (m *memUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	return m.find(func(u model.User) bool { return u.ID == id })
}

func (m *memUsers) GetByGoogleSub(_ context.Context, sub string) (model.User, error) {
	return m.find(func(u model.User) bool { return u.GoogleSub != "" && u.GoogleSub == sub })
}

func (m *memUsers) update(id uint64, f func(*model.User) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	if err := f(&u); err != nil {
		return err
	}
	m.byID[id] = u
	return nil
}

func (m *memUsers) UpdateEmail(_ context.Context, id uint64, email string) error {
	email = repository.NormalizeEmail(email)
	if other, err := m.GetByEmail(context.Background(), email); err == nil && other.ID != id {
		return repository.ErrEmailExists
	}
	return m.update(id, func(u *model.User) error { u.Email = email; return nil })
}

func (m *memUsers) UpdatePasswordHash(_ context.Context, id uint64, hash string) error {
	return m.update(id, func(u *model.User) error { u.PasswordHash = hash; return nil })
}

func (m *memUsers) LinkGoogle(_ context.Context, id uint64, sub string) error {
	return m.update(id, func(u *model.User) error { u.GoogleSub = sub; return nil })
}

func (m *memUsers) Delete(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

type memToken struct {
	userID  uint64
	exp     time.Time
	revoked bool
}

type memTokens struct {
	mu     sync.Mutex
	byHash map[string]*memToken
}

func newMemTokens() *memTokens { return &memTokens{byHash: map[string]*memToken{}} }

func (m *memTokens) StoreRefresh(_ context.Context, userID uint64, hash string, exp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byHash[hash] = &memToken{userID: userID, exp: exp}
	return nil
}

func (m *memTokens) ValidateRefresh(_ context.Context, hash string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byHash[hash]
	if !ok || t.revoked || time.Now().After(t.exp) {
		return 0, repository.ErrNotFound
	}
	return t.userID, nil
}

func (m *memTokens) RotateRefresh(_ context.Context, userID uint64, oldHash, newHash string, exp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byHash[oldHash]
	if !ok || t.revoked || t.userID != userID {
		return repository.ErrNotFound
	}
	t.revoked = true
	m.byHash[newHash] = &memToken{userID: userID, exp: exp}
	return nil
}

func (m *memTokens) RevokeAllForUser(_ context.Context, userID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.byHash {
		if t.userID == userID {
			t.revoked = true
		}
	}
	return nil
}

func (m *memTokens) active(userID uint64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.byHash {
		if t.userID == userID && !t.revoked {
			n++
		}
	}
	return n
}

type fakeGoogle struct {
	acct identity.GoogleAccount
	err  error
}

func (g fakeGoogle) Verify(context.Context, string) (identity.GoogleAccount, error) {
	return g.acct, g.err
}
