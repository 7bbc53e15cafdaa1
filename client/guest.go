package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// GuestStore remembers the listing ids a signed-out shopper put in the
// cart. Nothing about a guest cart lives on the server.
type GuestStore interface {
	Load() ([]uint64, error)
	Save(ids []uint64) error
	Clear() error
}

// AddGuest records listingID unless it is already present.
func AddGuest(s GuestStore, listingID uint64) error {
	ids, err := s.Load()
	if err != nil {
		return err
	}
	if slices.Contains(ids, listingID) {
		return nil
	}
	return s.Save(append(ids, listingID))
}

// RemoveGuest drops listingID from the store.
func RemoveGuest(s GuestStore, listingID uint64) error {
	ids, err := s.Load()
	if err != nil {
		return err
	}
	out := slices.DeleteFunc(ids, func(id uint64) bool { return id == listingID })
	return s.Save(out)
}

// MemoryStore keeps guest ids in memory.
type MemoryStore struct {
	mu  sync.Mutex
	ids []uint64
}

func NewMemoryStore(ids ...uint64) *MemoryStore {
	return &MemoryStore{ids: dedupe(ids)}
}

func (m *MemoryStore) Load() ([]uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.ids), nil
}

func (m *MemoryStore) Save(ids []uint64) error {
	m.mu.Lock()
	m.ids = dedupe(ids)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	m.ids = nil
	m.mu.Unlock()
	return nil
}

// FileStore persists guest ids as a JSON array. A missing file is an
// empty cart.
type FileStore struct {
	Path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore { return &FileStore{Path: path} }

func (f *FileStore) Load() ([]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return []uint64{}, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []uint64
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &ids); err != nil {
			return nil, fmt.Errorf("guest cart %s: %w", f.Path, err)
		}
	}
	return dedupe(ids), nil
}

// Save writes to a temp file and renames it over the old one.
func (f *FileStore) Save(ids []uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, err := json.Marshal(dedupe(ids))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return err
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.Path)
}

func (f *FileStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := os.Remove(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func dedupe(ids []uint64) []uint64 {
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if id != 0 && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// ViewGuestCart prices the stored ids through the API.
func (c *Client) ViewGuestCart(ctx context.Context, s GuestStore) (Cart, error) {
	ids, err := s.Load()
	if err != nil {
		return Cart{}, err
	}
	return c.GuestCart(ctx, ids)
}

// MigrateGuestCart moves the stored ids into the signed-in caller's cart.
// The store is cleared only after the server confirmed the migrate, so a
// failed attempt can simply be retried.
func (c *Client) MigrateGuestCart(ctx context.Context, s GuestStore) (Cart, error) {
	ids, err := s.Load()
	if err != nil {
		return Cart{}, err
	}
	if len(ids) == 0 {
		return c.Cart(ctx)
	}
	cart, err := c.Migrate(ctx, ids)
	if err != nil {
		return Cart{}, err
	}
	if err := s.Clear(); err != nil {
		return cart, fmt.Errorf("clear guest cart: %w", err)
	}
	return cart, nil
}

// LoginAndMigrate signs in and then migrates the guest cart. A migrate
// failure still returns the session.
func (c *Client) LoginAndMigrate(ctx context.Context, s GuestStore, email, password string) (Session, Cart, error) {
	sess, err := c.Login(ctx, email, password)
	if err != nil {
		return Session{}, Cart{}, err
	}
	cart, err := c.MigrateGuestCart(ctx, s)
	return sess, cart, err
}
