package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rl1809/ticket-sale/internal/core/domain"
	"github.com/rl1809/ticket-sale/internal/port"
)

// memStore is an in-memory UnitOfWork. Transactions run one at a time and
// stage their writes until commit, so a failing fn leaves no trace.
type memStore struct {
	mu       sync.Mutex
	concerts map[string]domain.Concert
	orders   []domain.Order
	addons   []domain.Addon

	// conflicts makes the next n stock updates fail the version check.
	conflicts int
	// failAddon makes CreateAddon fail for this item name.
	failAddon string
	// txDelay is slept inside every transaction before the lock.
	txDelay time.Duration
}

var (
	_ port.UnitOfWork             = (*memStore)(nil)
	_ port.OrderHistoryRepository = (*memStore)(nil)
)

func newMemStore(concerts ...domain.Concert) *memStore {
	s := &memStore{concerts: make(map[string]domain.Concert)}
	for _, c := range concerts {
		s.concerts[c.ID] = c
	}
	return s
}

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx port.PurchaseTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	if s.txDelay > 0 {
		select {
		case <-time.After(s.txDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	tx := &memTx{store: s, concerts: make(map[string]domain.Concert)}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	for id, c := range tx.concerts {
		s.concerts[id] = c
	}
	s.orders = append(s.orders, tx.orders...)
	s.addons = append(s.addons, tx.addons...)
	return nil
}

func (s *memStore) ListOrdersByBuyer(ctx context.Context, buyerID string) ([]domain.OrderHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]domain.OrderHistoryEntry, 0)
	for _, o := range s.orders {
		if o.BuyerID != buyerID {
			continue
		}
		addons := []domain.Addon{}
		for _, a := range s.addons {
			if a.OrderID == o.ID {
				addons = append(addons, a)
			}
		}
		o.Addons = addons
		entries = append(entries, domain.OrderHistoryEntry{
			Order:   o,
			Concert: s.concerts[o.ConcertID].Snapshot(),
			Addons:  addons,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Order.CreatedAt.After(entries[j].Order.CreatedAt)
	})
	return entries, nil
}

func (s *memStore) stock(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.concerts[id].Stock
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *memStore) addonCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.addons)
}

type memTx struct {
	store    *memStore
	concerts map[string]domain.Concert
	orders   []domain.Order
	addons   []domain.Addon
}

func (t *memTx) LockConcert(ctx context.Context, concertID string) (*domain.Concert, error) {
	if c, ok := t.concerts[concertID]; ok {
		return &c, nil
	}
	c, ok := t.store.concerts[concertID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (t *memTx) SumQuantity(ctx context.Context, buyerID, concertID string) (int, error) {
	sum := 0
	for _, list := range [][]domain.Order{t.store.orders, t.orders} {
		for _, o := range list {
			if o.BuyerID == buyerID && o.ConcertID == concertID {
				sum += o.Quantity
			}
		}
	}
	return sum, nil
}

func (t *memTx) UpdateConcertStock(ctx context.Context, c domain.Concert) error {
	if t.store.conflicts > 0 {
		t.store.conflicts--
		return domain.ErrOptimisticLock
	}

	current, _ := t.LockConcert(ctx, c.ID)
	if current == nil || current.Version != c.Version {
		return domain.ErrOptimisticLock
	}

	c.Version++
	t.concerts[c.ID] = c
	return nil
}

func (t *memTx) CreateOrder(ctx context.Context, o domain.Order) error {
	o.Addons = nil
	t.orders = append(t.orders, o)
	return nil
}

func (t *memTx) CreateAddon(ctx context.Context, a domain.Addon) error {
	if t.store.failAddon != "" && a.ItemName == t.store.failAddon {
		return errors.New("insert order addon: disk full")
	}
	t.addons = append(t.addons, a)
	return nil
}

// mockCache is an in-memory CacheRepository.
type mockCache struct {
	mu            sync.Mutex
	keys          map[string]bool
	concerts      []domain.Concert
	cached        bool
	invalidations int
	reads         int
	failSet       bool
}

var _ port.CacheRepository = (*mockCache)(nil)

func newMockCache() *mockCache {
	return &mockCache{keys: make(map[string]bool)}
}

func (m *mockCache) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failSet {
		return false, errors.New("redis: connection refused")
	}
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *mockCache) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

func (m *mockCache) GetConcerts(ctx context.Context) ([]domain.Concert, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	return m.concerts, m.cached, nil
}

func (m *mockCache) SetConcerts(ctx context.Context, concerts []domain.Concert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.concerts = concerts
	m.cached = true
	return nil
}

func (m *mockCache) InvalidateConcerts(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.concerts = nil
	m.cached = false
	m.invalidations++
	return nil
}

func (m *mockCache) invalidationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.invalidations
}

// memCatalog is an in-memory CatalogRepository.
type memCatalog struct {
	mu       sync.Mutex
	concerts []domain.Concert
	lists    int
}

var _ port.CatalogRepository = (*memCatalog)(nil)

func (c *memCatalog) ListConcerts(ctx context.Context) ([]domain.Concert, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lists++
	return append([]domain.Concert(nil), c.concerts...), nil
}

func (c *memCatalog) GetConcert(ctx context.Context, concertID string) (*domain.Concert, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, concert := range c.concerts {
		if concert.ID == concertID {
			return &concert, nil
		}
	}
	return nil, nil
}

func (c *memCatalog) CreateConcert(ctx context.Context, concert domain.Concert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.concerts = append(c.concerts, concert)
	return nil
}

func (c *memCatalog) CountConcerts(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.concerts), nil
}

// memBuyers is an in-memory BuyerRepository.
type memBuyers struct {
	mu     sync.Mutex
	buyers map[string]domain.Buyer
}

var _ port.BuyerRepository = (*memBuyers)(nil)

func newMemBuyers() *memBuyers {
	return &memBuyers{buyers: make(map[string]domain.Buyer)}
}

func (b *memBuyers) CreateBuyer(ctx context.Context, buyer domain.Buyer) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.buyers[buyer.Username]; ok {
		return domain.ErrUsernameTaken
	}
	b.buyers[buyer.Username] = buyer
	return nil
}

func (b *memBuyers) GetBuyerByUsername(ctx context.Context, username string) (*domain.Buyer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	buyer, ok := b.buyers[username]
	if !ok {
		return nil, nil
	}
	return &buyer, nil
}

func (b *memBuyers) CountBuyers(ctx context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buyers), nil
}
