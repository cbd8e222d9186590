package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rl1809/order-ledger/internal/core/domain"
	"github.com/rl1809/order-ledger/internal/port"
	"github.com/rl1809/order-ledger/pkg/logger"
)

// Mock store implementing the order, audit and vendor repositories
type mockStore struct {
	mu      sync.Mutex
	orders  map[string]domain.Order
	entries map[string][]domain.AuditLogEntry
	vendors map[string]domain.Vendor

	chainConflicts int   // next N commits fail with ErrChainConflict
	saveErr        error // returned by SaveTransition when set
	vendorSaveErr  error
	listErr        error
	commits        int
}

func newMockStore() *mockStore {
	return &mockStore{
		orders:  make(map[string]domain.Order),
		entries: make(map[string][]domain.AuditLogEntry),
		vendors: make(map[string]domain.Vendor),
	}
}

func (m *mockStore) CreateOrder(ctx context.Context, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[order.ID]; ok {
		return errors.New("duplicate order")
	}
	m.orders[order.ID] = order.Clone()
	return nil
}

func (m *mockStore) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, port.ErrNotFound
	}
	c := o.Clone()
	return &c, nil
}

func (m *mockStore) ListVendorOrders(ctx context.Context, vendorID string, statuses ...domain.OrderStatus) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.Order
	for _, o := range m.orders {
		if o.VendorID != vendorID {
			continue
		}
		for _, s := range statuses {
			if o.Status == s {
				out = append(out, o.Clone())
				break
			}
		}
	}
	return out, nil
}

func (m *mockStore) SaveTransition(ctx context.Context, order domain.Order, expectedVersion int, entry domain.AuditLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if m.chainConflicts > 0 {
		m.chainConflicts--
		return port.ErrChainConflict
	}
	current, ok := m.orders[order.ID]
	if !ok {
		return port.ErrNotFound
	}
	if current.Version != expectedVersion {
		return port.ErrVersionConflict
	}
	if err := m.appendLocked(entry); err != nil {
		return err
	}
	m.orders[order.ID] = order.Clone()
	m.commits++
	return nil
}

func (m *mockStore) Append(ctx context.Context, entry domain.AuditLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.chainConflicts > 0 {
		m.chainConflicts--
		return port.ErrChainConflict
	}
	return m.appendLocked(entry)
}

func (m *mockStore) appendLocked(entry domain.AuditLogEntry) error {
	chain := m.entries[entry.OrderID]
	if entry.Sequence != len(chain)+1 {
		return port.ErrChainConflict
	}
	m.entries[entry.OrderID] = append(chain, entry)
	return nil
}

func (m *mockStore) LastEntry(ctx context.Context, orderID string) (*domain.AuditLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chain := m.entries[orderID]
	if len(chain) == 0 {
		return nil, nil
	}
	e := chain[len(chain)-1]
	return &e, nil
}

func (m *mockStore) ListEntries(ctx context.Context, orderID string) ([]domain.AuditLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chain := m.entries[orderID]
	out := make([]domain.AuditLogEntry, len(chain))
	copy(out, chain)
	return out, nil
}

func (m *mockStore) GetEntry(ctx context.Context, entryID string) (*domain.AuditLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, chain := range m.entries {
		for _, e := range chain {
			if e.ID == entryID {
				c := e
				return &c, nil
			}
		}
	}
	return nil, port.ErrNotFound
}

func (m *mockStore) PreviousEntry(ctx context.Context, entry domain.AuditLogEntry) (*domain.AuditLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries[entry.OrderID] {
		if e.Sequence == entry.Sequence-1 {
			c := e
			return &c, nil
		}
	}
	return nil, nil
}

func (m *mockStore) GetVendor(ctx context.Context, vendorID string) (*domain.Vendor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vendors[vendorID]
	if !ok {
		return nil, port.ErrNotFound
	}
	return &v, nil
}

func (m *mockStore) SaveVendorScore(ctx context.Context, vendor domain.Vendor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vendorSaveErr != nil {
		return m.vendorSaveErr
	}
	m.vendors[vendor.ID] = vendor
	return nil
}

// tamper rewrites a stored entry in place, bypassing the append-only port.
func (m *mockStore) tamper(orderID string, index int, fn func(e *domain.AuditLogEntry)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.entries[orderID][index])
}

func (m *mockStore) entryCount(orderID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries[orderID])
}

func (m *mockStore) putOrder(o domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o.Clone()
}

func (m *mockStore) putVendor(v domain.Vendor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vendors[v.ID] = v
}

func (m *mockStore) vendor(id string) (domain.Vendor, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vendors[id]
	return v, ok
}

// Mock Locker: one mutex per key
type mockLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
	err   error
}

func newMockLocker() *mockLocker {
	return &mockLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *mockLocker) Acquire(ctx context.Context, key string) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock, nil
}

// Mock StockRepository
type mockStock struct {
	mu    sync.Mutex
	stock map[string]int
	err   error
}

func newMockStock() *mockStock {
	return &mockStock{stock: make(map[string]int)}
}

func (s *mockStock) IncrementStock(ctx context.Context, productID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.stock[productID] += quantity
	return nil
}

func (s *mockStock) get(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stock[productID]
}

// Mock RescoreQueue
type mockQueue struct {
	mu      sync.Mutex
	pending map[string]bool
}

func newMockQueue() *mockQueue {
	return &mockQueue{pending: make(map[string]bool)}
}

func (q *mockQueue) Defer(ctx context.Context, vendorID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending[vendorID] = true
	return nil
}

func (q *mockQueue) Pop(ctx context.Context, n int) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := make([]string, 0, len(q.pending))
	for id := range q.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if len(ids) > n {
		ids = ids[:n]
	}
	for _, id := range ids {
		delete(q.pending, id)
	}
	return ids, nil
}

func (q *mockQueue) has(vendorID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending[vendorID]
}

// Mock EventPublisher
type mockPublisher struct {
	mu     sync.Mutex
	orders []domain.OrderEvent
	scores []domain.ScoreChangedEvent
}

func (p *mockPublisher) PublishOrderEvent(ctx context.Context, event domain.OrderEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orders = append(p.orders, event)
}

func (p *mockPublisher) PublishScoreChanged(ctx context.Context, event domain.ScoreChangedEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scores = append(p.scores, event)
}

func (p *mockPublisher) counts() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.orders), len(p.scores)
}

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store     *mockStore
	locker    *mockLocker
	stock     *mockStock
	queue     *mockQueue
	publisher *mockPublisher
	ledger    *AuditLedger
	scorer    *ScoringService
	svc       *OrderService
}

func newFixture() *fixture {
	f := &fixture{
		store:     newMockStore(),
		locker:    newMockLocker(),
		stock:     newMockStock(),
		queue:     newMockQueue(),
		publisher: &mockPublisher{},
	}
	log := logger.Nop()
	clock := func() time.Time { return testNow }

	f.ledger = NewAuditLedger(f.store, DefaultAppendAttempts, log)
	f.ledger.now = clock
	f.scorer = NewScoringService(f.store, f.store, f.locker, f.queue, f.publisher, log)
	f.scorer.now = clock
	f.svc = NewOrderService(f.store, f.ledger, f.scorer, f.locker, f.stock, f.publisher, log)
	f.svc.now = clock
	return f
}

var (
	manager = domain.Actor{UserID: "mgr-1", Role: domain.RoleManager, BusinessID: "biz-1"}
	owner   = domain.Actor{UserID: "owner-1", Role: domain.RoleOwner, BusinessID: "biz-1"}
	vendor  = domain.Actor{UserID: "vendor-user-1", Role: domain.RoleVendor, VendorID: "vendor-1"}
)

// seedOrder stores an order directly in the given status.
func (f *fixture) seedOrder(id string, status domain.OrderStatus) domain.Order {
	o := domain.Order{
		ID:         id,
		ProductID:  "prod-1",
		VendorID:   "vendor-1",
		BusinessID: "biz-1",
		CreatedBy:  manager.UserID,
		Quantity:   10,
		Status:     status,
		CreatedAt:  testNow,
		UpdatedAt:  testNow,
		Version:    1,
	}
	f.store.putOrder(o)
	return o
}
